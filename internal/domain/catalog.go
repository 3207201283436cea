package domain

import "time"

// Order statuses accepted by the get_orders tool.
const (
	OrderStatusPending   = "pending"
	OrderStatusPaid      = "paid"
	OrderStatusShipped   = "shipped"
	OrderStatusDelivered = "delivered"
	OrderStatusCancelled = "cancelled"
)

// Booking statuses accepted by the get_bookings tool.
const (
	BookingStatusPending   = "pending"
	BookingStatusConfirmed = "confirmed"
	BookingStatusCompleted = "completed"
	BookingStatusCancelled = "cancelled"
)

// Order is a purchase placed by a user in the marketplace.
type Order struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	ProductName string    `json:"product_name"`
	Status      string    `json:"status"`
	Total       float64   `json:"total"`
	CreatedAt   time.Time `json:"created_at"`
}

// Booking is a service reservation placed by a user.
type Booking struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	ServiceName string    `json:"service_name"`
	Status      string    `json:"status"`
	Date        time.Time `json:"date"`
	CreatedAt   time.Time `json:"created_at"`
}

// Product is a catalog item, tagged with its category and the supplier's
// business details for presentation in tool results.
type Product struct {
	ID           string  `json:"id"`
	SellerID     string  `json:"seller_id"`
	Name         string  `json:"name"`
	Description  string  `json:"description"`
	Price        float64 `json:"price"`
	CategoryName string  `json:"category_name"`
	SupplierName string  `json:"supplier_name"`
}

// Service is a bookable service offering in the catalog.
type Service struct {
	ID           string  `json:"id"`
	ProviderID   string  `json:"provider_id"`
	Name         string  `json:"name"`
	Description  string  `json:"description"`
	Price        float64 `json:"price"`
	CategoryName string  `json:"category_name"`
	ProviderName string  `json:"provider_name"`
}

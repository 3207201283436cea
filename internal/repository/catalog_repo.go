package repository

import (
	"context"

	"github.com/punchagency/ycc-assist/internal/domain"
)

// CatalogRepository serves the read queries behind the chat tools:
// a caller's orders and bookings, plus catalog-wide product and service
// search.
type CatalogRepository struct {
	db *DB
}

// NewCatalogRepository creates a new catalog repository
func NewCatalogRepository(db *DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// ListOrders returns a user's orders, optionally filtered by status,
// newest first, plus the total matching count.
func (r *CatalogRepository) ListOrders(ctx context.Context, userID, status string, limit int) ([]*domain.Order, int, error) {
	query := `SELECT id, user_id, product_name, status, total, created_at FROM orders WHERE user_id = ?`
	countQuery := `SELECT COUNT(*) FROM orders WHERE user_id = ?`
	args := []any{userID}
	if status != "" {
		query += ` AND status = ?`
		countQuery += ` AND status = ?`
		args = append(args, status)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += ` ORDER BY created_at DESC LIMIT ?`
	rows, err := r.db.QueryContext(ctx, query, append(args, limit)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		o := &domain.Order{}
		if err := rows.Scan(&o.ID, &o.UserID, &o.ProductName, &o.Status, &o.Total, &o.CreatedAt); err != nil {
			return nil, 0, err
		}
		orders = append(orders, o)
	}
	return orders, total, rows.Err()
}

// ListBookings returns a user's bookings, optionally filtered by status,
// newest first, plus the total matching count.
func (r *CatalogRepository) ListBookings(ctx context.Context, userID, status string, limit int) ([]*domain.Booking, int, error) {
	query := `SELECT id, user_id, service_name, status, date, created_at FROM bookings WHERE user_id = ?`
	countQuery := `SELECT COUNT(*) FROM bookings WHERE user_id = ?`
	args := []any{userID}
	if status != "" {
		query += ` AND status = ?`
		countQuery += ` AND status = ?`
		args = append(args, status)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += ` ORDER BY created_at DESC LIMIT ?`
	rows, err := r.db.QueryContext(ctx, query, append(args, limit)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var bookings []*domain.Booking
	for rows.Next() {
		b := &domain.Booking{}
		if err := rows.Scan(&b.ID, &b.UserID, &b.ServiceName, &b.Status, &b.Date, &b.CreatedAt); err != nil {
			return nil, 0, err
		}
		bookings = append(bookings, b)
	}
	return bookings, total, rows.Err()
}

// SearchProducts returns products whose name or description contains
// name (case-insensitive). When sellerID is non-empty the search is
// restricted to that seller's own listings.
func (r *CatalogRepository) SearchProducts(ctx context.Context, name, sellerID string, limit int) ([]*domain.Product, int, error) {
	query := `SELECT id, seller_id, name, description, price, category_name, supplier_name FROM products WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM products WHERE 1=1`
	var args []any
	if name != "" {
		clause := ` AND (name LIKE '%' || ? || '%' COLLATE NOCASE OR description LIKE '%' || ? || '%' COLLATE NOCASE)`
		query += clause
		countQuery += clause
		args = append(args, name, name)
	}
	if sellerID != "" {
		query += ` AND seller_id = ?`
		countQuery += ` AND seller_id = ?`
		args = append(args, sellerID)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += ` ORDER BY name ASC LIMIT ?`
	rows, err := r.db.QueryContext(ctx, query, append(args, limit)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var products []*domain.Product
	for rows.Next() {
		p := &domain.Product{}
		if err := rows.Scan(&p.ID, &p.SellerID, &p.Name, &p.Description, &p.Price, &p.CategoryName, &p.SupplierName); err != nil {
			return nil, 0, err
		}
		products = append(products, p)
	}
	return products, total, rows.Err()
}

// SearchServices returns services whose name or description contains
// name (case-insensitive). Service search is always catalog-wide.
func (r *CatalogRepository) SearchServices(ctx context.Context, name string, limit int) ([]*domain.Service, int, error) {
	query := `SELECT id, provider_id, name, description, price, category_name, provider_name FROM services WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM services WHERE 1=1`
	var args []any
	if name != "" {
		clause := ` AND (name LIKE '%' || ? || '%' COLLATE NOCASE OR description LIKE '%' || ? || '%' COLLATE NOCASE)`
		query += clause
		countQuery += clause
		args = append(args, name, name)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += ` ORDER BY name ASC LIMIT ?`
	rows, err := r.db.QueryContext(ctx, query, append(args, limit)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var services []*domain.Service
	for rows.Next() {
		s := &domain.Service{}
		if err := rows.Scan(&s.ID, &s.ProviderID, &s.Name, &s.Description, &s.Price, &s.CategoryName, &s.ProviderName); err != nil {
			return nil, 0, err
		}
		services = append(services, s)
	}
	return services, total, rows.Err()
}

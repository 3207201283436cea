package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap"

	"github.com/punchagency/ycc-assist/internal/domain"
)

// ToolKind enumerates the four data-fetch tools exposed to the model.
// Dispatch is a closed switch over this enum, so adding or removing a
// tool is a compile-time-checked change.
type ToolKind int

const (
	ToolGetOrders ToolKind = iota
	ToolGetBookings
	ToolGetProducts
	ToolGetServices
)

const (
	defaultOrderLimit   = 10
	defaultCatalogLimit = 20
)

// Name returns the function name declared to the model.
func (k ToolKind) Name() string {
	switch k {
	case ToolGetOrders:
		return "get_orders"
	case ToolGetBookings:
		return "get_bookings"
	case ToolGetProducts:
		return "get_products"
	case ToolGetServices:
		return "get_services"
	}
	return "unknown"
}

func toolKindFromName(name string) (ToolKind, bool) {
	switch name {
	case "get_orders":
		return ToolGetOrders, true
	case "get_bookings":
		return ToolGetBookings, true
	case "get_products":
		return ToolGetProducts, true
	case "get_services":
		return ToolGetServices, true
	}
	return 0, false
}

// CatalogStore is the read model behind the tools.
type CatalogStore interface {
	ListOrders(ctx context.Context, userID, status string, limit int) ([]*domain.Order, int, error)
	ListBookings(ctx context.Context, userID, status string, limit int) ([]*domain.Booking, int, error)
	SearchProducts(ctx context.Context, name, sellerID string, limit int) ([]*domain.Product, int, error)
	SearchServices(ctx context.Context, name string, limit int) ([]*domain.Service, int, error)
}

// toolDefs declares the callable tools for authenticated callers.
// Anonymous callers never see these.
func toolDefs() []llms.Tool {
	return []llms.Tool{
		{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        ToolGetOrders.Name(),
				Description: "Get the current user's orders, optionally filtered by status.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"status": map[string]any{
							"type":        "string",
							"description": "Filter by order status",
							"enum": []string{
								domain.OrderStatusPending, domain.OrderStatusPaid,
								domain.OrderStatusShipped, domain.OrderStatusDelivered,
								domain.OrderStatusCancelled,
							},
						},
						"limit": map[string]any{
							"type":        "integer",
							"description": "Maximum number of orders to return",
							"default":     defaultOrderLimit,
						},
					},
				},
			},
		},
		{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        ToolGetBookings.Name(),
				Description: "Get the current user's service bookings, optionally filtered by status.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"status": map[string]any{
							"type":        "string",
							"description": "Filter by booking status",
							"enum": []string{
								domain.BookingStatusPending, domain.BookingStatusConfirmed,
								domain.BookingStatusCompleted, domain.BookingStatusCancelled,
							},
						},
						"limit": map[string]any{
							"type":        "integer",
							"description": "Maximum number of bookings to return",
							"default":     defaultOrderLimit,
						},
					},
				},
			},
		},
		{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        ToolGetProducts.Name(),
				Description: "Search marketplace products by name. Sellers see their own listings; everyone else searches the whole catalog.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"productName": map[string]any{
							"type":        "string",
							"description": "Case-insensitive substring to match against product names and descriptions",
						},
						"limit": map[string]any{
							"type":        "integer",
							"description": "Maximum number of products to return",
							"default":     defaultCatalogLimit,
						},
					},
				},
			},
		},
		{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        ToolGetServices.Name(),
				Description: "Search marketplace services by name across the whole catalog.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"serviceName": map[string]any{
							"type":        "string",
							"description": "Case-insensitive substring to match against service names and descriptions",
						},
						"limit": map[string]any{
							"type":        "integer",
							"description": "Maximum number of services to return",
							"default":     defaultCatalogLimit,
						},
					},
				},
			},
		},
	}
}

// ToolDispatcher executes tool calls scoped to the authenticated caller.
type ToolDispatcher struct {
	catalog CatalogStore
	logger  *zap.Logger
}

// NewToolDispatcher creates a new tool dispatcher
func NewToolDispatcher(catalog CatalogStore, logger *zap.Logger) *ToolDispatcher {
	return &ToolDispatcher{catalog: catalog, logger: logger}
}

type getOrdersArgs struct {
	Status string `json:"status"`
	Limit  int    `json:"limit"`
}

type getBookingsArgs struct {
	Status string `json:"status"`
	Limit  int    `json:"limit"`
}

type getProductsArgs struct {
	ProductName string `json:"productName"`
	Limit       int    `json:"limit"`
}

type getServicesArgs struct {
	ServiceName string `json:"serviceName"`
	Limit       int    `json:"limit"`
}

// Dispatch runs one tool call and returns its result as a JSON string.
// Every outcome is well-formed JSON, including failures, so the model
// always receives a payload it can react to.
func (d *ToolDispatcher) Dispatch(ctx context.Context, caller domain.Caller, name, rawArgs string) string {
	kind, ok := toolKindFromName(name)
	if !ok {
		return errPayload(fmt.Sprintf("unknown tool: %s", name))
	}

	d.logger.Info("dispatching tool",
		zap.String("tool", name),
		zap.String("user", caller.UserID),
		zap.String("args", rawArgs))

	result, err := d.run(ctx, caller, kind, rawArgs)
	if err != nil {
		d.logger.Warn("tool execution failed", zap.String("tool", name), zap.Error(err))
		return errPayload(err.Error())
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return errPayload("failed to encode tool result")
	}
	return string(payload)
}

func (d *ToolDispatcher) run(ctx context.Context, caller domain.Caller, kind ToolKind, rawArgs string) (any, error) {
	switch kind {
	case ToolGetOrders:
		var args getOrdersArgs
		if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
			return nil, fmt.Errorf("invalid arguments: %w", err)
		}
		if args.Limit <= 0 {
			args.Limit = defaultOrderLimit
		}
		orders, total, err := d.catalog.ListOrders(ctx, caller.UserID, args.Status, args.Limit)
		if err != nil {
			return nil, err
		}
		if orders == nil {
			orders = []*domain.Order{}
		}
		return map[string]any{"orders": orders, "total": total}, nil

	case ToolGetBookings:
		var args getBookingsArgs
		if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
			return nil, fmt.Errorf("invalid arguments: %w", err)
		}
		if args.Limit <= 0 {
			args.Limit = defaultOrderLimit
		}
		bookings, total, err := d.catalog.ListBookings(ctx, caller.UserID, args.Status, args.Limit)
		if err != nil {
			return nil, err
		}
		if bookings == nil {
			bookings = []*domain.Booking{}
		}
		return map[string]any{"bookings": bookings, "total": total}, nil

	case ToolGetProducts:
		var args getProductsArgs
		if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
			return nil, fmt.Errorf("invalid arguments: %w", err)
		}
		if args.Limit <= 0 {
			args.Limit = defaultCatalogLimit
		}
		sellerID := ""
		if caller.IsSeller() {
			sellerID = caller.UserID
		}
		products, total, err := d.catalog.SearchProducts(ctx, args.ProductName, sellerID, args.Limit)
		if err != nil {
			return nil, err
		}
		if products == nil {
			products = []*domain.Product{}
		}
		return map[string]any{
			"status":     "success",
			"message":    fmt.Sprintf("Found %d products", total),
			"data":       products,
			"total":      total,
			"searchTerm": args.ProductName,
		}, nil

	case ToolGetServices:
		var args getServicesArgs
		if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
			return nil, fmt.Errorf("invalid arguments: %w", err)
		}
		if args.Limit <= 0 {
			args.Limit = defaultCatalogLimit
		}
		services, total, err := d.catalog.SearchServices(ctx, args.ServiceName, args.Limit)
		if err != nil {
			return nil, err
		}
		if services == nil {
			services = []*domain.Service{}
		}
		return map[string]any{
			"status":     "success",
			"message":    fmt.Sprintf("Found %d services", total),
			"data":       services,
			"total":      total,
			"searchTerm": args.ServiceName,
			"searchType": "service",
		}, nil
	}
	return nil, fmt.Errorf("unhandled tool kind: %d", kind)
}

func errPayload(reason string) string {
	payload, _ := json.Marshal(map[string]string{"error": reason})
	return string(payload)
}

package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/bazaar-backend/pkg/db/models"
	"github.com/angelmondragon/bazaar-backend/pkg/enums"
	"github.com/angelmondragon/bazaar-backend/pkg/types"
)

// OrderView is the API shape of an order.
type OrderView struct {
	OrderRef      string                 `json:"order_ref"`
	PaymentStatus enums.PaymentStatus    `json:"payment_status"`
	PaymentMethod *enums.PaymentProvider `json:"payment_method,omitempty"`
	OrderStatus   enums.OrderStatus      `json:"order_status"`
	Address       types.Address          `json:"address"`
	SubTotal      decimal.Decimal        `json:"sub_total"`
	ShippingTotal decimal.Decimal        `json:"shipping_total"`
	Tax           decimal.Decimal        `json:"tax"`
	ServiceFee    decimal.Decimal        `json:"service_fee"`
	Total         decimal.Decimal        `json:"total"`
	Saved         decimal.Decimal        `json:"saved"`
	Vendors       []uuid.UUID            `json:"vendors"`
	Items         []ItemView             `json:"items"`
	PaidAt        *time.Time             `json:"paid_at,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
}

// ItemView is the API shape of an order item.
type ItemView struct {
	ItemRef         string            `json:"item_ref"`
	ProductID       uuid.UUID         `json:"product_id"`
	VendorID        uuid.UUID         `json:"vendor_id"`
	Title           string            `json:"title"`
	Qty             int               `json:"qty"`
	Color           string            `json:"color,omitempty"`
	Size            string            `json:"size,omitempty"`
	Price           decimal.Decimal   `json:"price"`
	SubTotal        decimal.Decimal   `json:"sub_total"`
	ShippingTotal   decimal.Decimal   `json:"shipping_total"`
	Tax             decimal.Decimal   `json:"tax"`
	Total           decimal.Decimal   `json:"total"`
	InitialTotal    decimal.Decimal   `json:"initial_total"`
	Saved           decimal.Decimal   `json:"saved"`
	OrderStatus     enums.OrderStatus `json:"order_status"`
	ShippingService *string           `json:"shipping_service,omitempty"`
	TrackingID      *string           `json:"tracking_id,omitempty"`
}

// PaymentStatusView answers the payment-status query.
type PaymentStatusView struct {
	OrderRef      string                 `json:"order_ref"`
	PaymentStatus enums.PaymentStatus    `json:"payment_status"`
	PaymentMethod *enums.PaymentProvider `json:"payment_method,omitempty"`
	Total         decimal.Decimal        `json:"total"`
}

// VendorOrderList wraps paginated vendor orders plus the next cursor.
type VendorOrderList struct {
	Orders     []OrderView `json:"orders"`
	NextCursor string      `json:"next_cursor,omitempty"`
}

// NewOrderView maps an order; keep filters the items (nil keeps all).
func NewOrderView(order *models.Order, keep func(models.OrderItem) bool) OrderView {
	view := OrderView{
		OrderRef:      order.OrderRef,
		PaymentStatus: order.PaymentStatus,
		PaymentMethod: order.PaymentMethod,
		OrderStatus:   order.OrderStatus,
		Address:       order.Address,
		SubTotal:      order.SubTotal,
		ShippingTotal: order.ShippingTotal,
		Tax:           order.Tax,
		ServiceFee:    order.ServiceFee,
		Total:         order.Total,
		Saved:         order.Saved,
		Vendors:       order.VendorIDs(),
		Items:         make([]ItemView, 0, len(order.Items)),
		PaidAt:        order.PaidAt,
		CreatedAt:     order.CreatedAt,
	}
	for _, item := range order.Items {
		if keep != nil && !keep(item) {
			continue
		}
		view.Items = append(view.Items, NewItemView(item))
	}
	return view
}

func NewItemView(item models.OrderItem) ItemView {
	return ItemView{
		ItemRef:         item.ItemRef,
		ProductID:       item.ProductID,
		VendorID:        item.VendorID,
		Title:           item.ProductTitle,
		Qty:             item.Qty,
		Color:           item.Color,
		Size:            item.Size,
		Price:           item.Price,
		SubTotal:        item.SubTotal,
		ShippingTotal:   item.ShippingTotal,
		Tax:             item.Tax,
		Total:           item.Total,
		InitialTotal:    item.InitialTotal,
		Saved:           item.Saved,
		OrderStatus:     item.OrderStatus,
		ShippingService: item.ShippingService,
		TrackingID:      item.TrackingID,
	}
}

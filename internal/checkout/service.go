package checkout

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/bazaar-backend/internal/cart"
	"github.com/angelmondragon/bazaar-backend/internal/checkout/helpers"
	"github.com/angelmondragon/bazaar-backend/internal/orders"
	"github.com/angelmondragon/bazaar-backend/pkg/db/models"
	"github.com/angelmondragon/bazaar-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bazaar-backend/pkg/errors"
	"github.com/angelmondragon/bazaar-backend/pkg/logger"
	"github.com/angelmondragon/bazaar-backend/pkg/money"
	"github.com/angelmondragon/bazaar-backend/pkg/types"
)

var (
	ErrEmptyCart = pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	ErrNoAddress = pkgerrors.New(pkgerrors.CodeValidation, "shipping address is required")
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type productCatalog interface {
	FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error)
}

type addressBook interface {
	FindForCustomer(ctx context.Context, customerID, addressID uuid.UUID) (*models.CustomerAddress, error)
}

// Service builds orders from carts.
type Service interface {
	Build(ctx context.Context, input BuildInput) (*models.Order, error)
}

// BuildInput identifies the cart, the buyer and the saved address to ship to.
type BuildInput struct {
	CartID     string
	CustomerID uuid.UUID
	AddressID  uuid.UUID
}

// ServiceParams carries the checkout dependencies.
type ServiceParams struct {
	Tx        txRunner
	CartLines cart.LineRepository
	Orders    orders.Repository
	Products  productCatalog
	Addresses addressBook
	Pricing   money.Pricing
	Logger    *logger.Logger
}

type service struct {
	tx        txRunner
	cartLines cart.LineRepository
	orders    orders.Repository
	products  productCatalog
	addresses addressBook
	pricing   money.Pricing
	logg      *logger.Logger
}

// NewService builds the checkout service.
func NewService(params ServiceParams) (Service, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.CartLines == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Products == nil {
		return nil, fmt.Errorf("product catalog required")
	}
	if params.Addresses == nil {
		return nil, fmt.Errorf("address book required")
	}
	if params.Pricing.Tax == nil || params.Pricing.ServiceFee == nil {
		return nil, fmt.Errorf("tax and service fee functions required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		tx:        params.Tx,
		cartLines: params.CartLines,
		orders:    params.Orders,
		products:  params.Products,
		addresses: params.Addresses,
		pricing:   params.Pricing,
		logg:      logg,
	}, nil
}

// Build persists a Processing order with one item per cart line. The cart is
// left untouched so an abandoned payment can be retried.
func (s *service) Build(ctx context.Context, input BuildInput) (*models.Order, error) {
	cartID := strings.TrimSpace(input.CartID)
	if cartID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart id required")
	}
	if input.CustomerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "customer context missing")
	}

	lines, err := s.cartLines.ListLines(ctx, cartID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list cart lines")
	}
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	address, err := s.loadAddress(ctx, input)
	if err != nil {
		return nil, err
	}

	productIDs := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		productIDs = append(productIDs, line.ProductID)
	}
	products, err := s.products.FindByIDs(ctx, productIDs)
	if err != nil {
		return nil, err
	}
	if err := helpers.ValidateLines(lines, products); err != nil {
		return nil, err
	}

	order := s.assemble(cartID, input.CustomerID, address, lines, products)
	if err := verifyTotals(order); err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.orders.WithTx(tx).Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ctx = s.logg.WithOrderRef(ctx, order.OrderRef)
	ctx = s.logg.WithFields(ctx, map[string]any{
		"item_count":   len(order.Items),
		"vendor_count": len(order.Vendors),
		"total":        order.Total.StringFixed(2),
	})
	s.logg.Info(ctx, "order.built")
	return order, nil
}

func (s *service) loadAddress(ctx context.Context, input BuildInput) (types.Address, error) {
	if input.AddressID == uuid.Nil {
		return types.Address{}, ErrNoAddress
	}
	addr, err := s.addresses.FindForCustomer(ctx, input.CustomerID, input.AddressID)
	if err != nil {
		return types.Address{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load address")
	}
	if addr == nil {
		return types.Address{}, ErrNoAddress
	}
	snapshot := addr.Snapshot()
	if err := helpers.ValidateAddress(snapshot); err != nil {
		return types.Address{}, err
	}
	return snapshot, nil
}

func (s *service) assemble(cartID string, customerID uuid.UUID, address types.Address, lines []models.CartLine, products map[uuid.UUID]models.Product) *models.Order {
	snapshot := cart.BuildSnapshot(cartID, lines)

	tax := s.pricing.Tax(address.Country, snapshot.SubTotal)
	fee := s.pricing.ServiceFee(money.Sum(snapshot.SubTotal, snapshot.ShippingTotal, tax))

	order := &models.Order{
		OrderRef:      types.NewRef(types.OrderRefPrefix),
		CustomerID:    customerID,
		CartID:        cartID,
		Address:       address,
		SubTotal:      snapshot.SubTotal,
		ShippingTotal: snapshot.ShippingTotal,
		Tax:           tax,
		ServiceFee:    fee,
		Total:         money.OrderTotal(snapshot.SubTotal, snapshot.ShippingTotal, tax, fee),
		Saved:         decimal.Zero,
		PaymentStatus: enums.PaymentStatusProcessing,
		OrderStatus:   enums.OrderStatusPending,
	}

	order.Items = make([]models.OrderItem, 0, len(lines))
	for _, line := range lines {
		product := products[line.ProductID]
		order.Items = append(order.Items, models.OrderItem{
			ItemRef:       types.NewRef(types.ItemRefPrefix),
			ProductID:     line.ProductID,
			VendorID:      product.VendorID,
			ProductTitle:  product.Title,
			Qty:           line.Qty,
			Color:         line.Color,
			Size:          line.Size,
			Price:         line.Price,
			SubTotal:      line.SubTotal,
			ShippingTotal: line.ShippingTotal,
			Tax:           s.pricing.Tax(address.Country, line.SubTotal),
			Total:         line.Total,
			InitialTotal:  line.Total,
			Saved:         decimal.Zero,
			OrderStatus:   enums.OrderStatusPending,
		})
	}
	for _, vendorID := range helpers.DistinctVendors(lines, products) {
		order.Vendors = append(order.Vendors, models.OrderVendor{VendorID: vendorID})
	}
	return order
}

// verifyTotals rejects an order whose stored total does not equal its parts.
func verifyTotals(order *models.Order) error {
	want := money.OrderTotal(order.SubTotal, order.ShippingTotal, order.Tax, order.ServiceFee)
	if !order.Total.Equal(want) {
		return pkgerrors.New(pkgerrors.CodeInternal, "order total does not match its components")
	}
	for _, item := range order.Items {
		if !item.Total.Equal(item.InitialTotal.Sub(item.Saved)) {
			return pkgerrors.New(pkgerrors.CodeInternal, "order item total does not match its components")
		}
	}
	return nil
}

package cart

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	dbpkg "github.com/angelmondragon/bazaar-backend/pkg/db"
	"github.com/angelmondragon/bazaar-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/bazaar-backend/pkg/errors"
	"github.com/angelmondragon/bazaar-backend/pkg/logger"
	"github.com/angelmondragon/bazaar-backend/pkg/money"
)

const maxCartIDLength = 128

var (
	ErrOutOfStock         = pkgerrors.New(pkgerrors.CodeStateConflict, "requested quantity exceeds stock")
	ErrProductUnavailable = pkgerrors.New(pkgerrors.CodeStateConflict, "product is not available for purchase")
	ErrLineNotFound       = pkgerrors.New(pkgerrors.CodeNotFound, "cart line not found")
)

// Service exposes the cart aggregator operations.
type Service interface {
	AddOrUpdate(ctx context.Context, input AddInput) (*Mutation, error)
	Remove(ctx context.Context, cartID string, productID *uuid.UUID, lineID uuid.UUID) (*Summary, error)
	Snapshot(ctx context.Context, cartID string) (*Snapshot, error)
	Clear(ctx context.Context, cartID string) error
}

// AddInput is the add-to-cart request. UserID is set when the shopper is signed in.
type AddInput struct {
	CartID    string
	ProductID uuid.UUID
	Qty       int
	Color     string
	Size      string
	UserID    *uuid.UUID
}

// Summary is the cart aggregate recomputed from stored lines.
type Summary struct {
	ItemCount int
	SubTotal  decimal.Decimal
}

// Mutation is the result of AddOrUpdate.
type Mutation struct {
	Line    models.CartLine
	Summary Summary
}

// Snapshot is the ordered view of a cart consumed by checkout.
type Snapshot struct {
	CartID        string
	Lines         []models.CartLine
	SubTotal      decimal.Decimal
	ShippingTotal decimal.Decimal
	Total         decimal.Decimal
}

// IsEmpty reports whether the cart has no lines.
func (s *Snapshot) IsEmpty() bool {
	return s == nil || len(s.Lines) == 0
}

type service struct {
	repo     LineRepository
	tx       txRunner
	products productLoader
	logg     *logger.Logger
}

// NewService builds a cart service backed by the provided stack.
func NewService(repo LineRepository, tx txRunner, products productLoader, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if products == nil {
		return nil, fmt.Errorf("product loader required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{repo: repo, tx: tx, products: products, logg: logg}, nil
}

func (s *service) AddOrUpdate(ctx context.Context, input AddInput) (*Mutation, error) {
	cartID, err := normalizeCartID(input.CartID)
	if err != nil {
		return nil, err
	}
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product_id is required")
	}
	if input.Qty < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "qty must be at least 1")
	}

	product, err := s.products.FindByID(ctx, input.ProductID)
	if err != nil {
		return nil, err
	}
	if !product.Status.Purchasable() {
		return nil, ErrProductUnavailable
	}
	if input.Qty > product.Stock {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, ErrOutOfStock.Message()).
			WithDetails(map[string]any{"available": product.Stock})
	}

	var result Mutation
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		line, err := s.upsertLine(ctx, repo, cartID, product, input)
		if err != nil {
			return err
		}
		lines, err := repo.ListLines(ctx, cartID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list cart lines")
		}
		result = Mutation{Line: *line, Summary: summarize(lines)}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"cart_id":    cartID,
		"product_id": product.ID.String(),
		"qty":        input.Qty,
	})
	s.logg.Info(logCtx, "cart.line_upserted")
	return &result, nil
}

// upsertLine prices the line from the current product row. A concurrent insert of the
// same (cart, product) surfaces as a unique violation and falls back to the update path.
func (s *service) upsertLine(ctx context.Context, repo LineRepository, cartID string, product *models.Product, input AddInput) (*models.CartLine, error) {
	existing, err := repo.FindLine(ctx, cartID, product.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart line")
	}

	line := existing
	if line == nil {
		line = &models.CartLine{CartID: cartID, ProductID: product.ID}
	}
	applyLine(line, product, input)

	if existing != nil {
		if err := repo.UpdateLine(ctx, line); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart line")
		}
		return line, nil
	}

	if err := repo.CreateLine(ctx, line); err != nil {
		if !dbpkg.IsUniqueViolation(err, "ux_cart_lines_cart_product") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart line")
		}
		winner, findErr := repo.FindLine(ctx, cartID, product.ID)
		if findErr != nil || winner == nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "cart line changed concurrently")
		}
		applyLine(winner, product, input)
		if err := repo.UpdateLine(ctx, winner); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart line")
		}
		return winner, nil
	}
	return line, nil
}

func applyLine(line *models.CartLine, product *models.Product, input AddInput) {
	line.Qty = input.Qty
	line.Color = strings.TrimSpace(input.Color)
	line.Size = strings.TrimSpace(input.Size)
	if input.UserID != nil {
		line.UserID = input.UserID
	}
	line.Price = product.Price
	line.Shipping = product.Shipping
	line.SubTotal, line.ShippingTotal, line.Total = money.Line(product.Price, product.Shipping, input.Qty)
}

func (s *service) Remove(ctx context.Context, cartID string, productID *uuid.UUID, lineID uuid.UUID) (*Summary, error) {
	cartID, err := normalizeCartID(cartID)
	if err != nil {
		return nil, err
	}
	if lineID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "line id is required")
	}

	var summary Summary
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		deleted, err := repo.DeleteLine(ctx, cartID, lineID, productID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart line")
		}
		if !deleted {
			return ErrLineNotFound
		}
		lines, err := repo.ListLines(ctx, cartID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list cart lines")
		}
		summary = summarize(lines)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

func (s *service) Snapshot(ctx context.Context, cartID string) (*Snapshot, error) {
	cartID, err := normalizeCartID(cartID)
	if err != nil {
		return nil, err
	}
	lines, err := s.repo.ListLines(ctx, cartID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list cart lines")
	}
	return BuildSnapshot(cartID, lines), nil
}

func (s *service) Clear(ctx context.Context, cartID string) error {
	cartID, err := normalizeCartID(cartID)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteAll(ctx, cartID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}
	return nil
}

// BuildSnapshot aggregates stored lines into a Snapshot.
func BuildSnapshot(cartID string, lines []models.CartLine) *Snapshot {
	snap := &Snapshot{
		CartID:        cartID,
		Lines:         lines,
		SubTotal:      decimal.Zero,
		ShippingTotal: decimal.Zero,
		Total:         decimal.Zero,
	}
	for _, line := range lines {
		snap.SubTotal = snap.SubTotal.Add(line.SubTotal)
		snap.ShippingTotal = snap.ShippingTotal.Add(line.ShippingTotal)
		snap.Total = snap.Total.Add(line.Total)
	}
	return snap
}

func summarize(lines []models.CartLine) Summary {
	sum := Summary{ItemCount: len(lines), SubTotal: decimal.Zero}
	for _, line := range lines {
		sum.SubTotal = sum.SubTotal.Add(line.SubTotal)
	}
	return sum
}

func normalizeCartID(cartID string) (string, error) {
	trimmed := strings.TrimSpace(cartID)
	if trimmed == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "cart id is required")
	}
	if len(trimmed) > maxCartIDLength {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "cart id is too long")
	}
	return trimmed, nil
}

package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/bazaar-backend/api/responses"
	"github.com/angelmondragon/bazaar-backend/api/validators"
	cartsvc "github.com/angelmondragon/bazaar-backend/internal/cart"
	"github.com/angelmondragon/bazaar-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/bazaar-backend/pkg/errors"
	"github.com/angelmondragon/bazaar-backend/pkg/logger"
)

type cartItemRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Qty       int       `json:"qty" validate:"required,min=1"`
	Color     string    `json:"color" validate:"max=64"`
	Size      string    `json:"size" validate:"max=64"`
}

type cartLineResponse struct {
	ID            uuid.UUID       `json:"id"`
	ProductID     uuid.UUID       `json:"product_id"`
	Qty           int             `json:"qty"`
	Color         string          `json:"color,omitempty"`
	Size          string          `json:"size,omitempty"`
	Price         decimal.Decimal `json:"price"`
	Shipping      decimal.Decimal `json:"shipping"`
	SubTotal      decimal.Decimal `json:"sub_total"`
	ShippingTotal decimal.Decimal `json:"shipping_total"`
	Total         decimal.Decimal `json:"total"`
}

type cartSummaryResponse struct {
	ItemCount int             `json:"item_count"`
	SubTotal  decimal.Decimal `json:"sub_total"`
}

type cartMutationResponse struct {
	Line    cartLineResponse    `json:"line"`
	Summary cartSummaryResponse `json:"summary"`
}

type cartSnapshotResponse struct {
	CartID        string             `json:"cart_id"`
	Lines         []cartLineResponse `json:"lines"`
	SubTotal      decimal.Decimal    `json:"sub_total"`
	ShippingTotal decimal.Decimal    `json:"shipping_total"`
	Total         decimal.Decimal    `json:"total"`
}

func newCartLineResponse(line models.CartLine) cartLineResponse {
	return cartLineResponse{
		ID:            line.ID,
		ProductID:     line.ProductID,
		Qty:           line.Qty,
		Color:         line.Color,
		Size:          line.Size,
		Price:         line.Price,
		Shipping:      line.Shipping,
		SubTotal:      line.SubTotal,
		ShippingTotal: line.ShippingTotal,
		Total:         line.Total,
	}
}

func newCartSummaryResponse(summary cartsvc.Summary) cartSummaryResponse {
	return cartSummaryResponse{ItemCount: summary.ItemCount, SubTotal: summary.SubTotal}
}

// CartSnapshot returns the cart lines and totals.
func CartSnapshot(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cartID, err := pathParam(r, "cart_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		snap, err := svc.Snapshot(r.Context(), cartID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		lines := make([]cartLineResponse, 0, len(snap.Lines))
		for _, line := range snap.Lines {
			lines = append(lines, newCartLineResponse(line))
		}
		responses.WriteSuccess(w, cartSnapshotResponse{
			CartID:        snap.CartID,
			Lines:         lines,
			SubTotal:      snap.SubTotal,
			ShippingTotal: snap.ShippingTotal,
			Total:         snap.Total,
		})
	}
}

// CartAddItem adds a product to the cart or replaces the quantity of its existing line.
func CartAddItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cartID, err := pathParam(r, "cart_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload cartItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.AddOrUpdate(r.Context(), cartsvc.AddInput{
			CartID:    cartID,
			ProductID: payload.ProductID,
			Qty:       payload.Qty,
			Color:     strings.TrimSpace(payload.Color),
			Size:      strings.TrimSpace(payload.Size),
			UserID:    optionalUserID(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, cartMutationResponse{
			Line:    newCartLineResponse(result.Line),
			Summary: newCartSummaryResponse(result.Summary),
		})
	}
}

// CartRemoveItem deletes one line. The product_id query parameter narrows the match.
func CartRemoveItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cartID, err := pathParam(r, "cart_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		lineID, err := pathUUID(r, "line_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var productID *uuid.UUID
		if raw := strings.TrimSpace(r.URL.Query().Get("product_id")); raw != "" {
			parsed, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product_id"))
				return
			}
			productID = &parsed
		}

		summary, err := svc.Remove(r.Context(), cartID, productID, lineID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartSummaryResponse(*summary))
	}
}

func CartClear(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cartID, err := pathParam(r, "cart_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Clear(r.Context(), cartID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

package controllers

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/bazaar-backend/api/responses"
	"github.com/angelmondragon/bazaar-backend/api/validators"
	"github.com/angelmondragon/bazaar-backend/internal/fulfillment"
	"github.com/angelmondragon/bazaar-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bazaar-backend/pkg/errors"
	"github.com/angelmondragon/bazaar-backend/pkg/logger"
)

type updateItemRequest struct {
	Status          string  `json:"status" validate:"required"`
	ShippingService *string `json:"shipping_service" validate:"omitempty,max=128"`
	TrackingID      *string `json:"tracking_id" validate:"omitempty,max=128"`
}

// FulfillmentLookup resolves an item reference or a carrier tracking id.
func FulfillmentLookup(svc *fulfillment.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tracking, err := svc.Lookup(r.Context(), strings.TrimSpace(r.URL.Query().Get("ref")))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, tracking)
	}
}

func VendorUpdateItemStatus(svc *fulfillment.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vendorID, err := resolveVendorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderRef, err := pathParam(r, "order_ref")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		itemRef, err := pathParam(r, "item_ref")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := enums.ParseOrderStatus(payload.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
			return
		}

		item, err := svc.UpdateItemStatus(r.Context(), vendorID, fulfillment.UpdateItemInput{
			OrderRef:        orderRef,
			ItemRef:         itemRef,
			Status:          status,
			ShippingService: payload.ShippingService,
			TrackingID:      payload.TrackingID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, item)
	}
}

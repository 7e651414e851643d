package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/bazaar-backend/api/middleware"
	"github.com/angelmondragon/bazaar-backend/internal/coupons"
	"github.com/angelmondragon/bazaar-backend/internal/orders"
	"github.com/angelmondragon/bazaar-backend/pkg/db/models"
	"github.com/angelmondragon/bazaar-backend/pkg/enums"
	"github.com/angelmondragon/bazaar-backend/pkg/logger"
)

func withURLParams(req *http.Request, params map[string]string) *http.Request {
	rc := chi.NewRouteContext()
	for k, v := range params {
		rc.URLParams.Add(k, v)
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

type stubCoupons struct {
	coupons.Service
	applyInput coupons.ApplyInput
	result     *coupons.ApplyResult
	err        error
}

func (s *stubCoupons) Apply(_ context.Context, input coupons.ApplyInput) (*coupons.ApplyResult, error) {
	s.applyInput = input
	return s.result, s.err
}

type stubOrders struct {
	orders.Service
	statusCalls []enums.OrderStatus
}

func (s *stubOrders) UpdateOrderStatus(_ context.Context, _ uuid.UUID, _ string, status enums.OrderStatus) error {
	s.statusCalls = append(s.statusCalls, status)
	return nil
}

func TestApplyCouponReportsNoEligibleItems(t *testing.T) {
	customer := uuid.New()
	svc := &stubCoupons{result: &coupons.ApplyResult{
		Reason:   coupons.ReasonNoEligibleItems,
		Discount: decimal.Zero,
		Order:    &models.Order{OrderRef: "ORD-1", CustomerID: customer},
	}}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"code":"SAVE10"}`))
	req = withURLParams(req, map[string]string{"order_ref": "ORD-1"})
	req = req.WithContext(middleware.WithUserID(req.Context(), customer.String()))
	rec := httptest.NewRecorder()
	ApplyCoupon(svc, logger.Nop())(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data struct {
			Applied bool   `json:"applied"`
			Reason  string `json:"reason"`
			Order   struct {
				OrderRef string `json:"order_ref"`
			} `json:"order"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Data.Applied)
	assert.Equal(t, coupons.ReasonNoEligibleItems, body.Data.Reason)
	assert.Equal(t, "ORD-1", body.Data.Order.OrderRef)
	assert.Equal(t, coupons.ApplyInput{OrderRef: "ORD-1", CustomerID: customer, Code: "SAVE10"}, svc.applyInput)
}

func TestApplyCouponRequiresUser(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"code":"SAVE10"}`))
	req = withURLParams(req, map[string]string{"order_ref": "ORD-1"})
	rec := httptest.NewRecorder()
	ApplyCoupon(&stubCoupons{}, logger.Nop())(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestVendorUpdateOrderStatusValidatesStatus(t *testing.T) {
	svc := &stubOrders{}
	vendor := uuid.New()

	call := func(body string) int {
		req := httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(body))
		req = withURLParams(req, map[string]string{"order_ref": "ORD-1"})
		req = req.WithContext(middleware.WithVendorID(req.Context(), vendor.String()))
		rec := httptest.NewRecorder()
		VendorUpdateOrderStatus(svc, logger.Nop())(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusBadRequest, call(`{"status":"teleported"}`))
	assert.Equal(t, http.StatusOK, call(`{"status":"shipped"}`))
	assert.Equal(t, []enums.OrderStatus{enums.OrderStatusShipped}, svc.statusCalls)
}

func TestResolveVendorIDRequiresVendorContext(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err := resolveVendorID(req)
	require.Error(t, err)

	vendor := uuid.New()
	req = req.WithContext(middleware.WithVendorID(req.Context(), vendor.String()))
	got, err := resolveVendorID(req)
	require.NoError(t, err)
	assert.Equal(t, vendor, got)
}

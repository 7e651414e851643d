package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/bazaar-backend/pkg/db/models"
	"github.com/angelmondragon/bazaar-backend/pkg/enums"
	"github.com/angelmondragon/bazaar-backend/pkg/pagination"
)

// Repository defines persistence operations for orders and their items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByRef(ctx context.Context, orderRef string) (*models.Order, error)
	LockByRef(ctx context.Context, orderRef string) (*models.Order, error)
	MarkPaid(ctx context.Context, orderID uuid.UUID, provider enums.PaymentProvider, reference string, paidAt time.Time) (bool, error)
	AddProviderSession(ctx context.Context, orderID uuid.UUID, provider enums.PaymentProvider, sessionID string) error
	UpdateStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) error
	FindVendors(ctx context.Context, ids []uuid.UUID) ([]models.Vendor, error)
	ListPaidForVendor(ctx context.Context, vendorID uuid.UUID, params pagination.Params) ([]models.Order, string, error)
}

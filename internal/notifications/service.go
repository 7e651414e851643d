package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/bazaar-backend/pkg/db/models"
	"github.com/angelmondragon/bazaar-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bazaar-backend/pkg/errors"
	"github.com/angelmondragon/bazaar-backend/pkg/pagination"
)

// Service defines notification create/list/seen operations.
type Service interface {
	CreateForOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, recipients []Recipient) error
	List(ctx context.Context, params ListParams) (*ListResult, error)
	MarkSeen(ctx context.Context, userID, notificationID uuid.UUID) error
	MarkAllSeen(ctx context.Context, userID uuid.UUID) (int64, error)
}

type service struct {
	repo Repository
}

// Recipient addresses one notification.
type Recipient struct {
	UserID uuid.UUID
	Type   enums.NotificationType
}

// ListParams configures pagination for notifications.
type ListParams struct {
	UserID     uuid.UUID
	Limit      int
	Cursor     string
	UnseenOnly bool
}

// ListResult wraps returned notifications and the cursor for the next page.
type ListResult struct {
	Items  []models.Notification `json:"items"`
	Cursor string                `json:"cursor"`
}

// NewService wires notifications dependencies.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications repository required")
	}
	return &service{repo: repo}, nil
}

// CreateForOrder writes one notification per recipient inside tx.
func (s *service) CreateForOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, recipients []Recipient) error {
	if len(recipients) == 0 {
		return nil
	}
	rows := make([]models.Notification, 0, len(recipients))
	for _, r := range recipients {
		if r.UserID == uuid.Nil || !r.Type.IsValid() {
			return pkgerrors.New(pkgerrors.CodeValidation, "notification recipient invalid")
		}
		id := orderID
		rows = append(rows, models.Notification{UserID: r.UserID, Type: r.Type, OrderID: &id})
	}
	if err := s.repo.WithTx(tx).CreateBatch(ctx, rows); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create notifications")
	}
	return nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}

	rows, next, err := s.repo.List(ctx, listNotificationsParams{
		UserID:     params.UserID,
		Page:       pagination.Params{Limit: params.Limit, Cursor: params.Cursor},
		UnseenOnly: params.UnseenOnly,
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list notifications")
	}
	if rows == nil {
		rows = []models.Notification{}
	}

	return &ListResult{
		Items:  rows,
		Cursor: next,
	}, nil
}

func (s *service) MarkSeen(ctx context.Context, userID, notificationID uuid.UUID) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if notificationID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "notification id required")
	}

	result, err := s.repo.MarkSeen(ctx, userID, notificationID, time.Now().UTC())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notification seen")
	}
	if !result.Found {
		return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
	}
	return nil
}

func (s *service) MarkAllSeen(ctx context.Context, userID uuid.UUID) (int64, error) {
	if userID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}

	count, err := s.repo.MarkAllSeen(ctx, userID, time.Now().UTC())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notifications seen")
	}
	return count, nil
}

package address

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/bazaar-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/bazaar-backend/pkg/errors"
	"github.com/angelmondragon/bazaar-backend/pkg/types"
)

var ErrAddressNotFound = pkgerrors.New(pkgerrors.CodeNotFound, "address not found")

type repository interface {
	Create(ctx context.Context, addr *models.CustomerAddress) error
	FindForCustomer(ctx context.Context, customerID, addressID uuid.UUID) (*models.CustomerAddress, error)
	ListForCustomer(ctx context.Context, customerID uuid.UUID) ([]models.CustomerAddress, error)
}

// Service manages the customer address book that checkout snapshots from.
type Service interface {
	Create(ctx context.Context, customerID uuid.UUID, input CreateInput) (*models.CustomerAddress, error)
	List(ctx context.Context, customerID uuid.UUID) ([]models.CustomerAddress, error)
	Get(ctx context.Context, customerID, addressID uuid.UUID) (*models.CustomerAddress, error)
}

// CreateInput is a new address book entry.
type CreateInput struct {
	FullName   string  `json:"full_name" validate:"required"`
	Email      string  `json:"email" validate:"required,email"`
	Mobile     string  `json:"mobile"`
	Line1      string  `json:"line1" validate:"required"`
	Line2      *string `json:"line2"`
	City       string  `json:"city" validate:"required"`
	State      string  `json:"state"`
	PostalCode string  `json:"postal_code"`
	Country    string  `json:"country" validate:"required,len=2"`
}

type service struct {
	repo repository
}

func NewService(repo repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("address repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Create(ctx context.Context, customerID uuid.UUID, input CreateInput) (*models.CustomerAddress, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "customer context missing")
	}
	addr := &models.CustomerAddress{
		CustomerID: customerID,
		FullName:   strings.TrimSpace(input.FullName),
		Email:      strings.TrimSpace(input.Email),
		Mobile:     strings.TrimSpace(input.Mobile),
		Line1:      strings.TrimSpace(input.Line1),
		Line2:      input.Line2,
		City:       strings.TrimSpace(input.City),
		State:      strings.TrimSpace(input.State),
		PostalCode: strings.TrimSpace(input.PostalCode),
		Country:    strings.ToUpper(strings.TrimSpace(input.Country)),
	}
	if addr.Snapshot().IsZero() || addr.FullName == "" || addr.Email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "full_name, email, line1 and country are required")
	}
	if err := s.repo.Create(ctx, addr); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create address")
	}
	return addr, nil
}

func (s *service) List(ctx context.Context, customerID uuid.UUID) ([]models.CustomerAddress, error) {
	rows, err := s.repo.ListForCustomer(ctx, customerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list addresses")
	}
	return rows, nil
}

// Get returns the customer's own address; other customers' entries are NOT_FOUND.
func (s *service) Get(ctx context.Context, customerID, addressID uuid.UUID) (*models.CustomerAddress, error) {
	addr, err := s.repo.FindForCustomer(ctx, customerID, addressID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load address")
	}
	if addr == nil {
		return nil, ErrAddressNotFound
	}
	return addr, nil
}

// Snapshot is a convenience for callers that only need the order copy.
func Snapshot(addr *models.CustomerAddress) types.Address {
	if addr == nil {
		return types.Address{}
	}
	return addr.Snapshot()
}

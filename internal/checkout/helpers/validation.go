package helpers

import (
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/bazaar-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/bazaar-backend/pkg/errors"
	"github.com/angelmondragon/bazaar-backend/pkg/types"
)

// ValidateAddress ensures the snapshot can be shipped to and taxed.
func ValidateAddress(addr types.Address) error {
	if addr.IsZero() {
		return pkgerrors.New(pkgerrors.CodeValidation, "shipping address is required")
	}
	if strings.TrimSpace(addr.Country) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "shipping address country is required")
	}
	if strings.TrimSpace(addr.Email) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "shipping address email is required")
	}
	return nil
}

// ValidateLines confirms every line still points at a purchasable product.
func ValidateLines(lines []models.CartLine, products map[uuid.UUID]models.Product) error {
	for _, line := range lines {
		product, ok := products[line.ProductID]
		if !ok || !product.Status.Purchasable() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "product is not available for purchase").
				WithDetails(map[string]any{"product_id": line.ProductID.String()})
		}
	}
	return nil
}

package enums

import "fmt"

// ProductStatus controls whether a product can be added to a cart.
type ProductStatus string

const (
	ProductStatusDraft     ProductStatus = "draft"
	ProductStatusInReview  ProductStatus = "in_review"
	ProductStatusPublished ProductStatus = "published"
	ProductStatusDisabled  ProductStatus = "disabled"
)

var validProductStatuses = []ProductStatus{
	ProductStatusDraft,
	ProductStatusInReview,
	ProductStatusPublished,
	ProductStatusDisabled,
}

func (s ProductStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ProductStatus.
func (s ProductStatus) IsValid() bool {
	for _, candidate := range validProductStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// Purchasable reports whether customers may buy products in this state.
func (s ProductStatus) Purchasable() bool {
	return s == ProductStatusPublished
}

// ParseProductStatus converts raw input into a ProductStatus.
func ParseProductStatus(value string) (ProductStatus, error) {
	for _, candidate := range validProductStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid product status %q", value)
}

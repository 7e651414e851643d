package types

import (
	"strings"

	"github.com/google/uuid"
)

const refLength = 12

// Public reference prefixes.
const (
	OrderRefPrefix = "ORD-"
	ItemRefPrefix  = "ITM-"
)

// NewRef returns prefix followed by 12 upper-case hex characters taken from a random UUID.
func NewRef(prefix string) string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return prefix + strings.ToUpper(hex[:refLength])
}

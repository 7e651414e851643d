package mailer

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/bazaar-backend/pkg/logger"
)

// Line is one purchased item as it appears in a confirmation.
type Line struct {
	ItemRef string
	Title   string
	Qty     int
	Total   decimal.Decimal
}

// Confirmation is an order confirmation addressed to one recipient. Vendor
// confirmations carry only that vendor's lines.
type Confirmation struct {
	ToEmail   string
	ToName    string
	OrderRef  string
	Total     decimal.Decimal
	Lines     []Line
	ForVendor bool
}

// Subject is the mail subject line.
func (c Confirmation) Subject() string {
	if c.ForVendor {
		return fmt.Sprintf("New order %s", c.OrderRef)
	}
	return fmt.Sprintf("Your order %s is confirmed", c.OrderRef)
}

// PlainText renders the confirmation body.
func (c Confirmation) PlainText() string {
	var b strings.Builder
	if c.ToName != "" {
		fmt.Fprintf(&b, "Hi %s,\n\n", c.ToName)
	}
	if c.ForVendor {
		fmt.Fprintf(&b, "Order %s has been paid and includes the following items for you to fulfil:\n\n", c.OrderRef)
	} else {
		fmt.Fprintf(&b, "Thank you for your payment. Order %s is confirmed.\n\n", c.OrderRef)
	}
	for _, line := range c.Lines {
		fmt.Fprintf(&b, "- %s x%d (%s): %s\n", line.Title, line.Qty, line.ItemRef, line.Total.StringFixed(2))
	}
	if !c.ForVendor {
		fmt.Fprintf(&b, "\nOrder total: %s\n", c.Total.StringFixed(2))
	}
	return b.String()
}

// Mailer delivers order confirmations.
type Mailer interface {
	SendOrderConfirmation(ctx context.Context, msg Confirmation) error
}

// LogMailer writes confirmations to the structured log instead of sending them.
type LogMailer struct {
	logg *logger.Logger
}

func NewLogMailer(logg *logger.Logger) *LogMailer {
	if logg == nil {
		logg = logger.Nop()
	}
	return &LogMailer{logg: logg}
}

func (m *LogMailer) SendOrderConfirmation(ctx context.Context, msg Confirmation) error {
	if strings.TrimSpace(msg.ToEmail) == "" {
		return fmt.Errorf("recipient email required")
	}
	ctx = m.logg.WithOrderRef(ctx, msg.OrderRef)
	ctx = m.logg.WithFields(ctx, map[string]any{
		"to":      msg.ToEmail,
		"subject": msg.Subject(),
		"lines":   len(msg.Lines),
	})
	m.logg.Info(ctx, "mailer.confirmation_logged")
	return nil
}

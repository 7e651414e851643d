package mailer

import (
	"context"
	"fmt"
	"strings"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/angelmondragon/bazaar-backend/pkg/config"
)

const defaultFromName = "Bazaar"

type sendgridClient interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// SendGrid delivers confirmations through the SendGrid v3 mail API.
type SendGrid struct {
	client sendgridClient
	from   *mail.Email
}

func NewSendGrid(cfg config.SendgridConfig) (*SendGrid, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("sendgrid api key required")
	}
	return newSendGrid(sendgrid.NewSendClient(cfg.APIKey), cfg.DefaultFrom), nil
}

func newSendGrid(client sendgridClient, from string) *SendGrid {
	return &SendGrid{client: client, from: mail.NewEmail(defaultFromName, from)}
}

func (s *SendGrid) SendOrderConfirmation(ctx context.Context, msg Confirmation) error {
	if strings.TrimSpace(msg.ToEmail) == "" {
		return fmt.Errorf("recipient email required")
	}
	email := mail.NewSingleEmail(s.from, msg.Subject(), mail.NewEmail(msg.ToName, msg.ToEmail), msg.PlainText(), "")
	resp, err := s.client.SendWithContext(ctx, email)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid send: status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

package email

import (
	"fmt"
	"time"
)

const (
	ProviderSendGrid = "sendgrid"
	ProviderSMTP     = "smtp"
)

type Config struct {
	Provider       string
	SendGridAPIKey string
	FromAddress    string
	FromName       string
	SMTP           SMTPConfig
}

// Receipt describes a confirmed subscription payment.
type Receipt struct {
	DisplayName     string
	PlanName        string
	Amount          int
	MerchantTradeNo string
	PaidAt          time.Time
}

type Sender interface {
	SendEmail(to, subject, htmlBody, textBody string) error
	SendReceipt(to string, receipt Receipt) error
}

// NewSender builds the sender selected by cfg.Provider.
func NewSender(cfg Config) (Sender, error) {
	switch cfg.Provider {
	case ProviderSendGrid:
		if cfg.SendGridAPIKey == "" {
			return nil, fmt.Errorf("sendgrid provider requires SENDGRID_API_KEY")
		}
		return NewSendGridSender(cfg.SendGridAPIKey, cfg.FromAddress, cfg.FromName), nil
	case ProviderSMTP:
		if cfg.SMTP.Host == "" {
			return nil, fmt.Errorf("smtp provider requires SMTP_HOST")
		}
		return NewSMTPService(cfg.SMTP, cfg.FromAddress, cfg.FromName), nil
	default:
		return nil, fmt.Errorf("unknown email provider %q", cfg.Provider)
	}
}

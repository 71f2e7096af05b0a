package email

import (
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

const (
	sendGridHost     = "https://api.sendgrid.com"
	sendGridEndpoint = "/v3/mail/send"
)

type SendGridSender struct {
	apiKey   string
	host     string
	fromAddr string
	fromName string
}

func NewSendGridSender(apiKey, fromAddr, fromName string) *SendGridSender {
	return &SendGridSender{
		apiKey:   apiKey,
		host:     sendGridHost,
		fromAddr: fromAddr,
		fromName: fromName,
	}
}

func (s *SendGridSender) SendEmail(to, subject, htmlBody, textBody string) error {
	from := mail.NewEmail(s.fromName, s.fromAddr)
	message := mail.NewSingleEmail(from, subject, mail.NewEmail("", to), textBody, htmlBody)

	request := sendgrid.GetRequest(s.apiKey, sendGridEndpoint, s.host)
	request.Method = "POST"
	request.Body = mail.GetRequestBody(message)

	response, err := sendgrid.MakeRequest(request)
	if err != nil {
		return fmt.Errorf("failed to send email via sendgrid: %w", err)
	}
	if response.StatusCode >= 300 {
		return fmt.Errorf("sendgrid rejected email: status %d: %s", response.StatusCode, response.Body)
	}
	return nil
}

func (s *SendGridSender) SendReceipt(to string, receipt Receipt) error {
	htmlBody, textBody, err := RenderReceipt(receipt)
	if err != nil {
		return err
	}
	return s.SendEmail(to, ReceiptSubject, htmlBody, textBody)
}

package email

import (
	"crypto/tls"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"time"
)

type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
}

type SMTPService struct {
	config   SMTPConfig
	fromAddr string
	fromName string
}

func NewSMTPService(config SMTPConfig, fromAddr, fromName string) *SMTPService {
	return &SMTPService{
		config:   config,
		fromAddr: fromAddr,
		fromName: fromName,
	}
}

func (s *SMTPService) SendEmail(to, subject, htmlBody, textBody string) error {
	conn, err := net.DialTimeout("tcp", net.JoinHostPort(s.config.Host, s.config.Port), 10*time.Second)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}

	client, err := smtp.NewClient(conn, s.config.Host)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err = client.StartTLS(&tls.Config{ServerName: s.config.Host}); err != nil {
			return fmt.Errorf("failed to start TLS: %w", err)
		}
	}

	if s.config.Username != "" {
		auth := smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)
		if err = client.Auth(auth); err != nil {
			return fmt.Errorf("failed to authenticate: %w", err)
		}
	}

	if err = client.Mail(s.fromAddr); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	if err = client.Rcpt(to); err != nil {
		return fmt.Errorf("failed to set recipient: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to create email body writer: %w", err)
	}

	if _, err = w.Write(buildMessage(s.fromName, s.fromAddr, to, subject, htmlBody)); err != nil {
		return fmt.Errorf("failed to write email body: %w", err)
	}

	if err = w.Close(); err != nil {
		return fmt.Errorf("failed to close email body writer: %w", err)
	}

	return client.Quit()
}

func (s *SMTPService) SendReceipt(to string, receipt Receipt) error {
	htmlBody, textBody, err := RenderReceipt(receipt)
	if err != nil {
		return err
	}
	return s.SendEmail(to, ReceiptSubject, htmlBody, textBody)
}

func buildMessage(fromName, fromAddr, to, subject, htmlBody string) []byte {
	headers := fmt.Sprintf(
		"From: %s <%s>\r\n"+
			"To: %s\r\n"+
			"Subject: %s\r\n"+
			"MIME-Version: 1.0\r\n"+
			"Content-Type: text/html; charset=UTF-8\r\n"+
			"\r\n",
		mime.QEncoding.Encode("UTF-8", fromName), fromAddr, to,
		mime.QEncoding.Encode("UTF-8", subject),
	)
	return []byte(headers + htmlBody)
}

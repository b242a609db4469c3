// Package mail отправка писем клиентам.
package mail

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/Dhoini/subscription-commerce/internal/domain"
	"github.com/Dhoini/subscription-commerce/pkg/logger"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

const sendPath = "/v3/mail/send"

// Message письмо одному получателю
type Message struct {
	To      string
	ToName  string
	Subject string
	Body    string
}

// Sender отправляет письма
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SendGridClient реализует Sender через SendGrid v3 API
type SendGridClient struct {
	apiKey   string
	from     string
	fromName string
	baseURL  string
	log      *logger.Logger
}

// NewSendGridClient создает клиента SendGrid
func NewSendGridClient(apiKey, from, fromName string, log *logger.Logger) *SendGridClient {
	return &SendGridClient{
		apiKey:   apiKey,
		from:     from,
		fromName: fromName,
		log:      log,
	}
}

// WithBaseURL меняет адрес API (для тестов и прокси)
func (c *SendGridClient) WithBaseURL(baseURL string) *SendGridClient {
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

// Send отправляет письмо, статус >= 400 считается ошибкой
func (c *SendGridClient) Send(ctx context.Context, msg Message) error {
	if c.apiKey == "" {
		return errors.New("sendgrid api key is empty")
	}
	if c.from == "" {
		return errors.New("from address is empty")
	}
	if msg.To == "" {
		return fmt.Errorf("%w: recipient address is empty", domain.ErrInvalidInput)
	}

	message := sgmail.NewSingleEmail(
		sgmail.NewEmail(c.fromName, c.from),
		msg.Subject,
		sgmail.NewEmail(msg.ToName, msg.To),
		msg.Body,
		"<div dir=\"rtl\"><pre>"+html.EscapeString(msg.Body)+"</pre></div>",
	)

	client := sendgrid.NewSendClient(c.apiKey)
	if c.baseURL != "" {
		client.BaseURL = c.baseURL + sendPath
	}

	response, err := client.SendWithContext(ctx, message)
	if err != nil {
		c.log.Errorw("SendGrid request failed", "to", msg.To, "error", err)
		return domain.NewExternalServiceError("sendgrid", "send", "request failed", 0, err)
	}
	if response.StatusCode >= 400 {
		c.log.Errorw("SendGrid rejected message", "to", msg.To, "status", response.StatusCode, "body", response.Body)
		return domain.NewExternalServiceError("sendgrid", "send",
			fmt.Sprintf("send failed: %s", response.Body), response.StatusCode, nil)
	}

	c.log.Infow("Mail sent", "to", msg.To, "subject", msg.Subject, "status", response.StatusCode)
	return nil
}

// NopSender только пишет в лог, используется без ключа SendGrid
type NopSender struct {
	Log *logger.Logger
}

func (s NopSender) Send(_ context.Context, msg Message) error {
	s.Log.Warnw("Mail delivery is not configured, message dropped", "to", msg.To, "subject", msg.Subject)
	return nil
}

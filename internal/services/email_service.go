package services

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/resend/resend-go/v2"
	"github.com/sjperalta/fintera-brokerage/internal/config"
	"github.com/sjperalta/fintera-brokerage/internal/events"
	"github.com/sjperalta/fintera-brokerage/internal/jobs"
	"github.com/sjperalta/fintera-brokerage/pkg/logger"
)

//go:embed templates/email/*.html
var emailTemplates embed.FS

// emailData is what every e-mail template renders from
type emailData struct {
	DealID         string
	OfferID        string
	EntityID       string
	ActorID        string
	Amount         string
	OriginalAmount string
	Currency       string
	MatchKind      string
	Reason         string
	Number         string
	DueDate        string
	Remaining      string
	Date           string
	AppURL         string
}

// EmailService mails back-office summaries of deal and payment events via Resend
type EmailService struct {
	config       *config.Config
	resendClient *resend.Client
	worker       *jobs.Worker

	// send delivers one message; tests replace it
	send func(params *resend.SendEmailRequest) error
}

func NewEmailService(cfg *config.Config, worker *jobs.Worker) *EmailService {
	s := &EmailService{
		config:       cfg,
		resendClient: resend.NewClient(cfg.ResendAPIKey),
		worker:       worker,
	}
	s.send = func(params *resend.SendEmailRequest) error {
		_, err := s.resendClient.Emails.Send(params)
		return err
	}
	return s
}

// Subscribe registers the notifier for the events the back office is mailed about
func (s *EmailService) Subscribe(bus *events.Bus) {
	bus.Subscribe("email", s,
		events.DealFinalized,
		events.DealCompleted,
		events.CommissionOverridden,
		events.PaymentOverdue,
	)
}

// checkEmailPreconditions reports whether a message may be sent. Disabled
// notifications are not an error.
func (s *EmailService) checkEmailPreconditions(to string, operation string) (bool, error) {
	if !s.config.EnableEmailNotifications {
		logger.Debug("Email notifications disabled, skipping", "operation", operation)
		return false, nil
	}
	if s.config.ResendAPIKey == "" {
		return false, errors.New("RESEND_API_KEY is not set")
	}
	if strings.TrimSpace(to) == "" {
		return false, errors.New("email address is empty")
	}
	return true, nil
}

// Handle renders the message for e and delivers it on the worker pool
func (s *EmailService) Handle(ctx context.Context, e events.Event) error {
	to := s.config.BackofficeEmail
	ok, err := s.checkEmailPreconditions(to, string(e.Type))
	if !ok {
		return err
	}

	subject, name := emailFor(e.Type)
	if name == "" {
		return nil
	}
	body, err := s.renderTemplate(name, s.dataFor(e))
	if err != nil {
		return err
	}
	params := &resend.SendEmailRequest{
		From:    s.config.FromEmail,
		To:      []string{to},
		Subject: subject,
		Html:    body,
	}

	deliver := func(ctx context.Context) error {
		if err := s.send(params); err != nil {
			logger.Error("Failed to send email", "to", to, "subject", subject, "error", err)
			return err
		}
		logger.Info("Email sent", "to", to, "subject", subject, "event_id", e.ID)
		return nil
	}
	if s.worker == nil {
		return deliver(ctx)
	}
	s.worker.EnqueueAsync("email:"+string(e.Type), deliver)
	return nil
}

// SendTest mails a fixed message to check the Resend configuration
func (s *EmailService) SendTest(ctx context.Context, to string) error {
	if s.config.ResendAPIKey == "" {
		return errors.New("RESEND_API_KEY is not set")
	}
	if strings.TrimSpace(to) == "" {
		return errors.New("email address is empty")
	}
	body, err := s.renderTemplate("test_email.html", emailData{Date: time.Now().Format("2006-01-02 15:04")})
	if err != nil {
		return err
	}
	return s.send(&resend.SendEmailRequest{
		From:    s.config.FromEmail,
		To:      []string{to},
		Subject: "Fintera brokerage test email",
		Html:    body,
	})
}

func emailFor(t events.Type) (subject, template string) {
	switch t {
	case events.DealFinalized:
		return "Deal finalized", "deal_finalized.html"
	case events.DealCompleted:
		return "Deal completed", "deal_completed.html"
	case events.CommissionOverridden:
		return "Commission overridden", "commission_overridden.html"
	case events.PaymentOverdue:
		return "Instalment overdue", "payment_overdue.html"
	}
	return "", ""
}

func (s *EmailService) dataFor(e events.Event) emailData {
	data := emailData{
		DealID:         e.Attr("deal_id"),
		OfferID:        e.Attr("offer_id"),
		EntityID:       e.EntityID,
		ActorID:        e.ActorID,
		Amount:         e.Attr("amount"),
		OriginalAmount: e.Attr("original_amount"),
		Currency:       s.config.Currency,
		MatchKind:      e.Attr("match_kind"),
		Reason:         e.Attr("reason"),
		Number:         e.Attr("number"),
		DueDate:        e.Attr("due_date"),
		Remaining:      e.Attr("remaining"),
		Date:           e.OccurredAt.Format("2006-01-02 15:04"),
		AppURL:         strings.TrimRight(s.config.AppURL, "/"),
	}
	if e.EntityKind == "deal" {
		data.DealID = e.EntityID
	}
	if data.Amount == "" {
		data.Amount = e.Attr("agreed_price")
	}
	return data
}

func (s *EmailService) renderTemplate(name string, data interface{}) (string, error) {
	tmpl, err := template.ParseFS(emailTemplates, "templates/email/"+name)
	if err != nil {
		return "", fmt.Errorf("failed to parse template %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template %s: %w", name, err)
	}

	return buf.String(), nil
}

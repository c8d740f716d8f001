package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/amirphl/outreach-orchestrator/config"
	"github.com/amirphl/outreach-orchestrator/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

// MailSender is satisfied by *gomail.Dialer
type MailSender interface {
	DialAndSend(m ...*gomail.Message) error
}

// EmailChannel sends email over SMTP. Submit returns immediately with a job id;
// the send runs in the background and its outcome lands in the result store.
type EmailChannel struct {
	sender    MailSender
	store     JobResultStore
	fromEmail string
	fromName  string
	timeout   time.Duration
	logger    logrus.FieldLogger
	wg        sync.WaitGroup
}

// NewEmailChannel creates an SMTP email adapter
func NewEmailChannel(cfg config.EmailConfig, store JobResultStore, logger logrus.FieldLogger) *EmailChannel {
	dialer := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	return NewEmailChannelWithSender(dialer, cfg, store, logger)
}

// NewEmailChannelWithSender creates an email adapter on a custom sender
func NewEmailChannelWithSender(sender MailSender, cfg config.EmailConfig, store JobResultStore, logger logrus.FieldLogger) *EmailChannel {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &EmailChannel{
		sender:    sender,
		store:     store,
		fromEmail: cfg.FromEmail,
		fromName:  cfg.FromName,
		timeout:   timeout,
		logger:    logger,
	}
}

func (e *EmailChannel) Channel() models.Channel { return models.ChannelEmail }

func (e *EmailChannel) Submit(ctx context.Context, target Target, content string, args ChannelArgs) (string, error) {
	if err := ValidateArgs(models.ChannelEmail, args); err != nil {
		return "", err
	}
	a := args.(EmailArgs)

	fromName := a.FromName
	if fromName == "" {
		fromName = e.fromName
	}

	m := gomail.NewMessage()
	if fromName != "" {
		m.SetAddressHeader("From", e.fromEmail, fromName)
	} else {
		m.SetHeader("From", e.fromEmail)
	}
	m.SetHeader("To", a.To)
	m.SetHeader("Subject", a.Subject)
	m.SetBody("text/plain", content)

	jobID := "email-" + uuid.NewString()
	if err := e.store.Put(ctx, jobID, PollResult{Status: PollStatusPending}); err != nil {
		return "", Transient(CodeProviderError, fmt.Errorf("store pending result: %w", err))
	}

	e.wg.Add(1)
	go e.send(jobID, m, target.LeadID)

	return jobID, nil
}

func (e *EmailChannel) send(jobID string, m *gomail.Message, leadID uint) {
	defer e.wg.Done()

	result := PollResult{Status: PollStatusSuccess}
	if err := e.sender.DialAndSend(m); err != nil {
		ce := classifySMTPError(err)
		result = PollResult{
			Status:    PollStatusFailure,
			Output:    err.Error(),
			ErrorCode: ce.Code,
			Retryable: ce.Class == ErrorClassTransient,
		}
		e.logger.WithFields(logrus.Fields{"job_id": jobID, "lead_id": leadID}).WithError(err).Warn("email send failed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
	defer cancel()
	if err := e.store.Put(ctx, jobID, result); err != nil {
		e.logger.WithField("job_id", jobID).WithError(err).Error("failed to store email result")
	}
}

func (e *EmailChannel) Poll(ctx context.Context, jobID string) (PollResult, error) {
	r, ok, err := e.store.Get(ctx, jobID)
	if err != nil {
		return PollResult{}, Transient(CodeProviderError, err)
	}
	if !ok {
		return PollResult{}, Permanent(CodeNotFound, fmt.Errorf("unknown email job %s", jobID))
	}
	return r, nil
}

// Wait blocks until in-flight sends finish
func (e *EmailChannel) Wait() {
	e.wg.Wait()
}

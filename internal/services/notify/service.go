// Package notify delivers generated order sheets over email and webhooks.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/bobmcallan/stacker/internal/common"
	"github.com/bobmcallan/stacker/internal/interfaces"
	"github.com/bobmcallan/stacker/internal/models"
)

// ErrChannelUnavailable is returned when a plan asks for a channel the
// server has not configured.
var ErrChannelUnavailable = errors.New("notification channel not configured")

type emailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

type poster interface {
	Send(ctx context.Context, url string, payload WebhookPayload) error
}

// Service implements interfaces.Notifier.
type Service struct {
	email   emailer
	webhook poster
	logger  *common.Logger
}

// NewService wires the channel senders. email may be nil when SMTP is not configured.
func NewService(email *EmailSender, webhook *WebhookSender, logger *common.Logger) *Service {
	s := &Service{logger: logger}
	if email != nil {
		s.email = email
	}
	if webhook != nil {
		s.webhook = webhook
	}
	return s
}

// NewServiceFromConfig builds the senders from the [notify] section.
func NewServiceFromConfig(cfg common.NotifyConfig, logger *common.Logger) *Service {
	return NewService(NewEmailSender(cfg), NewWebhookSender(cfg.GetWebhookTimeout()), logger)
}

// Send delivers execution on every channel the plan selected. A plan with no
// channels gets email when it has an address and SMTP is configured. Every
// channel is attempted; the first failure is returned.
func (s *Service) Send(ctx context.Context, plan *models.Plan, execution *models.Execution) error {
	channels := plan.NotificationChannels
	explicit := len(channels) > 0
	if !explicit {
		if plan.Email == "" || s.email == nil {
			s.logger.Debug().Str("user_id", plan.UserID).Msg("No notification channel for plan")
			return nil
		}
		channels = []string{models.ChannelEmail}
	}

	var firstErr error
	for _, ch := range channels {
		err := s.sendOne(ctx, ch, plan, execution)
		if err != nil {
			s.logger.Warn().Err(err).Str("channel", ch).Str("user_id", plan.UserID).Str("ym_cycle", execution.YMCycle).Msg("Notification channel failed")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		s.logger.Info().Str("channel", ch).Str("user_id", plan.UserID).Str("ym_cycle", execution.YMCycle).Msg("Notification sent")
	}
	return firstErr
}

func (s *Service) sendOne(ctx context.Context, channel string, plan *models.Plan, exec *models.Execution) error {
	switch channel {
	case models.ChannelEmail:
		if s.email == nil {
			return fmt.Errorf("email: %w", ErrChannelUnavailable)
		}
		if plan.Email == "" {
			return fmt.Errorf("email: plan has no address")
		}
		return s.email.Send(ctx, plan.Email, Subject(exec), RenderText(exec))
	case models.ChannelWebhook:
		if s.webhook == nil {
			return fmt.Errorf("webhook: %w", ErrChannelUnavailable)
		}
		if plan.WebhookURL == "" {
			return fmt.Errorf("webhook: plan has no url")
		}
		return s.webhook.Send(ctx, plan.WebhookURL, WebhookPayload{
			Event:     EventExecutionSent,
			UserID:    exec.UserID,
			YMCycle:   exec.YMCycle,
			Text:      RenderText(exec),
			Execution: exec,
		})
	default:
		return fmt.Errorf("unknown notification channel %q", channel)
	}
}

var _ interfaces.Notifier = (*Service)(nil)

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Notification channel identifiers accepted in Plan.NotificationChannels.
const (
	ChannelEmail   = "email"
	ChannelWebhook = "webhook"
)

// Schedule lists the run days of a plan. Days are day-of-month values 1–28,
// one per cycle, in any order. Timezone is an IANA name used to decide which
// calendar day "today" is.
type Schedule struct {
	Days     []int  `json:"days"`
	Timezone string `json:"timezone"`
}

// Plan is a user's recurring budget and cycle split.
type Plan struct {
	ID                   string            `json:"id"`
	UserID               string            `json:"user_id"`
	MonthlyBudget        decimal.Decimal   `json:"monthly_budget"`
	CycleCount           int               `json:"cycle_count"`
	CycleWeights         []decimal.Decimal `json:"cycle_weights"`
	Schedule             Schedule          `json:"schedule"`
	Email                string            `json:"email"`
	NotificationChannels []string          `json:"notification_channels,omitempty"`
	WebhookURL           string            `json:"webhook_url,omitempty"`
	IsActive             bool              `json:"is_active"`
	Version              int               `json:"version"`
	CreatedAt            time.Time         `json:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at"`
}

// HasChannel reports whether the plan opted into the given notification channel.
func (p *Plan) HasChannel(channel string) bool {
	for _, c := range p.NotificationChannels {
		if c == channel {
			return true
		}
	}
	return false
}

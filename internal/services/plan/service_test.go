package plan

import (
	"context"
	"errors"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/stacker/internal/common"
	"github.com/bobmcallan/stacker/internal/models"
	"github.com/bobmcallan/stacker/internal/storage"
	"github.com/bobmcallan/stacker/internal/storage/memory"
)

func newTestService() *Service {
	mgr := storage.NewManager(memory.NewStore(), common.NewSilentLogger(), nil)
	return NewService(mgr, common.NewSilentLogger())
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func validPlan() *models.Plan {
	return &models.Plan{
		UserID:        "u1",
		MonthlyBudget: d("1000000"),
		CycleWeights:  []decimal.Decimal{d("0.5"), d("0.5")},
		Schedule:      models.Schedule{Days: []int{5, 19}, Timezone: "Asia/Seoul"},
		Email:         "u1@example.com",
		IsActive:      true,
	}
}

func TestSavePlan_AssignsIDAndVersion(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	saved, err := svc.SavePlan(ctx, validPlan())
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)
	assert.Equal(t, 1, saved.Version)
	assert.Equal(t, 2, saved.CycleCount)
	created := saved.CreatedAt

	saved.MonthlyBudget = d("2000000")
	again, err := svc.SavePlan(ctx, saved)
	require.NoError(t, err)
	assert.Equal(t, 2, again.Version)
	assert.True(t, created.Equal(again.CreatedAt))

	active, err := svc.GetActivePlan(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.True(t, d("2000000").Equal(active.MonthlyBudget))
}

func TestSavePlan_ActivatingDeactivatesOthers(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	tick := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { tick = tick.Add(time.Minute); return tick }

	first, err := svc.SavePlan(ctx, validPlan())
	require.NoError(t, err)

	p := validPlan()
	p.CycleWeights = []decimal.Decimal{d("0.4"), d("0.3"), d("0.3")}
	p.Schedule.Days = []int{1, 10, 20}
	second, err := svc.SavePlan(ctx, p)
	require.NoError(t, err)

	active, err := svc.GetActivePlan(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, second.ID, active.ID)

	all, err := svc.ListActivePlans(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.NotEqual(t, first.ID, all[0].ID)
}

func TestSavePlan_RequiresUser(t *testing.T) {
	p := validPlan()
	p.UserID = ""
	_, err := newTestService().SavePlan(context.Background(), p)
	assert.ErrorIs(t, err, ErrInvalidPlan)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.Plan)
		want   string
	}{
		{"valid", func(*models.Plan) {}, ""},
		{"zero budget", func(p *models.Plan) { p.MonthlyBudget = decimal.Zero }, ""},
		{"negative budget", func(p *models.Plan) { p.MonthlyBudget = d("-1") }, "monthly_budget"},
		{"one cycle", func(p *models.Plan) {
			p.CycleWeights = []decimal.Decimal{d("1")}
			p.Schedule.Days = []int{5}
		}, "cycle weights given"},
		{"count mismatch", func(p *models.Plan) { p.CycleCount = 3 }, "cycle_count"},
		{"weight above one", func(p *models.Plan) { p.CycleWeights = []decimal.Decimal{d("1.5"), d("-0.5")} }, "(0, 1]"},
		{"weights sum", func(p *models.Plan) { p.CycleWeights = []decimal.Decimal{d("0.5"), d("0.4")} }, "sum to 1.0"},
		{"days count", func(p *models.Plan) { p.Schedule.Days = []int{5} }, "run days given"},
		{"day 29", func(p *models.Plan) { p.Schedule.Days = []int{5, 29} }, "outside"},
		{"day repeated", func(p *models.Plan) { p.Schedule.Days = []int{5, 5} }, "repeated"},
		{"bad timezone", func(p *models.Plan) { p.Schedule.Timezone = "Mars/Base" }, "timezone"},
		{"email channel", func(p *models.Plan) {
			p.Email = ""
			p.NotificationChannels = []string{models.ChannelEmail}
		}, "email address"},
		{"webhook channel", func(p *models.Plan) {
			p.NotificationChannels = []string{models.ChannelWebhook}
			p.WebhookURL = "ftp://example.com"
		}, "webhook_url"},
		{"webhook ok", func(p *models.Plan) {
			p.NotificationChannels = []string{models.ChannelWebhook, models.ChannelEmail}
			p.WebhookURL = "https://hooks.example.com/dca"
		}, ""},
		{"unknown channel", func(p *models.Plan) { p.NotificationChannels = []string{"sms"} }, "unknown notification channel"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validPlan()
			tt.mutate(p)
			err := Validate(p)
			if tt.want == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidPlan))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

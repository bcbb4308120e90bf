package storage

import (
	"context"
	"testing"
	"time"

	"github.com/bobmcallan/stacker/internal/common"
	"github.com/bobmcallan/stacker/internal/models"
	"github.com/bobmcallan/stacker/internal/storage/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager() *Manager {
	return NewManager(memory.NewStore(), common.NewSilentLogger(), nil)
}

func TestNewStorageManager_Memory(t *testing.T) {
	cfg := common.NewDefaultConfig()
	cfg.Storage.Backend = BackendMemory

	m, err := NewStorageManager(context.Background(), common.NewSilentLogger(), cfg)
	require.NoError(t, err)
	assert.NotNil(t, m.ExecutionStore())
	assert.NoError(t, m.Close())
}

func TestNewStorageManager_UnknownBackend(t *testing.T) {
	cfg := common.NewDefaultConfig()
	cfg.Storage.Backend = "badger"

	_, err := NewStorageManager(context.Background(), common.NewSilentLogger(), cfg)
	assert.ErrorContains(t, err, "unknown storage backend")
}

func TestPlanStorage_ActivePlan(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()
	store := m.PlanStore()

	got, err := store.GetActivePlan(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, got, "no plan is not an error")

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.SavePlan(ctx, &models.Plan{ID: "old", UserID: "u1", IsActive: false, UpdatedAt: base.Add(time.Hour)}))
	require.NoError(t, store.SavePlan(ctx, &models.Plan{ID: "a", UserID: "u1", IsActive: true, UpdatedAt: base,
		MonthlyBudget: decimal.NewFromInt(1000000)}))
	require.NoError(t, store.SavePlan(ctx, &models.Plan{ID: "b", UserID: "u1", IsActive: true, UpdatedAt: base.Add(2 * time.Hour)}))

	got, err = store.GetActivePlan(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "b", got.ID)

	a, err := store.GetPlan(ctx, "u1", "a")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(1000000).Equal(a.MonthlyBudget))
}

func TestPlanStorage_ListActivePlansAcrossUsers(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()
	store := m.PlanStore()

	require.NoError(t, store.SavePlan(ctx, &models.Plan{ID: "p", UserID: "u2", IsActive: true}))
	require.NoError(t, store.SavePlan(ctx, &models.Plan{ID: "p", UserID: "u1", IsActive: true}))
	require.NoError(t, store.SavePlan(ctx, &models.Plan{ID: "q", UserID: "u1", IsActive: false}))

	plans, err := store.ListActivePlans(ctx)
	require.NoError(t, err)
	require.Len(t, plans, 2)
	assert.Equal(t, "u1", plans[0].UserID)
	assert.Equal(t, "u2", plans[1].UserID)
}

func TestPlanStorage_SaveRequiresKeys(t *testing.T) {
	m := newTestManager()
	err := m.PlanStore().SavePlan(context.Background(), &models.Plan{UserID: "u"})
	assert.Error(t, err)
}

func TestPortfolioStorage_ActivePortfolio(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()
	store := m.PortfolioStore()

	got, err := store.GetActivePortfolio(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, store.SavePortfolio(ctx, &models.Portfolio{
		UserID:   "u1",
		Name:     "core",
		IsActive: true,
		Holdings: []models.Holding{{Ticker: "069500", Market: "KR", TargetWeight: decimal.NewFromInt(1)}},
	}))
	require.NoError(t, store.SavePortfolio(ctx, &models.Portfolio{UserID: "u1", Name: "draft"}))

	got, err = store.GetActivePortfolio(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "core", got.Name)
	assert.Equal(t, []string{"069500"}, got.Tickers())
}

func TestExecutionStorage_GetMissingReturnsNil(t *testing.T) {
	m := newTestManager()
	got, err := m.ExecutionStore().Get(context.Background(), "u1", "2026-02#1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestExecutionStorage_SaveCreateAndList(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()
	store := m.ExecutionStore()

	exec := func(key string, idx int) *models.Execution {
		return &models.Execution{
			UserID:        "u1",
			YMCycle:       key,
			CycleIndex:    idx,
			CarryByTicker: map[string]decimal.Decimal{"069500": decimal.RequireFromString("5000.5")},
			Status:        models.ExecutionStatusGenerated,
		}
	}

	require.NoError(t, store.Create(ctx, exec("2026-02#2", 2)))
	require.NoError(t, store.Save(ctx, exec("2026-02#1", 1)))
	require.NoError(t, store.Save(ctx, exec("2026-03#1", 1)))

	err := store.Create(ctx, exec("2026-02#2", 2))
	assert.Error(t, err)

	sent := exec("2026-02#1", 1)
	sent.Status = models.ExecutionStatusSent
	require.NoError(t, store.Save(ctx, sent))

	got, err := store.Get(ctx, "u1", "2026-02#1")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusSent, got.Status)
	assert.True(t, decimal.RequireFromString("5000.5").Equal(got.CarryByTicker["069500"]))

	feb, err := store.ListByMonth(ctx, "u1", "2026-02")
	require.NoError(t, err)
	require.Len(t, feb, 2)
	assert.Equal(t, "2026-02#1", feb[0].YMCycle)
	assert.Equal(t, "2026-02#2", feb[1].YMCycle)
	assert.Equal(t, 3, m.UserDataStore().(*memory.Store).Len())
}

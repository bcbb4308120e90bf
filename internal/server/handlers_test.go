package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/stacker/internal/app"
	"github.com/bobmcallan/stacker/internal/common"
	"github.com/bobmcallan/stacker/internal/models"
	"github.com/bobmcallan/stacker/internal/services/execution"
	"github.com/bobmcallan/stacker/internal/services/plan"
	"github.com/bobmcallan/stacker/internal/services/portfolio"
	"github.com/bobmcallan/stacker/internal/storage"
	"github.com/bobmcallan/stacker/internal/storage/memory"
)

const testUser = "user-1"

type fixedFeed struct {
	fail bool
}

func (f *fixedFeed) FetchPrice(_ context.Context, ticker, market string) (*models.PriceQuote, error) {
	if f.fail {
		return nil, assert.AnError
	}
	return &models.PriceQuote{Ticker: ticker, Market: market, Price: decimal.NewFromInt(10000), Currency: "KRW"}, nil
}

func newTestServer(t *testing.T) (*Server, *fixedFeed) {
	t.Helper()
	cfg := common.NewDefaultConfig()
	cfg.Storage.Backend = "memory"
	logger := common.NewSilentLogger()
	mgr := storage.NewManager(memory.NewStore(), logger, nil)
	feed := &fixedFeed{}

	kst, err := time.LoadLocation("Asia/Seoul")
	require.NoError(t, err)
	now := time.Date(2026, 3, 5, 9, 0, 0, 0, kst)

	a := &app.App{
		Config:           cfg,
		Logger:           logger,
		Storage:          mgr,
		PriceFeed:        feed,
		PlanService:      plan.NewService(mgr, logger),
		PortfolioService: portfolio.NewService(mgr, logger),
		ExecutionService: execution.NewService(mgr, feed, logger,
			execution.WithLocation(kst),
			execution.WithPriceFetchDelay(0),
			execution.WithClock(func() time.Time { return now }),
		),
	}
	return NewServer(a), feed
}

func do(t *testing.T, s *Server, method, path, body string, user string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body == "" {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, reader)
	if user != "" {
		req.Header.Set(HeaderUserID, user)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

const planBody = `{
	"monthly_budget": "1000000",
	"cycle_count": 2,
	"cycle_weights": ["0.5", "0.5"],
	"schedule": {"days": [5, 19], "timezone": "Asia/Seoul"},
	"email": "user@example.com",
	"is_active": true
}`

const portfolioBody = `{
	"name": "core",
	"holdings": [
		{"ticker": "069500", "name": "KODEX 200", "market": "KR", "target_weight": "0.6"},
		{"ticker": "379800", "name": "KODEX US S&P500", "market": "KR", "target_weight": "0.4"}
	],
	"is_active": true
}`

func setupUser(t *testing.T, s *Server) {
	t.Helper()
	require.Equal(t, http.StatusOK, do(t, s, http.MethodPut, "/api/plan", planBody, testUser).Code)
	require.Equal(t, http.StatusOK, do(t, s, http.MethodPut, "/api/portfolio", portfolioBody, testUser).Code)
}

func decodeResult(t *testing.T, rec *httptest.ResponseRecorder) models.ProcessResult {
	t.Helper()
	var result models.ProcessResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	return result
}

func TestHealthAndVersion(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/api/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Correlation-ID"))

	rec = do(t, s, http.MethodGet, "/api/version", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"version"`)

	rec = do(t, s, http.MethodPost, "/api/health", "", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestPlan_RequiresUser(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s, http.MethodGet, "/api/plan", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPlan_PutThenGet(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/api/plan", "", testUser)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, s, http.MethodPut, "/api/plan", planBody, testUser)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/plan", "", testUser)
	require.Equal(t, http.StatusOK, rec.Code)
	var p models.Plan
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.Equal(t, testUser, p.UserID)
	assert.Equal(t, 1, p.Version)
	assert.True(t, p.MonthlyBudget.Equal(decimal.NewFromInt(1000000)))
}

func TestPlan_InvalidIs400(t *testing.T) {
	s, _ := newTestServer(t)
	body := `{"monthly_budget": "1000", "cycle_weights": ["0.7", "0.7"], "schedule": {"days": [1, 2]}, "is_active": true}`
	rec := do(t, s, http.MethodPut, "/api/plan", body, testUser)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_PLAN")

	rec = do(t, s, http.MethodPut, "/api/plan", "{not json", testUser)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPortfolio_PutThenGet(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodPut, "/api/portfolio", portfolioBody, testUser)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/portfolio", "", testUser)
	require.Equal(t, http.StatusOK, rec.Code)
	var p models.Portfolio
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.Equal(t, []string{"069500", "379800"}, p.Tickers())

	bad := `{"holdings": [{"ticker": "A", "market": "KR", "target_weight": "0.5"}]}`
	rec = do(t, s, http.MethodPut, "/api/portfolio", bad, testUser)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTrigger_NoPlanIsSkipped(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/api/executions/trigger", "", testUser)
	assert.Equal(t, http.StatusOK, rec.Code)
	result := decodeResult(t, rec)
	assert.Equal(t, models.ProcessStatusSkipped, result.Status)
	assert.Nil(t, result.Execution)
	assert.Contains(t, rec.Body.String(), `"execution":null`)
}

func TestTrigger_CreatesThenExists(t *testing.T) {
	s, _ := newTestServer(t)
	setupUser(t, s)

	rec := do(t, s, http.MethodPost, "/api/executions/trigger", "", testUser)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	result := decodeResult(t, rec)
	assert.Equal(t, models.ProcessStatusCreated, result.Status)
	require.NotNil(t, result.Execution)
	assert.Equal(t, models.ExecutionStatusSent, result.Execution.Status)

	rec = do(t, s, http.MethodPost, "/api/executions/trigger", `{"force": true}`, testUser)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.ProcessStatusExists, decodeResult(t, rec).Status)
}

func TestTrigger_DryRunWritesNothing(t *testing.T) {
	s, _ := newTestServer(t)
	setupUser(t, s)

	rec := do(t, s, http.MethodPost, "/api/executions/trigger", `{"dryRun": true}`, testUser)
	require.Equal(t, http.StatusOK, rec.Code)
	result := decodeResult(t, rec)
	assert.True(t, result.DryRun)
	assert.Equal(t, models.ProcessStatusCreated, result.Status)

	rec = do(t, s, http.MethodGet, "/api/executions?month=2026-03", "", testUser)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"executions":[]`)
}

func TestTrigger_PriceFailureIsBadGateway(t *testing.T) {
	s, feed := newTestServer(t)
	setupUser(t, s)
	feed.fail = true

	rec := do(t, s, http.MethodPost, "/api/executions/trigger", "", testUser)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	result := decodeResult(t, rec)
	assert.Equal(t, models.ProcessStatusError, result.Status)
	assert.Equal(t, execution.CodePriceFetchFailed, result.ErrorCode)
}

func TestExecutions_Lifecycle(t *testing.T) {
	s, _ := newTestServer(t)
	setupUser(t, s)

	rec := do(t, s, http.MethodPost, "/api/executions/trigger", "", testUser)
	require.Equal(t, http.StatusCreated, rec.Code)
	key := decodeResult(t, rec).Execution.YMCycle
	path := "/api/executions/" + url.PathEscape(key)

	rec = do(t, s, http.MethodGet, "/api/executions?month=2026-03", "", testUser)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Month      string              `json:"month"`
		Executions []*models.Execution `json:"executions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Executions, 1)
	assert.Equal(t, key, list.Executions[0].YMCycle)

	rec = do(t, s, http.MethodGet, path, "", testUser)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s, http.MethodGet, path, "", "someone-else")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, s, http.MethodPost, path+"/confirm", `{"note": "bought"}`, testUser)
	require.Equal(t, http.StatusOK, rec.Code)
	var confirmed models.Execution
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &confirmed))
	assert.Equal(t, models.ExecutionStatusConfirmed, confirmed.Status)
	require.NotNil(t, confirmed.UserConfirm)
	assert.Equal(t, "bought", confirmed.UserConfirm.Note)

	rec = do(t, s, http.MethodDelete, path, "", testUser)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestExecutions_DeleteThenGone(t *testing.T) {
	s, _ := newTestServer(t)
	setupUser(t, s)

	rec := do(t, s, http.MethodPost, "/api/executions/trigger", "", testUser)
	require.Equal(t, http.StatusCreated, rec.Code)
	path := "/api/executions/" + url.PathEscape(decodeResult(t, rec).Execution.YMCycle)

	rec = do(t, s, http.MethodDelete, path, "", testUser)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, s, http.MethodGet, path, "", testUser)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, s, http.MethodPost, "/api/executions/trigger", "", testUser)
	assert.Equal(t, http.StatusCreated, rec.Code, "a deleted cycle can be generated again")
}

func TestExecutions_BadKeys(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/api/executions/garbage", "", testUser)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/executions?month=March", "", testUser)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/executions/2026-03%231/extra", "", testUser)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

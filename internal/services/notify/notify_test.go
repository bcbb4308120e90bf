package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"net/http/httptest"
	netmail "net/mail"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"

	"github.com/bobmcallan/stacker/internal/common"
	"github.com/bobmcallan/stacker/internal/models"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func sampleExecution() *models.Execution {
	return &models.Execution{
		UserID:      "u1",
		YMCycle:     "2026-02#1",
		AsOfDate:    "2026-02-05",
		CycleIndex:  1,
		CycleWeight: d("0.5"),
		TotalBudget: d("1000000"),
		CycleBudget: d("500000"),
		Currency:    "KRW",
		Items: []models.ExecutionItem{
			{Ticker: "069500", Name: "KODEX 200", Price: d("35000"), Shares: 7, EstCost: d("245000"), CarryIn: decimal.Zero, CarryOut: d("5000")},
			{Ticker: "379800", Price: d("15000"), Shares: 10, EstCost: d("150000"), CarryIn: decimal.Zero, CarryOut: decimal.Zero},
		},
		TotalEstCost:  d("395000"),
		TotalCarryOut: d("5000"),
		Status:        models.ExecutionStatusSent,
	}
}

func TestFormatMoney(t *testing.T) {
	assert.Contains(t, FormatMoney(d("491000"), "KRW"), "491,000")
	assert.Contains(t, FormatMoney(d("5000.6"), "krw"), "5,001", "KRW has no minor unit")
	assert.Equal(t, "$1,234.57", FormatMoney(d("1234.567"), "USD"))
	assert.Equal(t, "12.50 XYZ", FormatMoney(d("12.5"), "XYZ"))
}

func TestRenderText(t *testing.T) {
	text := RenderText(sampleExecution())
	assert.Contains(t, text, "Order sheet 2026-02#1 (as of 2026-02-05)")
	assert.Contains(t, text, "069500 KODEX 200: buy 7")
	assert.Contains(t, text, "379800: buy 10")
	assert.Contains(t, text, "395,000")
	assert.True(t, strings.HasPrefix(Subject(sampleExecution()), "[Stacker] 2026-02#1"))
}

// captureMail replaces delivery with one that renders the message.
func captureMail(t *testing.T, s *EmailSender) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	s.deliver = func(ctx context.Context, msg *mail.Msg) error {
		require.NoError(t, ctx.Err())
		_, err := msg.WriteTo(&buf)
		return err
	}
	return &buf
}

func TestEmailSender_Send(t *testing.T) {
	s := NewEmailSender(common.NotifyConfig{SMTPHost: "smtp.example.com", SMTPUsername: "bot", SMTPPassword: "pw", From: "stacker@example.com"})
	require.NotNil(t, s)
	raw := captureMail(t, s)

	require.NoError(t, s.Send(context.Background(), "u1@example.com", "Subject line", "line1\nline2"))

	msg, err := netmail.ReadMessage(raw)
	require.NoError(t, err)
	from, err := msg.Header.AddressList("From")
	require.NoError(t, err)
	require.Len(t, from, 1)
	assert.Equal(t, "stacker@example.com", from[0].Address)
	to, err := msg.Header.AddressList("To")
	require.NoError(t, err)
	require.Len(t, to, 1)
	assert.Equal(t, "u1@example.com", to[0].Address)
	subject, err := new(mime.WordDecoder).DecodeHeader(msg.Header.Get("Subject"))
	require.NoError(t, err)
	assert.Equal(t, "Subject line", subject)
	body, err := io.ReadAll(msg.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "line1")
	assert.Contains(t, string(body), "line2")
}

func TestEmailSender_EncodesNonASCIISubject(t *testing.T) {
	s := NewEmailSender(common.NotifyConfig{SMTPHost: "smtp.example.com", From: "stacker@example.com"})
	raw := captureMail(t, s)

	subject := Subject(sampleExecution())
	require.Contains(t, subject, "₩")
	require.NoError(t, s.Send(context.Background(), "u1@example.com", subject, RenderText(sampleExecution())))

	msg, err := netmail.ReadMessage(raw)
	require.NoError(t, err)
	encoded := msg.Header.Get("Subject")
	for i := 0; i < len(encoded); i++ {
		require.Less(t, encoded[i], byte(0x80), "raw header must be 7-bit: %q", encoded)
	}
	decoded, err := new(mime.WordDecoder).DecodeHeader(encoded)
	require.NoError(t, err)
	assert.Equal(t, subject, decoded)
}

func TestEmailSender_CancelledContext(t *testing.T) {
	s := NewEmailSender(common.NotifyConfig{SMTPHost: "smtp.example.com", From: "stacker@example.com"})
	s.deliver = func(context.Context, *mail.Msg) error {
		t.Fatal("should not send")
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Send(ctx, "u1@example.com", "s", "b"), context.Canceled)
}

func TestEmailSender_RejectsHeaderInjection(t *testing.T) {
	s := NewEmailSender(common.NotifyConfig{SMTPHost: "smtp.example.com", From: "stacker@example.com"})
	s.deliver = func(context.Context, *mail.Msg) error {
		t.Fatal("should not send")
		return nil
	}
	assert.Error(t, s.Send(context.Background(), "a@example.com\r\nBcc: x@example.com", "s", "b"))
}

func TestNewEmailSender_Disabled(t *testing.T) {
	assert.Nil(t, NewEmailSender(common.NotifyConfig{}))
}

func TestWebhookSender_Send(t *testing.T) {
	var got WebhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	exec := sampleExecution()
	err := NewWebhookSender(time.Second).Send(context.Background(), srv.URL, WebhookPayload{
		Event: EventExecutionSent, UserID: "u1", YMCycle: exec.YMCycle, Execution: exec,
	})
	require.NoError(t, err)
	assert.Equal(t, EventExecutionSent, got.Event)
	require.NotNil(t, got.Execution)
	assert.Len(t, got.Execution.Items, 2)
}

func TestWebhookSender_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := NewWebhookSender(time.Second).Send(context.Background(), srv.URL, WebhookPayload{})
	var werr *WebhookError
	require.True(t, errors.As(err, &werr))
	assert.Equal(t, http.StatusInternalServerError, werr.StatusCode)
}

type fakeEmailer struct {
	to  []string
	err error
}

func (f *fakeEmailer) Send(_ context.Context, to, _, _ string) error {
	f.to = append(f.to, to)
	return f.err
}

type fakePoster struct {
	urls []string
	err  error
}

func (f *fakePoster) Send(_ context.Context, url string, _ WebhookPayload) error {
	f.urls = append(f.urls, url)
	return f.err
}

func TestService_DefaultsToEmail(t *testing.T) {
	em := &fakeEmailer{}
	svc := &Service{email: em, webhook: &fakePoster{}, logger: common.NewSilentLogger()}

	err := svc.Send(context.Background(), &models.Plan{UserID: "u1", Email: "u1@example.com"}, sampleExecution())
	require.NoError(t, err)
	assert.Equal(t, []string{"u1@example.com"}, em.to)
}

func TestService_NoChannelIsNoop(t *testing.T) {
	svc := &Service{logger: common.NewSilentLogger()}
	assert.NoError(t, svc.Send(context.Background(), &models.Plan{Email: "u1@example.com"}, sampleExecution()))
}

func TestService_AllChannelsAttemptedFirstErrorReturned(t *testing.T) {
	em := &fakeEmailer{err: errors.New("smtp down")}
	wh := &fakePoster{}
	svc := &Service{email: em, webhook: wh, logger: common.NewSilentLogger()}

	plan := &models.Plan{
		Email:                "u1@example.com",
		WebhookURL:           "https://hooks.example.com/x",
		NotificationChannels: []string{models.ChannelEmail, models.ChannelWebhook},
	}
	err := svc.Send(context.Background(), plan, sampleExecution())
	assert.ErrorContains(t, err, "smtp down")
	assert.Equal(t, []string{"https://hooks.example.com/x"}, wh.urls)
}

func TestService_ExplicitChannelUnavailable(t *testing.T) {
	svc := NewService(nil, nil, common.NewSilentLogger())
	plan := &models.Plan{Email: "u1@example.com", NotificationChannels: []string{models.ChannelEmail}}
	assert.ErrorIs(t, svc.Send(context.Background(), plan, sampleExecution()), ErrChannelUnavailable)
}

package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"calldesk-platform/internal/alerts"
	"calldesk-platform/internal/audit"
	"calldesk-platform/internal/calls"
	"calldesk-platform/internal/leads"
	"calldesk-platform/internal/messaging"
	"calldesk-platform/internal/outbound"

	"github.com/gin-gonic/gin"
)

const (
	testAuthToken = "test-auth-token"
	testBaseURL   = "https://desk.example.com"
)

type fixture struct {
	engine   *gin.Engine
	calls    *calls.MemoryRepo
	messages *messaging.MemoryRepo
	alerts   *alerts.Service
	audit    *audit.MemoryRepo
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := leads.NewMemoryDirectory()
	dir.Put(leads.Lead{ID: "lead-1", Name: "Pat Doe", Phone: "+15551234567"})

	callRepo := calls.NewMemoryRepo()
	msgRepo := messaging.NewMemoryRepo()
	alertSvc := alerts.NewService(alerts.NewMemoryRepo(), msgRepo, 4*time.Hour)
	auditRepo := audit.NewMemoryRepo()

	ch := outbound.ChannelFunc(func(ctx context.Context, to, body string) (string, error) {
		return "SM-out", nil
	})

	router := &Router{
		Calls:      calls.NewService(callRepo, dir),
		Messages:   messaging.NewService(msgRepo, dir, ch),
		Alerts:     alertSvc,
		FromNumber: "+15550001111",
		AgentForInbound: func(ctx context.Context, leadID string) (string, bool) {
			if leadID == "" {
				return "", false
			}
			return "agent-7", true
		},
	}

	verifier := NewSignatureVerifier(testAuthToken, testBaseURL, audit.NewService(auditRepo))

	e := gin.New()
	grp := e.Group("/webhooks/carrier", verifier.Middleware())
	grp.POST("/voice", router.HandleVoice)
	grp.POST("/status", router.HandleCallStatus)
	grp.POST("/sms", router.HandleSMS)
	grp.POST("/sms-status", router.HandleSMSStatus)

	return &fixture{engine: e, calls: callRepo, messages: msgRepo, alerts: alertSvc, audit: auditRepo}
}

func carrierSignature(fullURL string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	payload := fullURL
	for _, k := range keys {
		payload += k + params[k]
	}
	mac := hmac.New(sha1.New, []byte(testAuthToken))
	mac.Write([]byte(payload))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func (f *fixture) post(t *testing.T, path string, params map[string]string, signature string) *httptest.ResponseRecorder {
	t.Helper()
	form := url.Values{}
	for k, v := range params {
		form.Set(k, v)
	}
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Twilio-Signature", signature)
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

func (f *fixture) postSigned(t *testing.T, path string, params map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	return f.post(t, path, params, carrierSignature(testBaseURL+path, params))
}

func TestBadSignatureRejectedWithZeroWrites(t *testing.T) {
	f := newFixture(t)

	params := map[string]string{
		"MessageSid": "SM-bad",
		"From":       "+15551234567",
		"Body":       "hello",
	}
	w := f.post(t, "/webhooks/carrier/sms", params, "not-a-real-signature")
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}

	if msgs, _ := f.messages.ListByPhone(context.Background(), "+15551234567"); len(msgs) != 0 {
		t.Fatalf("rejected webhook must write nothing, got %d messages", len(msgs))
	}
	evs := f.audit.Events()
	if len(evs) != 1 || evs[0].Type != audit.EventTypeWebhookRejected {
		t.Fatalf("expected one webhook_rejected audit event, got %+v", evs)
	}
}

func TestHandleVoice_InboundRingsAgent(t *testing.T) {
	f := newFixture(t)

	w := f.postSigned(t, "/webhooks/carrier/voice", map[string]string{
		"CallSid":   "CA-in-1",
		"From":      "+15551234567",
		"To":        "+15550001111",
		"Direction": "inbound",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "<Client>agent-7</Client>") {
		t.Fatalf("expected dial to agent, got:\n%s", w.Body.String())
	}

	c, ok, err := f.calls.GetByCarrierCallID(context.Background(), "CA-in-1")
	if err != nil || !ok {
		t.Fatalf("call not recorded: ok=%v err=%v", ok, err)
	}
	if c.Status != calls.CallStatusRinging || c.LeadID != "lead-1" {
		t.Fatalf("unexpected call: %+v", c)
	}
}

func TestHandleVoice_UnmatchedInboundHangsUp(t *testing.T) {
	f := newFixture(t)

	w := f.postSigned(t, "/webhooks/carrier/voice", map[string]string{
		"CallSid":   "CA-in-2",
		"From":      "+19990001234",
		"To":        "+15550001111",
		"Direction": "inbound",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "<Hangup>") {
		t.Fatalf("expected hangup for unmatched caller, got:\n%s", w.Body.String())
	}

	c, ok, _ := f.calls.GetByCarrierCallID(context.Background(), "CA-in-2")
	if !ok || !c.Unmatched() {
		t.Fatalf("unmatched inbound call must still be recorded: ok=%v %+v", ok, c)
	}
}

func TestHandleVoice_OutboundClientLeg(t *testing.T) {
	f := newFixture(t)

	w := f.postSigned(t, "/webhooks/carrier/voice", map[string]string{
		"CallSid":   "CA-out-1",
		"From":      "client:user-42",
		"To":        "+15551234567",
		"Direction": "inbound",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	body := w.Body.String()
	if !strings.Contains(body, "<Number>+15551234567</Number>") || !strings.Contains(body, `callerId="+15550001111"`) {
		t.Fatalf("expected dial-through twiml, got:\n%s", body)
	}

	c, ok, _ := f.calls.GetByCarrierCallID(context.Background(), "CA-out-1")
	if !ok || c.Direction != calls.DirectionOutbound || c.UserID != "user-42" {
		t.Fatalf("unexpected outbound call: ok=%v %+v", ok, c)
	}
}

func TestHandleCallStatus_LifecycleAndReplay(t *testing.T) {
	f := newFixture(t)

	f.postSigned(t, "/webhooks/carrier/voice", map[string]string{
		"CallSid": "CA-1", "From": "client:user-42", "To": "+15551234567", "Direction": "inbound",
	})

	for _, status := range []string{"ringing", "in-progress"} {
		w := f.postSigned(t, "/webhooks/carrier/status", map[string]string{
			"CallSid": "CA-1", "CallStatus": status, "Direction": "outbound-dial",
		})
		if w.Code != http.StatusOK {
			t.Fatalf("status %s: got %d", status, w.Code)
		}
	}
	completed := map[string]string{
		"CallSid": "CA-1", "CallStatus": "completed", "Direction": "outbound-dial", "CallDuration": "42",
	}
	for i := 0; i < 3; i++ {
		w := f.postSigned(t, "/webhooks/carrier/status", completed)
		if w.Code != http.StatusOK {
			t.Fatalf("completed replay %d: got %d", i, w.Code)
		}
	}

	c, _, _ := f.calls.GetByCarrierCallID(context.Background(), "CA-1")
	if c.Status != calls.CallStatusCompleted || c.DurationSeconds != 42 {
		t.Fatalf("unexpected final call: %+v", c)
	}
}

func TestHandleSMS_DuplicateDeliveryOneMessage(t *testing.T) {
	f := newFixture(t)

	params := map[string]string{
		"MessageSid": "SM-in-1",
		"From":       "+15551234567",
		"To":         "+15550001111",
		"Body":       "call me back",
	}
	for i := 0; i < 3; i++ {
		w := f.postSigned(t, "/webhooks/carrier/sms", params)
		if w.Code != http.StatusOK {
			t.Fatalf("delivery %d: got %d", i, w.Code)
		}
	}

	msgs, err := f.messages.ListByPhone(context.Background(), "+15551234567")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected one message for redelivered webhook, got %d", len(msgs))
	}
	if msgs[0].LeadID != "lead-1" || msgs[0].Body != "call me back" {
		t.Fatalf("unexpected message: %+v", msgs[0])
	}

	// Alert fan-out is async; wait for it.
	deadline := time.Now().Add(2 * time.Second)
	for {
		open, _ := f.alerts.ListOpen(context.Background())
		if len(open) == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected exactly one alert, got %d", len(open))
		}
		time.Sleep(10 * time.Millisecond)
	}
}

type fakeClaims struct {
	mu   sync.Mutex
	held map[string]bool
}

func newFakeClaims() *fakeClaims { return &fakeClaims{held: map[string]bool{}} }

func (f *fakeClaims) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.held[key] {
		return false, nil
	}
	f.held[key] = true
	return true, nil
}

func (f *fakeClaims) Release(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.held, key)
	return nil
}

type flakyMessageRepo struct {
	*messaging.MemoryRepo
	failures int
}

func (r *flakyMessageRepo) Create(ctx context.Context, m messaging.Message) error {
	if r.failures > 0 {
		r.failures--
		return errors.New("db unavailable")
	}
	return r.MemoryRepo.Create(ctx, m)
}

type flakyCallRepo struct {
	*calls.MemoryRepo
	failures int
}

func (r *flakyCallRepo) Update(ctx context.Context, c calls.Call) error {
	if r.failures > 0 {
		r.failures--
		return errors.New("db unavailable")
	}
	return r.MemoryRepo.Update(ctx, c)
}

func newCarrierEngine(router *Router) *gin.Engine {
	gin.SetMode(gin.TestMode)
	verifier := NewSignatureVerifier(testAuthToken, testBaseURL, audit.NewService(audit.NewMemoryRepo()))
	e := gin.New()
	grp := e.Group("/webhooks/carrier", verifier.Middleware())
	grp.POST("/voice", router.HandleVoice)
	grp.POST("/status", router.HandleCallStatus)
	grp.POST("/sms", router.HandleSMS)
	grp.POST("/sms-status", router.HandleSMSStatus)
	return e
}

func postCarrier(t *testing.T, e *gin.Engine, path string, params map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	form := url.Values{}
	for k, v := range params {
		form.Set(k, v)
	}
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Twilio-Signature", carrierSignature(testBaseURL+path, params))
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)
	return w
}

func TestHandleSMS_PersistFailureReleasesClaim(t *testing.T) {
	dir := leads.NewMemoryDirectory()
	dir.Put(leads.Lead{ID: "lead-1", Name: "Pat Doe", Phone: "+15551234567"})
	repo := &flakyMessageRepo{MemoryRepo: messaging.NewMemoryRepo(), failures: 1}
	router := &Router{
		Messages: messaging.NewService(repo, dir, nil),
		Claims:   newFakeClaims(),
	}
	e := newCarrierEngine(router)

	params := map[string]string{
		"MessageSid": "SM-in-9",
		"From":       "+15551234567",
		"To":         "+15550001111",
		"Body":       "hello",
	}
	if w := postCarrier(t, e, "/webhooks/carrier/sms", params); w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 while the db is down, got %d", w.Code)
	}

	// The carrier retries after the 5xx; the claim must not swallow it.
	if w := postCarrier(t, e, "/webhooks/carrier/sms", params); w.Code != http.StatusOK {
		t.Fatalf("retry after failure: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	msgs, err := repo.ListByPhone(context.Background(), "+15551234567")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected the retry to persist one message, got %d", len(msgs))
	}
}

func TestHandleCallStatus_ApplyFailureReleasesClaim(t *testing.T) {
	dir := leads.NewMemoryDirectory()
	repo := &flakyCallRepo{MemoryRepo: calls.NewMemoryRepo()}
	router := &Router{
		Calls:      calls.NewService(repo, dir),
		Claims:     newFakeClaims(),
		FromNumber: "+15550001111",
	}
	e := newCarrierEngine(router)

	postCarrier(t, e, "/webhooks/carrier/voice", map[string]string{
		"CallSid": "CA-9", "From": "client:user-42", "To": "+15551234567", "Direction": "inbound",
	})
	for _, status := range []string{"ringing", "in-progress"} {
		if w := postCarrier(t, e, "/webhooks/carrier/status", map[string]string{
			"CallSid": "CA-9", "CallStatus": status, "Direction": "outbound-dial",
		}); w.Code != http.StatusOK {
			t.Fatalf("status %s: got %d", status, w.Code)
		}
	}

	completed := map[string]string{
		"CallSid": "CA-9", "CallStatus": "completed", "Direction": "outbound-dial", "CallDuration": "42",
	}
	repo.failures = 1
	if w := postCarrier(t, e, "/webhooks/carrier/status", completed); w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 while the db is down, got %d", w.Code)
	}
	if w := postCarrier(t, e, "/webhooks/carrier/status", completed); w.Code != http.StatusOK {
		t.Fatalf("retry after failure: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	c, ok, _ := repo.GetByCarrierCallID(context.Background(), "CA-9")
	if !ok || c.Status != calls.CallStatusCompleted || c.DurationSeconds != 42 {
		t.Fatalf("retry must complete the call: ok=%v %+v", ok, c)
	}
}

func TestHandleSMSStatus_UpdatesLedger(t *testing.T) {
	f := newFixture(t)

	// Seed an outbound message the callback refers to.
	m := messaging.Message{
		ID: "m1", LeadID: "lead-1", Phone: "+15551234567",
		Direction: messaging.DirectionOutbound, Body: "hi",
		CarrierMessageID: "SM-out-1", Status: messaging.StatusSending,
		CreatedAt: time.Now().UTC(),
	}
	if err := f.messages.Create(context.Background(), m); err != nil {
		t.Fatalf("seed: %v", err)
	}

	w := f.postSigned(t, "/webhooks/carrier/sms-status", map[string]string{
		"MessageSid": "SM-out-1", "MessageStatus": "delivered",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	got, ok, _ := f.messages.GetByCarrierMessageID(context.Background(), "SM-out-1")
	if !ok || got.Status != messaging.StatusDelivered {
		t.Fatalf("expected delivered, got ok=%v %+v", ok, got)
	}

	// Unknown carrier id is acknowledged, not retried forever.
	w = f.postSigned(t, "/webhooks/carrier/sms-status", map[string]string{
		"MessageSid": "SM-gone", "MessageStatus": "delivered",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("unknown sid should be acknowledged, got %d", w.Code)
	}
}

package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/onnwee/chatgov/dispatch"
	"github.com/onnwee/chatgov/governance"
	"github.com/onnwee/chatgov/session"
	"github.com/onnwee/chatgov/settings"
	"github.com/onnwee/chatgov/store"
	"github.com/onnwee/chatgov/testutil"
)

type testServer struct {
	handler http.Handler
	clock   *governance.ManualClock
	store   *store.Memory
	sess    *session.Session
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerEnv(t, map[string]string{"RATE_LIMIT_ENABLED": "0"})
}

// newTestServerEnv builds the test server after applying env, which the mux
// reads at construction.
func newTestServerEnv(t *testing.T, env map[string]string) *testServer {
	t.Helper()
	t.Setenv("ADMIN_USERNAME", "")
	t.Setenv("ADMIN_PASSWORD", "")
	t.Setenv("ADMIN_TOKEN", "")
	for k, v := range env {
		t.Setenv(k, v)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	clock := governance.NewManualClock(10)
	st := store.NewMemory()
	ps := settings.New(governance.DefaultCooldownPolicy(), map[string]governance.CommandPolicy{
		"raid":    {UseEventCooldown: true, MaxUsesPerCooldownPeriod: 1, RespectsGlobalEventCooldown: true, RecordsCategoryUse: true},
		"weather": {UseEventCooldown: true, MaxUsesPerCooldownPeriod: 5, RespectsGlobalEventCooldown: true},
	})
	sess, err := session.Open(ctx, st, "test", clock, governance.DefaultTables(), ps)
	if err != nil {
		t.Fatalf("session.Open: %v", err)
	}
	disp := dispatch.New(sess.Engine(), ps, dispatch.WithReplier(&testutil.RecordingReplier{}))
	disp.Register("raid", func(context.Context, dispatch.Request) error { return nil })
	disp.Register("weather", func(context.Context, dispatch.Request) error { return nil })

	h := NewMux(ctx, Deps{Session: sess, Store: st, Dispatcher: disp, Clock: clock})
	return &testServer{handler: h, clock: clock, store: st, sess: sess}
}

func (ts *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

func TestHealthAndReadiness(t *testing.T) {
	ts := newTestServer(t)
	if rr := ts.do(t, http.MethodGet, "/healthz", ""); rr.Code != http.StatusOK || rr.Body.String() != "ok" {
		t.Errorf("healthz = %d %q", rr.Code, rr.Body.String())
	}
	rr := ts.do(t, http.MethodGet, "/readyz", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("readyz = %d", rr.Code)
	}
	if got := decode[map[string]string](t, rr); got["status"] != "ready" || got["save_id"] != "test" {
		t.Errorf("readyz body = %v", got)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	if rr := ts.do(t, http.MethodGet, "/metrics", ""); rr.Code != http.StatusOK {
		t.Errorf("metrics = %d", rr.Code)
	}
}

func TestCommandFlow(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(t, http.MethodGet, "/governance/commands/raid", "")
	st := decode[map[string]any](t, rr)
	if st["allowed"] != true || st["category"] != "bad" {
		t.Fatalf("raid status before use = %v", st)
	}

	rr = ts.do(t, http.MethodPost, "/governance/commands/raid", `{"user":"alice"}`)
	if rr.Code != http.StatusOK || decode[outcomeResponse](t, rr).Outcome != "granted" {
		t.Fatalf("first raid = %d %s", rr.Code, rr.Body.String())
	}
	rr = ts.do(t, http.MethodPost, "/governance/commands/raid", `{"user":"bob"}`)
	if rr.Code != http.StatusTooManyRequests || decode[outcomeResponse](t, rr).Outcome != "denied" {
		t.Fatalf("second raid = %d %s", rr.Code, rr.Body.String())
	}
	rr = ts.do(t, http.MethodPost, "/governance/commands/dance", `{"user":"bob"}`)
	if rr.Code != http.StatusNotFound {
		t.Errorf("unknown command = %d", rr.Code)
	}
	rr = ts.do(t, http.MethodPost, "/governance/commands/raid", `{"user":`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("malformed body = %d", rr.Code)
	}

	// dual bookkeeping put one use on the bad category
	ev := decode[map[string]any](t, ts.do(t, http.MethodGet, "/governance/events/bad", ""))
	if ev["used"] != float64(1) || ev["limit"] != float64(3) {
		t.Errorf("bad status = %v", ev)
	}
}

func TestEventPurchaseFlow(t *testing.T) {
	ts := newTestServer(t)
	if rr := ts.do(t, http.MethodPost, "/governance/events/doom/purchase", `{"user":"a"}`); rr.Code != http.StatusOK {
		t.Fatalf("first doom = %d %s", rr.Code, rr.Body.String())
	}
	if rr := ts.do(t, http.MethodPost, "/governance/events/doom/purchase", `{"user":"a"}`); rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second doom = %d, want 429", rr.Code)
	}
	ev := decode[map[string]any](t, ts.do(t, http.MethodGet, "/governance/events/doom", ""))
	if ev["allowed"] != false || ev["remaining"] != float64(0) {
		t.Errorf("doom status = %v", ev)
	}

	// advance past the window and the category opens again
	ts.do(t, http.MethodPut, "/admin/clock", `{"day":30}`)
	ev = decode[map[string]any](t, ts.do(t, http.MethodGet, "/governance/events/doom", ""))
	if ev["allowed"] != true {
		t.Errorf("doom after window = %v", ev)
	}
}

func TestChatIRC(t *testing.T) {
	ts := newTestServer(t)
	body := strings.Join([]string{
		testutil.PrivmsgLine("host", "alice", "!weather"),
		testutil.PrivmsgLine("host", "bob", "hello"),
		"PING :tmi.twitch.tv",
		testutil.PrivmsgLine("host", "carol", "!raid"),
		testutil.PrivmsgLine("host", "dave", "!raid"),
	}, "\r\n")
	rr := ts.do(t, http.MethodPost, "/chat/irc", body)
	if rr.Code != http.StatusOK {
		t.Fatalf("chat/irc = %d", rr.Code)
	}
	got := decode[map[string]int](t, rr)
	if got["granted"] != 2 || got["denied"] != 1 || got["ignored"] != 2 {
		t.Errorf("counts = %v", got)
	}
}

func TestStatusEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.sess.Engine().RecordEventUse("good")
	rr := ts.do(t, http.MethodGet, "/governance/status", "")
	got := decode[statusResponse](t, rr)
	if got.Today != 10 || got.LastCleanupDay != 10 || len(got.Records) != 1 || got.Records[0].Key != "good" {
		t.Errorf("status = %+v", got)
	}
}

func TestAdminPolicy(t *testing.T) {
	ts := newTestServer(t)
	rr := ts.do(t, http.MethodPut, "/admin/policy", `{"global":{"eventCooldownsEnabled":true,"cooldownWindowDays":5,"maxGoodEvents":1,"maxBadEvents":1,"maxNeutralEvents":1},"commands":{"Weather":{"useEventCooldown":true,"maxUsesPerCooldownPeriod":1}}}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("PUT policy = %d %s", rr.Code, rr.Body.String())
	}
	p := decode[settings.Policies](t, ts.do(t, http.MethodGet, "/admin/policy", ""))
	if p.Global.CooldownWindowDays != 5 || p.Commands["weather"].MaxUsesPerCooldownPeriod != 1 {
		t.Errorf("policy = %+v", p)
	}
	if _, ok := p.Commands["raid"]; ok {
		t.Error("PUT should replace the command set")
	}
	if rr := ts.do(t, http.MethodPut, "/admin/policy", `{"global":{"cooldownWindowDays":-1}}`); rr.Code != http.StatusBadRequest {
		t.Errorf("negative window = %d", rr.Code)
	}
}

func TestAdminCleanupAndSave(t *testing.T) {
	ts := newTestServer(t)
	got := decode[map[string]any](t, ts.do(t, http.MethodPost, "/admin/cleanup", ""))
	if got["ran"] != false {
		t.Errorf("cleanup on the open day = %v, want no-op", got)
	}
	ts.clock.Advance(1)
	got = decode[map[string]any](t, ts.do(t, http.MethodPost, "/admin/cleanup", ""))
	if got["ran"] != true || got["last_cleanup_day"] != float64(11) {
		t.Errorf("cleanup on a new day = %v", got)
	}

	ts.sess.Engine().RecordEventUse("bad")
	if rr := ts.do(t, http.MethodPost, "/admin/save", ""); rr.Code != http.StatusOK {
		t.Fatalf("save = %d", rr.Code)
	}
	snap, found, err := ts.store.Load(context.Background(), "test")
	if err != nil || !found || len(snap.EventUsage["bad"].Days) != 1 {
		t.Errorf("saved snapshot = %+v found=%v err=%v", snap, found, err)
	}
}

func TestAdminClockRejects(t *testing.T) {
	ts := newTestServer(t)
	if rr := ts.do(t, http.MethodPut, "/admin/clock", `{"day":-3}`); rr.Code != http.StatusBadRequest {
		t.Errorf("negative day = %d", rr.Code)
	}

	h := NewHandlers(Deps{Session: ts.sess, Store: ts.store})
	rr := httptest.NewRecorder()
	h.HandleAdminClock(rr, httptest.NewRequest(http.MethodPut, "/admin/clock", strings.NewReader(`{"day":1}`)))
	if rr.Code != http.StatusConflict {
		t.Errorf("elapsed clock = %d, want 409", rr.Code)
	}
}

func TestAdminRequiresAuthWhenConfigured(t *testing.T) {
	ts := newTestServer(t)
	t.Setenv("ADMIN_TOKEN", "s3cret")
	h := NewMux(context.Background(), Deps{Session: ts.sess, Store: ts.store, Clock: ts.clock})

	req := httptest.NewRequest(http.MethodGet, "/admin/policy", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("no token = %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/admin/policy", nil)
	req.Header.Set("X-Admin-Token", "s3cret")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("with token = %d", rr.Code)
	}
}

func TestStatusEndpointsDoNotWrite(t *testing.T) {
	ts := newTestServer(t)
	for i := 0; i < 50; i++ {
		ts.do(t, http.MethodGet, fmt.Sprintf("/governance/events/junk%d", i), "")
		ts.do(t, http.MethodGet, fmt.Sprintf("/governance/commands/junk%d", i), "")
	}
	ts.do(t, http.MethodGet, "/governance/commands/raid", "")
	if recs := ts.sess.Engine().Records(); len(recs) != 0 {
		t.Fatalf("GET endpoints created %d ledger records", len(recs))
	}

	ts.sess.Engine().RecordCommandUse("raid", true)
	cmd := decode[map[string]any](t, ts.do(t, http.MethodGet, "/governance/commands/raid", ""))
	if cmd["allowed"] != false || cmd["used"] != float64(1) {
		t.Errorf("raid status = %v", cmd)
	}
}

func TestGovernanceWritesAreRateLimited(t *testing.T) {
	ts := newTestServerEnv(t, map[string]string{
		"RATE_LIMIT_ENABLED":         "1",
		"RATE_LIMIT_REQUESTS_PER_IP": "2",
		"RATE_LIMIT_WINDOW_SECONDS":  "60",
	})
	tests := []struct{ path, addr string }{
		{"/governance/events/good/purchase", "203.0.113.7:1234"},
		{"/governance/commands/weather", "203.0.113.8:1234"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			var last int
			for i := 0; i < 3; i++ {
				req := httptest.NewRequest(http.MethodPost, tt.path, strings.NewReader(`{"user":"a"}`))
				req.RemoteAddr = tt.addr
				rr := httptest.NewRecorder()
				ts.handler.ServeHTTP(rr, req)
				last = rr.Code
			}
			if last != http.StatusTooManyRequests {
				t.Fatalf("third request = %d, want 429", last)
			}
		})
	}
	if rr := ts.do(t, http.MethodGet, "/governance/events/good", ""); rr.Code != http.StatusOK {
		t.Fatalf("status reads are not rate limited, got %d", rr.Code)
	}
}

package dispatch

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	twitch "github.com/gempir/go-twitch-irc/v4"

	"github.com/onnwee/chatgov/governance"
	"github.com/onnwee/chatgov/settings"
	"github.com/onnwee/chatgov/testutil"
)

func newTestDispatcher(t *testing.T, gp governance.CooldownPolicy, cmds map[string]governance.CommandPolicy) (*Dispatcher, *governance.Engine, *testutil.RecordingReplier) {
	t.Helper()
	eng := governance.New(governance.NewManualClock(10), governance.DefaultTables())
	rep := &testutil.RecordingReplier{}
	d := New(eng, settings.New(gp, cmds), WithReplier(rep))
	return d, eng, rep
}

func noop(context.Context, Request) error { return nil }

func TestDispatchOutcomes(t *testing.T) {
	gp := governance.DefaultCooldownPolicy()
	d, eng, rep := newTestDispatcher(t, gp, map[string]governance.CommandPolicy{
		"raid": {UseEventCooldown: true, MaxUsesPerCooldownPeriod: 1, RespectsGlobalEventCooldown: true, RecordsCategoryUse: true},
	})
	d.Register("Raid", noop)

	ctx := context.Background()
	if out, err := d.Dispatch(ctx, Request{Command: "unknown", User: "a"}); out != OutcomeIgnored || err != nil {
		t.Fatalf("unknown command = %v, %v", out, err)
	}
	if out, err := d.Dispatch(ctx, Request{Command: "raid", User: "a"}); out != OutcomeGranted || err != nil {
		t.Fatalf("first raid = %v, %v", out, err)
	}
	if out, _ := d.Dispatch(ctx, Request{Command: "RAID", User: "b"}); out != OutcomeDenied {
		t.Fatalf("second raid = %v, want denied", out)
	}

	replies := rep.All()
	if len(replies) != 1 || !strings.Contains(replies[0], "@b !raid is on cooldown") {
		t.Errorf("replies = %v", replies)
	}
	if got := eng.EventStatus("bad", gp).Used; got != 1 {
		t.Errorf("bad category uses = %d, want 1 (dual bookkeeping)", got)
	}
}

func TestDispatchFailedActionRecordsNothing(t *testing.T) {
	gp := governance.DefaultCooldownPolicy()
	d, eng, _ := newTestDispatcher(t, gp, map[string]governance.CommandPolicy{
		"weather": {UseEventCooldown: true, MaxUsesPerCooldownPeriod: 5},
	})
	boom := errors.New("no map loaded")
	d.Register("weather", func(context.Context, Request) error { return boom })

	out, err := d.Dispatch(context.Background(), Request{Command: "weather", User: "a"})
	if out != OutcomeFailed || !errors.Is(err, boom) {
		t.Fatalf("Dispatch = %v, %v", out, err)
	}
	if got := eng.CommandStatus("weather", governance.CommandPolicy{}, gp).Used; got != 0 {
		t.Errorf("weather uses = %d, want 0", got)
	}
}

func TestDispatchWithoutCategoryRecording(t *testing.T) {
	gp := governance.DefaultCooldownPolicy()
	d, eng, _ := newTestDispatcher(t, gp, map[string]governance.CommandPolicy{
		"weather": {UseEventCooldown: true, MaxUsesPerCooldownPeriod: 5, RespectsGlobalEventCooldown: true},
	})
	d.Register("weather", noop)
	if out, _ := d.Dispatch(context.Background(), Request{Command: "weather", User: "a"}); out != OutcomeGranted {
		t.Fatalf("Dispatch = %v", out)
	}
	if got := eng.EventStatus("neutral", gp).Used; got != 0 {
		t.Errorf("neutral uses = %d, want 0", got)
	}
}

func TestPurchaseEvent(t *testing.T) {
	gp := governance.DefaultCooldownPolicy()
	gp.MaxBadEvents = 1
	d, _, rep := newTestDispatcher(t, gp, nil)
	ctx := context.Background()

	if out, _ := d.PurchaseEvent(ctx, "Bad", "a", nil); out != OutcomeGranted {
		t.Fatalf("first purchase = %v", out)
	}
	if out, _ := d.PurchaseEvent(ctx, "bad", "a", nil); out != OutcomeDenied {
		t.Fatalf("second purchase = %v, want denied", out)
	}
	if r := rep.All(); len(r) != 1 || !strings.Contains(r[0], "bad events are on cooldown") {
		t.Errorf("replies = %v", r)
	}
}

func TestPurchaseEventCooldownsDisabled(t *testing.T) {
	gp := governance.DefaultCooldownPolicy()
	gp.EventCooldownsEnabled = false
	d, eng, _ := newTestDispatcher(t, gp, nil)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if out, _ := d.PurchaseEvent(ctx, "doom", "a", noop); out != OutcomeGranted {
			t.Fatalf("purchase %d = %v", i, out)
		}
	}
	if got := eng.EventStatus("doom", gp).Used; got != 3 {
		t.Errorf("doom uses = %d, want 3", got)
	}
}

func TestHandleMessagePrefix(t *testing.T) {
	d, _, _ := newTestDispatcher(t, governance.DefaultCooldownPolicy(), nil)
	var got Request
	d.Register("weather", func(_ context.Context, r Request) error { got = r; return nil })

	tests := []struct {
		text string
		want Outcome
	}{
		{"hello chat", OutcomeIgnored},
		{"!", OutcomeIgnored},
		{"!dance", OutcomeIgnored},
		{"  !Weather rain heavy", OutcomeGranted},
	}
	for _, tt := range tests {
		msg := twitch.PrivateMessage{User: twitch.User{Name: "viewer"}, Channel: "host", Message: tt.text}
		if out, _ := d.HandleMessage(context.Background(), msg); out != tt.want {
			t.Errorf("HandleMessage(%q) = %v, want %v", tt.text, out, tt.want)
		}
	}
	if got.Command != "weather" || got.User != "viewer" || len(got.Args) != 2 || got.Args[0] != "rain" {
		t.Errorf("request = %+v", got)
	}
}

func TestHandleRawLine(t *testing.T) {
	d, _, _ := newTestDispatcher(t, governance.DefaultCooldownPolicy(), nil)
	var users []string
	d.Register("raid", func(_ context.Context, r Request) error { users = append(users, r.User); return nil })
	ctx := context.Background()

	if out, _ := d.HandleRawLine(ctx, testutil.PrivmsgLine("host", "alice", "!raid")+"\r\n"); out != OutcomeGranted {
		t.Fatalf("PRIVMSG line = %v, want granted", out)
	}
	if out, _ := d.HandleRawLine(ctx, "PING :tmi.twitch.tv"); out != OutcomeIgnored {
		t.Errorf("PING line = %v, want ignored", out)
	}
	if out, _ := d.HandleRawLine(ctx, "   "); out != OutcomeIgnored {
		t.Errorf("blank line = %v, want ignored", out)
	}
	if len(users) != 1 || users[0] != "alice" {
		t.Errorf("users = %v", users)
	}
}

func TestOutcomeString(t *testing.T) {
	for o, want := range map[Outcome]string{OutcomeIgnored: "ignored", OutcomeGranted: "granted", OutcomeDenied: "denied", OutcomeFailed: "failed"} {
		if o.String() != want {
			t.Errorf("%d.String() = %q, want %q", o, o.String(), want)
		}
	}
}

func TestCustomPrefix(t *testing.T) {
	eng := governance.New(governance.NewManualClock(0), governance.DefaultTables())
	d := New(eng, settings.New(governance.DefaultCooldownPolicy(), nil), WithPrefix("?"))
	d.Register("raid", noop)
	msg := twitch.PrivateMessage{User: twitch.User{Name: "v"}, Message: "?raid"}
	if out, _ := d.HandleMessage(context.Background(), msg); out != OutcomeGranted {
		t.Errorf("?raid = %v", out)
	}
}

func TestDispatchConcurrentCallersRespectCap(t *testing.T) {
	gp := governance.DefaultCooldownPolicy()
	d, eng, _ := newTestDispatcher(t, gp, map[string]governance.CommandPolicy{
		"raid": {UseEventCooldown: true, MaxUsesPerCooldownPeriod: 1},
	})
	d.Register("raid", noop)

	var wg sync.WaitGroup
	outcomes := make(chan Outcome, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, _ := d.Dispatch(context.Background(), Request{Command: "raid", User: "u"})
			outcomes <- out
		}()
	}
	wg.Wait()
	close(outcomes)

	granted := 0
	for out := range outcomes {
		if out == OutcomeGranted {
			granted++
		}
	}
	if granted != 1 {
		t.Fatalf("granted = %d, want exactly 1 under a cap of 1", granted)
	}
	if st := eng.CommandStatus("raid", governance.CommandPolicy{UseEventCooldown: true, MaxUsesPerCooldownPeriod: 1}, gp); st.Used != 1 {
		t.Fatalf("recorded uses = %d, want 1", st.Used)
	}
}

package resolver

import (
	"errors"
	"testing"
	"time"

	"github.com/devicelab-dev/onboard-runner/pkg/core"
	"github.com/devicelab-dev/onboard-runner/pkg/driver/mock"
	"github.com/devicelab-dev/onboard-runner/pkg/flow"
	"github.com/google/go-cmp/cmp"
)

const (
	primaryExpr = `//*[@resource-id="btn_primary"]`
	leagueExpr  = `//*[@resource-id="txt_name"]`
	teamExpr    = `//*[@text="Toronto Maple Leafs"]`
)

func onboardingSession() *mock.Session {
	return mock.New(
		mock.NewScreen("welcome", ".WelcomeActivity").
			Match(primaryExpr, "n1").
			Node("n1", map[core.Attribute]string{core.AttrText: "Get Started", core.AttrSelected: "false"}).
			MatchAfter(`//*[@text="Allow"]`, 300*time.Millisecond, "n2").
			Match(leagueExpr, "l1", "l2", "l3").
			Node("l1", map[core.Attribute]string{core.AttrText: "NHL"}).
			Node("l2", map[core.Attribute]string{core.AttrText: "NFL"}).
			Node("l3", map[core.Attribute]string{core.AttrText: "NBA"}).
			Match(teamExpr, "row1", "row2").
			Within("row1", ".//*[@clickable='true']", "btn1", "btn1b").
			Match(`//*[@text="Header"]`, "h1"),
	)
}

func TestResolveOne_ImmediateMatch(t *testing.T) {
	session := onboardingSession()
	r := New(session)

	start := time.Now()
	el, err := r.ResolveOne(flow.ByID("btn_primary"), time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if el.Handle() != "n1" {
		t.Errorf("Handle()=%q, want n1", el.Handle())
	}
	if el.Expression() != primaryExpr {
		t.Errorf("Expression()=%q", el.Expression())
	}
	if time.Since(start) > 100*time.Millisecond {
		t.Errorf("immediate match took %v", time.Since(start))
	}
	if n := session.Queries(primaryExpr); n != 1 {
		t.Errorf("expected 1 query, got %d", n)
	}
}

func TestResolveOne_AppearsDuringWait(t *testing.T) {
	session := onboardingSession()
	r := New(session)

	el, err := r.ResolveOne(flow.ByText("Allow"), 2*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if el.Handle() != "n2" {
		t.Errorf("Handle()=%q, want n2", el.Handle())
	}
	if el.Elapsed() < 300*time.Millisecond {
		t.Errorf("Elapsed()=%v, expected at least 300ms", el.Elapsed())
	}
	if el.Elapsed() > 300*time.Millisecond+DefaultInterval+100*time.Millisecond {
		t.Errorf("Elapsed()=%v, expected within one interval of appearance", el.Elapsed())
	}
	if n := session.Queries(`//*[@text="Allow"]`); n < 2 {
		t.Errorf("expected multiple polls, got %d", n)
	}
}

func TestResolveOne_Timeout(t *testing.T) {
	session := onboardingSession()
	r := New(session)
	timeout := 500 * time.Millisecond

	start := time.Now()
	_, err := r.ResolveOne(flow.ByText("Never"), timeout)
	elapsed := time.Since(start)

	if !errors.Is(err, core.ErrElementNotFound) {
		t.Fatalf("expected ErrElementNotFound, got %v", err)
	}
	if elapsed < timeout {
		t.Errorf("failed after %v, before the %v timeout", elapsed, timeout)
	}
	if elapsed > timeout+DefaultInterval+100*time.Millisecond {
		t.Errorf("failed after %v, expected within one interval of the timeout", elapsed)
	}

	ee, ok := core.AsExecutionError(err)
	if !ok {
		t.Fatalf("expected ExecutionError, got %T", err)
	}
	if got := ee.Detail("expression"); got != `//*[@text="Never"]` {
		t.Errorf("expression detail=%q", got)
	}
	if got := ee.Detail("timeoutMs"); got != "500" {
		t.Errorf("timeoutMs detail=%q", got)
	}
	if ee.Detail("elapsedMs") == "" {
		t.Error("expected elapsedMs detail")
	}
	// Polls at 0, 200, 400 and the deadline
	if n := session.Queries(`//*[@text="Never"]`); n < 3 || n > 4 {
		t.Errorf("expected 3-4 polls, got %d", n)
	}
}

func TestResolveOne_ZeroTimeoutPollsOnce(t *testing.T) {
	session := onboardingSession()
	r := New(session)

	_, err := r.ResolveOne(flow.ByText("Allow"), 0)
	if !errors.Is(err, core.ErrElementNotFound) {
		t.Fatalf("expected ErrElementNotFound, got %v", err)
	}
	if n := session.Queries(`//*[@text="Allow"]`); n != 1 {
		t.Errorf("expected exactly 1 poll, got %d", n)
	}
}

func TestResolveOne_TransportErrorNotRetried(t *testing.T) {
	session := onboardingSession()
	session.QueryErr = core.ErrTransport.WithMessage("connection refused")
	r := New(session)

	start := time.Now()
	_, err := r.ResolveOne(flow.ByID("btn_primary"), 5*time.Second)
	if !errors.Is(err, core.ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
	if errors.Is(err, core.ErrElementNotFound) {
		t.Error("transport error must not be reported as not found")
	}
	if time.Since(start) > 100*time.Millisecond {
		t.Errorf("transport error returned after %v", time.Since(start))
	}
	if n := session.Queries(primaryExpr); n != 1 {
		t.Errorf("expected 1 query, got %d", n)
	}
}

func TestResolveOne_InvalidLocator(t *testing.T) {
	r := New(onboardingSession())
	_, err := r.ResolveOne(flow.Locator{Clickable: true}, time.Second)
	if !errors.Is(err, core.ErrInvalidLocator) {
		t.Fatalf("expected ErrInvalidLocator, got %v", err)
	}
}

func TestResolveOne_ClickableDescendant(t *testing.T) {
	r := New(onboardingSession())

	el, err := r.ResolveOne(flow.Locator{Text: "Toronto Maple Leafs", Clickable: true}, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if el.Handle() != "btn1" {
		t.Errorf("expected nearest clickable descendant btn1, got %q", el.Handle())
	}
}

func TestResolveOne_NoClickableDescendant(t *testing.T) {
	r := New(onboardingSession())

	_, err := r.ResolveOne(flow.Locator{Text: "Header", Clickable: true}, 0)
	if !errors.Is(err, core.ErrElementNotFound) {
		t.Fatalf("expected ErrElementNotFound, got %v", err)
	}
}

func TestResolveAll(t *testing.T) {
	r := New(onboardingSession())

	elements, err := r.ResolveAll(flow.ByID("txt_name"), time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var texts []string
	for _, el := range elements {
		text, err := el.Text()
		if err != nil {
			t.Fatalf("Text(): %v", err)
		}
		texts = append(texts, text)
	}
	if diff := cmp.Diff([]string{"NHL", "NFL", "NBA"}, texts); diff != "" {
		t.Errorf("texts mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveAll_ClickableDropsMatchesWithoutDescendant(t *testing.T) {
	r := New(onboardingSession())

	elements, err := r.ResolveAll(flow.Locator{Text: "Toronto Maple Leafs", Clickable: true}, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(elements) != 1 || elements[0].Handle() != "btn1" {
		t.Errorf("expected [btn1], got %d elements", len(elements))
	}
}

func TestElement_Reads(t *testing.T) {
	session := onboardingSession()
	r := New(session)

	el, err := r.ResolveOne(flow.ByID("btn_primary"), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	text, err := el.Text()
	if err != nil || text != "Get Started" {
		t.Errorf("Text()=%q, %v", text, err)
	}
	selected, err := el.Selected()
	if err != nil || selected {
		t.Errorf("Selected()=%v, %v", selected, err)
	}
	if err := el.Tap(); err != nil {
		t.Errorf("Tap(): %v", err)
	}
	if diff := cmp.Diff([]core.NodeHandle{"n1"}, session.Taps()); diff != "" {
		t.Errorf("taps mismatch (-want +got):\n%s", diff)
	}
}

func TestElement_Selected(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		want    bool
		wantErr error
	}{
		{"true", "true", true, nil},
		{"false", "false", false, nil},
		{"unset", "", false, nil},
		{"not a bool", "yes", false, core.ErrTransport},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session := mock.New(mock.NewScreen("home", ".HomeActivity").
				Match(primaryExpr, "tab").
				Node("tab", map[core.Attribute]string{core.AttrSelected: tt.value}))

			el, err := New(session).ResolveOne(flow.ByID("btn_primary"), 0)
			if err != nil {
				t.Fatalf("ResolveOne() error = %v", err)
			}
			got, err := el.Selected()
			if got != tt.want {
				t.Errorf("Selected() = %v, want %v", got, tt.want)
			}
			if tt.wantErr == nil && err != nil {
				t.Errorf("Selected() error = %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Selected() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

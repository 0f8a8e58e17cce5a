package appium

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

// writeJSON encodes data as JSON to the response writer.
func writeJSON(w http.ResponseWriter, data interface{}) {
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, errType, msg string) {
	w.WriteHeader(status)
	writeJSON(w, map[string]interface{}{
		"value": map[string]interface{}{"error": errType, "message": msg},
	})
}

func elementRefs(ids ...string) []interface{} {
	out := make([]interface{}, len(ids))
	for i, id := range ids {
		out[i] = map[string]interface{}{w3cElementKey: id}
	}
	return out
}

func TestClient_Connect(t *testing.T) {
	var gotCaps map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/session" && r.Method == "POST" {
			var body struct {
				Capabilities struct {
					AlwaysMatch map[string]interface{} `json:"alwaysMatch"`
				} `json:"capabilities"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			gotCaps = body.Capabilities.AlwaysMatch
			writeJSON(w, map[string]interface{}{
				"value": map[string]interface{}{
					"sessionId":    "test-session-123",
					"capabilities": map[string]interface{}{"platformName": "Android"},
				},
			})
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(server.URL + "/")
	err := client.Connect(map[string]interface{}{
		"platformName":      "Android",
		"appium:appPackage": "com.fivemobile.thescore",
		"appium:noReset":    true,
	})
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	if client.SessionID() != "test-session-123" {
		t.Errorf("Expected sessionID 'test-session-123', got '%s'", client.SessionID())
	}
	if client.Platform() != "android" {
		t.Errorf("Expected platform 'android', got '%s'", client.Platform())
	}
	if gotCaps["appium:appPackage"] != "com.fivemobile.thescore" {
		t.Errorf("capabilities not passed through: %v", gotCaps)
	}
}

func TestClient_ConnectRetriesUntilServerUp(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			// Not JSON, like a proxy in front of a server that is still starting
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte("<html>starting</html>"))
			return
		}
		writeJSON(w, map[string]interface{}{
			"value": map[string]interface{}{"sessionId": "s1"},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	client.ConnectInterval = 10 * time.Millisecond

	if err := client.Connect(map[string]interface{}{}); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if n := atomic.LoadInt32(&attempts); n != 3 {
		t.Errorf("expected 3 attempts, got %d", n)
	}
}

func TestClient_ConnectGivesUp(t *testing.T) {
	client := NewClient("http://127.0.0.1:1")
	client.ConnectRetries = 2
	client.ConnectInterval = time.Millisecond

	err := client.Connect(map[string]interface{}{})
	if err == nil {
		t.Fatal("expected error for unreachable server")
	}
	if !strings.Contains(err.Error(), "after 3 attempts") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestClient_ConnectZeroRetriesTriesOnce(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>starting</html>"))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	client.ConnectRetries = 0
	client.ConnectInterval = time.Millisecond

	done := make(chan error, 1)
	go func() { done <- client.Connect(map[string]interface{}{}) }()

	select {
	case err := <-done:
		if err == nil || !strings.Contains(err.Error(), "after 1 attempts") {
			t.Errorf("unexpected error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Connect did not return with zero retries")
	}
	if n := atomic.LoadInt32(&attempts); n != 1 {
		t.Errorf("expected 1 attempt, got %d", n)
	}
}

func TestClient_ConnectServerErrorNotRetried(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		writeError(w, http.StatusInternalServerError, "session not created", "app not installed")
	}))
	defer server.Close()

	client := NewClient(server.URL)
	client.ConnectInterval = time.Millisecond

	err := client.Connect(map[string]interface{}{})
	var wdErr *WebDriverError
	if !errors.As(err, &wdErr) {
		t.Fatalf("expected WebDriverError, got %v", err)
	}
	if wdErr.Type != "session not created" {
		t.Errorf("Type=%q", wdErr.Type)
	}
	if n := atomic.LoadInt32(&attempts); n != 1 {
		t.Errorf("expected 1 attempt, got %d", n)
	}
}

func TestClient_Disconnect(t *testing.T) {
	deleteCalled := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/session/test-session" && r.Method == "DELETE" {
			deleteCalled = true
			writeJSON(w, map[string]interface{}{"value": nil})
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	client.sessionID = "test-session"

	if err := client.Disconnect(); err != nil {
		t.Fatalf("Disconnect failed: %v", err)
	}
	if !deleteCalled {
		t.Error("DELETE /session was not called")
	}
	if client.sessionID != "" {
		t.Error("sessionID should be cleared after disconnect")
	}

	// Second disconnect is a no-op
	if err := client.Disconnect(); err != nil {
		t.Errorf("second Disconnect failed: %v", err)
	}
}

func TestClient_FindElements(t *testing.T) {
	var gotBody map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/session/test-session/elements" && r.Method == "POST" {
			_ = json.NewDecoder(r.Body).Decode(&gotBody)
			writeJSON(w, map[string]interface{}{"value": elementRefs("e1", "e2")})
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	client.sessionID = "test-session"

	ids, err := client.FindElements("xpath", `//*[@text="Allow"]`)
	if err != nil {
		t.Fatalf("FindElements failed: %v", err)
	}
	if diff := cmp.Diff([]string{"e1", "e2"}, ids); diff != "" {
		t.Errorf("ids mismatch (-want +got):\n%s", diff)
	}
	if gotBody["using"] != "xpath" || gotBody["value"] != `//*[@text="Allow"]` {
		t.Errorf("unexpected request body: %v", gotBody)
	}
}

func TestClient_FindElementsEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{"value": []interface{}{}})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	client.sessionID = "test-session"

	ids, err := client.FindElements("xpath", "//nothing")
	if err != nil {
		t.Fatalf("FindElements failed: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("expected no ids, got %v", ids)
	}
}

func TestClient_FindElementsFrom(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/session/test-session/element/row1/elements" && r.Method == "POST" {
			writeJSON(w, map[string]interface{}{
				"value": []interface{}{map[string]interface{}{"ELEMENT": "legacy-1"}},
			})
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	client.sessionID = "test-session"

	ids, err := client.FindElementsFrom("row1", "xpath", ".//*[@clickable='true']")
	if err != nil {
		t.Fatalf("FindElementsFrom failed: %v", err)
	}
	if diff := cmp.Diff([]string{"legacy-1"}, ids); diff != "" {
		t.Errorf("ids mismatch (-want +got):\n%s", diff)
	}
}

func TestClient_GetElementAttribute(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/session/s/element/e1/attribute/text":
			writeJSON(w, map[string]interface{}{"value": "Leagues"})
		case "/session/s/element/e1/attribute/selected":
			writeJSON(w, map[string]interface{}{"value": true})
		case "/session/s/element/e1/attribute/content-desc":
			writeJSON(w, map[string]interface{}{"value": nil})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := NewClient(server.URL)
	client.sessionID = "s"

	tests := []struct {
		name string
		want string
	}{
		{"text", "Leagues"},
		{"selected", "true"},
		{"content-desc", ""},
	}
	for _, tt := range tests {
		got, err := client.GetElementAttribute("e1", tt.name)
		if err != nil {
			t.Errorf("%s: %v", tt.name, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestClient_StaleElement(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "stale element reference", "element is not attached to the page document")
	}))
	defer server.Close()

	client := NewClient(server.URL)
	client.sessionID = "s"

	err := client.ClickElement("e1")
	var wdErr *WebDriverError
	if !errors.As(err, &wdErr) {
		t.Fatalf("expected WebDriverError, got %v", err)
	}
	if wdErr.Type != "stale element reference" || wdErr.Status != http.StatusNotFound {
		t.Errorf("unexpected error: %+v", wdErr)
	}
}

func TestClient_ClickElement(t *testing.T) {
	clicked := ""
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/click") && r.Method == "POST" {
			clicked = r.URL.Path
			writeJSON(w, map[string]interface{}{"value": nil})
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	client.sessionID = "s"

	if err := client.ClickElement("e9"); err != nil {
		t.Fatalf("ClickElement failed: %v", err)
	}
	if clicked != "/session/s/element/e9/click" {
		t.Errorf("clicked path=%q", clicked)
	}
}

func TestClient_CurrentActivity(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/session/s/appium/device/current_activity" {
			writeJSON(w, map[string]interface{}{"value": ".ui.onboarding.OnboardingActivity"})
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	client.sessionID = "s"

	activity, err := client.CurrentActivity()
	if err != nil {
		t.Fatalf("CurrentActivity failed: %v", err)
	}
	if activity != ".ui.onboarding.OnboardingActivity" {
		t.Errorf("activity=%q", activity)
	}
}

func TestClient_Swipe(t *testing.T) {
	var got map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/session/s/actions" && r.Method == "POST" {
			_ = json.NewDecoder(r.Body).Decode(&got)
			writeJSON(w, map[string]interface{}{"value": nil})
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	client.sessionID = "s"

	if err := client.Swipe(500, 1000, 500, 500, 300); err != nil {
		t.Fatalf("Swipe failed: %v", err)
	}

	actions := got["actions"].([]interface{})
	pointer := actions[0].(map[string]interface{})
	steps := pointer["actions"].([]interface{})
	if len(steps) != 4 {
		t.Fatalf("expected 4 pointer actions, got %d", len(steps))
	}
	end := steps[2].(map[string]interface{})
	if end["x"] != 500.0 || end["y"] != 500.0 || end["duration"] != 300.0 {
		t.Errorf("unexpected move action: %v", end)
	}
}

func TestClient_Source(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/session/s/source" {
			writeJSON(w, map[string]interface{}{"value": "<hierarchy/>"})
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	client.sessionID = "s"

	src, err := client.Source()
	if err != nil || src != "<hierarchy/>" {
		t.Errorf("Source()=%q, %v", src, err)
	}
}

func TestClient_InvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	client.sessionID = "s"

	if _, err := client.Source(); err == nil || !strings.Contains(err.Error(), "failed to parse response") {
		t.Errorf("expected parse error, got %v", err)
	}
}

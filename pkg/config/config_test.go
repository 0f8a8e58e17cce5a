package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/devicelab-dev/onboard-runner/pkg/core"
	"github.com/google/go-cmp/cmp"
)

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_SnakeCaseKeys(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "config.yaml", `
server_uri: http://127.0.0.1:4723/wd/hub
desired_caps:
  platformName: Android
  appium:appPackage: com.fivemobile.thescore
  appium:noReset: false
timeoutMs: 15000
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := &Config{
		ServerURL: "http://127.0.0.1:4723/wd/hub",
		Capabilities: map[string]interface{}{
			"platformName":      "Android",
			"appium:appPackage": "com.fivemobile.thescore",
			"appium:noReset":    false,
		},
		Timeout: 15 * time.Second,
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_CamelCaseKeysWin(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "config.yaml", `
serverURL: http://appium:4723
server_uri: http://ignored:4723
capabilities:
  platformName: Android
desired_caps:
  platformName: iOS
logFile: run.log
output: out
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ServerURL != "http://appium:4723" {
		t.Errorf("ServerURL=%q", cfg.ServerURL)
	}
	if cfg.Capabilities["platformName"] != "Android" {
		t.Errorf("Capabilities=%v", cfg.Capabilities)
	}
	if cfg.LogFile != "run.log" || cfg.Output != "out" {
		t.Errorf("LogFile=%q Output=%q", cfg.LogFile, cfg.Output)
	}
}

func TestLoad_JSON(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "config.json", `{
  "server_uri": "http://localhost:4723",
  "desired_caps": {"platformName": "Android", "appium:newCommandTimeout": 300}
}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ServerURL != "http://localhost:4723" {
		t.Errorf("ServerURL=%q", cfg.ServerURL)
	}
	if cfg.Capabilities["appium:newCommandTimeout"] != 300 {
		t.Errorf("newCommandTimeout=%v", cfg.Capabilities["appium:newCommandTimeout"])
	}
}

func TestLoad_NonExistentFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"invalid yaml", `server_uri: [invalid yaml`},
		{"negative timeout", `timeoutMs: -1`},
		{"bad scheme", `server_uri: ftp://host:21`},
		{"no host", `server_uri: http://`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), "config.yaml", tt.content)
			_, err := Load(path)
			if !errors.Is(err, core.ErrInvalidConfig) {
				t.Errorf("Load() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestLoad_EmptyConfig(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "config.yaml", ``)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ServerURL != "" || cfg.Capabilities != nil {
		t.Errorf("expected empty config, got %+v", cfg)
	}
	if got := cfg.ResolvedServerURL(); got != DefaultServerURL {
		t.Errorf("ResolvedServerURL()=%q, want %q", got, DefaultServerURL)
	}
}

func TestLoadFromDir(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
		want  string
	}{
		{"yaml", map[string]string{"config.yaml": "serverURL: http://a:1"}, "http://a:1"},
		{"yml", map[string]string{"config.yml": "serverURL: http://b:1"}, "http://b:1"},
		{"json", map[string]string{"config.json": `{"serverURL": "http://c:1"}`}, "http://c:1"},
		{"prefers yaml", map[string]string{
			"config.yaml": "serverURL: http://a:1",
			"config.yml":  "serverURL: http://b:1",
		}, "http://a:1"},
		{"none", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			for name, content := range tt.files {
				writeConfig(t, dir, name, content)
			}
			cfg, err := LoadFromDir(dir)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cfg.ServerURL != tt.want {
				t.Errorf("ServerURL=%q, want %q", cfg.ServerURL, tt.want)
			}
		})
	}
}

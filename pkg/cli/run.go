package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/devicelab-dev/onboard-runner/pkg/config"
	"github.com/devicelab-dev/onboard-runner/pkg/core"
	"github.com/devicelab-dev/onboard-runner/pkg/driver/appium"
	"github.com/devicelab-dev/onboard-runner/pkg/executor"
	"github.com/devicelab-dev/onboard-runner/pkg/flow"
	"github.com/devicelab-dev/onboard-runner/pkg/logger"
	"github.com/devicelab-dev/onboard-runner/pkg/report"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
)

var runCommand = &cli.Command{
	Name:      "run",
	Usage:     "Run a scenario against an Appium server",
	ArgsUsage: "<scenario-file>",
	Description: `Run one scenario file. The process exits 0 only when every step
passed or was tolerated.

Configuration is read from --config, or config.yaml/config.yml/config.json
next to the scenario. Flags override the file.

Examples:
  onboard-runner run scenarios/thescore_onboarding.yaml
  onboard-runner --caps caps.json --timeout 15000 run flow.yaml
  onboard-runner run flow.yaml --artifacts always`,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "artifacts",
			Usage: "When to capture page source (on-failure, always, never)",
			Value: "on-failure",
		},
	},
	Action: runScenario,
}

// RunConfig holds the complete run configuration.
type RunConfig struct {
	ScenarioPath string
	ConfigPath   string

	// Automation server
	AppiumURL    string
	CapsFile     string
	Capabilities map[string]interface{}

	// Execution
	Timeout   time.Duration
	Artifacts executor.ArtifactMode

	// Output
	OutputDir string
	LogFile   string
	Verbose   bool
	NoColor   bool
}

// openSession creates the automation session. Tests replace it.
var openSession = func(serverURL string, caps map[string]interface{}) (core.Session, error) {
	s, err := appium.Open(serverURL, caps)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func runScenario(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("exactly one scenario file is required", exitUsage)
	}

	cfg, err := buildRunConfig(c, c.Args().First())
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}

	scenario, err := flow.ParseFile(cfg.ScenarioPath)
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return executeRun(ctx, c, cfg, scenario)
}

// buildRunConfig merges config file, capabilities file and flags, in that order.
func buildRunConfig(c *cli.Context, scenarioPath string) (*RunConfig, error) {
	cfg := &RunConfig{
		ScenarioPath: scenarioPath,
		ConfigPath:   c.String("config"),
		CapsFile:     c.String("caps"),
		Verbose:      c.Bool("verbose"),
		NoColor:      c.Bool("no-ansi") || !colorsEnabled(),
	}

	var fileCfg *config.Config
	var err error
	if cfg.ConfigPath != "" {
		fileCfg, err = config.Load(cfg.ConfigPath)
	} else {
		fileCfg, err = config.LoadFromDir(filepath.Dir(scenarioPath))
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	cfg.AppiumURL = fileCfg.ResolvedServerURL()
	cfg.Capabilities = fileCfg.Capabilities
	cfg.Timeout = fileCfg.Timeout
	cfg.LogFile = fileCfg.LogFile
	output := fileCfg.Output

	if cfg.CapsFile != "" {
		caps, err := loadCapabilities(cfg.CapsFile)
		if err != nil {
			return nil, err
		}
		cfg.Capabilities = caps
	}

	if c.IsSet("appium-url") {
		cfg.AppiumURL = c.String("appium-url")
		if err := config.ValidateServerURL(cfg.AppiumURL); err != nil {
			return nil, err
		}
	}
	if c.IsSet("timeout") {
		if c.Int("timeout") < 0 {
			return nil, fmt.Errorf("--timeout must not be negative")
		}
		cfg.Timeout = time.Duration(c.Int("timeout")) * time.Millisecond
	}
	if c.IsSet("output") {
		output = c.String("output")
	}
	if c.IsSet("log-file") {
		cfg.LogFile = c.String("log-file")
	}

	cfg.Artifacts, err = parseArtifactMode(c.String("artifacts"))
	if err != nil {
		return nil, err
	}

	cfg.OutputDir = resolveOutputDir(output)
	if cfg.LogFile == "" {
		cfg.LogFile = filepath.Join(cfg.OutputDir, "onboard-runner.log")
	}
	return cfg, nil
}

// resolveOutputDir returns <output>/<timestamp>, or <home>/reports/<timestamp> when unset.
func resolveOutputDir(output string) string {
	baseDir := output
	if baseDir == "" {
		baseDir = config.GetReportsDir()
	}
	timestamp := time.Now().Format("2006-01-02_15-04-05")
	return filepath.Join(baseDir, timestamp)
}

func parseArtifactMode(s string) (executor.ArtifactMode, error) {
	switch s {
	case "", "on-failure":
		return executor.ArtifactOnFailure, nil
	case "always":
		return executor.ArtifactAlways, nil
	case "never":
		return executor.ArtifactNever, nil
	default:
		return 0, fmt.Errorf("invalid --artifacts %q (on-failure, always, never)", s)
	}
}

// loadCapabilities loads capabilities from a JSON or YAML file.
func loadCapabilities(capsFile string) (map[string]interface{}, error) {
	data, err := os.ReadFile(capsFile) //#nosec G304 -- user-provided caps file
	if err != nil {
		return nil, fmt.Errorf("failed to read caps file: %w", err)
	}

	var caps map[string]interface{}
	if err := yaml.Unmarshal(data, &caps); err != nil {
		return nil, fmt.Errorf("failed to parse caps file: %w", err)
	}
	return caps, nil
}

// sessionCapabilities fills the defaults an onboarding run needs.
// Values already present are kept.
func sessionCapabilities(caps map[string]interface{}, scenario *flow.Scenario) map[string]interface{} {
	out := make(map[string]interface{}, len(caps)+3)
	for k, v := range caps {
		out[k] = v
	}
	if out["platformName"] == nil {
		out["platformName"] = "Android"
	}
	if out["appium:automationName"] == nil {
		out["appium:automationName"] = "UiAutomator2"
	}
	if pkg := scenario.Config.AppPackage; pkg != "" && out["appium:appPackage"] == nil {
		out["appium:appPackage"] = pkg
	}
	return out
}

func executeRun(ctx context.Context, c *cli.Context, cfg *RunConfig, scenario *flow.Scenario) error {
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return cli.Exit(fmt.Sprintf("failed to create output directory: %v", err), exitUsage)
	}

	if err := logger.Init(cfg.LogFile); err != nil {
		fmt.Fprintf(c.App.ErrWriter, "Warning: Failed to initialize logger: %v\n", err)
	}
	defer logger.Close()
	logger.SetVerbose(cfg.Verbose)

	logger.Info("=== Scenario run started ===")
	logger.Info("Scenario: %s", cfg.ScenarioPath)
	logger.Info("Output directory: %s", cfg.OutputDir)
	logger.Info("Server: %s", cfg.AppiumURL)

	out := newProgress(c.App.Writer, !cfg.NoColor)

	caps := sessionCapabilities(cfg.Capabilities, scenario)
	fmt.Fprintf(c.App.Writer, "  Connecting to Appium server: %s\n", cfg.AppiumURL)
	logger.Info("Creating session with capabilities: %v", caps)
	session, err := openSession(cfg.AppiumURL, caps)
	if err != nil {
		logger.Error("Failed to create session: %v", err)
		return cli.Exit(fmt.Sprintf("create session: %v", err), exitUnreachable)
	}
	defer func() {
		if err := session.Close(); err != nil {
			logger.Warn("close session: %v", err)
		}
	}()

	runner := executor.New(session, executor.RunnerConfig{
		DefaultTimeout:  cfg.Timeout,
		Artifacts:       cfg.Artifacts,
		OnScenarioStart: out.onScenarioStart,
		OnStepComplete:  out.onStepComplete,
		OnWarning:       out.onWarning,
	})
	result := runner.Run(ctx, scenario)

	info := report.RunnerInfo{Version: Version, ServerURL: cfg.AppiumURL}
	if s, ok := session.(interface{ ID() string }); ok {
		info.SessionID = s.ID()
	}
	reportPath, err := report.Write(cfg.OutputDir, result, info)
	if err != nil {
		logger.Error("Failed to write report: %v", err)
		fmt.Fprintf(c.App.ErrWriter, "Warning: failed to write report: %v\n", err)
	}

	out.printSummary(result, reportPath)

	if result.Passed() {
		return nil
	}
	return cli.Exit(abortMessage(result), exitAborted)
}

// abortMessage names the failed step with its expression and wait time.
func abortMessage(result *core.ScenarioResult) string {
	if result.FailedStep < 0 || result.FailedStep >= len(result.Steps) {
		return fmt.Sprintf("scenario aborted: %s", result.Error)
	}
	step := result.Steps[result.FailedStep]
	return fmt.Sprintf("scenario aborted at step %d (%s): %s", step.Index+1, step.Command, step.Error)
}

// Package cli provides the command-line interface for onboard-runner.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

// Version is set at build time.
var Version = "dev"

// Exit codes. Anything but exitOK means the scenario did not complete.
const (
	exitOK          = 0
	exitAborted     = 1
	exitUsage       = 2
	exitUnreachable = 3
)

// GlobalFlags are available to all commands.
var GlobalFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "appium-url",
		Usage:   "Appium server URL (overrides server_uri from config)",
		EnvVars: []string{"APPIUM_URL"},
	},
	&cli.StringFlag{
		Name:    "config",
		Usage:   "Path to config.yaml or config.json (default: next to the scenario)",
		EnvVars: []string{"ONBOARD_CONFIG"},
	},
	&cli.StringFlag{
		Name:    "caps",
		Usage:   "Capabilities file (JSON or YAML), overrides desired_caps from config",
		EnvVars: []string{"ONBOARD_CAPS"},
	},
	&cli.IntFlag{
		Name:    "timeout",
		Usage:   "Default element wait in ms for steps that set none",
		EnvVars: []string{"ONBOARD_TIMEOUT"},
	},
	&cli.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Usage:   "Output directory for reports (default: <home>/reports/<timestamp>)",
		EnvVars: []string{"ONBOARD_OUTPUT"},
	},
	&cli.StringFlag{
		Name:    "log-file",
		Usage:   "Log file path (default: <output>/onboard-runner.log)",
		EnvVars: []string{"ONBOARD_LOG_FILE"},
	},
	&cli.BoolFlag{
		Name:    "verbose",
		Usage:   "Enable debug logging",
		EnvVars: []string{"ONBOARD_VERBOSE"},
	},
	&cli.BoolFlag{
		Name:  "no-ansi",
		Usage: "Disable ANSI colors",
	},
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "onboard-runner",
		Usage:   "Drive an app's onboarding flow through an Appium server",
		Version: Version,
		Description: `onboard-runner executes scenario files against a running Appium server
and asserts on the resulting screen state.

Examples:
  onboard-runner run scenarios/thescore_onboarding.yaml
  onboard-runner --appium-url http://127.0.0.1:4723 --caps caps.json run flow.yaml
  onboard-runner check scenarios/thescore_onboarding.yaml`,
		Flags: GlobalFlags,
		Commands: []*cli.Command{
			runCommand,
			checkCommand,
		},
		// Exit codes are handled by Execute.
		ExitErrHandler: func(*cli.Context, error) {},
	}
}

// Execute runs the CLI and exits with the scenario's exit code.
func Execute() {
	os.Exit(run(os.Args))
}

func run(args []string) int {
	err := newApp().Run(args)
	if err == nil {
		return exitOK
	}

	var exitErr cli.ExitCoder
	if errors.As(err, &exitErr) {
		if msg := exitErr.Error(); msg != "" {
			fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
		}
		return exitErr.ExitCode()
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return exitUsage
}

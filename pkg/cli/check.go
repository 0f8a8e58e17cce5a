package cli

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/devicelab-dev/onboard-runner/pkg/driver/snapshot"
	"github.com/devicelab-dev/onboard-runner/pkg/flow"
	"github.com/devicelab-dev/onboard-runner/pkg/locator"
	"github.com/devicelab-dev/onboard-runner/pkg/resolver"
	"github.com/urfave/cli/v2"
)

var checkCommand = &cli.Command{
	Name:      "check",
	Usage:     "Parse scenarios and print their compiled steps without a device",
	ArgsUsage: "<scenario-file>...",
	Description: `Validate scenario files offline.

With --source, every locator is also evaluated against a captured page
source (e.g. an assets/*/step-*-page_source.xml report artifact) and the
number of matches is printed.

Examples:
  onboard-runner check scenarios/thescore_onboarding.yaml
  onboard-runner check --source reports/<run>/assets/<id>/step-019-page_source.xml flow.yaml
  onboard-runner check --watch scenarios/*.yaml`,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "source",
			Usage: "Page source XML to evaluate locators against",
		},
		&cli.StringFlag{
			Name:  "activity",
			Usage: "Activity reported for the page source (for title lookups)",
		},
		&cli.BoolFlag{
			Name:  "watch",
			Usage: "Re-check files whenever they change",
		},
	},
	Action: checkScenarios,
}

func checkScenarios(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("at least one scenario file is required", exitUsage)
	}

	var snap *snapshot.Session
	if src := c.String("source"); src != "" {
		var err error
		snap, err = snapshot.Load(src, c.String("activity"))
		if err != nil {
			return cli.Exit(err.Error(), exitUsage)
		}
	}

	var failed int
	for _, path := range c.Args().Slice() {
		scenario, err := flow.ParseFile(path)
		if !printCheck(c.App.Writer, path, scenario, err, snap) {
			failed++
		}
	}

	if c.Bool("watch") {
		return watchScenarios(c, snap)
	}
	if failed > 0 {
		return cli.Exit(fmt.Sprintf("%d scenario file(s) invalid", failed), exitUsage)
	}
	return nil
}

// printCheck prints one parse result and reports whether the file is valid.
func printCheck(w io.Writer, path string, scenario *flow.Scenario, err error, snap *snapshot.Session) bool {
	if err != nil {
		fmt.Fprintf(w, "✗ %v\n", err)
		return false
	}

	var r *resolver.Resolver
	if snap != nil {
		r = resolver.New(snap)
	}

	fmt.Fprintf(w, "✓ %s (%d steps)\n", scenario.Name(), len(scenario.Steps))
	for i, step := range scenario.Steps {
		line := fmt.Sprintf("  %2d. [%s] %s", i+1, step.Policy(), step.Describe())
		if ls, ok := step.(flow.LocatorStep); ok {
			if q, err := locator.Build(ls.Target()); err == nil {
				line += "  =>  " + q.String()
			}
			if r != nil {
				line += "  " + matchSummary(r, ls.Target())
			}
		}
		fmt.Fprintln(w, line)
	}
	return true
}

func matchSummary(r *resolver.Resolver, loc flow.Locator) string {
	els, err := r.ResolveAll(loc, 0)
	switch {
	case err == nil && len(els) == 1:
		return "(1 match)"
	case err == nil:
		return fmt.Sprintf("(%d matches)", len(els))
	default:
		return "(no match)"
	}
}

func watchScenarios(c *cli.Context, snap *snapshot.Session) error {
	w, err := flow.NewWatcher(func(path string, scenario *flow.Scenario, err error) {
		fmt.Fprintf(c.App.Writer, "\n%s changed\n", path)
		printCheck(c.App.Writer, path, scenario, err, snap)
	}, c.Args().Slice()...)
	if err != nil {
		return cli.Exit(fmt.Sprintf("watch: %v", err), exitUsage)
	}
	if err := w.Start(); err != nil {
		w.Stop()
		return cli.Exit(fmt.Sprintf("watch: %v", err), exitUsage)
	}
	defer w.Stop()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintln(c.App.Writer, "\nWatching for changes (Ctrl+C to stop)...")
	<-ctx.Done()
	return nil
}

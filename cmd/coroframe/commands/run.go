package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/stealthrocket/coro"
	"github.com/stealthrocket/coro/diag"
	"github.com/stealthrocket/coro/engine"
)

var (
	runHosts     int
	runBudget    int
	runDump      bool
	runDumpEvery int64
)

var runCmd = &cobra.Command{
	Use:   "run [scenario.yaml]",
	Short: "Run the tests of a scenario",
	Long: `Run the tests of a scenario in one or more host loops.

Without a scenario file, a built-in demo scenario is used. The command exits
with a non-zero status if any test did not pass.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runScenario,
}

func init() {
	runCmd.Flags().IntVar(&runHosts, "hosts", 0, "number of host loops (overrides the scenario)")
	runCmd.Flags().IntVar(&runBudget, "budget", -1, "frame budget per test (overrides the scenario)")
	runCmd.Flags().BoolVar(&runDump, "dump", false, "print a snapshot of the coroutine backend when done")
	runCmd.Flags().Int64Var(&runDumpEvery, "dump-every", 0, "log a snapshot of the coroutine backend every N frames of the first host")
}

func runScenario(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}

	var path string
	if len(args) > 0 {
		path = args[0]
	}
	scenario, err := loadScenario(path)
	if err != nil {
		return err
	}
	if runHosts > 0 {
		scenario.Hosts = runHosts
	}
	if runBudget >= 0 {
		scenario.Budget = runBudget
	}

	backend, err := coro.New(backendName, coro.WithLogger(logger))
	if err != nil {
		return err
	}
	inspector, _ := backend.(coro.Inspector)

	engines := make([]*engine.Engine, scenario.Hosts)
	for i := range engines {
		options := []engine.Option{
			engine.WithLogger(logger.With("host", i)),
			engine.WithFrameBudget(scenario.Budget),
		}
		if i == 0 && runDumpEvery > 0 && inspector != nil {
			options = append(options, engine.WithFrameHook(func(frame int64) {
				if frame%runDumpEvery == 0 {
					logger.Info("coroutines", "frame", frame, "snapshot", diag.Inspect(inspector).AsMap())
				}
			}))
		}
		e := engine.New(backend, options...)
		for _, t := range scenario.Tests {
			e.Register(t.Name, t.Func())
		}
		engines[i] = e
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	name := backendName
	if name == "" {
		name = coro.DefaultBackend
	}
	logger.Info("running scenario", "backend", name, "hosts", scenario.Hosts, "tests", len(scenario.Tests))
	runErr := engine.RunAll(ctx, engines...)

	failed := printResults(cmd, engines)

	if runDump && inspector != nil {
		b, err := diag.MarshalJSON(inspector)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\n", b)
	}

	switch {
	case runErr != nil && !errors.Is(runErr, context.Canceled):
		return runErr
	case runErr != nil:
		return fmt.Errorf("interrupted")
	case failed > 0:
		return fmt.Errorf("%d test(s) did not pass", failed)
	}
	return nil
}

func printResults(cmd *cobra.Command, engines []*engine.Engine) (failed int) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "HOST\tTEST\tSTATUS\tFRAMES\tERRORS")
	for i, e := range engines {
		for _, r := range e.Results() {
			if r.Status != engine.Passed {
				failed++
			}
			errs := "-"
			if len(r.Errors) > 0 {
				errs = r.Errors[0]
				if n := len(r.Errors); n > 1 {
					errs += fmt.Sprintf(" (+%d)", n-1)
				}
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\n", i, r.Name, r.Status, r.Frames, errs)
		}
	}
	w.Flush()
	return failed
}

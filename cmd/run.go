package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/brensch/gdcmatrix/internal/app"
	"github.com/brensch/gdcmatrix/internal/cohort"
	"github.com/brensch/gdcmatrix/internal/metrics"
	"github.com/brensch/gdcmatrix/internal/pipeline"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var (
	runTUI           bool
	runDeterministic bool
)

// runCmd drives the full cohort assembly workflow.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full matrix assembly workflow",
	Long: `Performs the complete pipeline for every configured primary site:
1. Queries the GDC files endpoint for open-access RNA-seq quantification files.
2. Partitions samples into tumor and normal groups.
3. Concurrently fetches, decompresses and parses each sample file.
4. Aggregates per-sample values into tpm/fpkm/fpkm_uq matrices and writes
   them as CSV and Parquet under the output directory.

Failed samples are dropped from their group; a run only fails when a site
cannot be resolved at all. Use --deterministic to sort matrix columns by
sample id instead of completion order.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := getLogger()
		cfg := getConfig()
		if runDeterministic {
			cfg.SortColumns = true
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		if cfg.RunTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, cfg.RunTimeout)
			defer cancel()
		}

		metrics.Serve(ctx, cfg.MetricsAddr, logger)

		runner := cohort.NewRunner(cfg, getDB(), logger)

		var err error
		if runTUI {
			err = runWithTUI(ctx, runner)
		} else {
			err = runner.Run(ctx)
		}
		if err != nil {
			logger.Error("Workflow completed with errors", "error", err)
			return fmt.Errorf("run workflow failed: %w", err)
		}

		logger.Info("Workflow completed successfully.")
		return nil
	},
}

// runWithTUI runs the workflow with the terminal monitor attached. Pipeline
// notifications are translated into bubbletea messages.
func runWithTUI(ctx context.Context, runner *cohort.Runner) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	uiMsgChan := make(chan tea.Msg, 64)
	runner.NotifyGroup = func(site, group string, total int) {
		uiMsgChan <- app.NewGroupStart(site, group, total)
	}
	runner.Notify = func(site, group string, outcome pipeline.Outcome) {
		errMsg := ""
		if outcome.Err != nil {
			errMsg = outcome.Err.Error()
		}
		uiMsgChan <- app.NewSample(site, group,
			outcome.Record.FileID, outcome.Record.SampleID,
			outcome.OK(), outcome.ErrorKind(), outcome.Elapsed, errMsg)
	}

	start := time.Now()
	errChan := make(chan error, 1)
	go func() {
		err := runner.Run(runCtx)
		uiMsgChan <- app.NewRunFinished(start, err)
		close(uiMsgChan)
		errChan <- err
	}()

	model := app.NewModel(uiMsgChan, cancel)
	if _, err := tea.NewProgram(model).Run(); err != nil {
		cancel()
		<-errChan
		return fmt.Errorf("terminal ui failed: %w", err)
	}
	return <-errChan
}

func init() {
	runCmd.Flags().BoolVar(&runTUI, "tui", false, "Show an interactive terminal monitor during the run.")
	runCmd.Flags().BoolVar(&runDeterministic, "deterministic", false, "Sort matrix columns by sample id instead of completion order.")
}

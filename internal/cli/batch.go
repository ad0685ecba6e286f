package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ethosgate/ethosgate/internal/canonical"
	"github.com/ethosgate/ethosgate/internal/observability/logging"
	"github.com/ethosgate/ethosgate/internal/observability/receipt"
	"github.com/ethosgate/ethosgate/internal/pipeline"
	"github.com/ethosgate/ethosgate/internal/seal"
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Evaluate a list of candidate actions",
	Long: `Batch evaluates every request in a JSON or YAML list concurrently
and prints the decisions in input order. A malformed request is
reported on its own line and does not stop the others.

Example:
  ethosgate batch --input requests.yaml
  ethosgate batch --config strict --input requests.json --parallelism 4 --output json`,
	SilenceUsage: true,
	RunE:         runBatch,
}

var (
	batchConfigFlag       string
	batchInputFlag        string
	batchOutputFlag       string
	batchParallelismFlag  int
	batchFailOnRejectFlag bool
)

func init() {
	f := batchCmd.Flags()
	f.StringVarP(&batchConfigFlag, "config", "c", "baseline", "Preset name (baseline, strict) or path to a config YAML file")
	f.StringVarP(&batchInputFlag, "input", "i", "", "Request list file (JSON or YAML); - for stdin")
	f.StringVarP(&batchOutputFlag, "output", "o", formatText, "Output format: text or json")
	f.IntVarP(&batchParallelismFlag, "parallelism", "p", 0, "Concurrent evaluations (0 = GOMAXPROCS)")
	f.BoolVar(&batchFailOnRejectFlag, "fail-on-reject", false, "Exit 1 when any decision is REJECTED or any request fails")
	_ = batchCmd.MarkFlagRequired("input")
}

// GetBatchCmd returns the batch command
func GetBatchCmd() *cobra.Command {
	return batchCmd
}

func runBatch(cmd *cobra.Command, args []string) (err error) {
	ctx := cmd.Context()
	sess := receipt.Start(ctx, "ethosgate batch", os.Args[1:])
	var receiptOpts []receipt.Option
	defer func() {
		_ = sess.Finish(err, receiptOpts...)
	}()

	log := logging.From(ctx)
	start := time.Now()

	if err := validateFormat(batchOutputFlag); err != nil {
		return err
	}
	if batchParallelismFlag < 0 {
		return fmt.Errorf("invalid parallelism: %d", batchParallelismFlag)
	}

	data, err := readInput(batchInputFlag, cmd.InOrStdin())
	if err != nil {
		return err
	}
	reqs, err := decodeRequests(data, batchInputFlag)
	if err != nil {
		return err
	}

	src, err := newGateSource(batchConfigFlag, time.Now, log)
	if err != nil {
		return err
	}

	results, err := pipeline.EvaluateBatchFrom(ctx, src, reqs, batchParallelismFlag)
	if err != nil {
		return err
	}
	snap := src.Snapshot()
	receiptOpts = append(receiptOpts, receipt.WithConfig(snap.Name(), snap.Source()))

	items := make([]BatchItem, 0, len(results))
	for _, r := range results {
		if r.Err != nil {
			receiptOpts = append(receiptOpts, receipt.WithFailedRequest(r.Request.ID, r.Err))
			items = append(items, BatchItem{RequestID: r.Request.ID, Config: r.Config, Error: r.Err.Error()})
			continue
		}
		digest, err := seal.Digest(r.Decision, canonical.DefaultVersion)
		if err != nil {
			return fmt.Errorf("failed to seal decision %s: %w", r.Request.ID, err)
		}
		d := r.Decision
		receiptOpts = append(receiptOpts, receipt.WithDecision(d, digest, r.Request.Attributes))
		items = append(items, BatchItem{RequestID: d.RequestID, Config: r.Config, Decision: &d, Digest: digest})
	}
	summary := summarize(results)

	log.Info("batch", "batch complete",
		"requests", summary.Total,
		"errors", summary.Errors,
		"duration_ms", time.Since(start).Milliseconds())

	out := cmd.OutOrStdout()
	if batchOutputFlag == formatJSON {
		if err := writeJSON(out, BatchOutput{
			SchemaVersion: OutputSchemaVersion,
			Config:        snap.Name(),
			Summary:       summary,
			Results:       items,
		}); err != nil {
			return err
		}
	} else {
		for _, item := range items {
			if item.Decision == nil {
				fmt.Fprintf(out, "%s[ERROR]%s %s\n  %s\n", colorRed, colorReset, item.RequestID, item.Error)
				continue
			}
			printDecision(out, *item.Decision, item.Digest)
		}
		printBatchSummary(out, summary)
	}

	if batchFailOnRejectFlag && (summary.Rejected > 0 || summary.Errors > 0) {
		return &ExitError{Code: 1}
	}
	return nil
}

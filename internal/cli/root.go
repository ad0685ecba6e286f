package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ethosgate/ethosgate/internal/observability"
	"github.com/ethosgate/ethosgate/internal/observability/logging"
	otelobs "github.com/ethosgate/ethosgate/internal/observability/otel"
	"github.com/ethosgate/ethosgate/internal/observability/receipt"
	"github.com/ethosgate/ethosgate/internal/version"
)

// ANSI color codes
const (
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorReset  = "\033[0m"
)

var rootCmd = &cobra.Command{
	Use:   "ethosgate",
	Short: "Ethical action filter",
	Long: `ethosgate: a decision gate for candidate actions.
Projects the consequence of an action, scores it against weighted
knowledge, karma and kindness constraints, and approves, transforms
or rejects it.`,
	Version:           version.BuildVersion(),
	SilenceErrors:     true,
	PersistentPreRunE: setupObservability,
}

var (
	logCfg     = logging.DefaultConfig()
	otelCfg    = otelobs.DefaultConfig()
	receiptOut string
	receiptMod string
)

// process-wide resources opened in PersistentPreRunE
var (
	activeLogger  logging.Logger
	activeHandle  *otelobs.Handle
	activeReceipt receipt.Writer
)

// ExitError carries a process exit status without printing anything extra
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// Execute runs the root command and exits non-zero on failure.
// Exit 1 = gate/drift outcome requested a failure; exit 2 = runtime error.
func Execute() {
	err := run(context.Background(), os.Args[1:])
	if err == nil {
		return
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		if exitErr.Err != nil {
			fmt.Fprintln(os.Stderr, exitErr.Err)
		}
		os.Exit(exitErr.Code)
	}
	fmt.Fprintln(os.Stderr, "Error:", err)
	os.Exit(2)
}

// run executes args and releases the logger, tracer and receipt writer
// whether or not the command succeeded.
func run(ctx context.Context, args []string) error {
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(ctx)
	if cerr := closeObservability(ctx); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&logCfg.Format, "log-format", logCfg.Format, "Log format: jsonl, text or off")
	pf.StringVar(&logCfg.Level, "log-level", logCfg.Level, "Log level: debug, info, warn or error")
	pf.StringVar(&logCfg.Output, "log-output", logCfg.Output, "Log destination: stderr or a file path")

	pf.BoolVar(&otelCfg.Enabled, "otel", false, "Export OpenTelemetry traces")
	pf.StringVar(&otelCfg.Endpoint, "otel-endpoint", "", "OTLP endpoint (default from OTEL_EXPORTER_OTLP_ENDPOINT)")
	pf.StringVar(&otelCfg.Protocol, "otel-protocol", otelCfg.Protocol, "OTLP protocol: otlphttp or otlpgrpc")
	pf.BoolVar(&otelCfg.Insecure, "otel-insecure", false, "Disable TLS for the OTLP exporter")
	pf.Float64Var(&otelCfg.SampleRatio, "otel-sample-ratio", otelCfg.SampleRatio, "Trace sampling ratio in [0,1]")

	pf.StringVar(&receiptOut, "receipt", "", "Write an audit receipt to this path")
	pf.StringVar(&receiptMod, "receipt-mode", string(receipt.ModeOverwrite), "Receipt mode: overwrite, append or sqlite")

	rootCmd.AddCommand(GetEvaluateCmd())
	rootCmd.AddCommand(GetBatchCmd())
	rootCmd.AddCommand(GetConfigCmd())
	rootCmd.AddCommand(GetDiffCmd())
	rootCmd.AddCommand(GetKeygenCmd())
	rootCmd.AddCommand(GetVerifyCmd())
	rootCmd.AddCommand(GetBundleCmd())
	rootCmd.AddCommand(GetReceiptsCmd())
}

// GetRootCmd returns the root command
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func setupObservability(cmd *cobra.Command, args []string) error {
	// the root context is reset by every Execute; subcommands keep the last one
	ctx := cmd.Root().Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = observability.WithOpID(ctx)

	log, err := logging.NewLogger(logCfg)
	if err != nil {
		return err
	}
	activeLogger = log
	ctx = logging.WithLogger(ctx, log)

	if otelCfg.Enabled {
		h, err := otelobs.Init(ctx, otelCfg)
		if err != nil {
			return fmt.Errorf("otel: %w", err)
		}
		activeHandle = h
		ctx = otelobs.WithHandle(ctx, h)
	}

	if receiptOut != "" {
		w, err := receipt.NewWriter(receiptOut, receiptMod)
		if err != nil {
			return err
		}
		activeReceipt = w
		ctx = receipt.WithWriter(ctx, w)
	}

	log.Debug("cli", "command start", "command", cmd.CommandPath(), "op_id", observability.OpID(ctx))
	cmd.SetContext(ctx)
	return nil
}

func closeObservability(ctx context.Context) error {
	var errs []error
	if activeReceipt != nil {
		errs = append(errs, activeReceipt.Close())
		activeReceipt = nil
	}
	if activeHandle != nil && activeHandle.Shutdown != nil {
		errs = append(errs, activeHandle.Shutdown(ctx))
		activeHandle = nil
	}
	if activeLogger != nil {
		errs = append(errs, activeLogger.Close())
		activeLogger = nil
	}
	return errors.Join(errs...)
}

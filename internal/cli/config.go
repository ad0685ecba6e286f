package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ethosgate/ethosgate/internal/config"
	"github.com/ethosgate/ethosgate/internal/observability/logging"
	"github.com/ethosgate/ethosgate/internal/observability/receipt"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and validate gate configurations",
	Long: `Commands for working with gate configurations: weights, thresholds,
the risk indicator registry and substitution rules.

Built-in presets: baseline, strict.`,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate [preset|path]...",
	Short: "Validate one or more configurations",
	Long: `Validate loads each configuration, compiles its indicator expressions
and checks weights and thresholds. With no arguments it validates
every built-in preset.

Example:
  ethosgate config validate
  ethosgate config validate ./gate.yaml strict`,
	SilenceUsage: true,
	RunE:         runConfigValidate,
}

func init() {
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configExplainCmd)
}

// GetConfigCmd returns the config command
func GetConfigCmd() *cobra.Command {
	return configCmd
}

func runConfigValidate(cmd *cobra.Command, args []string) (err error) {
	ctx := cmd.Context()
	sess := receipt.Start(ctx, "ethosgate config validate", os.Args[1:])
	defer func() {
		_ = sess.Finish(err)
	}()

	log := logging.From(ctx)
	refs := args
	if len(refs) == 0 {
		refs = config.ListPresetNames()
	}

	out := cmd.OutOrStdout()
	failed := 0
	for _, ref := range refs {
		snap, verr := config.Resolve(ref)
		if verr != nil {
			failed++
			log.Warn("config", "invalid configuration", "ref", ref, "error", verr.Error())
			fmt.Fprintf(out, "%s✗ %s%s\n  %v\n", colorRed, ref, colorReset, verr)
			continue
		}
		cfg := snap.Config()
		fmt.Fprintf(out, "%s✓ %s%s (%s): %d indicators, %d substitutions, valid until %s\n",
			colorGreen, ref, colorReset, snap.Name(),
			len(cfg.Indicators), len(cfg.Substitutions),
			formatValidUntil(snap.ValidUntil()))
	}

	if failed > 0 {
		return &ExitError{Code: 1, Err: fmt.Errorf("%d of %d configurations invalid", failed, len(refs))}
	}
	return nil
}

func formatValidUntil(t time.Time) string {
	if t.IsZero() {
		return "forever"
	}
	return t.UTC().Format(time.RFC3339)
}

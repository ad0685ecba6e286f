package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ethosgate/ethosgate/internal/differ"
	"github.com/ethosgate/ethosgate/internal/observability/logging"
	"github.com/ethosgate/ethosgate/internal/observability/receipt"
)

// diffCmd represents the diff command
var diffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Compare decisions under two configurations",
	Long: `Diff evaluates the same requests under a base and a candidate
configuration and reports how the decisions drift, in human-readable
terms rather than raw JSON patches.

Exit status is 1 when a change at or above --fail-on is found.

Example:
  ethosgate diff --base baseline --candidate strict --input requests.yaml
  ethosgate diff --base ./gate.yaml --candidate ./gate.next.yaml --input requests.json --fail-on moderate`,
	SilenceUsage: true,
	RunE:         runDiff,
}

var (
	diffBaseFlag      string
	diffCandidateFlag string
	diffInputFlag     string
	diffFailOnFlag    string
	diffFormatFlag    string
)

func init() {
	diffCmd.Flags().StringVar(&diffBaseFlag, "base", "baseline", "Base preset or config file")
	diffCmd.Flags().StringVar(&diffCandidateFlag, "candidate", "", "Candidate preset or config file")
	diffCmd.Flags().StringVarP(&diffInputFlag, "input", "i", "", "Request file (JSON or YAML, one request or a list); - for stdin")
	diffCmd.Flags().StringVar(&diffFailOnFlag, "fail-on", "critical", "Severity threshold for failure: critical, moderate, or info")
	diffCmd.Flags().StringVar(&diffFormatFlag, "format", formatText, "Output format: text or json")
	_ = diffCmd.MarkFlagRequired("candidate")
	_ = diffCmd.MarkFlagRequired("input")
}

// GetDiffCmd returns the diff command
func GetDiffCmd() *cobra.Command {
	return diffCmd
}

// FailOnLevel threshold for failure
type FailOnLevel string

const (
	FailOnCritical FailOnLevel = "critical"
	FailOnModerate FailOnLevel = "moderate"
	FailOnInfo     FailOnLevel = "info"
)

// ParseFailOnLevel from string
func ParseFailOnLevel(s string) (FailOnLevel, error) {
	switch strings.ToLower(s) {
	case "critical":
		return FailOnCritical, nil
	case "moderate":
		return FailOnModerate, nil
	case "info":
		return FailOnInfo, nil
	default:
		return "", fmt.Errorf("invalid fail-on level: %s (use critical, moderate, or info)", s)
	}
}

// ShouldFail checks limits
func (f FailOnLevel) ShouldFail(severity differ.SeverityLevel) bool {
	switch f {
	case FailOnModerate:
		return severity >= differ.SeverityModerate
	case FailOnInfo:
		return true
	default:
		return severity == differ.SeverityCritical
	}
}

func runDiff(cmd *cobra.Command, args []string) (err error) {
	ctx := cmd.Context()
	sess := receipt.Start(ctx, "ethosgate diff", os.Args[1:])
	var receiptOpts []receipt.Option
	defer func() {
		_ = sess.Finish(err, receiptOpts...)
	}()

	log := logging.From(ctx)
	start := time.Now()

	failOn, err := ParseFailOnLevel(diffFailOnFlag)
	if err != nil {
		return err
	}
	if err := validateFormat(diffFormatFlag); err != nil {
		return err
	}

	data, err := readInput(diffInputFlag, cmd.InOrStdin())
	if err != nil {
		return err
	}
	reqs, err := decodeRequests(data, diffInputFlag)
	if err != nil {
		return err
	}

	base, err := loadPipeline(diffBaseFlag, time.Now)
	if err != nil {
		return fmt.Errorf("base: %w", err)
	}
	candidate, err := loadPipeline(diffCandidateFlag, time.Now)
	if err != nil {
		return fmt.Errorf("candidate: %w", err)
	}
	receiptOpts = append(receiptOpts, receipt.WithConfig(candidate.Snapshot().Name(), candidate.Snapshot().Source()))

	result, err := differ.NewEngine(base, candidate).Compare(ctx, reqs)
	if err != nil {
		return fmt.Errorf("diff failed: %w", err)
	}

	critical, moderate, info := result.Counts()
	summary := fmt.Sprintf("%s -> %s: %d critical, %d moderate, %d info",
		result.BaseConfig, result.CandidateConfig, critical, moderate, info)
	receiptOpts = append(receiptOpts, receipt.WithDrift(critical, moderate, info, summary))
	log.Info("diff", "diff complete",
		"requests", len(result.Requests),
		"critical", critical,
		"moderate", moderate,
		"info", info,
		"duration_ms", time.Since(start).Milliseconds())

	out := cmd.OutOrStdout()
	if diffFormatFlag == formatJSON {
		if err := writeJSON(out, result); err != nil {
			return err
		}
	} else {
		printDiff(out, result)
	}

	if diffShouldFail(result, failOn) {
		return &ExitError{Code: 1}
	}
	return nil
}

func diffShouldFail(result *differ.Result, failOn FailOnLevel) bool {
	for _, rd := range result.Requests {
		for _, c := range rd.Translations {
			if failOn.ShouldFail(c.Severity) {
				return true
			}
		}
	}
	return false
}

func printDiff(w io.Writer, result *differ.Result) {
	if !result.HasChanges {
		fmt.Fprintf(w, "%s✓ No changes detected: %s and %s decide identically%s\n",
			colorGreen, result.BaseConfig, result.CandidateConfig, colorReset)
		return
	}

	fmt.Fprintf(w, "%sDecision drift: %s -> %s%s\n\n", colorYellow, result.BaseConfig, result.CandidateConfig, colorReset)
	for _, rd := range result.Requests {
		if rd.DiffType == differ.DiffTypeNoChange {
			continue
		}
		printRequestDiff(w, rd)
	}
}

func printRequestDiff(w io.Writer, rd differ.RequestDiff) {
	headerColor := colorYellow
	icon := "~"
	if rd.DiffType == differ.DiffTypeError {
		headerColor = colorRed
		icon = "!"
	}
	fmt.Fprintf(w, "%s[%s] %s%s\n", headerColor, icon, rd.RequestID, colorReset)

	for _, c := range rd.Translations {
		fmt.Fprintf(w, "  %s• %s%s\n", getColorForSeverity(c.Severity), c.Message, colorReset)
	}
	fmt.Fprintln(w)
}

func getColorForSeverity(severity differ.SeverityLevel) string {
	switch severity {
	case differ.SeverityCritical:
		return colorRed
	case differ.SeverityModerate:
		return colorYellow
	case differ.SeveritySafe:
		return colorGreen
	default:
		return colorReset
	}
}

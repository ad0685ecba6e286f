package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ethosgate/ethosgate/internal/canonical"
	"github.com/ethosgate/ethosgate/internal/models"
	"github.com/ethosgate/ethosgate/internal/observability/logging"
	"github.com/ethosgate/ethosgate/internal/observability/receipt"
	"github.com/ethosgate/ethosgate/internal/pipeline"
	"github.com/ethosgate/ethosgate/internal/seal"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate one candidate action",
	Long: `Evaluate projects the consequence of one action request, scores it
and prints the resulting decision: APPROVED, TRANSFORMED or REJECTED.

The request is read from a JSON or YAML file (--input, "-" for stdin)
or built from --description and --attr flags.

Example:
  ethosgate evaluate --input request.yaml
  ethosgate evaluate --description "Send a thank-you note" --attr benefit=3
  ethosgate evaluate --config strict --input request.json --output json --seal decision.json`,
	SilenceUsage: true,
	RunE:         runEvaluate,
}

var (
	evalConfigFlag       string
	evalInputFlag        string
	evalIDFlag           string
	evalDescriptionFlag  string
	evalAttrFlag         []string
	evalOutputFlag       string
	evalSealFlag         string
	evalSignKeyFlag      string
	evalCanonicalization string
	evalFailOnRejectFlag bool
)

func init() {
	f := evaluateCmd.Flags()
	f.StringVarP(&evalConfigFlag, "config", "c", "baseline", "Preset name (baseline, strict) or path to a config YAML file")
	f.StringVarP(&evalInputFlag, "input", "i", "", "Request file (JSON or YAML); - for stdin")
	f.StringVar(&evalIDFlag, "id", "cli", "Request id when using --description")
	f.StringVarP(&evalDescriptionFlag, "description", "d", "", "Action description (instead of --input)")
	f.StringArrayVarP(&evalAttrFlag, "attr", "a", nil, "Attribute key=value (repeatable)")
	f.StringVarP(&evalOutputFlag, "output", "o", formatText, "Output format: text or json")
	f.StringVar(&evalSealFlag, "seal", "", "Write the sealed decision to this path")
	f.StringVar(&evalSignKeyFlag, "sign-key", "", "Sign the seal with this Ed25519 private key")
	f.StringVar(&evalCanonicalization, "canonicalization", string(canonical.DefaultVersion), "Canonicalization version for the seal (v1 or v2)")
	f.BoolVar(&evalFailOnRejectFlag, "fail-on-reject", false, "Exit 1 when the decision is REJECTED")
}

// GetEvaluateCmd returns the evaluate command
func GetEvaluateCmd() *cobra.Command {
	return evaluateCmd
}

func runEvaluate(cmd *cobra.Command, args []string) (err error) {
	ctx := cmd.Context()
	sess := receipt.Start(ctx, "ethosgate evaluate", os.Args[1:])
	var receiptOpts []receipt.Option
	defer func() {
		_ = sess.Finish(err, receiptOpts...)
	}()

	log := logging.From(ctx)

	if err := validateFormat(evalOutputFlag); err != nil {
		return err
	}
	version, err := canonical.ParseVersion(evalCanonicalization)
	if err != nil {
		return err
	}

	req, err := evaluateRequest(cmd)
	if err != nil {
		return err
	}

	p, err := loadPipeline(evalConfigFlag, time.Now)
	if err != nil {
		return err
	}
	snap := p.Snapshot()
	receiptOpts = append(receiptOpts, receipt.WithConfig(snap.Name(), snap.Source()))

	decision, err := p.EvaluateContext(ctx, req)
	if err != nil {
		receiptOpts = append(receiptOpts, receipt.WithFailedRequest(req.ID, err))
		return err
	}

	var s seal.Seal
	if evalSignKeyFlag != "" {
		s, err = seal.Sign(decision, version, evalSignKeyFlag)
	} else {
		s, err = seal.Compute(decision, version)
	}
	if err != nil {
		return fmt.Errorf("failed to seal decision: %w", err)
	}
	receiptOpts = append(receiptOpts, receipt.WithDecision(decision, s.Digest, req.Attributes))

	if evalSealFlag != "" {
		if err := seal.WriteEnvelope(evalSealFlag, seal.Envelope{Decision: decision, Seal: s}); err != nil {
			return err
		}
		log.Info("evaluate", "sealed decision written", "path", evalSealFlag, "signed", s.Signature != "")
	}

	out := cmd.OutOrStdout()
	if evalOutputFlag == formatJSON {
		if err := writeJSON(out, EvaluateOutput{
			SchemaVersion: OutputSchemaVersion,
			Config:        snap.Name(),
			Decision:      decision,
			Seal:          &s,
		}); err != nil {
			return err
		}
	} else {
		printDecision(out, decision, s.Digest)
	}

	if evalFailOnRejectFlag && decision.Verdict == models.VerdictRejected {
		return &ExitError{Code: 1}
	}
	return nil
}

// evaluateRequest builds the single request from --input or --description
func evaluateRequest(cmd *cobra.Command) (models.ActionRequest, error) {
	if evalInputFlag != "" && evalDescriptionFlag != "" {
		return models.ActionRequest{}, fmt.Errorf("cannot use both --input and --description; choose one")
	}

	if evalInputFlag == "" {
		if strings.TrimSpace(evalDescriptionFlag) == "" {
			return models.ActionRequest{}, fmt.Errorf("no request given (use --input or --description)")
		}
		attrs, err := parseAttrFlags(evalAttrFlag)
		if err != nil {
			return models.ActionRequest{}, err
		}
		return models.ActionRequest{ID: evalIDFlag, Description: evalDescriptionFlag, Attributes: attrs}, nil
	}

	if len(evalAttrFlag) > 0 {
		return models.ActionRequest{}, fmt.Errorf("--attr can only be used with --description")
	}
	data, err := readInput(evalInputFlag, cmd.InOrStdin())
	if err != nil {
		return models.ActionRequest{}, err
	}
	reqs, err := decodeRequests(data, evalInputFlag)
	if err != nil {
		return models.ActionRequest{}, err
	}
	if len(reqs) != 1 {
		return models.ActionRequest{}, fmt.Errorf("evaluate takes exactly one request, got %d (use batch)", len(reqs))
	}
	return reqs[0], nil
}

// loadPipeline resolves a preset or config file into a pipeline that refuses
// to evaluate once the snapshot's validity window has passed
func loadPipeline(ref string, now func() time.Time) (*pipeline.Pipeline, error) {
	src, err := newGateSource(ref, now, nil)
	if err != nil {
		return nil, err
	}
	return src.Pipeline()
}

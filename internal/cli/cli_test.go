package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethosgate/ethosgate/internal/models"
	"github.com/ethosgate/ethosgate/internal/observability/receipt"
	"github.com/ethosgate/ethosgate/internal/seal"
)

// resetFlags restores every flag to its default so runs do not leak into each other
func resetFlags() {
	var reset func(c *cobra.Command)
	reset = func(c *cobra.Command) {
		for _, fs := range []*pflag.FlagSet{c.Flags(), c.PersistentFlags()} {
			fs.VisitAll(func(f *pflag.Flag) {
				if sv, ok := f.Value.(pflag.SliceValue); ok {
					_ = sv.Replace(nil)
				} else {
					_ = f.Value.Set(f.DefValue)
				}
				f.Changed = false
			})
		}
		for _, sub := range c.Commands() {
			reset(sub)
		}
	}
	reset(rootCmd)
}

func executeCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	})
	err := run(context.Background(), args)
	return buf.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func exitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return -1
}

func TestEvaluate_Approved(t *testing.T) {
	out, err := executeCLI(t, "evaluate", "--description", "Send a thank-you note", "--attr", "benefit=3")
	require.NoError(t, err)

	assert.Contains(t, out, "[APPROVED]")
	assert.Contains(t, out, "Action:     Send a thank-you note")
	// 3 of 5 indicators evaluable: knowledge 0.6 + kindness 3
	assert.Contains(t, out, "Alignment:  3.6000")
	assert.Contains(t, out, "Seal:       sha256:")
}

func TestEvaluate_TransformedJSON(t *testing.T) {
	input := writeFile(t, "req.json", `{"id":"trade-1","description":"Execute a trade to make money"}`)
	out, err := executeCLI(t, "evaluate", "--input", input, "--output", "json")
	require.NoError(t, err)

	var doc EvaluateOutput
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, OutputSchemaVersion, doc.SchemaVersion)
	assert.Equal(t, "baseline", doc.Config)
	assert.Equal(t, models.VerdictTransformed, doc.Decision.Verdict)
	assert.Equal(t, "request information about a trade to make money", doc.Decision.Action)
	assert.Equal(t, []string{"income_pressure"}, doc.Decision.Estimate.Triggered)
	assert.InDelta(t, -1.9, doc.Decision.Evaluation.AlignmentValue, 1e-9)
	require.NotNil(t, doc.Seal)
	assert.Equal(t, "v2", string(doc.Seal.CanonVersion))
}

func TestEvaluate_FailOnReject(t *testing.T) {
	out, err := executeCLI(t, "evaluate", "--description", "Forge a counterfeit passport", "--fail-on-reject")
	require.Error(t, err)
	assert.Equal(t, 1, exitCode(err))
	assert.Contains(t, out, "[REJECTED]")
	assert.Contains(t, out, "dominant negative contributor: karma")

	_, err = executeCLI(t, "evaluate", "--description", "Forge a counterfeit passport")
	assert.NoError(t, err, "rejection alone is not a failure without --fail-on-reject")
}

func TestEvaluate_InvalidUsage(t *testing.T) {
	input := writeFile(t, "reqs.yaml", "- id: a\n  description: one\n- id: b\n  description: two\n")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no request", []string{"evaluate"}, "no request given"},
		{"both sources", []string{"evaluate", "--input", input, "--description", "x"}, "cannot use both"},
		{"list input", []string{"evaluate", "--input", input}, "exactly one request"},
		{"bad format", []string{"evaluate", "--description", "x", "--output", "xml"}, "invalid format"},
		{"bad canon", []string{"evaluate", "--description", "x", "--canonicalization", "v9"}, "unknown canonicalization"},
		{"unknown preset file", []string{"evaluate", "--description", "x", "--config", "/nonexistent/gate.yaml"}, "failed to read config file"},
		{"benefit out of range", []string{"evaluate", "--description", "x", "--attr", "benefit=11"}, "must lie in"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := executeCLI(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.Equal(t, -1, exitCode(err), "usage errors are runtime errors, not gate outcomes")
		})
	}
}

func TestEvaluate_SealSignAndVerify(t *testing.T) {
	dir := t.TempDir()
	priv := filepath.Join(dir, "keys", "private.key")
	pub := filepath.Join(dir, "keys", "public.key")
	sealed := filepath.Join(dir, "decision.json")

	out, err := executeCLI(t, "keygen", "--private", priv, "--public", pub)
	require.NoError(t, err)
	assert.Contains(t, out, "Private key saved")

	_, err = executeCLI(t, "keygen", "--private", priv, "--public", pub)
	require.Error(t, err, "keygen must not overwrite existing keys")

	_, err = executeCLI(t, "evaluate", "--description", "Send a thank-you note", "--seal", sealed, "--sign-key", priv)
	require.NoError(t, err)

	out, err = executeCLI(t, "verify", sealed, "--key", pub)
	require.NoError(t, err)
	assert.Contains(t, out, "matches its seal")
	assert.Contains(t, out, "Signature valid")

	out, err = executeCLI(t, "verify", sealed)
	require.NoError(t, err)
	assert.Contains(t, out, "Signature present but not checked")

	// tamper with the verdict
	env, err := seal.ReadEnvelope(sealed)
	require.NoError(t, err)
	env.Decision.Evaluation.AlignmentValue = 99
	require.NoError(t, seal.WriteEnvelope(sealed, env))

	out, err = executeCLI(t, "verify", sealed, "--key", pub)
	require.Error(t, err)
	assert.Equal(t, 1, exitCode(err))
	assert.True(t, errors.Is(err, seal.ErrDigestMismatch))
	assert.Contains(t, out, "Verification failed")
}

func TestVerify_UnsignedWithKey(t *testing.T) {
	dir := t.TempDir()
	priv := filepath.Join(dir, "private.key")
	pub := filepath.Join(dir, "public.key")
	sealed := filepath.Join(dir, "decision.json")

	_, err := executeCLI(t, "keygen", "--private", priv, "--public", pub)
	require.NoError(t, err)
	_, err = executeCLI(t, "evaluate", "--description", "Send a thank-you note", "--seal", sealed)
	require.NoError(t, err)

	_, err = executeCLI(t, "verify", sealed)
	require.NoError(t, err)

	_, err = executeCLI(t, "verify", sealed, "--key", pub)
	require.Error(t, err)
	assert.True(t, errors.Is(err, seal.ErrUnsigned))
}

func TestBatch_JSONKeepsOrderAndReportsErrors(t *testing.T) {
	input := writeFile(t, "reqs.yaml", `
- id: ok
  description: Send a thank-you note
  attributes:
    benefit: 2
- id: bad
  description: ""
- id: forged
  description: Forge a counterfeit passport
`)
	out, err := executeCLI(t, "batch", "--input", input, "--output", "json", "--parallelism", "2")
	require.NoError(t, err)

	var doc BatchOutput
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, BatchSummary{Approved: 1, Rejected: 1, Errors: 1, Total: 3}, doc.Summary)
	require.Len(t, doc.Results, 3)

	assert.Equal(t, "ok", doc.Results[0].RequestID)
	require.NotNil(t, doc.Results[0].Decision)
	assert.Equal(t, models.VerdictApproved, doc.Results[0].Decision.Verdict)
	assert.NotEmpty(t, doc.Results[0].Digest)

	assert.Equal(t, "bad", doc.Results[1].RequestID)
	assert.Nil(t, doc.Results[1].Decision)
	assert.NotEmpty(t, doc.Results[1].Error)

	assert.Equal(t, models.VerdictRejected, doc.Results[2].Decision.Verdict)

	_, err = executeCLI(t, "batch", "--input", input, "--fail-on-reject")
	assert.Equal(t, 1, exitCode(err))
}

func TestConfigValidate(t *testing.T) {
	out, err := executeCLI(t, "config", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "baseline")
	assert.Contains(t, out, "strict")

	broken := writeFile(t, "broken.yaml", `
name: broken
weights: {knowledge: 1, karma: 5, kindness: 1}
threshold: 0.5
configured_low: -5
catastrophic_severity: 3
indicators: []
`)
	out, err = executeCLI(t, "config", "validate", "baseline", broken)
	require.Error(t, err)
	assert.Equal(t, 1, exitCode(err))
	assert.Contains(t, out, "weights.karma")
}

func TestDiff_PresetDrift(t *testing.T) {
	input := writeFile(t, "reqs.json", `[{"id":"forged","description":"Forge a counterfeit passport"}]`)

	out, err := executeCLI(t, "diff", "--base", "baseline", "--candidate", "baseline", "--input", input)
	require.NoError(t, err)
	assert.Contains(t, out, "No changes detected")

	out, err = executeCLI(t, "diff", "--base", "baseline", "--candidate", "strict", "--input", input, "--fail-on", "info", "--format", "json")
	require.Error(t, err)
	assert.Equal(t, 1, exitCode(err))

	var result map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, true, result["has_changes"])
	assert.Equal(t, "strict", result["candidate_config"])
}

func TestReceipt_WrittenForEvaluate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "receipts.jsonl")

	_, err := executeCLI(t, "--receipt", path, "--receipt-mode", "append",
		"evaluate", "--description", "Send a thank-you note", "--attr", "api_token=abcdef")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var r receipt.Receipt
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &r))
	assert.Equal(t, "ethosgate evaluate", r.Command)
	assert.Equal(t, "success", r.Result.Status)
	assert.NotEmpty(t, r.OpID)
	require.NotNil(t, r.Config)
	assert.Equal(t, "baseline", r.Config.Name)
	require.Len(t, r.Decisions, 1)
	assert.Equal(t, "APPROVED", r.Decisions[0].Verdict)
	assert.Equal(t, "[REDACTED]", r.Decisions[0].Attributes["api_token"])
}

func TestReceipt_SQLiteLedger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")

	for i := 0; i < 2; i++ {
		_, err := executeCLI(t, "--receipt", path, "--receipt-mode", "sqlite",
			"evaluate", "--id", "ledger-1", "--description", "Send a thank-you note")
		require.NoError(t, err)
	}

	out, err := executeCLI(t, "receipts", path, "--request", "ledger-1", "--output", "json")
	require.NoError(t, err)
	var got ReceiptsOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "ledger-1", got.RequestID)
	require.Len(t, got.Receipts, 2)
	for _, r := range got.Receipts {
		assert.Equal(t, "ethosgate evaluate", r.Command)
		require.Len(t, r.Decisions, 1)
		assert.Equal(t, "APPROVED", r.Decisions[0].Verdict)
	}

	out, err = executeCLI(t, "receipts", path, "--request", "ledger-1")
	require.NoError(t, err)
	assert.Contains(t, out, "[APPROVED]")
	assert.Contains(t, out, "2 receipt(s) for ledger-1")

	out, err = executeCLI(t, "receipts", path, "--request", "other")
	require.NoError(t, err)
	assert.Contains(t, out, "No receipts for request other")
}

func TestReceipts_MissingLedger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.db")
	_, err := executeCLI(t, "receipts", path, "--request", "ledger-1")
	assert.ErrorContains(t, err, "failed to open receipt ledger")
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "a query never creates the ledger")
}

func TestLogging_InvalidFormat(t *testing.T) {
	_, err := executeCLI(t, "--log-format", "xml", "config", "validate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown log format")
}

func TestBundle_CreateAndVerify(t *testing.T) {
	dir := t.TempDir()
	priv := filepath.Join(dir, "private.key")
	pub := filepath.Join(dir, "public.key")
	sealed := filepath.Join(dir, "decision.json")
	zipPath := filepath.Join(dir, "evidence.zip")

	_, err := executeCLI(t, "keygen", "--private", priv, "--public", pub)
	require.NoError(t, err)
	_, err = executeCLI(t, "evaluate", "--config", "strict", "--description", "Send a thank-you note",
		"--seal", sealed, "--sign-key", priv)
	require.NoError(t, err)

	out, err := executeCLI(t, "bundle", sealed, "--config", "strict", "--key", pub, "-o", zipPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Bundle created")

	out, err = executeCLI(t, "verify", zipPath, "--key", pub)
	require.NoError(t, err)
	assert.Contains(t, out, "Bundle files match manifest")
	assert.Contains(t, out, "config strict")
	assert.Contains(t, out, "matches its seal")

	// an altered decision is refused
	env, err := seal.ReadEnvelope(sealed)
	require.NoError(t, err)
	env.Decision.Verdict = models.VerdictRejected
	require.NoError(t, seal.WriteEnvelope(sealed, env))
	_, err = executeCLI(t, "bundle", sealed, "-o", filepath.Join(dir, "other.zip"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, seal.ErrDigestMismatch))
}

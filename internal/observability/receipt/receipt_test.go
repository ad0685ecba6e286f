package receipt

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethosgate/ethosgate/internal/models"
	"github.com/ethosgate/ethosgate/internal/observability"
)

func sampleDecision() models.Decision {
	req := models.ActionRequest{ID: "req-1", Description: "destroy the archive"}
	return models.Rejected(req, "alignment value -158.1000 is below configured low -5.0000",
		models.EvaluationResult{AlignmentValue: -158.1},
		models.ConsequenceEstimate{Severity: 4, Confidence: 1, Triggered: []string{"strategic_elimination"}})
}

func readReceipt(t *testing.T, path string) Receipt {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var r Receipt
	require.NoError(t, json.Unmarshal(data, &r), "content: %s", data)
	return r
}

func TestParseMode(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want Mode
	}{
		{"", ModeOverwrite},
		{"overwrite", ModeOverwrite},
		{"append", ModeAppend},
		{"sqlite", ModeSQLite},
	} {
		got, err := ParseMode(tc.in)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}

	_, err := ParseMode("s3")
	assert.Error(t, err)
}

func TestWriterOverwrite_TruncatesOnOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "receipt.json")
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("stale ", 100)), 0644))

	w, err := NewWriter(path, "overwrite")
	require.NoError(t, err)
	require.NoError(t, w.Write(Receipt{SchemaVersion: ReceiptSchemaVersion, OpID: "fresh", Result: Result{Status: "success"}}))
	require.NoError(t, w.Close())

	r := readReceipt(t, path)
	assert.Equal(t, "fresh", r.OpID)
	assert.Equal(t, "1.0", r.SchemaVersion)
}

func TestWriterAppend_JSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "receipts.jsonl")

	for _, id := range []string{"op-1", "op-2"} {
		w, err := NewWriter(path, "append")
		require.NoError(t, err)
		require.NoError(t, w.Write(Receipt{SchemaVersion: ReceiptSchemaVersion, OpID: id, Result: Result{Status: "success"}}))
		require.NoError(t, w.Close())
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)

	var first, second Receipt
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, "op-1", first.OpID)
	assert.Equal(t, "op-2", second.OpID)
}

func TestWriterCreatesDirectories(t *testing.T) {
	nested := filepath.Join(t.TempDir(), "a", "b", "receipt.json")
	w, err := NewWriter(nested, "overwrite")
	require.NoError(t, err)
	defer w.Close()

	_, err = os.Stat(filepath.Dir(nested))
	assert.NoError(t, err)
}

func TestSessionFinish_RecordsDecision(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "gate.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("name: test\n"), 0644))
	wantHash, err := computeSHA256(cfgPath)
	require.NoError(t, err)

	path := filepath.Join(dir, "receipt.json")
	w, err := NewWriter(path, "overwrite")
	require.NoError(t, err)

	ctx := observability.WithGivenOpID(context.Background(), "op-abc")
	ctx = WithWriter(ctx, w)

	attrs := models.Attributes{
		"user_intent": models.Cat("Strategic Elimination"),
		"benefit":     models.Num(2),
		"api_token":   models.Cat("abc"),
	}
	sess := Start(ctx, "ethosgate evaluate", []string{"--config", cfgPath, "--sign-key", "k.pem"})
	require.NoError(t, sess.Finish(nil,
		WithConfig("test", cfgPath),
		WithDecision(sampleDecision(), "sha256:00ff", attrs),
	))
	require.NoError(t, w.Close())

	r := readReceipt(t, path)
	assert.Equal(t, "op-abc", r.OpID)
	assert.Equal(t, "success", r.Result.Status)
	assert.True(t, r.ArgsRedacted)
	assert.Equal(t, "[REDACTED]", r.Args[3])

	require.NotNil(t, r.Config)
	assert.Equal(t, wantHash, r.Config.SHA256)

	require.Len(t, r.Decisions, 1)
	d := r.Decisions[0]
	assert.Equal(t, "req-1", d.RequestID)
	assert.Equal(t, "REJECTED", d.Verdict)
	assert.InDelta(t, -158.1, d.AlignmentValue, 1e-9)
	assert.Equal(t, []string{"strategic_elimination"}, d.Triggered)
	assert.Equal(t, "sha256:00ff", d.Digest)
	assert.Equal(t, "2", d.Attributes["benefit"])
	assert.Equal(t, "[REDACTED]", d.Attributes["api_token"])
}

func TestSessionFinish_PresetHasNoHash(t *testing.T) {
	path := filepath.Join(t.TempDir(), "receipt.json")
	w, err := NewWriter(path, "overwrite")
	require.NoError(t, err)

	ctx := WithWriter(observability.WithOpID(context.Background()), w)
	require.NoError(t, Start(ctx, "ethosgate evaluate", nil).Finish(nil, WithConfig("baseline", "preset:baseline")))
	require.NoError(t, w.Close())

	r := readReceipt(t, path)
	require.NotNil(t, r.Config)
	assert.Empty(t, r.Config.SHA256)
}

func TestSessionFinish_TruncatesError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "receipt.json")
	w, err := NewWriter(path, "overwrite")
	require.NoError(t, err)

	ctx := WithWriter(observability.WithOpID(context.Background()), w)
	longErr := errors.New(strings.Repeat("x", 5000))
	require.NoError(t, Start(ctx, "ethosgate batch", nil).Finish(longErr, WithFailedRequest("req-9", longErr)))
	require.NoError(t, w.Close())

	r := readReceipt(t, path)
	assert.Equal(t, "fail", r.Result.Status)
	assert.Len(t, r.Result.Error, MaxErrorLength)
	require.Len(t, r.Decisions, 1)
	assert.Equal(t, "req-9", r.Decisions[0].RequestID)
	assert.Len(t, r.Decisions[0].Error, MaxErrorLength)
}

func TestSessionFinish_NoWriter(t *testing.T) {
	assert.NoError(t, Start(context.Background(), "ethosgate evaluate", nil).Finish(nil))
}

func TestContextWithWriter(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, From(ctx))

	w, err := NewWriter(filepath.Join(t.TempDir(), "r.json"), "overwrite")
	require.NoError(t, err)
	defer w.Close()
	assert.Equal(t, w, From(WithWriter(ctx, w)))
}

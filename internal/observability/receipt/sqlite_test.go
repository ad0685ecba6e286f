package receipt

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethosgate/ethosgate/internal/models"
)

func TestSQLiteWriter_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger", "receipts.db")
	w, err := NewWriter(path, "sqlite")
	require.NoError(t, err)
	ledger, ok := w.(*SQLiteWriter)
	require.True(t, ok, "sqlite mode should return *SQLiteWriter")
	defer ledger.Close()

	first := Receipt{
		SchemaVersion: ReceiptSchemaVersion,
		OpID:          "op-1",
		TsStart:       "2026-01-01T00:00:00Z",
		TsEnd:         "2026-01-01T00:00:01Z",
		Command:       "ethosgate evaluate",
		Result:        Result{Status: "success"},
		Config:        &ConfigRef{Name: "baseline", Source: "preset:baseline"},
		Decisions:     []DecisionSummary{SummarizeDecision(sampleDecision(), "sha256:aa", nil)},
	}
	second := first
	second.OpID = "op-2"
	second.TsStart = "2026-01-02T00:00:00Z"
	second.Decisions = []DecisionSummary{
		SummarizeDecision(sampleDecision(), "sha256:bb", nil),
		SummarizeDecision(models.Approved(models.ActionRequest{ID: "req-2", Description: "send a thank-you note"},
			models.EvaluationResult{AlignmentValue: 3}, models.ConsequenceEstimate{Confidence: 1}), "", nil),
	}

	require.NoError(t, ledger.Write(first))
	require.NoError(t, ledger.Write(second))

	got, err := ledger.ByRequest(context.Background(), "req-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "op-1", got[0].OpID)
	assert.Equal(t, "op-2", got[1].OpID)
	assert.Equal(t, "sha256:bb", got[1].Decisions[0].Digest)

	got, err = ledger.ByRequest(context.Background(), "req-2")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "APPROVED", got[0].Decisions[1].Verdict)
}

func TestSQLiteWriter_DuplicateOpID(t *testing.T) {
	ledger, err := NewSQLiteWriter(filepath.Join(t.TempDir(), "receipts.db"))
	require.NoError(t, err)
	defer ledger.Close()

	r := Receipt{SchemaVersion: ReceiptSchemaVersion, OpID: "dup", Command: "ethosgate evaluate", Result: Result{Status: "success"}}
	require.NoError(t, ledger.Write(r))
	assert.Error(t, ledger.Write(r))
}

func TestSQLiteWriter_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "receipts.db")
	ledger, err := NewSQLiteWriter(path)
	require.NoError(t, err)
	require.NoError(t, ledger.Write(Receipt{
		SchemaVersion: ReceiptSchemaVersion,
		OpID:          "op-1",
		Command:       "ethosgate evaluate",
		Result:        Result{Status: "success"},
		Decisions:     []DecisionSummary{{RequestID: "req-1", Verdict: "APPROVED"}},
	}))
	require.NoError(t, ledger.Close())

	reopened, err := NewSQLiteWriter(path)
	require.NoError(t, err)
	defer reopened.Close()
	got, err := reopened.ByRequest(context.Background(), "req-1")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

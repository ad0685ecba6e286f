// Package receipt writes audit receipts for each CLI invocation.
package receipt

// ReceiptSchemaVersion current
const ReceiptSchemaVersion = "1.0"

// Receipt is one audit record
type Receipt struct {
	SchemaVersion string            `json:"schema_version"`
	OpID          string            `json:"op_id"`
	TsStart       string            `json:"ts_start"`
	TsEnd         string            `json:"ts_end"`
	Command       string            `json:"command"`
	Args          []string          `json:"args"`
	ArgsRedacted  bool              `json:"args_redacted,omitempty"`
	Result        Result            `json:"result"`
	Config        *ConfigRef        `json:"config,omitempty"`
	Decisions     []DecisionSummary `json:"decisions,omitempty"`
	Drift         *DriftSummary     `json:"drift,omitempty"`
}

// Result status
type Result struct {
	Status string `json:"status"` // success|fail
	Error  string `json:"error,omitempty"`
}

// ConfigRef names the snapshot a command ran under
type ConfigRef struct {
	Name   string `json:"name"`
	Source string `json:"source"`
	SHA256 string `json:"sha256,omitempty"`
}

// DecisionSummary is the audit view of one decision
type DecisionSummary struct {
	RequestID      string            `json:"request_id"`
	Verdict        string            `json:"verdict"`
	AlignmentValue float64           `json:"alignment_value"`
	Triggered      []string          `json:"triggered,omitempty"`
	Digest         string            `json:"digest,omitempty"`
	Attributes     map[string]string `json:"attributes,omitempty"`
	Error          string            `json:"error,omitempty"`
}

// DriftSummary counts decision changes between two snapshots
type DriftSummary struct {
	Critical int    `json:"critical"`
	Moderate int    `json:"moderate"`
	Info     int    `json:"info"`
	Summary  string `json:"summary,omitempty"`
}

package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ethosgate/ethosgate/internal/models"
	"github.com/ethosgate/ethosgate/internal/observability/receipt"
)

// receiptsCmd queries the SQLite receipt ledger
var receiptsCmd = &cobra.Command{
	Use:   "receipts <ledger.db>",
	Short: "Show the audit trail of a request from a receipt ledger",
	Long: `Receipts lists every recorded invocation that decided the given request,
oldest first, from a ledger written with --receipt-mode sqlite.

Example:
  ethosgate --receipt ledger.db --receipt-mode sqlite evaluate --id req-7 -d "Send a note"
  ethosgate receipts ledger.db --request req-7
  ethosgate receipts ledger.db --request req-7 --output json`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE:         runReceipts,
}

var (
	receiptsRequestFlag string
	receiptsOutputFlag  string
)

func init() {
	receiptsCmd.Flags().StringVarP(&receiptsRequestFlag, "request", "r", "", "Request ID to look up")
	receiptsCmd.Flags().StringVarP(&receiptsOutputFlag, "output", "o", formatText, "Output format: text or json")
	_ = receiptsCmd.MarkFlagRequired("request")
}

// GetReceiptsCmd returns the receipts command
func GetReceiptsCmd() *cobra.Command {
	return receiptsCmd
}

// ReceiptsOutput is the JSON result of a ledger query
type ReceiptsOutput struct {
	SchemaVersion string            `json:"schema_version"`
	RequestID     string            `json:"request_id"`
	Receipts      []receipt.Receipt `json:"receipts"`
}

func runReceipts(cmd *cobra.Command, args []string) error {
	if err := validateFormat(receiptsOutputFlag); err != nil {
		return err
	}
	path := args[0]
	// opening a missing path would create an empty ledger
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("failed to open receipt ledger: %w", err)
	}

	ledger, err := receipt.NewSQLiteWriter(path)
	if err != nil {
		return err
	}
	defer ledger.Close()

	found, err := ledger.ByRequest(cmd.Context(), receiptsRequestFlag)
	if err != nil {
		return fmt.Errorf("failed to query receipt ledger: %w", err)
	}

	out := cmd.OutOrStdout()
	if receiptsOutputFlag == formatJSON {
		if found == nil {
			found = []receipt.Receipt{}
		}
		return writeJSON(out, ReceiptsOutput{
			SchemaVersion: OutputSchemaVersion,
			RequestID:     receiptsRequestFlag,
			Receipts:      found,
		})
	}

	if len(found) == 0 {
		fmt.Fprintf(out, "%s⚠ No receipts for request %s%s\n", colorYellow, receiptsRequestFlag, colorReset)
		return nil
	}
	for _, r := range found {
		printReceipt(out, r, receiptsRequestFlag)
	}
	fmt.Fprintf(out, "%d receipt(s) for %s\n", len(found), receiptsRequestFlag)
	return nil
}

func printReceipt(w io.Writer, r receipt.Receipt, requestID string) {
	config := "-"
	if r.Config != nil {
		config = r.Config.Name
	}
	fmt.Fprintf(w, "%s  %s  %s  (config %s, op %s)\n", r.TsStart, r.Command, r.Result.Status, config, r.OpID)
	for _, d := range r.Decisions {
		if d.RequestID != requestID {
			continue
		}
		if d.Error != "" {
			fmt.Fprintf(w, "  %s[ERROR]%s %s\n", colorRed, colorReset, d.Error)
			continue
		}
		fmt.Fprintf(w, "  %s[%s]%s value %s", verdictColor(models.Verdict(d.Verdict)), d.Verdict, colorReset, num(d.AlignmentValue))
		if d.Digest != "" {
			fmt.Fprintf(w, "  %s", d.Digest)
		}
		fmt.Fprintln(w)
	}
}

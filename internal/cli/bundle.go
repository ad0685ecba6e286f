package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ethosgate/ethosgate/internal/bundler"
	"github.com/ethosgate/ethosgate/internal/config"
	"github.com/ethosgate/ethosgate/internal/seal"
)

// bundleCmd packs evidence for auditors
var bundleCmd = &cobra.Command{
	Use:   "bundle <sealed-decision.json>",
	Short: "Create an evidence bundle for a sealed decision",
	Long: `Bundle creates a deterministic zip archive holding a sealed decision,
the configuration it was evaluated under, and optionally the public key
and audit receipt. A manifest records the SHA-256 of every file.

The seal is verified before bundling; an altered decision is refused.

Example:
  ethosgate bundle decision.json
  ethosgate bundle decision.json --config strict --key public.key --receipt receipt.json -o evidence.zip`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE:         runBundle,
}

var (
	bundleConfigFlag  string
	bundleKeyFlag     string
	bundleReceiptFlag string
	bundleOutputFlag  string
)

func init() {
	bundleCmd.Flags().StringVarP(&bundleConfigFlag, "config", "c", "baseline", "Preset name or config file the decision was evaluated under")
	bundleCmd.Flags().StringVarP(&bundleKeyFlag, "key", "k", "", "Public key to verify the signature and include in the bundle")
	bundleCmd.Flags().StringVar(&bundleReceiptFlag, "receipt", "", "Audit receipt file to include")
	bundleCmd.Flags().StringVarP(&bundleOutputFlag, "output", "o", "evidence.zip", "Output path for the zip file")
}

// GetBundleCmd returns the bundle command
func GetBundleCmd() *cobra.Command {
	return bundleCmd
}

const bundleReadme = `ethosgate evidence bundle

Files:
  manifest.json  decision digest, verdict and SHA-256 of every file
  decision.json  the sealed decision (decision + seal)
  config.yaml    the gate configuration the decision was evaluated under
  public.key     Ed25519 public key (when the decision is signed)
  receipt.json   audit receipt of the evaluation (optional)

To check the bundle and the decision seal:
  ethosgate verify <bundle.zip> --key <trusted public.key>
`

func runBundle(cmd *cobra.Command, args []string) error {
	sealedPath := args[0]
	sealedData, err := os.ReadFile(sealedPath)
	if err != nil {
		return fmt.Errorf("failed to read sealed decision: %w", err)
	}
	var env seal.Envelope
	if err := json.Unmarshal(sealedData, &env); err != nil {
		return fmt.Errorf("failed to parse sealed decision: %w", err)
	}
	if err := seal.Verify(env.Decision, env.Seal, bundleKeyFlag); err != nil {
		return fmt.Errorf("refusing to bundle: %w", err)
	}

	snap, err := config.Resolve(bundleConfigFlag)
	if err != nil {
		return err
	}
	configYAML, err := marshalConfig(snap)
	if err != nil {
		return err
	}

	entries := []bundler.Entry{
		{Name: bundler.DecisionName, Data: sealedData},
		{Name: bundler.ConfigName, Data: configYAML},
		{Name: bundler.ReadmeName, Data: []byte(bundleReadme)},
	}
	if bundleKeyFlag != "" {
		key, err := os.ReadFile(bundleKeyFlag)
		if err != nil {
			return fmt.Errorf("failed to read public key: %w", err)
		}
		entries = append(entries, bundler.Entry{Name: bundler.PublicKey, Data: key})
	}
	if bundleReceiptFlag != "" {
		rec, err := os.ReadFile(bundleReceiptFlag)
		if err != nil {
			return fmt.Errorf("failed to read receipt: %w", err)
		}
		entries = append(entries, bundler.Entry{Name: bundler.ReceiptName, Data: rec})
	}

	manifest := bundler.NewManifest(env, snap.Name(), entries)
	if err := bundler.Write(bundleOutputFlag, manifest, entries); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s✓ Bundle created: %s%s\n", colorGreen, bundleOutputFlag, colorReset)
	fmt.Fprintf(out, "  Decision: %s (%s)\n", env.Decision.RequestID, env.Decision.Verdict)
	fmt.Fprintf(out, "  Files:    %d\n", len(manifest.Files)+1)
	return nil
}

func marshalConfig(snap *config.Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(snap.Config()); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// readEnvelopeOrBundle loads a sealed decision from a JSON file or from the
// decision.json of an evidence bundle.
func readEnvelopeOrBundle(path string) (seal.Envelope, *bundler.Manifest, error) {
	if !strings.HasSuffix(strings.ToLower(path), ".zip") {
		env, err := seal.ReadEnvelope(path)
		return env, nil, err
	}

	manifest, files, err := bundler.Open(path)
	if err != nil {
		return seal.Envelope{}, nil, err
	}
	data, ok := files[bundler.DecisionName]
	if !ok {
		return seal.Envelope{}, nil, fmt.Errorf("%w: no %s", bundler.ErrCorrupt, bundler.DecisionName)
	}
	var env seal.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return seal.Envelope{}, nil, fmt.Errorf("failed to parse %s: %w", bundler.DecisionName, err)
	}
	if env.Seal.Digest != manifest.Digest {
		return seal.Envelope{}, nil, fmt.Errorf("%w: manifest digest %s does not match sealed digest %s",
			bundler.ErrCorrupt, manifest.Digest, env.Seal.Digest)
	}
	return env, manifest, nil
}

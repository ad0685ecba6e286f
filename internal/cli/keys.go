package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ethosgate/ethosgate/internal/bundler"
	"github.com/ethosgate/ethosgate/internal/crypto"
	"github.com/ethosgate/ethosgate/internal/observability/receipt"
	"github.com/ethosgate/ethosgate/internal/seal"
)

const (
	defaultPrivateKeyPath = "private.key"
	defaultPublicKeyPath  = "public.key"
)

// keygenCmd represents the keygen command
var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate Ed25519 keypair for signing decisions",
	Long: `Generate a new Ed25519 keypair for signing sealed decisions.

This creates two files:
  - private.key: Keep this secret! Used by evaluate --sign-key.
  - public.key:  Share this with auditors to verify sealed decisions.

Example:
  ethosgate keygen
  ethosgate keygen --private my-private.key --public my-public.key`,
	SilenceUsage: true,
	RunE:         runKeygen,
}

var (
	keygenPrivateFlag string
	keygenPublicFlag  string
)

func init() {
	keygenCmd.Flags().StringVar(&keygenPrivateFlag, "private", defaultPrivateKeyPath, "Path for the private key file")
	keygenCmd.Flags().StringVar(&keygenPublicFlag, "public", defaultPublicKeyPath, "Path for the public key file")
}

// GetKeygenCmd returns the keygen command
func GetKeygenCmd() *cobra.Command {
	return keygenCmd
}

func runKeygen(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(keygenPrivateFlag); err == nil {
		return fmt.Errorf("private key already exists at %s (use different path or delete existing)", keygenPrivateFlag)
	}
	if _, err := os.Stat(keygenPublicFlag); err == nil {
		return fmt.Errorf("public key already exists at %s (use different path or delete existing)", keygenPublicFlag)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Generating Ed25519 keypair...")
	if err := crypto.GenerateKeys(keygenPrivateFlag, keygenPublicFlag); err != nil {
		return fmt.Errorf("key generation failed: %w", err)
	}

	fmt.Fprintf(out, "%s✓ Private key saved: %s%s\n", colorGreen, keygenPrivateFlag, colorReset)
	fmt.Fprintf(out, "%s✓ Public key saved:  %s%s\n", colorGreen, keygenPublicFlag, colorReset)
	fmt.Fprintf(out, "\n%s⚠ Keep your private key secret!%s\n", colorRed, colorReset)
	return nil
}

// verifyCmd checks a sealed decision
var verifyCmd = &cobra.Command{
	Use:   "verify <sealed-decision.json|bundle.zip>",
	Short: "Verify a sealed decision has not been altered",
	Long: `Verify recomputes the digest of a sealed decision written by
evaluate --seal and compares it with the recorded seal. With --key the
Ed25519 signature over the digest is checked as well. For an evidence
bundle every file is first checked against the bundle manifest.

Exit status is 1 when the decision was altered or the signature is invalid.

Example:
  ethosgate verify decision.json
  ethosgate verify decision.json --key public.key
  ethosgate verify evidence.zip --key public.key`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE:         runVerify,
}

var verifyKeyFlag string

func init() {
	verifyCmd.Flags().StringVarP(&verifyKeyFlag, "key", "k", "", "Path to the public key (checks the signature)")
}

// GetVerifyCmd returns the verify command
func GetVerifyCmd() *cobra.Command {
	return verifyCmd
}

func runVerify(cmd *cobra.Command, args []string) (err error) {
	ctx := cmd.Context()
	sess := receipt.Start(ctx, "ethosgate verify", os.Args[1:])
	var receiptOpts []receipt.Option
	defer func() {
		_ = sess.Finish(err, receiptOpts...)
	}()

	out := cmd.OutOrStdout()
	env, manifest, err := readEnvelopeOrBundle(args[0])
	if err != nil {
		if errors.Is(err, bundler.ErrCorrupt) {
			fmt.Fprintf(out, "%s✗ Verification failed: %v%s\n", colorRed, err, colorReset)
			return &ExitError{Code: 1, Err: err}
		}
		return err
	}
	receiptOpts = append(receiptOpts, receipt.WithDecision(env.Decision, env.Seal.Digest, nil))
	if manifest != nil {
		fmt.Fprintf(out, "%s✓ Bundle files match manifest (%d files, config %s)%s\n",
			colorGreen, len(manifest.Files), manifest.Config, colorReset)
	}

	if verr := seal.Verify(env.Decision, env.Seal, verifyKeyFlag); verr != nil {
		if errors.Is(verr, seal.ErrDigestMismatch) || errors.Is(verr, seal.ErrBadSignature) || errors.Is(verr, seal.ErrUnsigned) {
			fmt.Fprintf(out, "%s✗ Verification failed: %v%s\n", colorRed, verr, colorReset)
			return &ExitError{Code: 1, Err: verr}
		}
		return verr
	}

	fmt.Fprintf(out, "%s✓ Decision %s (%s) matches its seal%s\n", colorGreen, env.Decision.RequestID, env.Decision.Verdict, colorReset)
	fmt.Fprintf(out, "  Digest:    %s (%s)\n", env.Seal.Digest, env.Seal.CanonVersion)
	if verifyKeyFlag != "" {
		fmt.Fprintf(out, "%s✓ Signature valid for %s%s\n", colorGreen, verifyKeyFlag, colorReset)
	} else if env.Seal.Signature != "" {
		fmt.Fprintf(out, "%s⚠ Signature present but not checked (use --key)%s\n", colorYellow, colorReset)
	}
	return nil
}

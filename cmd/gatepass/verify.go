package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"gatepass/internal/domain"
	"gatepass/internal/infra/crypto"

	"github.com/spf13/cobra"
)

var (
	verifyCmd = &cobra.Command{
		Use:   "verify",
		Short: "Verify one ticket envelope",
		Args:  cobra.NoArgs,
		RunE:  runVerify,
	}

	verifyIn          *string
	verifyVerifierURL *string
)

func init() {
	verifyIn = verifyCmd.Flags().String("in", "-", "Envelope JSON file, - for stdin")
	verifyVerifierURL = verifyCmd.Flags().String("verifier-url", "", "gatepassd base URL (defaults to $GATEPASS_VERIFIER_URL; empty verifies locally)")
}

type verifyOutput struct {
	domain.VerifyResult
	Action domain.Disposition `json:"action"`
}

func runVerify(cmd *cobra.Command, _ []string) error {
	raw, err := readInput(cmd.InOrStdin(), *verifyIn)
	if err != nil {
		return err
	}

	verifier, err := newGateVerifier(cmd.Context(), *verifyVerifierURL, false)
	if err != nil {
		return err
	}
	defer verifier.close()

	result := domain.Fail(domain.ReasonMalformed, "input is not a ticket envelope")
	if env, err := crypto.ParseEnvelope(raw); err == nil {
		if result, err = verifier.check(cmd.Context(), env); err != nil {
			return err
		}
	}
	decision, err := verifier.decide.Execute(cmd.Context(), result)
	if err != nil {
		logger.Warn().Err(err).Msg("gate policy failed; using built-in classification")
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(verifyOutput{VerifyResult: result, Action: decision.Action}); err != nil {
		return err
	}
	if !result.OK {
		return fmt.Errorf("ticket not admitted: %s", result.Reason)
	}
	return nil
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(io.LimitReader(stdin, 1<<20))
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read envelope: %w", err)
	}
	return raw, nil
}

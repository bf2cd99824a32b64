package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"gatepass/internal/domain"
	"gatepass/internal/infra/crypto"
	"gatepass/internal/infra/remote"
	"gatepass/internal/scanner"

	"github.com/spf13/cobra"
)

var (
	scanCmd = &cobra.Command{
		Use:   "scan",
		Short: "Verify decoded QR text read line by line from stdin",
		Long: `scan reads one decoded QR payload per line, as printed by a camera decoder
or pasted by hand, and prints a gate decision for each new code.

Commands: :next (scan the next attendee), :reset (abandon the current
verification), :quit.`,
		Args: cobra.NoArgs,
		RunE: runScan,
	}

	scanVerifierURL *string
	scanAdmit       *bool
)

func init() {
	scanVerifierURL = scanCmd.Flags().String("verifier-url", "", "gatepassd base URL (defaults to $GATEPASS_VERIFIER_URL; empty verifies locally)")
	scanAdmit = scanCmd.Flags().Bool("admit", false, "Record an admission for every ticket that passes")
}

func runScan(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithCancelCause(cmd.Context())
	defer cancel(nil)

	verifier, err := newGateVerifier(ctx, *scanVerifierURL, *scanAdmit)
	if err != nil {
		return err
	}
	defer verifier.close()
	verifier.refused = cancel

	out := cmd.OutOrStdout()
	machine := &scanner.Machine{
		Ingestor: &scanner.Ingestor{Parser: crypto.NewService()},
		Verifier: verifier,
		Decide:   verifier.decide,
		OnChange: func(s scanner.Snapshot) {
			if ctx.Err() == nil {
				printSnapshot(out, s)
			}
		},
	}
	fmt.Fprintf(out, "operator %s at gate %s\n", verifier.operator.Address, verifier.operator.GateID)
	machine.Start(ctx)
	defer machine.Stop()

	lines := make(chan string)
	go readLines(cmd.InOrStdin(), lines)

	for {
		select {
		case <-ctx.Done():
			return refusal(ctx)
		case line, ok := <-lines:
			if !ok {
				machine.Wait()
				return refusal(ctx)
			}
			switch strings.TrimSpace(line) {
			case ":quit", ":q":
				return nil
			case ":next", ":n":
				machine.Next()
			case ":reset", ":r":
				machine.Stop()
				machine.Start(ctx)
			default:
				machine.OnDecoded(line)
			}
		}
	}
}

// refusal returns why the verifier stopped serving this operator, if it
// did.
func refusal(ctx context.Context) error {
	if err := context.Cause(ctx); remote.IsRefusal(err) {
		return err
	}
	return nil
}

func readLines(r io.Reader, lines chan<- string) {
	defer close(lines)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), 1<<20)
	for sc.Scan() {
		lines <- sc.Text()
	}
}

func printSnapshot(out io.Writer, s scanner.Snapshot) {
	switch s.State {
	case scanner.StateScanning:
		if s.ScanError != nil {
			fmt.Fprintf(out, "! %v\n", s.ScanError)
			return
		}
		fmt.Fprintln(out, "ready: scan a ticket")
	case scanner.StateVerifying:
		fmt.Fprintf(out, "verifying ticket %s...\n", s.Candidate.Payload.TicketID.String())
	case scanner.StateDecided:
		fmt.Fprintln(out, describeVerdict(*s.Result, s.Action))
	}
}

func describeVerdict(res domain.VerifyResult, action domain.Disposition) string {
	switch action {
	case domain.DispositionAdmit:
		ticket := "?"
		if res.TokenID != nil {
			ticket = res.TokenID.String()
		}
		return fmt.Sprintf("ADMIT  ticket %s held by %s   (:next)", ticket, res.Recovered)
	case domain.DispositionRetry:
		return fmt.Sprintf("RETRY  %s: %s   (:next to scan again)", res.Reason, res.Message)
	default:
		line := fmt.Sprintf("DENY   %s", res.Reason)
		if res.Owner != "" {
			line += fmt.Sprintf(" (ledger owner %s, presented by %s)", res.Owner, res.Recovered)
		}
		return line + "   (:next)"
	}
}

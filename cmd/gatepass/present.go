package main

import (
	"context"
	"fmt"
	"io"

	"gatepass/internal/holder"
	"gatepass/internal/infra/crypto"
	"gatepass/internal/infra/qr"
	"gatepass/internal/tui/present"
	"gatepass/internal/usecase"

	"github.com/spf13/cobra"
)

var (
	presentCmd = &cobra.Command{
		Use:   "present",
		Short: "Show a rotating ticket code until the session ends",
		Args:  cobra.NoArgs,
		RunE:  runPresent,
	}

	presentTicket  *string
	presentNumeric *bool
	presentPlain   *bool
)

func init() {
	presentTicket = presentCmd.Flags().StringP("ticket", "t", "", "Ticket id to present")
	presentNumeric = presentCmd.Flags().Bool("numeric", false, "Encode the ticket id as a JSON number")
	presentPlain = presentCmd.Flags().Bool("plain", false, "Print each envelope as JSON instead of drawing a QR code")
	_ = presentCmd.MarkFlagRequired("ticket")
}

func runPresent(cmd *cobra.Command, _ []string) error {
	signer, err := loadSigner()
	if err != nil {
		return err
	}
	ticketID, err := parseTicketID(*presentTicket, *presentNumeric)
	if err != nil {
		return err
	}
	svc := crypto.NewService()
	session := &holder.Session{
		Builder:  &usecase.BuildCredential{Crypto: svc, Clock: wall, RotationInterval: cfg.RotationInterval()},
		Crypto:   svc,
		Signer:   signer,
		TicketID: ticketID,
		Clock:    wall,
		Duration: cfg.SessionDuration(),
	}

	if !*presentPlain {
		model := present.NewModel(cmd.Context(), session, wall, cfg.RotationInterval(), qr.Terminal)
		return present.Run(cmd.Context(), model)
	}
	return presentPlainText(cmd.Context(), session, cmd.OutOrStdout())
}

func presentPlainText(ctx context.Context, session *holder.Session, out io.Writer) error {
	if err := session.Unlock(ctx); err != nil {
		return fmt.Errorf("confirm wallet: %w", err)
	}
	logger.Info().Str("ticket", session.TicketID.String()).Dur("session", cfg.SessionDuration()).Msg("presenting ticket")
	scheduler := &holder.Scheduler{
		Session:          session,
		Clock:            wall,
		RotationInterval: cfg.RotationInterval(),
		Surface:          &printSurface{out: out},
	}
	if err := scheduler.Run(ctx); err != nil {
		return err
	}
	logger.Info().Msg("presentation closed")
	return nil
}

// printSurface writes each new envelope once.
type printSurface struct {
	out       io.Writer
	lastNonce string
}

func (s *printSurface) Render(v holder.View) {
	if v.Err != nil {
		logger.Warn().Err(v.Err).Msg("could not refresh code")
	}
	if v.Envelope == nil || v.Envelope.Payload.Nonce == s.lastNonce {
		return
	}
	s.lastNonce = v.Envelope.Payload.Nonce
	fmt.Fprintln(s.out, string(crypto.MarshalEnvelope(*v.Envelope)))
	logger.Debug().Dur("remaining", v.Remaining).Msg("rotated code")
}

func (s *printSurface) Hide() {}

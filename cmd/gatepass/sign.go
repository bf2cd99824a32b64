package main

import (
	"fmt"
	"strings"

	"gatepass/internal/domain"
	"gatepass/internal/infra/crypto"
	"gatepass/internal/infra/qr"
	"gatepass/internal/usecase"

	"github.com/spf13/cobra"
)

var (
	signCmd = &cobra.Command{
		Use:   "sign",
		Short: "Print one freshly signed ticket envelope",
		Args:  cobra.NoArgs,
		RunE:  runSign,
	}

	signTicket  *string
	signNumeric *bool
	signQR      *bool
	signPNG     *string
)

func init() {
	signTicket = signCmd.Flags().StringP("ticket", "t", "", "Ticket id to present")
	signNumeric = signCmd.Flags().Bool("numeric", false, "Encode the ticket id as a JSON number")
	signQR = signCmd.Flags().Bool("qr", false, "Also print the envelope as a terminal QR code")
	signPNG = signCmd.Flags().String("png", "", "Also write the envelope as a PNG QR code to this file")
	_ = signCmd.MarkFlagRequired("ticket")
}

func runSign(cmd *cobra.Command, _ []string) error {
	signer, err := loadSigner()
	if err != nil {
		return err
	}
	ticketID, err := parseTicketID(*signTicket, *signNumeric)
	if err != nil {
		return err
	}
	builder := &usecase.BuildCredential{Crypto: crypto.NewService(), Clock: wall, RotationInterval: cfg.RotationInterval()}
	env, err := builder.Execute(cmd.Context(), usecase.BuildCredentialRequest{TicketID: ticketID, Signer: signer})
	if err != nil {
		return fmt.Errorf("build credential: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, string(crypto.MarshalEnvelope(env)))
	if *signQR {
		code, err := qr.Terminal(env)
		if err != nil {
			return err
		}
		fmt.Fprint(out, code)
	}
	if *signPNG != "" {
		if err := qr.WritePNG(*signPNG, env, 512); err != nil {
			return err
		}
		logger.Info().Str("file", *signPNG).Msg("wrote QR image")
	}
	logger.Debug().Str("ticket", ticketID.String()).Int64("exp", env.Payload.Expiry).Msg("signed envelope")
	return nil
}

func parseTicketID(raw string, numeric bool) (domain.TicketID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return domain.TicketID{}, domain.ErrInvalidTicketID
	}
	if numeric {
		return domain.NumericTicketID(raw)
	}
	return domain.NewTicketID(raw), nil
}

package main

import (
	"errors"
	"os"
	"runtime/debug"
	"strings"

	"gatepass/internal/clock"
	"gatepass/internal/config"
	"gatepass/internal/infra/crypto"
	"gatepass/internal/infra/logging"

	"github.com/spf13/cobra"
)

var (
	rootCmd = &cobra.Command{
		Use:               "gatepass",
		Version:           "devel",
		Short:             "Rotating signed ticket codes for venue gates",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: preRun,
	}

	verbose *bool
	keyHex  *string

	cfg    config.Config
	logger = logging.New(os.Stderr, logging.FormatConsole, "info")
	wall   = clock.NewSystem()
)

func init() {
	if buildInfo, ok := debug.ReadBuildInfo(); ok && buildInfo.Main.Version != "" {
		rootCmd.Version = buildInfo.Main.Version
	}

	verbose = rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enables debug logging")
	keyHex = rootCmd.PersistentFlags().StringP("key", "k", "", "Hex secp256k1 private key of the holder or operator (defaults to $GATEPASS_KEY)")

	rootCmd.AddCommand(keygenCmd, signCmd, presentCmd, scanCmd, verifyCmd)
}

func preRun(_ *cobra.Command, _ []string) error {
	cfg = config.FromEnv()
	level := cfg.LogLevel
	if *verbose {
		level = "debug"
	}
	logger = logging.New(os.Stderr, logging.FormatConsole, level)
	return nil
}

var errNoKey = errors.New("a private key is required: pass --key or set GATEPASS_KEY")

// loadSigner stands in for the wallet: it signs with a raw key.
func loadSigner() (*crypto.KeySigner, error) {
	raw := strings.TrimSpace(*keyHex)
	if raw == "" {
		raw = strings.TrimSpace(os.Getenv("GATEPASS_KEY"))
	}
	if raw == "" {
		return nil, errNoKey
	}
	return crypto.ParseKeySigner(raw)
}

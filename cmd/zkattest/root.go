package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	verbose bool
	keyDir  string
)

var rootCmd = &cobra.Command{
	Use:   "zkattest",
	Short: "zkattest generates and verifies zero-knowledge mailbox and membership attestations",
	Long: `A CLI tool for proving control of a DKIM-signed mailbox domain and
anonymous membership in a key registry, without revealing the signing key,
the signature or the member identity.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
		if verbose {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		}
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	},
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&keyDir, "key-dir", "keys", "directory for cached Groth16 key material")
}

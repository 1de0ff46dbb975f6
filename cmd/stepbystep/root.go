package main

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Cogwheel-Validator/spectra-step-by-step/contract"
)

var rootCmd = &cobra.Command{
	Use:   "stepbystep",
	Short: "Run step-by-step swap strategies",
	Long: `stepbystep runs multi-hop swap strategies: a list of steps, each converting the whole
balance of one asset into the next through a terraswap pool or the market module, with a
minimum receive check on the final asset.

Examples:
  stepbystep serve --config server.toml
  stepbystep plan --lcd https://lcd.terra.dev --contract terra1... --sender terra1... --strategy strategy.json`,
	Version:       contract.ContractVersion,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, _ []string) {
		if debug, _ := cmd.Flags().GetBool("debug"); debug {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
			return
		}
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	rootCmd.AddCommand(serveCmd, planCmd)
}

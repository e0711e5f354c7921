package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "helm",
	Short: "HELM - signal arbitration and risk decision core",
	Long: `HELM turns raw strategy signals into risk-checked order decisions.
It scores the market regime, arbitrates candidate signals and enforces
hard risk limits behind a circuit breaker.`,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug mode")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

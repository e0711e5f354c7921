package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/helmtrade/helm/internal/config"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the configuration file",
	RunE:  runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	limits := cfg.Limits()
	vol, losses := cfg.BreakerSettings()

	fmt.Println("configuration OK")
	fmt.Printf("  symbols:             %d\n", len(cfg.Symbols))
	fmt.Printf("  strategies:          %d\n", len(cfg.Strategies))
	fmt.Printf("  risk per trade:      %s%%\n", limits.RiskPerTradePct)
	fmt.Printf("  max leverage:        %s\n", limits.MaxLeverage)
	fmt.Printf("  max open exposure:   %s USD\n", limits.MaxOpenExposureUSD)
	fmt.Printf("  volatility halt:     %s after %gx ATR spike\n", vol.HaltDuration, vol.ATRMultiplier)
	fmt.Printf("  kill eligibility:    %d losses in %s or %g%% daily loss\n",
		losses.ConsecutiveLossesThreshold, losses.Window, losses.DailyLossKillPct)
	fmt.Printf("  archive:             %s\n", cfg.Archive.Type)
	return nil
}

// loadConfig loads the configured file, falling back to defaults when no
// file was given.
func loadConfig() (*config.Config, error) {
	if cfgFile == "" {
		return config.Defaults(), nil
	}
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

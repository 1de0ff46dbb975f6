package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Cogwheel-Validator/spectra-step-by-step/contract"
	"github.com/Cogwheel-Validator/spectra-step-by-step/contract/wasm"
	"github.com/Cogwheel-Validator/spectra-step-by-step/lcd"
)

var (
	planLCDURLs      []string
	planContract     string
	planSender       string
	planStrategyPath string
	planPrefix       string
	planTimeout      time.Duration
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Preview the messages a strategy emits against a live chain",
	Long: `Build the batch the strategy contract would emit for a sender, reading the sender's
balance snapshot from a live LCD. The strategy file holds an execute_strategy body
({"steps":[...],"minimum_receive":"..."}), "-" reads it from stdin.

Examples:
  stepbystep plan --lcd https://lcd.terra.dev --contract terra1... --sender terra1... --strategy strategy.json
  cat strategy.json | stepbystep plan --lcd https://lcd.terra.dev,https://backup.lcd --contract terra1... --sender terra1... --strategy -`,
	RunE: runPlan,
}

func init() {
	planCmd.Flags().StringSliceVar(&planLCDURLs, "lcd", nil, "LCD endpoints, the first is primary")
	planCmd.Flags().StringVar(&planContract, "contract", "", "strategy contract address")
	planCmd.Flags().StringVar(&planSender, "sender", "", "address running the strategy")
	planCmd.Flags().StringVarP(&planStrategyPath, "strategy", "s", "-", "strategy json file")
	planCmd.Flags().StringVar(&planPrefix, "prefix", "terra", "bech32 address prefix")
	planCmd.Flags().DurationVar(&planTimeout, "timeout", 30*time.Second, "overall timeout")
	_ = planCmd.MarkFlagRequired("lcd")
	_ = planCmd.MarkFlagRequired("contract")
	_ = planCmd.MarkFlagRequired("sender")
}

type planOutput struct {
	ExecuteMsg contract.ExecuteMsg `json:"execute_msg"`
	Plan       contract.Plan       `json:"plan"`
	Steps      int                 `json:"steps"`
	Warnings   []string            `json:"warnings,omitempty"`
}

func runPlan(cmd *cobra.Command, _ []string) error {
	strategy, err := readStrategy(cmd.InOrStdin(), planStrategyPath)
	if err != nil {
		return err
	}

	api := wasm.NewBech32API(planPrefix)
	if err := api.AddrValidate(planContract); err != nil {
		return fmt.Errorf("invalid contract address: %w", err)
	}
	if err := api.AddrValidate(planSender); err != nil {
		return fmt.Errorf("invalid sender address: %w", err)
	}

	// one shot, no background health checks
	failover := lcd.DefaultFailoverConfig()
	failover.HealthCheckInterval = 0
	client, err := lcd.NewClient(planLCDURLs[0], planLCDURLs[1:], failover)
	if err != nil {
		return fmt.Errorf("failed to create lcd client: %w", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), planTimeout)
	defer cancel()

	plan, err := contract.BuildPlan(ctx, client, api, planContract, planSender, strategy)
	if err != nil {
		return err
	}
	log.Debug().
		Str("lcd", client.CurrentURL()).
		Int("steps", plan.Steps()).
		Str("initial_balance", plan.Finalize.InitialBalance.String()).
		Msg("Plan built")

	out, err := json.MarshalIndent(planOutput{
		ExecuteMsg: contract.ExecuteMsg{ExecuteStrategy: &strategy},
		Plan:       plan,
		Steps:      plan.Steps(),
		Warnings:   contract.HopMismatches(strategy.Steps),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode plan: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return err
}

func readStrategy(stdin io.Reader, path string) (contract.ExecuteStrategy, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return contract.ExecuteStrategy{}, fmt.Errorf("failed to read strategy: %w", err)
	}
	var strategy contract.ExecuteStrategy
	if err := json.Unmarshal(data, &strategy); err != nil {
		return contract.ExecuteStrategy{}, fmt.Errorf("failed to decode strategy: %w", err)
	}
	return strategy, nil
}

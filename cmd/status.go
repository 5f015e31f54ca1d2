package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"bridge-swap/pkg/bridge"
	"bridge-swap/pkg/report"
)

var (
	watchStatus    bool
	watchInterval  int
	originChainID  int64
	statusFromFile string
)

var statusCmd = &cobra.Command{
	Use:   "status [deposit-id]",
	Short: "Check the status of a bridge deposit",
	Long: `Check whether a deposit has been filled on the destination chain. The deposit id
is printed by the swap command and stored in its report.

Examples:
  bridge-swap status 1234567
  bridge-swap status 1234567 --watch
  bridge-swap status --report run.json --watch --interval 10`,
	Args: cobra.MaximumNArgs(1),
	Run:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().BoolVarP(&watchStatus, "watch", "w", false, "Watch status updates until the deposit is filled or expires")
	statusCmd.Flags().IntVar(&watchInterval, "interval", 5, "Polling interval in seconds (when watching)")
	statusCmd.Flags().Int64Var(&originChainID, "origin-chain", 0, "Origin chain id (default: configured origin)")
	statusCmd.Flags().StringVar(&statusFromFile, "report", "", "Read the deposit id from a swap report")
}

func runStatus(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cfg, log, err := loadConfig(cmd)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	depositID, chainID, err := resolveDeposit(args, cfg.RouteConfig.Origin.ID)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	engine, err := newEngine(cfg, nil, nil, log)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	ctx, cancel := signalContext()
	defer cancel()

	if watchStatus {
		watchDepositStatus(ctx, engine, chainID, depositID, jsonOutput)
	} else {
		checkDepositStatus(ctx, engine, chainID, depositID, jsonOutput)
	}
}

// resolveDeposit picks the deposit id from the argument or a report file
func resolveDeposit(args []string, defaultChainID int64) (string, int64, error) {
	chainID := originChainID
	if chainID == 0 {
		chainID = defaultChainID
	}

	if len(args) == 1 {
		return args[0], chainID, nil
	}
	if statusFromFile == "" {
		return "", 0, errors.New("deposit id required: pass it as an argument or use --report")
	}

	rep, err := report.Load(statusFromFile)
	if err != nil {
		return "", 0, err
	}
	if rep.Outcome == nil || rep.Outcome.DepositID == "" {
		return "", 0, errors.Errorf("report %s has no deposit id", statusFromFile)
	}
	if originChainID == 0 && rep.Route.OriginChainID != 0 {
		chainID = rep.Route.OriginChainID
	}
	return rep.Outcome.DepositID, chainID, nil
}

func checkDepositStatus(ctx context.Context, engine bridge.Engine, chainID int64, depositID string, jsonOutput bool) {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Checking deposit status..."
		s.Start()
	}

	status, err := engine.DepositStatus(ctx, chainID, depositID)
	if !jsonOutput {
		s.Stop()
	}

	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if jsonOutput {
		printJSON(status)
	} else {
		displayStatus(status, depositID)
	}
}

func watchDepositStatus(ctx context.Context, engine bridge.Engine, chainID int64, depositID string, jsonOutput bool) {
	if jsonOutput {
		fmt.Println(`{"error": "watch mode not supported with JSON output"}`)
		os.Exit(1)
	}

	fmt.Printf("\nWatching deposit %s on chain %d\n", color.CyanString(depositID), chainID)
	fmt.Printf("Checking every %d seconds. Press Ctrl+C to stop.\n\n", watchInterval)

	ticker := time.NewTicker(time.Duration(watchInterval) * time.Second)
	defer ticker.Stop()

	for {
		if done := checkAndDisplayStatus(ctx, engine, chainID, depositID); done {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// checkAndDisplayStatus reports whether the deposit reached a final state
func checkAndDisplayStatus(ctx context.Context, engine bridge.Engine, chainID int64, depositID string) bool {
	status, err := engine.DepositStatus(ctx, chainID, depositID)
	if err != nil {
		color.Red("Error: %v", err)
		return false
	}

	displayStatus(status, depositID)
	switch status.Status {
	case "filled", "expired", "refunded":
		return true
	}
	return false
}

func displayStatus(status *bridge.DepositStatus, depositID string) {
	banner("DEPOSIT STATUS", 70, color.Green)

	fmt.Printf("\n  Deposit ID:      %s\n", color.CyanString(depositID))
	fmt.Printf("  Status:          %s\n", getColoredStatus(status.Status))
	if status.DepositTxHash != "" {
		fmt.Printf("  Deposit Tx:      %s\n", color.HiBlackString(status.DepositTxHash))
	}
	if status.FillTxHash != "" {
		fmt.Printf("  Fill Tx:         %s\n", color.HiBlackString(status.FillTxHash))
	}
	if status.DestinationChainID != 0 {
		fmt.Printf("  Destination:     chain %d\n", status.DestinationChainID)
	}

	fmt.Println("\n" + strings.Repeat("=", 70) + "\n")
}

func getColoredStatus(status string) string {
	status = strings.ToUpper(status)

	switch status {
	case "FILLED":
		return color.GreenString(status)
	case "PENDING", "SLOWFILLREQUESTED":
		return color.YellowString(status)
	case "EXPIRED", "REFUNDED":
		return color.RedString(status)
	default:
		return status
	}
}

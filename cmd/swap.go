package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"bridge-swap/pkg/bridge"
	"bridge-swap/pkg/orchestrator"
	"bridge-swap/pkg/report"
)

var (
	noConfirm  bool
	reportPath string
)

var swapCmd = &cobra.Command{
	Use:   "swap [amount] [token]",
	Short: "Bridge the configured amount and swap it on the destination chain",
	Long: `Bridge the configured input token to the destination chain and swap it there.

The run checks your balance, estimates the swap, asks Across for a quote and,
once confirmed, sends the approval and deposit. When the relayer fills the
deposit the handler approves and swaps the delivered amount. If the swap
cannot be executed the bridged tokens are sent to your address.

Examples:
  bridge-swap swap
  bridge-swap swap 25 USDC --yes --report run.json
  BRIDGE_SWAP_ROUTE_AMOUNT=25 bridge-swap swap`,
	Args: cobra.MaximumNArgs(2),
	Run:  runSwap,
}

func init() {
	rootCmd.AddCommand(swapCmd)

	swapCmd.Flags().BoolVarP(&noConfirm, "yes", "y", false, "Skip confirmation prompt")
	swapCmd.Flags().StringVar(&reportPath, "report", "", "Write a JSON report of the run to this file")
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runSwap(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cfg, log, err := loadConfig(cmd)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	if err := applyAmountArgs(cfg, args); err != nil {
		printError(err)
		os.Exit(1)
	}

	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx, cfg, log, true)
	if err != nil {
		log.WithError(err).Error("setup failed")
		printError(err)
		os.Exit(1)
	}
	defer a.Close()

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	var observer bridge.Observer
	if !jsonOutput {
		observer = newProgressPrinter(a.route, s)
	}

	orch, err := a.orchestrator(observer)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if !jsonOutput {
		s.Suffix = " Checking balance and fetching quote..."
		s.Start()
	}
	prepared, err := orch.Prepare(ctx)
	if !jsonOutput {
		s.Stop()
	}
	if err != nil {
		log.WithError(err).Error("failed to prepare bridge and swap")
		printError(err)
		os.Exit(1)
	}

	if !jsonOutput {
		displayQuote(a.route, prepared)
		if actions, fallback, err := decodeMessage(prepared.EncodedMessage); err == nil {
			displayActions(actions, fallback)
		}
	}

	if !noConfirm && !jsonOutput {
		if !confirm("Proceed with bridge and swap?") {
			fmt.Println("\nSwap cancelled.")
			os.Exit(0)
		}
	}

	rep := report.New(a.route, a.signer.Address())
	rep.Quote = prepared.Quote

	if !jsonOutput {
		fmt.Println()
		s.Suffix = " Starting..."
		s.Start()
	}
	outcome, runErr := orch.Execute(ctx, prepared)
	if !jsonOutput {
		s.Stop()
	}

	rep.Finish(outcome, runErr)
	if reportPath != "" {
		if err := report.Save(reportPath, rep); err != nil {
			log.WithError(err).WithField("path", reportPath).Error("failed to write report")
		} else if !jsonOutput {
			fmt.Printf("Report written to %s\n", color.CyanString(reportPath))
		}
	}

	if jsonOutput {
		printJSON(rep)
	} else if outcome != nil {
		displayOutcome(a.route, outcome)
	}

	if runErr != nil {
		logRunFailure(log, outcome, runErr)
		printError(runErr)
		if outcome != nil && outcome.DepositID != "" && !jsonOutput {
			fmt.Println("You can check the deposit using:")
			color.Cyan("  bridge-swap status %s\n", outcome.DepositID)
		}
		os.Exit(1)
	}
}

func logRunFailure(log *logrus.Entry, outcome *orchestrator.Outcome, err error) {
	fields := logrus.Fields{}
	if outcome != nil {
		fields["deposit_id"] = outcome.DepositID
		fields["deposit_tx"] = outcome.DepositTx
	}
	log.WithFields(fields).WithError(err).Error("bridge and swap failed")
}

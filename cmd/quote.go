package cmd

import (
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"

	"bridge-swap/pkg/bridge"
	"bridge-swap/pkg/route"
	"bridge-swap/pkg/swap"
)

var quoteCmd = &cobra.Command{
	Use:   "quote [amount] [token]",
	Short: "Show the bridge quote and destination actions without sending anything",
	Long: `Run the balance check, swap estimate and bridge quote for the configured route
and print the result, including the decoded destination actions. No
transaction is sent.

Examples:
  bridge-swap quote
  bridge-swap quote 25 USDC --json`,
	Args: cobra.MaximumNArgs(2),
	Run:  runQuote,
}

func init() {
	rootCmd.AddCommand(quoteCmd)
}

// quoteOutput is the --json form of a dry run
type quoteOutput struct {
	User              string          `json:"user"`
	Balance           string          `json:"balance"`
	Quote             *bridge.Quote   `json:"quote"`
	InitialSwap       swapOutput      `json:"initial_swap"`
	Actions           []decodedAction `json:"actions"`
	FallbackRecipient string          `json:"fallback_recipient"`
}

type swapOutput struct {
	Target            string `json:"target"`
	CallData          string `json:"call_data"`
	ExpectedAmountOut string `json:"expected_amount_out"`
	MinAmountOut      string `json:"min_amount_out"`
}

func newSwapOutput(c *swap.Call) swapOutput {
	return swapOutput{
		Target:            c.Target.Hex(),
		CallData:          hexutil.Encode(c.CallData),
		ExpectedAmountOut: c.ExpectedAmountOut.String(),
		MinAmountOut:      c.MinAmountOut.String(),
	}
}

func runQuote(cmd *cobra.Command, args []string) {
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
		printError(err)
		os.Exit(1)
	}
	defer a.Close()

	orch, err := a.orchestrator(nil)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Fetching quote..."
		s.Start()
	}
	prepared, err := orch.Prepare(ctx)
	if !jsonOutput {
		s.Stop()
	}
	if err != nil {
		log.WithError(err).Error("failed to get quote")
		printError(err)
		os.Exit(1)
	}

	actions, fallback, err := decodeMessage(prepared.EncodedMessage)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if jsonOutput {
		printJSON(quoteOutput{
			User:              a.signer.Address().Hex(),
			Balance:           route.FormatUnits(prepared.Balance, a.route.InputToken().Decimals),
			Quote:             prepared.Quote,
			InitialSwap:       newSwapOutput(prepared.InitialSwap),
			Actions:           actions,
			FallbackRecipient: fallback.Hex(),
		})
		return
	}

	displayQuote(a.route, prepared)
	displayActions(actions, fallback)
	printSuccess("Dry run only. Run `bridge-swap swap` to execute.")
}

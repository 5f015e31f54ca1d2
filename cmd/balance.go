package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"bridge-swap/pkg/chain"
	"bridge-swap/pkg/route"
)

var balanceCmd = &cobra.Command{
	Use:   "balance [amount] [token]",
	Short: "Check that your balance covers the configured input amount",
	Long: `Read your input token balance on the origin chain and compare it with the
configured amount. Exits with status 1 when the balance is too low.

Examples:
  bridge-swap balance
  bridge-swap balance --json`,
	Args: cobra.MaximumNArgs(2),
	Run:  runBalance,
}

func init() {
	rootCmd.AddCommand(balanceCmd)
}

func runBalance(cmd *cobra.Command, args []string) {
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

	a, err := newApp(ctx, cfg, log, false)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer a.Close()

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Checking balance..."
		s.Start()
	}
	token := a.route.InputToken()
	balance, err := chain.CheckBalance(ctx, a.origin, a.signer.Address(), token, a.route.InputAmount())
	if !jsonOutput {
		s.Stop()
	}

	var insufficient *chain.InsufficientBalanceError
	if errors.As(err, &insufficient) {
		balance = insufficient.Available
	} else if err != nil {
		printError(err)
		os.Exit(1)
	}

	if jsonOutput {
		printJSON(map[string]interface{}{
			"holder":     a.signer.Address().Hex(),
			"token":      token.Address.Hex(),
			"symbol":     token.Symbol,
			"balance":    route.FormatUnits(balance, token.Decimals),
			"required":   a.route.FormattedInputAmount(),
			"sufficient": insufficient == nil,
		})
	} else {
		banner("BALANCE", 60, color.Green)
		fmt.Printf("\n  Holder:            %s\n", color.CyanString(a.signer.Address().Hex()))
		fmt.Printf("  Chain:             %s\n", a.route.Origin().Name)
		fmt.Printf("  Balance:           %s %s\n", route.FormatUnits(balance, token.Decimals), color.YellowString(token.String()))
		fmt.Printf("  Required:          %s %s\n", a.route.FormattedInputAmount(), color.YellowString(token.String()))
		fmt.Println()
	}

	if insufficient != nil {
		printError(insufficient)
		os.Exit(1)
	}
	if !jsonOutput {
		color.Green("✓ Balance is sufficient\n")
	}
}

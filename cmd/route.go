package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"bridge-swap/pkg/route"
)

var routeCmd = &cobra.Command{
	Use:     "route",
	Aliases: []string{"show-route"},
	Short:   "Show the configured route",
	Long: `Show the chains, tokens, amount and contracts the swap command will use.
Nothing is read from chain.

Examples:
  bridge-swap route
  bridge-swap route --json`,
	Args: cobra.NoArgs,
	Run:  runRoute,
}

func init() {
	rootCmd.AddCommand(routeCmd)
}

// tokenOutput is one token row of the route listing
type tokenOutput struct {
	Role     string `json:"role"`
	ChainID  int64  `json:"chain_id"`
	Symbol   string `json:"symbol"`
	Address  string `json:"address"`
	Decimals uint8  `json:"decimals"`
}

func runRoute(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cfg, _, err := loadConfig(cmd)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	r, err := cfg.Route()
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	tokens := []tokenOutput{
		newTokenOutput("input", r.InputToken()),
		newTokenOutput("swap in", r.SwapTokenIn()),
		newTokenOutput("swap out", r.SwapTokenOut()),
	}

	if jsonOutput {
		printJSON(map[string]interface{}{
			"origin":         chainOutput(r.Origin()),
			"destination":    chainOutput(r.Destination()),
			"amount":         r.FormattedInputAmount(),
			"tokens":         tokens,
			"handler":        r.Handler().Hex(),
			"balancer_vault": cfg.BalancerVault,
			"integrator_id":  cfg.IntegratorID,
			"slippage_pct":   cfg.SlippagePercent,
		})
		return
	}

	displayConfiguredRoute(r, tokens)
	fmt.Printf("  Balancer Vault:    %s\n", color.HiBlackString(cfg.BalancerVault))
	fmt.Printf("  Slippage:          %.2f%%\n", cfg.SlippagePercent)
	fmt.Printf("  Integrator ID:     %s\n\n", cfg.IntegratorID)
}

// chainOutput leaves out the RPC URL, which often embeds an API key
func chainOutput(c route.Chain) map[string]interface{} {
	return map[string]interface{}{"chain_id": c.ID, "name": c.Name, "explorer_url": c.ExplorerURL}
}

func newTokenOutput(role string, t route.Token) tokenOutput {
	return tokenOutput{Role: role, ChainID: t.ChainID, Symbol: t.Symbol, Address: t.Address.Hex(), Decimals: t.Decimals}
}

func displayConfiguredRoute(r *route.Descriptor, tokens []tokenOutput) {
	banner("CONFIGURED ROUTE", 90, color.Green)
	fmt.Println()
	displayRoute(r)

	chainNames := map[int64]string{
		r.Origin().ID:      r.Origin().Name,
		r.Destination().ID: r.Destination().Name,
	}
	for _, id := range []int64{r.Origin().ID, r.Destination().ID} {
		color.Cyan("\n%s (%d)", strings.ToUpper(chainNames[id]), id)
		fmt.Println(strings.Repeat("-", 90))
		for _, t := range tokens {
			if t.ChainID != id {
				continue
			}
			fmt.Printf("  %-10s  %-8s  %2d decimals  %s\n",
				color.YellowString(t.Symbol),
				t.Role,
				t.Decimals,
				color.HiBlackString(t.Address))
		}
	}

	fmt.Println("\n" + strings.Repeat("=", 90) + "\n")
}

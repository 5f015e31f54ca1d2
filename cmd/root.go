package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"bridge-swap/config"
	"bridge-swap/pkg/parser"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "bridge-swap",
	Short: "Bridge a token to another chain and swap it on arrival",
	Long: `bridge-swap deposits a token on an origin chain through an Across spoke pool
and has the relayer deliver it to a handler contract on the destination chain,
which approves and swaps the delivered amount through Balancer in the same
transaction. Anything the swap does not consume is sent to your address.

The route, amounts and endpoints come from .bridge-swap.yaml, BRIDGE_SWAP_*
environment variables and a .env file. The private key is read from
PRIVATE_KEY.

Examples:
  bridge-swap route
  bridge-swap balance
  bridge-swap quote
  bridge-swap swap 25 USDC --report run.json
  bridge-swap status 1234567 --watch`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (default is $HOME/.bridge-swap.yaml or ./.bridge-swap.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "Output in JSON format")
}

// loadConfig reads the configuration and sets up logging for cmd
func loadConfig(cmd *cobra.Command) (*config.Config, *logrus.Entry, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, nil, err
	}

	verbose, _ := cmd.Flags().GetBool("verbose")
	log, err := newLogger(cfg, verbose)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logrus.NewEntry(log).WithField("cmd", cmd.Name()), nil
}

// applyAmountArgs overrides the configured amount with "[amount] [token]"
func applyAmountArgs(cfg *config.Config, args []string) error {
	if len(args) == 0 {
		return nil
	}
	amount, err := parser.ParseAmount(strings.Join(args, " "), cfg.RouteConfig.InputToken.Symbol)
	if err != nil {
		return err
	}
	cfg.RouteConfig.Amount = amount
	return nil
}

func newLogger(cfg *config.Config, verbose bool) (*logrus.Logger, error) {
	log := logrus.New()
	log.SetOutput(os.Stderr)

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	if verbose {
		level = logrus.DebugLevel
	}
	log.SetLevel(level)

	switch cfg.LogFormat {
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	case "text", "":
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, errors.Errorf("unknown log format %q", cfg.LogFormat)
	}
	return log, nil
}

func printError(err error) {
	fmt.Fprintf(os.Stderr, "\nError: %v\n\n", err)
}

func printSuccess(message string) {
	fmt.Printf("\n%s\n\n", message)
}

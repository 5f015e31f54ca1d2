package config

import (
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"bridge-swap/pkg/bridge"
	"bridge-swap/pkg/route"
	"bridge-swap/pkg/swap"
)

const (
	DefaultConfigName = ".bridge-swap"
	EnvPrefix         = "BRIDGE_SWAP"
)

var (
	ErrMissingPrivateKey = errors.New("private key not configured: set PRIVATE_KEY or BRIDGE_SWAP_PRIVATE_KEY")
	ErrMissingRPCURL     = errors.New("RPC URL not configured: set RPC_URL or route.origin.rpc_url")
)

// ChainConfig describes one side of the route
type ChainConfig struct {
	ID          int64  `mapstructure:"chain_id"`
	Name        string `mapstructure:"name"`
	RPCURL      string `mapstructure:"rpc_url"`
	ExplorerURL string `mapstructure:"explorer_url"`
}

// TokenConfig describes a token by address
type TokenConfig struct {
	Address  string `mapstructure:"address"`
	Decimals uint8  `mapstructure:"decimals"`
	Symbol   string `mapstructure:"symbol"`
}

// RouteConfig is the raw route before validation
type RouteConfig struct {
	Origin       ChainConfig `mapstructure:"origin"`
	Destination  ChainConfig `mapstructure:"destination"`
	InputToken   TokenConfig `mapstructure:"input_token"`
	Amount       string      `mapstructure:"amount"`
	SwapTokenIn  TokenConfig `mapstructure:"swap_token_in"`
	SwapTokenOut TokenConfig `mapstructure:"swap_token_out"`
	Handler      string      `mapstructure:"handler"`
}

// Config holds the application configuration. It is loaded once at
// startup and passed to whatever needs it.
type Config struct {
	PrivateKey string `mapstructure:"private_key"`

	AcrossAPIURL   string `mapstructure:"across_api_url"`
	BalancerAPIURL string `mapstructure:"balancer_api_url"`
	BalancerVault  string `mapstructure:"balancer_vault"`
	IntegratorID   string `mapstructure:"integrator_id"`

	SlippagePercent     float64       `mapstructure:"slippage_percent"`
	Deadline            time.Duration `mapstructure:"deadline"`
	UpdateTimeout       time.Duration `mapstructure:"update_timeout"`
	FillTimeout         time.Duration `mapstructure:"fill_timeout"`
	StatusPollInterval  time.Duration `mapstructure:"status_poll_interval"`
	ReceiptPollInterval time.Duration `mapstructure:"receipt_poll_interval"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	RouteConfig RouteConfig `mapstructure:"route"`

	route *route.Descriptor
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("across_api_url", bridge.DefaultAcrossAPIURL)
	v.SetDefault("balancer_api_url", swap.DefaultBalancerAPIURL)
	v.SetDefault("balancer_vault", swap.DefaultVaultAddress.Hex())
	v.SetDefault("integrator_id", bridge.DefaultIntegratorID)
	v.SetDefault("slippage_percent", swap.DefaultSlippage.Percent())
	v.SetDefault("deadline", swap.DefaultDeadline)
	v.SetDefault("update_timeout", 30*time.Second)
	v.SetDefault("fill_timeout", bridge.DefaultFillTimeout)
	v.SetDefault("status_poll_interval", bridge.DefaultStatusPollInterval)
	v.SetDefault("receipt_poll_interval", 2*time.Second)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")

	v.SetDefault("route.origin.chain_id", 8453)
	v.SetDefault("route.origin.name", "base")
	v.SetDefault("route.origin.rpc_url", "https://mainnet.base.org")
	v.SetDefault("route.origin.explorer_url", "https://basescan.org")
	v.SetDefault("route.destination.chain_id", 42161)
	v.SetDefault("route.destination.name", "arbitrum")
	v.SetDefault("route.destination.rpc_url", "https://arb1.arbitrum.io/rpc")
	v.SetDefault("route.destination.explorer_url", "https://arbiscan.io")

	v.SetDefault("route.input_token.address", "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913")
	v.SetDefault("route.input_token.decimals", 6)
	v.SetDefault("route.input_token.symbol", "USDC")
	v.SetDefault("route.amount", "10")
	v.SetDefault("route.swap_token_in.address", "0xaf88d065e77c8cC2239327C5EDb3A432268e5831")
	v.SetDefault("route.swap_token_in.decimals", 6)
	v.SetDefault("route.swap_token_in.symbol", "USDC")
	v.SetDefault("route.swap_token_out.address", "0x82aF49447D8a07e3bd95BD0d56f35241523fBab1")
	v.SetDefault("route.swap_token_out.decimals", 18)
	v.SetDefault("route.swap_token_out.symbol", "WETH")
	v.SetDefault("route.handler", "0x924a9f036260ddd5808007e1aa95f08ed08aa569")
}

// Load reads configuration from defaults, an optional config file and the
// environment. An explicit configFile must exist; otherwise .bridge-swap.yaml
// is looked up in $HOME and the working directory.
func Load(configFile string) (*Config, error) {
	return load(viper.New(), configFile)
}

func load(v *viper.Viper, configFile string) (*Config, error) {
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// the unprefixed names are what the original deployment's .env used
	if err := v.BindEnv("private_key", EnvPrefix+"_PRIVATE_KEY", "PRIVATE_KEY"); err != nil {
		return nil, errors.Wrap(err, "failed to bind private key")
	}
	if err := v.BindEnv("route.origin.rpc_url", EnvPrefix+"_RPC_URL", "RPC_URL"); err != nil {
		return nil, errors.Wrap(err, "failed to bind RPC URL")
	}
	if err := v.BindEnv("route.destination.rpc_url", EnvPrefix+"_DESTINATION_RPC_URL", "DESTINATION_RPC_URL"); err != nil {
		return nil, errors.Wrap(err, "failed to bind destination RPC URL")
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "failed to read config file %s", configFile)
		}
	} else {
		v.SetConfigName(DefaultConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath("$HOME")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, errors.Wrap(err, "failed to read config file")
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "failed to decode configuration")
	}
	cfg.PrivateKey = strings.TrimSpace(cfg.PrivateKey)
	return cfg, nil
}

// Validate checks what every on-chain command needs
func (c *Config) Validate() error {
	if c.PrivateKey == "" {
		return ErrMissingPrivateKey
	}
	if c.RouteConfig.Origin.RPCURL == "" || c.RouteConfig.Destination.RPCURL == "" {
		return ErrMissingRPCURL
	}
	if _, err := c.Slippage(); err != nil {
		return err
	}
	if _, err := c.Route(); err != nil {
		return err
	}
	return nil
}

// Slippage converts the configured percentage to basis points
func (c *Config) Slippage() (swap.Slippage, error) {
	return swap.SlippageFromPercent(c.SlippagePercent)
}

// Route builds the route descriptor. The first successful result is reused.
func (c *Config) Route() (*route.Descriptor, error) {
	if c.route != nil {
		return c.route, nil
	}

	rc := c.RouteConfig
	origin := route.Chain{ID: rc.Origin.ID, Name: rc.Origin.Name, RPCURL: rc.Origin.RPCURL, ExplorerURL: rc.Origin.ExplorerURL}
	destination := route.Chain{ID: rc.Destination.ID, Name: rc.Destination.Name, RPCURL: rc.Destination.RPCURL, ExplorerURL: rc.Destination.ExplorerURL}

	inputToken, err := rc.InputToken.token(origin.ID, "input_token")
	if err != nil {
		return nil, err
	}
	swapIn, err := rc.SwapTokenIn.token(destination.ID, "swap_token_in")
	if err != nil {
		return nil, err
	}
	swapOut, err := rc.SwapTokenOut.token(destination.ID, "swap_token_out")
	if err != nil {
		return nil, err
	}
	if !common.IsHexAddress(rc.Handler) {
		return nil, errors.Errorf("route.handler: invalid address %q", rc.Handler)
	}

	amount, err := route.ParseUnits(rc.Amount, inputToken.Decimals)
	if err != nil {
		return nil, errors.Wrap(err, "route.amount")
	}

	r, err := route.New(route.Params{
		Origin:       origin,
		Destination:  destination,
		InputToken:   inputToken,
		InputAmount:  amount,
		SwapTokenIn:  swapIn,
		SwapTokenOut: swapOut,
		Handler:      common.HexToAddress(rc.Handler),
	})
	if err != nil {
		return nil, err
	}
	c.route = r
	return r, nil
}

func (t TokenConfig) token(chainID int64, key string) (route.Token, error) {
	if !common.IsHexAddress(t.Address) {
		return route.Token{}, errors.Errorf("route.%s: invalid address %q", key, t.Address)
	}
	return route.Token{
		ChainID:  chainID,
		Address:  common.HexToAddress(t.Address),
		Decimals: t.Decimals,
		Symbol:   t.Symbol,
	}, nil
}

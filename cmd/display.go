package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"strings"
	"sync"

	"github.com/briandowns/spinner"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/fatih/color"

	"bridge-swap/pkg/action"
	"bridge-swap/pkg/bridge"
	"bridge-swap/pkg/chain"
	"bridge-swap/pkg/orchestrator"
	"bridge-swap/pkg/route"
)

func printJSON(v interface{}) {
	data, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(data))
}

func banner(title string, width int, c func(format string, a ...interface{})) {
	fmt.Println("\n" + strings.Repeat("=", width))
	c("%s%s", strings.Repeat(" ", (width-len(title))/2), title)
	fmt.Println(strings.Repeat("=", width))
}

func confirm(prompt string) bool {
	reader := bufio.NewReader(os.Stdin)
	fmt.Printf("\n%s (y/N): ", prompt)

	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}

	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}

func displayRoute(r *route.Descriptor) {
	fmt.Printf("  From:              %s %s on %s\n", r.FormattedInputAmount(), color.YellowString(r.InputToken().String()), r.Origin().Name)
	fmt.Printf("  Swap:              %s -> %s on %s\n", color.YellowString(r.SwapTokenIn().String()), color.YellowString(r.SwapTokenOut().String()), r.Destination().Name)
	fmt.Printf("  Handler:           %s\n", color.HiBlackString(r.Handler().Hex()))
}

func displayQuote(r *route.Descriptor, p *orchestrator.Prepared) {
	banner("BRIDGE + SWAP QUOTE", 60, color.Green)

	d := p.Quote.Deposit
	fmt.Println()
	displayRoute(r)
	fmt.Printf("  Balance:           %s %s\n", route.FormatUnits(p.Balance, r.InputToken().Decimals), r.InputToken())
	fmt.Printf("  Bridge Output:     ~%s %s\n", route.FormatUnits(d.OutputAmount, r.SwapTokenIn().Decimals), r.SwapTokenIn())
	fmt.Printf("  Bridge Fee:        %s %s\n", route.FormatUnits(p.Quote.Fees.TotalRelay.Total, r.InputToken().Decimals), r.InputToken())
	fmt.Printf("  Spoke Pool:        %s\n", color.HiBlackString(d.SpokePool.Hex()))
	fmt.Printf("  Estimated Time:    %d seconds\n", p.Quote.ExpectedFillTimeSec)
	if p.InitialSwap != nil {
		fmt.Printf("  Swap Router:       %s\n", color.HiBlackString(p.InitialSwap.Target.Hex()))
		fmt.Printf("  Expected Out:      ~%s %s\n", route.FormatUnits(p.InitialSwap.ExpectedAmountOut, r.SwapTokenOut().Decimals), color.YellowString(r.SwapTokenOut().String()))
		fmt.Printf("  Minimum Out:       %s %s\n", route.FormatUnits(p.InitialSwap.MinAmountOut, r.SwapTokenOut().Decimals), r.SwapTokenOut())
	}
	fmt.Println("\n  The swap is re-quoted for the amount actually delivered.")

	fmt.Println("\n" + strings.Repeat("=", 60))
}

// decodedAction is the readable form of one encoded call
type decodedAction struct {
	Target   string `json:"target"`
	Value    string `json:"value"`
	CallData string `json:"call_data"`
	Spender  string `json:"spender,omitempty"`
	Amount   string `json:"amount,omitempty"`
}

func decodeMessage(message []byte) ([]decodedAction, common.Address, error) {
	calls, fallback, err := action.DecodeInstructions(message)
	if err != nil {
		return nil, common.Address{}, err
	}

	out := make([]decodedAction, 0, len(calls))
	for _, c := range calls {
		d := decodedAction{
			Target:   c.Target.Hex(),
			Value:    c.Value.String(),
			CallData: hexutil.Encode(c.CallData),
		}
		if spender, amount, err := chain.UnpackApprove(c.CallData); err == nil {
			d.Spender = spender.Hex()
			d.Amount = amount.String()
		}
		out = append(out, d)
	}
	return out, fallback, nil
}

func displayActions(actions []decodedAction, fallback common.Address) {
	fmt.Println("\n  Destination actions:")
	for i, a := range actions {
		if a.Spender != "" {
			fmt.Printf("    %d. approve %s to %s\n", i+1, a.Amount, color.HiBlackString(a.Spender))
			continue
		}
		data := a.CallData
		if len(data) > 42 {
			data = data[:42] + "..."
		}
		fmt.Printf("    %d. call %s %s\n", i+1, color.HiBlackString(a.Target), data)
	}
	fmt.Printf("  Fallback Recipient: %s\n", color.CyanString(fallback.Hex()))
}

func stepLabel(step bridge.Step) string {
	switch step {
	case bridge.StepApprove:
		return "Approving bridge"
	case bridge.StepDeposit:
		return "Depositing on origin chain"
	case bridge.StepFill:
		return "Waiting for fill and swap"
	default:
		return step.String()
	}
}

// progressPrinter shows execution progress behind a spinner
type progressPrinter struct {
	mu      sync.Mutex
	spinner *spinner.Spinner
	route   *route.Descriptor
}

func newProgressPrinter(r *route.Descriptor, s *spinner.Spinner) *progressPrinter {
	return &progressPrinter{spinner: s, route: r}
}

func (p *progressPrinter) OnProgress(pr bridge.Progress) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch pr.Status {
	case bridge.StatusPending:
		p.spinner.Lock()
		p.spinner.Suffix = " " + stepLabel(pr.Step) + "..."
		p.spinner.Unlock()
		return
	case bridge.StatusSuccess:
		p.spinner.Stop()
		color.Green("✓ %s", stepLabel(pr.Step))
		if pr.TxHash != "" {
			chainInfo := p.route.Origin()
			if pr.Step == bridge.StepFill {
				chainInfo = p.route.Destination()
			}
			fmt.Printf("  Tx: %s\n", color.CyanString(chainInfo.TxURL(pr.TxHash)))
		}
		if pr.DepositID != "" && pr.Step == bridge.StepDeposit {
			fmt.Printf("  Deposit ID: %s\n", color.CyanString(pr.DepositID))
		}
		if pr.Step != bridge.StepFill {
			p.spinner.Start()
		}
	case bridge.StatusFailure:
		p.spinner.Stop()
		color.Red("✗ %s failed: %v", stepLabel(pr.Step), pr.Err)
	}
}

func displayOutcome(r *route.Descriptor, o *orchestrator.Outcome) {
	banner("RESULT", 60, color.Green)
	fmt.Println()
	if o.DepositID != "" {
		fmt.Printf("  Deposit ID:        %s\n", color.CyanString(o.DepositID))
	}
	if amount, ok := new(big.Int).SetString(o.DeliveredAmount, 10); ok {
		fmt.Printf("  Bridged:           %s %s\n", route.FormatUnits(amount, r.SwapTokenIn().Decimals), r.SwapTokenIn())
	}
	if o.FillTx != "" {
		fmt.Printf("  Fill Tx:           %s\n", color.CyanString(r.Destination().TxURL(o.FillTx)))
	}
	if o.Steps[bridge.StepFill].Succeeded {
		if o.ActionSuccess {
			fmt.Printf("  Swap:              %s\n", color.GreenString("SUCCESS"))
		} else {
			fmt.Printf("  Swap:              %s\n", color.RedString("FAILED"))
			color.Yellow("  The bridged %s was sent to your address instead.", r.SwapTokenIn())
		}
	}
	fmt.Println("\n" + strings.Repeat("=", 60) + "\n")
}

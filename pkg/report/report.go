package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"bridge-swap/pkg/bridge"
	"bridge-swap/pkg/orchestrator"
	"bridge-swap/pkg/route"
)

// RouteSummary is the route as written to a report
type RouteSummary struct {
	OriginChainID      int64  `json:"origin_chain_id"`
	OriginChain        string `json:"origin_chain"`
	DestinationChainID int64  `json:"destination_chain_id"`
	DestinationChain   string `json:"destination_chain"`
	InputToken         string `json:"input_token"`
	InputAmount        string `json:"input_amount"`
	SwapTokenIn        string `json:"swap_token_in"`
	SwapTokenOut       string `json:"swap_token_out"`
	Handler            string `json:"handler"`
}

// Report is the record of one run, written once it finishes
type Report struct {
	StartedAt  time.Time             `json:"started_at"`
	FinishedAt time.Time             `json:"finished_at,omitempty"`
	User       string                `json:"user"`
	Route      RouteSummary          `json:"route"`
	Quote      *bridge.Quote         `json:"quote,omitempty"`
	Outcome    *orchestrator.Outcome `json:"outcome,omitempty"`
	Error      string                `json:"error,omitempty"`
}

// New starts a report for r run by user
func New(r *route.Descriptor, user common.Address) *Report {
	return &Report{
		StartedAt: time.Now().UTC(),
		User:      user.Hex(),
		Route: RouteSummary{
			OriginChainID:      r.Origin().ID,
			OriginChain:        r.Origin().Name,
			DestinationChainID: r.Destination().ID,
			DestinationChain:   r.Destination().Name,
			InputToken:         r.InputToken().String(),
			InputAmount:        r.FormattedInputAmount(),
			SwapTokenIn:        r.SwapTokenIn().String(),
			SwapTokenOut:       r.SwapTokenOut().String(),
			Handler:            r.Handler().Hex(),
		},
	}
}

// Finish records the outcome and the error that ended the run, if any
func (r *Report) Finish(outcome *orchestrator.Outcome, err error) {
	r.FinishedAt = time.Now().UTC()
	r.Outcome = outcome
	if err != nil {
		r.Error = err.Error()
	}
}

// Save writes the report as indented JSON. The file is replaced atomically.
func Save(path string, r *Report) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal report")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "failed to create report directory")
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "failed to create temp file")
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrap(err, "failed to write report")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "failed to close report")
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "failed to rename temp file")
	}
	return nil
}

// Load reads a report written by Save
func Load(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read report")
	}

	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal report")
	}
	return &r, nil
}

package orchestrator

import (
	"sync"

	"github.com/sirupsen/logrus"

	"bridge-swap/pkg/bridge"
)

// StepRecord is what was observed for one step
type StepRecord struct {
	Succeeded     bool   `json:"succeeded"`
	Failed        bool   `json:"failed"`
	Notifications int    `json:"notifications"`
	TxHash        string `json:"tx_hash,omitempty"`
	Error         string `json:"error,omitempty"`
}

// Outcome is the recorded result of one execution
type Outcome struct {
	ApproveTx     string                     `json:"approve_tx,omitempty"`
	DepositTx     string                     `json:"deposit_tx,omitempty"`
	DepositID     string                     `json:"deposit_id,omitempty"`
	FillTx        string                     `json:"fill_tx,omitempty"`
	ActionSuccess bool                       `json:"action_success"`
	Steps         map[bridge.Step]StepRecord `json:"steps"`

	// set once the actions were updated for the delivered amount
	DeliveredAmount string `json:"delivered_amount,omitempty"`
	MinAmountOut    string `json:"min_amount_out,omitempty"`
}

// Complete reports whether every step reached success
func (o *Outcome) Complete() bool {
	for _, step := range bridge.Steps {
		if !o.Steps[step].Succeeded {
			return false
		}
	}
	return true
}

// recorder is the bridge.Observer used during execution. Repeated
// notifications overwrite the same observation and never trigger work.
type recorder struct {
	mu      sync.Mutex
	outcome Outcome
	failure *StepError
	abort   func()
	next    bridge.Observer
	log     *logrus.Entry
}

func newRecorder(abort func(), next bridge.Observer, log *logrus.Entry) *recorder {
	steps := make(map[bridge.Step]StepRecord, len(bridge.Steps))
	for _, step := range bridge.Steps {
		steps[step] = StepRecord{}
	}
	return &recorder{
		outcome: Outcome{Steps: steps},
		abort:   abort,
		next:    next,
		log:     log,
	}
}

func (r *recorder) OnProgress(p bridge.Progress) {
	r.record(p)
	if r.next != nil {
		r.next.OnProgress(p)
	}
}

func (r *recorder) record(p bridge.Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()

	log := r.log.WithFields(logrus.Fields{"step": p.Step.String(), "status": p.Status.String()})
	rec, known := r.outcome.Steps[p.Step]
	if !known {
		log.Warn("ignoring progress for unknown step")
		return
	}
	rec.Notifications++

	switch p.Status {
	case bridge.StatusPending:
		log.Debug("step pending")
	case bridge.StatusSuccess:
		rec.Succeeded = true
		if p.TxHash != "" {
			rec.TxHash = p.TxHash
		}
		switch p.Step {
		case bridge.StepApprove:
			r.outcome.ApproveTx = rec.TxHash
		case bridge.StepDeposit:
			r.outcome.DepositTx = rec.TxHash
			if p.DepositID != "" {
				r.outcome.DepositID = p.DepositID
			}
		case bridge.StepFill:
			r.outcome.FillTx = rec.TxHash
			r.outcome.ActionSuccess = p.ActionSuccess
		}
		log.WithFields(logrus.Fields{"tx": p.TxHash, "deposit_id": p.DepositID}).Info("step succeeded")
	case bridge.StatusFailure:
		rec.Failed = true
		if p.Err != nil {
			rec.Error = p.Err.Error()
		}
		if r.failure == nil {
			r.failure = &StepError{Step: p.Step, Err: p.Err}
		}
		log.WithError(p.Err).Error("step failed")
		if r.abort != nil {
			r.abort()
		}
	default:
		log.Warn("ignoring progress with unknown status")
	}

	r.outcome.Steps[p.Step] = rec
}

// snapshot returns a copy of the outcome and the first failure, if any
func (r *recorder) snapshot() (*Outcome, *StepError) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := r.outcome
	out.Steps = make(map[bridge.Step]StepRecord, len(r.outcome.Steps))
	for step, rec := range r.outcome.Steps {
		out.Steps[step] = rec
	}
	return &out, r.failure
}

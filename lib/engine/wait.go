package engine

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/corralhq/corral/lib/apierr"
)

// MiningStatus tags the terminal outcome of a poll loop.
type MiningStatus int

const (
	StatusMined MiningStatus = iota
	StatusErrored
	StatusTimedOut
)

func (s MiningStatus) String() string {
	switch s {
	case StatusMined:
		return "mined"
	case StatusErrored:
		return "errored"
	default:
		return "timedOut"
	}
}

// MiningOutcome is the terminal result of waiting on a queue identifier. Produced exactly once per queue id.
type MiningOutcome struct {
	Status          MiningStatus
	TransactionHash string // set when mined
	Reason          string // set when errored
	LastStatus      string // last observed status text, kept for timeout diagnostics
	QueueID         string
}

// Err maps a non-mined outcome to its API error, or nil for a mined one.
func (o MiningOutcome) Err() error {
	switch o.Status {
	case StatusErrored:
		return apierr.MiningErrored(o.Reason, o.QueueID)
	case StatusTimedOut:
		return apierr.MiningTimedOut(o.LastStatus, o.QueueID)
	}
	return nil
}

// WaitMined polls the engine for the status of queueID until it reports mined or errored, or the poll budget is
// exhausted. One poll per interval, so the worst-case wait is polls*Interval. The loop honours ctx: when the
// enclosing request is cancelled no further polls are issued.
//
// A transient HTTP failure on a single poll does not terminate the loop; only an explicit errored status does.
// Errored takes precedence over mined if a response somehow carries both.
func (e *Engine) WaitMined(ctx context.Context, queueID string, polls int) (MiningOutcome, error) {
	out := MiningOutcome{Status: StatusTimedOut, QueueID: queueID}

	for i := 0; i < polls; i++ {
		select {
		case <-ctx.Done():
			return out, fmt.Errorf("waiting for mined: %w", ctx.Err())
		case <-time.After(e.Interval):
		}

		var resp struct {
			Result statusBody `json:"result"`
			// some engine builds reply with a flat body instead of a result wrapper
			statusBody
		}
		if err := e.do(ctx, http.MethodGet, "/transaction/status/"+queueID, nil, &resp); err != nil {
			if ctx.Err() != nil {
				return out, fmt.Errorf("waiting for mined: %w", ctx.Err())
			}
			out.LastStatus = err.Error()
			continue
		}

		st := resp.Result
		if st.Status == "" {
			st = resp.statusBody
		}
		out.LastStatus = st.Status

		// fail fast on an explicit errored status, never retrying it
		if st.Status == "errored" {
			out.Status = StatusErrored
			out.Reason = st.ErrorMessage
			return out, nil
		}
		if st.Status == "mined" {
			out.Status = StatusMined
			out.TransactionHash = st.TransactionHash
			return out, nil
		}
	}
	return out, nil
}

type statusBody struct {
	Status          string `json:"status"`
	TransactionHash string `json:"transactionHash"`
	ErrorMessage    string `json:"errorMessage"`
}

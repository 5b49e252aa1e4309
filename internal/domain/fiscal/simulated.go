package fiscal

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"
)

// SimulatedValidator stands in for the validation service: it waits a random
// delay and approves with a fixed probability.
type SimulatedValidator struct {
	minDelay     time.Duration
	maxDelay     time.Duration
	approvalRate float64

	mu  sync.Mutex
	rnd *rand.Rand
	now func() time.Time
}

// NewSimulatedValidator creates a validator. approvalRate is clamped to [0,1].
func NewSimulatedValidator(minDelay, maxDelay time.Duration, approvalRate float64, seed uint64) *SimulatedValidator {
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	approvalRate = min(max(approvalRate, 0), 1)
	return &SimulatedValidator{
		minDelay:     minDelay,
		maxDelay:     maxDelay,
		approvalRate: approvalRate,
		rnd:          rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		now:          time.Now,
	}
}

func (v *SimulatedValidator) Validate(ctx context.Context, req Request) (Result, error) {
	delay, approve := v.draw()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case <-timer.C:
		}
	}

	res := Result{
		AttemptID:  req.AttemptID,
		DocumentID: req.DocumentID,
		Kind:       req.Kind,
		Outcome:    OutcomeApproved,
		DecidedAt:  v.now(),
	}
	if !approve {
		res.Outcome = OutcomeRejected
		res.Reason = "rejected by validation service"
	}
	return res, nil
}

func (v *SimulatedValidator) draw() (time.Duration, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delay := v.minDelay
	if span := v.maxDelay - v.minDelay; span > 0 {
		delay += time.Duration(v.rnd.Int64N(int64(span)))
	}
	return delay, v.rnd.Float64() < v.approvalRate
}

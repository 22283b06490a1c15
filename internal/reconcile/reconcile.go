// Package reconcile collects the projects each customer claims and works
// out which projects of the global list nobody claimed.
package reconcile

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"cinodeharvest/pkg/cinode"
	"cinodeharvest/pkg/logger"
)

// DefaultCapacity bounds the number of claims in flight
const DefaultCapacity = 100

// ErrProducerClosed is returned by Report after Close
var ErrProducerClosed = errors.New("reconcile: report on closed producer")

// Claim is one customer's set of project references
type Claim struct {
	CustomerID int
	Projects   []cinode.ProjectRef
}

// Reconciler fans claims from many producers into one consumer.
// Producers are counted explicitly; the claim channel closes once every
// producer has been closed.
type Reconciler struct {
	claims     chan Claim
	producers  sync.WaitGroup
	closerOnce sync.Once
	logger     logger.Logger

	received atomic.Int64
}

// New creates a Reconciler whose channel holds capacity claims
func New(capacity int, log logger.Logger) *Reconciler {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Reconciler{
		claims: make(chan Claim, capacity),
		logger: logger.OrGlobal(log),
	}
}

// Producer registers a new producer. Every producer must be registered
// before Drain is called and must be closed exactly once.
func (r *Reconciler) Producer() *Producer {
	r.producers.Add(1)
	return &Producer{r: r}
}

// Producer is a handle for one claim-reporting task
type Producer struct {
	r      *Reconciler
	closed atomic.Bool
}

// Report sends a claim, blocking while the channel is full
func (p *Producer) Report(ctx context.Context, claim Claim) error {
	if p.closed.Load() {
		return ErrProducerClosed
	}
	select {
	case p.r.claims <- claim:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close releases the producer; further calls are no-ops
func (p *Producer) Close() {
	if p.closed.CompareAndSwap(false, true) {
		p.r.producers.Done()
	}
}

// Drain consumes claims until every producer is closed and returns the
// projects of all that no claim covered. A project is covered when its
// customerId equals the claim's customer and its id is in the claim.
func (r *Reconciler) Drain(ctx context.Context, all []cinode.ProjectDetailed) ([]cinode.ProjectDetailed, error) {
	r.closerOnce.Do(func() {
		go func() {
			r.producers.Wait()
			close(r.claims)
		}()
	})

	remaining := make([]cinode.ProjectDetailed, len(all))
	copy(remaining, all)

	for {
		select {
		case claim, ok := <-r.claims:
			if !ok {
				r.logger.DebugWithFields("reconciliation drained", map[string]interface{}{
					"claims":    int(r.received.Load()),
					"projects":  len(all),
					"unclaimed": len(remaining),
				})
				return remaining, nil
			}
			r.received.Add(1)
			remaining = removeClaimed(remaining, claim)
		case <-ctx.Done():
			return remaining, ctx.Err()
		}
	}
}

func removeClaimed(projects []cinode.ProjectDetailed, claim Claim) []cinode.ProjectDetailed {
	claimed := make(map[int]struct{}, len(claim.Projects))
	for _, p := range claim.Projects {
		claimed[p.ID] = struct{}{}
	}

	kept := projects[:0]
	for _, p := range projects {
		if _, ok := claimed[p.ID]; ok && p.CustomerID == claim.CustomerID {
			continue
		}
		kept = append(kept, p)
	}
	return kept
}

// Unclaimed projects the remainder into references for the in-house
// bucket. The reference id is the project's customerId, not its own id.
func Unclaimed(remainder []cinode.ProjectDetailed) []cinode.ProjectRef {
	refs := make([]cinode.ProjectRef, 0, len(remainder))
	for _, p := range remainder {
		refs = append(refs, cinode.ProjectRef{ID: p.CustomerID, Title: p.Title})
	}
	return refs
}

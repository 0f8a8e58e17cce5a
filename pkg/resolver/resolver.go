// Package resolver waits, within a bound, for locators to match nodes of the live element tree.
package resolver

import (
	"fmt"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/devicelab-dev/onboard-runner/pkg/core"
	"github.com/devicelab-dev/onboard-runner/pkg/flow"
	"github.com/devicelab-dev/onboard-runner/pkg/locator"
)

// DefaultInterval is the pause between two queries of the same locator.
const DefaultInterval = 200 * time.Millisecond

// Resolver polls a session until a locator matches or its deadline passes.
// Nothing is cached between polls or between calls.
type Resolver struct {
	session core.Session
	pacing  backoff.BackOff
}

// New creates a resolver polling at DefaultInterval.
func New(session core.Session) *Resolver {
	return &Resolver{
		session: session,
		pacing:  backoff.NewConstantBackOff(DefaultInterval),
	}
}

// ResolveOne returns the first element matching loc.
func (r *Resolver) ResolveOne(loc flow.Locator, timeout time.Duration) (*Element, error) {
	elements, err := r.resolve(loc, timeout)
	if err != nil {
		return nil, err
	}
	return elements[0], nil
}

// ResolveAll returns every element matched by a single query.
func (r *Resolver) ResolveAll(loc flow.Locator, timeout time.Duration) ([]*Element, error) {
	return r.resolve(loc, timeout)
}

// resolve polls until at least one element is found. The last poll runs at
// the deadline, so a miss is reported after timeout and before timeout+interval.
// Session errors are returned as-is on the first occurrence.
func (r *Resolver) resolve(loc flow.Locator, timeout time.Duration) ([]*Element, error) {
	q, err := locator.Build(loc)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	deadline := start.Add(timeout)
	r.pacing.Reset()

	for {
		nodes, err := r.session.Query(q.Expression)
		if err != nil {
			return nil, err
		}

		if len(nodes) > 0 {
			if q.Descendant != "" {
				nodes, err = r.clickable(nodes, q.Descendant)
				if err != nil {
					return nil, err
				}
			}
			if len(nodes) > 0 {
				return r.wrap(nodes, q, time.Since(start)), nil
			}
		}

		now := time.Now()
		if !now.Before(deadline) {
			return nil, notFound(q, timeout, now.Sub(start))
		}

		wait := r.pacing.NextBackOff()
		if remaining := deadline.Sub(now); remaining < wait {
			wait = remaining
		}
		time.Sleep(wait)
	}
}

// clickable replaces each match by its first clickable descendant.
// Matches without one are dropped.
func (r *Resolver) clickable(nodes []core.NodeHandle, descendant string) ([]core.NodeHandle, error) {
	var out []core.NodeHandle
	for _, n := range nodes {
		found, err := r.session.QueryWithin(n, descendant)
		if err != nil {
			return nil, err
		}
		if len(found) > 0 {
			out = append(out, found[0])
		}
	}
	return out, nil
}

func (r *Resolver) wrap(nodes []core.NodeHandle, q locator.Query, elapsed time.Duration) []*Element {
	elements := make([]*Element, len(nodes))
	for i, n := range nodes {
		elements[i] = &Element{
			handle:     n,
			session:    r.session,
			expression: q.String(),
			elapsed:    elapsed,
		}
	}
	return elements
}

func notFound(q locator.Query, timeout, elapsed time.Duration) error {
	return core.ErrElementNotFound.
		WithMessage(fmt.Sprintf("element not found: %s (waited %dms)", q.String(), elapsed.Milliseconds())).
		WithDetails(map[string]interface{}{
			"expression": q.String(),
			"timeoutMs":  timeout.Milliseconds(),
			"elapsedMs":  elapsed.Milliseconds(),
		})
}

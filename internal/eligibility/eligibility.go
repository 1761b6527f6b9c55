// Package eligibility defines the capability contract that gates
// conversation mutations, plus the concrete policies a conversation can be
// created with: minimum token balance, minimum native-currency balance, and
// name-record ownership. Policies read external data sources owned by other
// systems; a result is only valid for the single call that produced it.
package eligibility

import "context"

// Checker answers "may this identity perform a gated action right now?".
// It is evaluated fresh on every gated action with no memoization; the
// underlying data may change between any two calls. Implementations must
// be side-effect free from the caller's point of view.
type Checker interface {
	IsEligible(ctx context.Context, identity string) (bool, error)
}

// Func adapts a plain function to the Checker interface.
type Func func(ctx context.Context, identity string) (bool, error)

// IsEligible implements Checker.
func (f Func) IsEligible(ctx context.Context, identity string) (bool, error) {
	return f(ctx, identity)
}

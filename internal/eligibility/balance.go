package eligibility

import (
	"context"
	"fmt"
)

// BalanceSource reports the current balance held by an identity. A missing
// account reads as zero, not as an error.
type BalanceSource interface {
	Balance(ctx context.Context, identity string) (int64, error)
}

// MinBalance passes identities whose balance meets or exceeds Threshold.
// The same policy serves token and native-currency gates; only the source
// differs.
type MinBalance struct {
	Source    BalanceSource
	Threshold int64
}

// IsEligible implements Checker.
func (p *MinBalance) IsEligible(ctx context.Context, identity string) (bool, error) {
	bal, err := p.Source.Balance(ctx, identity)
	if err != nil {
		return false, fmt.Errorf("query balance for %s: %w", identity, err)
	}
	return bal >= p.Threshold, nil
}

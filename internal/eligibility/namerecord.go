package eligibility

import (
	"context"
	"fmt"
)

// NameSource reports whether an identity owns a reverse name record.
type NameSource interface {
	HasNameRecord(ctx context.Context, identity string) (bool, error)
}

// NameRecordOwner passes identities that own at least one name record.
type NameRecordOwner struct {
	Source NameSource
}

// IsEligible implements Checker.
func (p *NameRecordOwner) IsEligible(ctx context.Context, identity string) (bool, error) {
	ok, err := p.Source.HasNameRecord(ctx, identity)
	if err != nil {
		return false, fmt.Errorf("query name record for %s: %w", identity, err)
	}
	return ok, nil
}

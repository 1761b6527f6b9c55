package eligibility

import (
	"errors"
	"fmt"
)

// Gate types accepted in a GateSpec.
const (
	GateNone             = "none"
	GateMinBalance       = "min_balance"
	GateMinNativeBalance = "min_native_balance"
	GateNameRecord       = "name_record"
)

// ErrUnknownGate is returned for a GateSpec with an unrecognized type.
var ErrUnknownGate = errors.New("unknown gate type")

// ErrSourceUnavailable is returned when the requested gate needs a data
// source the deployment was not configured with.
var ErrSourceUnavailable = errors.New("gate data source not configured")

// GateSpec is the declarative description of an eligibility gate, as
// supplied at conversation creation.
type GateSpec struct {
	Type      string `json:"type"`
	Threshold int64  `json:"threshold,omitempty"`
}

// Builder constructs Checkers from GateSpecs using the data sources the
// deployment was wired with. Any source may be nil; gates needing it then
// fail to build with ErrSourceUnavailable.
type Builder struct {
	Tokens BalanceSource
	Native BalanceSource
	Names  NameSource
}

// Build returns the Checker described by spec. A "none" (or empty) spec
// yields a nil Checker, meaning everyone is eligible.
func (b *Builder) Build(spec GateSpec) (Checker, error) {
	switch spec.Type {
	case "", GateNone:
		return nil, nil
	case GateMinBalance:
		if b.Tokens == nil {
			return nil, fmt.Errorf("%s: %w", spec.Type, ErrSourceUnavailable)
		}
		if spec.Threshold < 0 {
			return nil, fmt.Errorf("threshold must be non-negative, got %d", spec.Threshold)
		}
		return &MinBalance{Source: b.Tokens, Threshold: spec.Threshold}, nil
	case GateMinNativeBalance:
		if b.Native == nil {
			return nil, fmt.Errorf("%s: %w", spec.Type, ErrSourceUnavailable)
		}
		if spec.Threshold < 0 {
			return nil, fmt.Errorf("threshold must be non-negative, got %d", spec.Threshold)
		}
		return &MinBalance{Source: b.Native, Threshold: spec.Threshold}, nil
	case GateNameRecord:
		if b.Names == nil {
			return nil, fmt.Errorf("%s: %w", spec.Type, ErrSourceUnavailable)
		}
		return &NameRecordOwner{Source: b.Names}, nil
	default:
		return nil, fmt.Errorf("%q: %w", spec.Type, ErrUnknownGate)
	}
}

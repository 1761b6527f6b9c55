package ledger

import (
	"encoding/json"
	"fmt"
)

// Choice is a voter's position on a statement. The zero value is Neutral,
// which also stands for "no vote yet" in query results.
type Choice int

const (
	ChoiceNeutral Choice = iota
	ChoiceAgree
	ChoiceDisagree
)

// String implements fmt.Stringer.
func (c Choice) String() string {
	switch c {
	case ChoiceAgree:
		return "agree"
	case ChoiceDisagree:
		return "disagree"
	default:
		return "neutral"
	}
}

// ParseChoice converts the wire representation back into a Choice.
func ParseChoice(s string) (Choice, error) {
	switch s {
	case "neutral":
		return ChoiceNeutral, nil
	case "agree":
		return ChoiceAgree, nil
	case "disagree":
		return ChoiceDisagree, nil
	default:
		return ChoiceNeutral, fmt.Errorf("unknown choice %q", s)
	}
}

// MarshalJSON encodes the choice as its string form.
func (c Choice) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON decodes the string form produced by MarshalJSON.
func (c *Choice) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseChoice(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// ProjectProposal is the phase-one payload: a project framing plus the options
// the user chooses between.
type ProjectProposal struct {
	ProjectName        string   `json:"projectName"`
	ProjectDescription string   `json:"projectDescription"`
	Options            []Option `json:"options"`
}

type Option struct {
	Title               string   `json:"title"`
	Description         string   `json:"description"`
	PercentageOfSuccess int      `json:"percentageOfSuccess"`
	Pros                []string `json:"pros"`
	Cons                []string `json:"cons"`
}

// maxExactFloatInt is the largest magnitude a float64 holds without losing
// integer precision.
const maxExactFloatInt = 1 << 53

// UnmarshalJSON accepts any whole JSON number for percentageOfSuccess (65,
// 65.0, 6.5e1), matching JSON Schema's "integer". Unknown fields are rejected.
func (o *Option) UnmarshalJSON(data []byte) error {
	type plain Option
	var raw struct {
		plain
		PercentageOfSuccess json.Number `json:"percentageOfSuccess"`
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&raw); err != nil {
		return err
	}

	pct, err := wholeNumber(raw.PercentageOfSuccess)
	if err != nil {
		return fmt.Errorf("domain: percentageOfSuccess: %w", err)
	}
	*o = Option(raw.plain)
	o.PercentageOfSuccess = pct
	return nil
}

func wholeNumber(n json.Number) (int, error) {
	if i, err := n.Int64(); err == nil && i >= math.MinInt && i <= math.MaxInt {
		return int(i), nil
	}
	f, err := n.Float64()
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", n.String())
	}
	if f != math.Trunc(f) || math.Abs(f) > maxExactFloatInt {
		return 0, fmt.Errorf("%s is not a whole number", n.String())
	}
	return int(f), nil
}

// ActionBreakdown is the phase-two payload produced once an option was selected.
type ActionBreakdown struct {
	ProjectName        string  `json:"projectName"`
	ProjectDescription string  `json:"projectDescription"`
	ActionItems        []Issue `json:"actionItems"`
}

type Issue struct {
	Task              string   `json:"task"`
	Description       string   `json:"description"`
	Priority          string   `json:"priority"`
	Deadline          string   `json:"deadline"`
	PotentialBlockers []string `json:"potentialBlockers"`
}

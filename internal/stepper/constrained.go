package stepper

import (
	"fmt"
	"math"
	"strings"
)

// StepSource identifies which caller imposed a step-size constraint.
type StepSource int

const (
	// SourceAccuracy is the adaptive error controller.
	SourceAccuracy StepSource = iota
	// SourceActor is the navigator's next-surface limit.
	SourceActor
	// SourceAborter is a termination condition closing in.
	SourceAborter
	// SourceUser is the configured absolute ceiling.
	SourceUser
	numStepSources
)

var stepSourceNames = [numStepSources]string{"accuracy", "actor", "aborter", "user"}

func (s StepSource) String() string {
	if s < 0 || s >= numStepSources {
		return "unknown"
	}
	return stepSourceNames[s]
}

// ConstrainedStep is a signed step size under multiple independent
// constraints, one slot per source. The active value is always the
// smallest-magnitude constraint; each slot can be released without
// disturbing the others, and releasing an inactive slot is a no-op.
type ConstrainedStep struct {
	values [numStepSources]float64
	sign   float64
}

// NewConstrainedStep seeds the user slot with v; the sign of v fixes
// the navigation direction of the released sentinel values.
func NewConstrainedStep(v float64) ConstrainedStep {
	c := ConstrainedStep{sign: math.Copysign(1, v)}
	for i := range c.values {
		c.values[i] = c.sign * math.MaxFloat64
	}
	c.values[SourceUser] = v
	return c
}

// Value returns the currently active (smallest-magnitude) constraint.
func (c *ConstrainedStep) Value() float64 {
	best := c.values[0]
	for _, v := range c.values[1:] {
		if math.Abs(v) < math.Abs(best) {
			best = v
		}
	}
	return best
}

// ValueOf returns the constraint currently held by one source.
func (c *ConstrainedStep) ValueOf(src StepSource) float64 { return c.values[src] }

// Set overwrites the constraint of one source unconditionally.
func (c *ConstrainedStep) Set(v float64, src StepSource) { c.values[src] = v }

// Update tightens the constraint of one source. With onlyShrink set
// the slot never grows in magnitude.
func (c *ConstrainedStep) Update(v float64, src StepSource, onlyShrink bool) {
	if !onlyShrink || math.Abs(v) < math.Abs(c.values[src]) {
		c.values[src] = v
	}
}

// Release re-arms a source with the signed sentinel so the remaining
// constraints take over.
func (c *ConstrainedStep) Release(src StepSource) {
	c.values[src] = c.sign * math.MaxFloat64
}

func (c *ConstrainedStep) String() string {
	var b strings.Builder
	b.WriteByte('(')
	for i, v := range c.values {
		if i > 0 {
			b.WriteString(", ")
		}
		if math.Abs(v) == math.MaxFloat64 {
			fmt.Fprintf(&b, "%s=*", StepSource(i))
		} else {
			fmt.Fprintf(&b, "%s=%g", StepSource(i), v)
		}
	}
	b.WriteByte(')')
	return b.String()
}

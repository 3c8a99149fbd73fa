// Package field abstracts magnetic field sampling as a pure function
// of position.
package field

import "gonum.org/v1/gonum/spatial/r3"

// Provider samples the magnetic field. Implementations must be cheap
// and side-effect free; the kernel may call them several times per
// integration step.
type Provider interface {
	Field(pos r3.Vec) r3.Vec
}

// Constant is a homogeneous field.
type Constant struct {
	B r3.Vec
}

func (c Constant) Field(r3.Vec) r3.Vec { return c.B }

// Null is the field-free provider.
type Null struct{}

func (Null) Field(r3.Vec) r3.Vec { return r3.Vec{} }

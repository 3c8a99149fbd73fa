package geometry

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/trackprop/internal/material"
)

// Layer is a thin detection or material plane inside a volume.
type Layer struct {
	Surface   Surface
	Mat       material.Material
	Thickness float64
	Sensitive bool
}

// Passive reports a layer that is neither sensitive nor material
// bearing.
func (l *Layer) Passive() bool { return !l.Sensitive && !l.Mat.IsValid() }

// Boundary is a surface separating two volumes. A nil slot marks the
// end of the world on that side.
type Boundary struct {
	Surface Surface
	// volumes on the negative/positive side of the surface normal
	negSide *Volume
	posSide *Volume
}

// Attached returns the volume on the far side of the boundary for a
// crossing along dir, or nil when the boundary ends the world.
func (b *Boundary) Attached(dir r3.Vec) *Volume {
	if r3.Dot(dir, b.Surface.Normal(b.Surface.Center())) > 0 {
		return b.posSide
	}
	return b.negSide
}

// Volume is an axis-aligned box with optional homogeneous material,
// contained layers and the boundary surfaces enclosing it.
type Volume struct {
	Name       string
	Min, Max   r3.Vec
	Mat        material.Material
	Layers     []*Layer
	Boundaries []*Boundary
}

func (v *Volume) Inside(pos r3.Vec, tol float64) bool {
	return pos.X >= v.Min.X-tol && pos.X <= v.Max.X+tol &&
		pos.Y >= v.Min.Y-tol && pos.Y <= v.Max.Y+tol &&
		pos.Z >= v.Min.Z-tol && pos.Z <= v.Max.Z+tol
}

// TrackingGeometry is an arena of volumes. Navigation state holds
// plain pointers into it and never owns geometry.
type TrackingGeometry struct {
	Volumes []*Volume
}

// VolumeAt returns the volume containing pos, or nil outside the
// world.
func (g *TrackingGeometry) VolumeAt(pos r3.Vec) *Volume {
	for _, v := range g.Volumes {
		if v.Inside(pos, 0) {
			return v
		}
	}
	// retry with the on-surface tolerance so that positions landed
	// exactly on a shared face still resolve
	for _, v := range g.Volumes {
		if v.Inside(pos, OnSurfaceTolerance) {
			return v
		}
	}
	return nil
}

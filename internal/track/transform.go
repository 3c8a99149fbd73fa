package track

import (
	"github.com/san-kum/trackprop/internal/geometry"
)

// BoundToFree expands bound parameters through their surface into the
// global frame. This is exact and always succeeds.
func BoundToFree(srf geometry.Surface, v BoundVector) FreeVector {
	var f FreeVector
	f.SetPosition(srf.LocalToGlobal(geometry.Local{L0: v[BoundLoc0], L1: v[BoundLoc1]}))
	f.SetDirection(DirectionFromAngles(v[BoundPhi], v[BoundTheta]))
	f[FreeTime] = v[BoundTime]
	f[FreeQOverP] = v[BoundQOverP]
	return f
}

// FreeToBound projects a free state into the local frame of srf. It
// fails when the free position does not lie in the surface's local
// domain; the free state stays valid in that case.
func FreeToBound(srf geometry.Surface, f FreeVector) (BoundVector, error) {
	loc, err := srf.GlobalToLocal(f.Position())
	if err != nil {
		return BoundVector{}, err
	}
	phi, theta := AnglesFromDirection(f.Direction())
	v := BoundVector{
		BoundLoc0:   loc.L0,
		BoundLoc1:   loc.L1,
		BoundPhi:    phi,
		BoundTheta:  theta,
		BoundQOverP: f[FreeQOverP],
		BoundTime:   f[FreeTime],
	}
	CorrectBound(&v)
	return v, nil
}

package geometry

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/trackprop/internal/material"
)

// LayerConfig places a detection/material plane (normal along x)
// inside a volume.
type LayerConfig struct {
	X         float64
	HalfY     float64
	HalfZ     float64
	Mat       material.Material
	Thickness float64
	Sensitive bool
}

// VolumeConfig describes one box in a row.
type VolumeConfig struct {
	Name       string
	MinX, MaxX float64
	Mat        material.Material
	Layers     []LayerConfig
}

// RowConfig describes a detector as a contiguous row of box volumes
// along the x axis, all sharing the same transverse half-lengths.
type RowConfig struct {
	HalfY, HalfZ float64
	Volumes      []VolumeConfig
}

// BuildRow constructs the tracking geometry for a row layout. Shared
// x faces become one boundary linking both neighbors; all other faces
// end the world.
func BuildRow(cfg RowConfig) (*TrackingGeometry, error) {
	if len(cfg.Volumes) == 0 {
		return nil, fmt.Errorf("geometry: row layout needs at least one volume")
	}
	if cfg.HalfY <= 0 || cfg.HalfZ <= 0 {
		return nil, fmt.Errorf("geometry: transverse half-lengths must be positive")
	}

	vols := make([]*Volume, len(cfg.Volumes))
	for i, vc := range cfg.Volumes {
		if vc.MaxX <= vc.MinX {
			return nil, fmt.Errorf("geometry: volume %q has non-positive x extent", vc.Name)
		}
		if i > 0 && math.Abs(vc.MinX-cfg.Volumes[i-1].MaxX) > OnSurfaceTolerance {
			return nil, fmt.Errorf("geometry: volume %q does not touch its predecessor", vc.Name)
		}
		v := &Volume{
			Name: vc.Name,
			Min:  r3.Vec{X: vc.MinX, Y: -cfg.HalfY, Z: -cfg.HalfZ},
			Max:  r3.Vec{X: vc.MaxX, Y: cfg.HalfY, Z: cfg.HalfZ},
			Mat:  vc.Mat,
		}
		for _, lc := range vc.Layers {
			if lc.X < vc.MinX || lc.X > vc.MaxX {
				return nil, fmt.Errorf("geometry: layer at x=%g outside volume %q", lc.X, vc.Name)
			}
			srf := xPlane(lc.X, lc.HalfY, lc.HalfZ, cfg)
			srf.Mat = lc.Mat
			srf.Thickness = lc.Thickness
			srf.Sensitive = lc.Sensitive
			v.Layers = append(v.Layers, &Layer{
				Surface:   srf,
				Mat:       lc.Mat,
				Thickness: lc.Thickness,
				Sensitive: lc.Sensitive,
			})
		}
		vols[i] = v
	}

	// x faces: one shared boundary per touching pair, world caps at
	// the ends.
	for i, v := range vols {
		if i == 0 {
			v.Boundaries = append(v.Boundaries, &Boundary{
				Surface: xPlane(v.Min.X, cfg.HalfY, cfg.HalfZ, cfg),
				posSide: v,
			})
		}
		b := &Boundary{
			Surface: xPlane(v.Max.X, cfg.HalfY, cfg.HalfZ, cfg),
			negSide: v,
		}
		if i+1 < len(vols) {
			b.posSide = vols[i+1]
			vols[i+1].Boundaries = append(vols[i+1].Boundaries, b)
		}
		v.Boundaries = append(v.Boundaries, b)
	}

	// transverse world caps
	for _, v := range vols {
		cx := 0.5 * (v.Min.X + v.Max.X)
		halfX := 0.5 * (v.Max.X - v.Min.X)
		for _, side := range []float64{-1, 1} {
			yFace := NewPlaneSurfaceWithAxes(
				r3.Vec{X: cx, Y: side * cfg.HalfY},
				r3.Vec{Z: 1}, r3.Vec{X: 1})
			yFace.Bounds = RectangleBounds{HalfX: cfg.HalfZ, HalfY: halfX}
			zFace := NewPlaneSurfaceWithAxes(
				r3.Vec{X: cx, Z: side * cfg.HalfZ},
				r3.Vec{X: 1}, r3.Vec{Y: 1})
			zFace.Bounds = RectangleBounds{HalfX: halfX, HalfY: cfg.HalfY}
			v.Boundaries = append(v.Boundaries,
				&Boundary{Surface: yFace, negSide: pick(side < 0, nil, v), posSide: pick(side < 0, v, nil)},
				&Boundary{Surface: zFace, negSide: pick(side < 0, nil, v), posSide: pick(side < 0, v, nil)})
		}
	}

	return &TrackingGeometry{Volumes: vols}, nil
}

// xPlane builds a rectangle-bounded plane with normal +x.
func xPlane(x, halfY, halfZ float64, cfg RowConfig) *PlaneSurface {
	if halfY <= 0 {
		halfY = cfg.HalfY
	}
	if halfZ <= 0 {
		halfZ = cfg.HalfZ
	}
	s := NewPlaneSurfaceWithAxes(r3.Vec{X: x}, r3.Vec{Y: 1}, r3.Vec{Z: 1})
	s.Bounds = RectangleBounds{HalfX: halfY, HalfY: halfZ}
	return s
}

func pick(cond bool, a, b *Volume) *Volume {
	if cond {
		return a
	}
	return b
}

// Package navigator drives a propagation through a tracking geometry.
// It keeps a worklist of candidate surfaces for the current volume,
// feeds the nearest one to the stepper as a step-size constraint and
// hands the propagation across volume boundaries until a target is
// reached or the world ends.
package navigator

import (
	"sort"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/trackprop/internal/geometry"
	"github.com/san-kum/trackprop/internal/stepper"
)

// Navigator holds the immutable navigation configuration. One
// Navigator serves concurrent propagations; all mutable data lives in
// State.
type Navigator struct {
	Geometry *geometry.TrackingGeometry

	// which layer kinds become navigation candidates
	ResolveSensitive bool
	ResolveMaterial  bool
	ResolvePassive   bool
}

// New builds a navigator resolving sensitive and material layers.
func New(g *geometry.TrackingGeometry) *Navigator {
	return &Navigator{Geometry: g, ResolveSensitive: true, ResolveMaterial: true}
}

// Stage is the navigation state machine position.
type Stage int

const (
	Uninitialized Stage = iota
	VolumeEntry
	TargetingSurface
	SurfaceReached
	VolumeExit
)

var stageNames = [...]string{"uninitialized", "volume-entry", "targeting-surface", "surface-reached", "volume-exit"}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "unknown"
	}
	return stageNames[s]
}

// candidate is one surface the propagation may hit within the current
// volume, ordered by its signed path along the navigation direction.
type candidate struct {
	surface  geometry.Surface
	layer    *geometry.Layer
	boundary *geometry.Boundary
	path     float64
}

// State is the mutable navigation state of one propagation.
type State struct {
	Stage Stage

	CurrentVolume  *geometry.Volume
	CurrentLayer   *geometry.Layer
	CurrentSurface geometry.Surface

	// Target is the optional destination surface; TargetReached is
	// latched when the propagation lands on it.
	Target        geometry.Surface
	TargetReached bool

	// ExitedWorld is latched when a boundary with no attached volume
	// is crossed or the start position lies outside every volume.
	ExitedWorld bool

	candidates []candidate
}

// Initialize binds the navigation state to the volume containing the
// stepper position and arms the first candidate search.
func (n *Navigator) Initialize(ns *State, ss *stepper.State) {
	vol := n.Geometry.VolumeAt(ss.Pos)
	if vol == nil {
		ns.ExitedWorld = true
		ns.Stage = VolumeExit
		return
	}
	ns.CurrentVolume = vol
	ss.Volume = vol
	ns.Stage = VolumeEntry
}

// PreStep refreshes the candidate worklist if needed and constrains
// the stepper to stop at the nearest reachable surface.
func (n *Navigator) PreStep(ns *State, ss *stepper.State) {
	switch ns.Stage {
	case Uninitialized:
		n.Initialize(ns, ss)
		if ns.ExitedWorld {
			return
		}
		fallthrough
	case VolumeEntry:
		n.buildCandidates(ns, ss)
		ns.Stage = TargetingSurface
	case SurfaceReached:
		ns.Stage = TargetingSurface
	case VolumeExit:
		return
	}
	n.target(ns, ss)
}

// target walks the worklist until a candidate is reachable, dropping
// stale entries. An empty worklist means nothing in this volume can be
// hit anymore.
func (n *Navigator) target(ns *State, ss *stepper.State) {
	for len(ns.candidates) > 0 {
		c := ns.candidates[0]
		status := ss.UpdateSurfaceStatus(c.surface, true)
		if status == geometry.Reachable || status == geometry.OnSurface {
			return
		}
		ns.candidates = ns.candidates[1:]
	}
	ns.ExitedWorld = true
	ns.Stage = VolumeExit
}

// PostStep checks whether the step landed on the targeted surface and
// advances the state machine: record the layer, or cross the boundary
// into the attached volume.
func (n *Navigator) PostStep(ns *State, ss *stepper.State) {
	if ns.Stage != TargetingSurface || len(ns.candidates) == 0 {
		return
	}
	c := ns.candidates[0]
	status := ss.UpdateSurfaceStatus(c.surface, true)
	switch status {
	case geometry.OnSurface:
		ns.candidates = ns.candidates[1:]
		ss.ReleaseStepSize(stepper.SourceActor)
		ns.CurrentSurface = c.surface
		if ns.Target != nil && c.surface == ns.Target {
			ns.TargetReached = true
		}
		if c.boundary != nil {
			n.crossBoundary(ns, ss, c.boundary)
			return
		}
		ns.CurrentLayer = c.layer
		ns.Stage = SurfaceReached
	case geometry.Unreachable:
		// overshot or left the bounds; drop and re-target
		ns.candidates = ns.candidates[1:]
		ss.ReleaseStepSize(stepper.SourceActor)
	}
}

func (n *Navigator) crossBoundary(ns *State, ss *stepper.State, b *geometry.Boundary) {
	dir := r3.Scale(float64(ss.NavDir), ss.Dir)
	next := b.Attached(dir)
	if next == nil {
		ns.ExitedWorld = true
		ns.Stage = VolumeExit
		return
	}
	ns.CurrentVolume = next
	ns.CurrentLayer = nil
	ss.Volume = next
	ns.Stage = VolumeEntry
}

func (n *Navigator) resolves(l *geometry.Layer) bool {
	switch {
	case l.Sensitive:
		return n.ResolveSensitive
	case l.Mat.IsValid():
		return n.ResolveMaterial
	default:
		return n.ResolvePassive
	}
}

// buildCandidates intersects every eligible surface of the current
// volume along the navigation direction and sorts the reachable ones
// by path.
func (n *Navigator) buildCandidates(ns *State, ss *stepper.State) {
	ns.candidates = ns.candidates[:0]
	dir := r3.Scale(float64(ss.NavDir), ss.Dir)
	vol := ns.CurrentVolume

	add := func(srf geometry.Surface, l *geometry.Layer, b *geometry.Boundary) {
		ix := srf.Intersect(ss.Pos, dir, true, true)
		if ix.Status != geometry.Reachable || ix.PathLength <= geometry.OnSurfaceTolerance {
			return
		}
		ns.candidates = append(ns.candidates, candidate{surface: srf, layer: l, boundary: b, path: ix.PathLength})
	}

	for _, l := range vol.Layers {
		if n.resolves(l) {
			add(l.Surface, l, nil)
		}
	}
	for _, b := range vol.Boundaries {
		add(b.Surface, nil, b)
	}
	if ns.Target != nil {
		ix := ns.Target.Intersect(ss.Pos, dir, true, true)
		if ix.Status == geometry.Reachable && ix.PathLength > geometry.OnSurfaceTolerance &&
			vol.Inside(ix.Position, geometry.OnSurfaceTolerance) {
			ns.candidates = append(ns.candidates, candidate{surface: ns.Target, path: ix.PathLength})
		}
	}

	sort.SliceStable(ns.candidates, func(i, j int) bool {
		return ns.candidates[i].path < ns.candidates[j].path
	})
}

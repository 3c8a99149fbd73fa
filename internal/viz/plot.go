package viz

import (
	"fmt"
	"strings"

	"github.com/guptarohit/asciigraph"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/trackprop/internal/propagator"
)

// TrajectoryPlots renders the standard set of trajectory charts for a
// recorded run: the transverse deflections against x and the momentum
// against path length.
func TrajectoryPlots(records []propagator.StepRecord, width, height int) string {
	if len(records) == 0 {
		return "no steps recorded\n"
	}

	y := make([]float64, len(records))
	z := make([]float64, len(records))
	p := make([]float64, len(records))
	for i, r := range records {
		y[i] = r.Pos.Y
		z[i] = r.Pos.Z
		p[i] = r.P
	}

	var b strings.Builder
	b.WriteString(asciigraph.Plot(y,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Caption("y [mm] per step"),
	))
	b.WriteString("\n\n")
	b.WriteString(asciigraph.Plot(z,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Caption("z [mm] per step"),
	))
	b.WriteString("\n\n")
	b.WriteString(asciigraph.Plot(p,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Caption("momentum [GeV] per step"),
	))
	b.WriteString("\n")
	return b.String()
}

// TopView renders the x-y projection of the trajectory with layer
// markers at the given x positions.
func TopView(records []propagator.StepRecord, layerX []float64, width, height int) string {
	if len(records) == 0 {
		return "no steps recorded\n"
	}

	minX, maxX := records[0].Pos.X, records[0].Pos.X
	minY, maxY := records[0].Pos.Y, records[0].Pos.Y
	for _, r := range records {
		minX = min(minX, r.Pos.X)
		maxX = max(maxX, r.Pos.X)
		minY = min(minY, r.Pos.Y)
		maxY = max(maxY, r.Pos.Y)
	}
	for _, x := range layerX {
		minX = min(minX, x)
		maxX = max(maxX, x)
	}
	// pad degenerate windows so a straight axial track still shows
	if maxX-minX < 1 {
		minX, maxX = minX-1, maxX+1
	}
	if maxY-minY < 1 {
		minY, maxY = minY-1, maxY+1
	}

	proj := NewProjection(width, height, minX, maxX, minY, maxY)
	for _, x := range layerX {
		proj.VerticalMarker(x)
	}
	traj := make([]r3.Vec, len(records))
	for i, r := range records {
		traj[i] = r.Pos
	}
	proj.Trajectory(traj)

	var b strings.Builder
	b.WriteString(proj.String())
	fmt.Fprintf(&b, "x: [%.1f, %.1f] mm   y: [%.1f, %.1f] mm\n", minX, maxX, minY, maxY)
	return b.String()
}

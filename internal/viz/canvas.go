package viz

import (
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

// Braille Patterns: 2x4 dots
// 1 4
// 2 5
// 3 6
// 7 8
//
// Unicode offset 0x2800
var pixelMap = [4][2]int{
	{0x1, 0x8},
	{0x2, 0x10},
	{0x4, 0x20},
	{0x40, 0x80},
}

type Canvas struct {
	Width, Height int
	Grid          [][]rune
}

func NewCanvas(w, h int) *Canvas {
	c := &Canvas{
		Width:  w,
		Height: h,
		Grid:   make([][]rune, h),
	}
	for i := range c.Grid {
		c.Grid[i] = make([]rune, w)
		for j := range c.Grid[i] {
			c.Grid[i][j] = 0x2800 // Empty braille char
		}
	}
	return c
}

// Set sets a pixel at (x, y) in sub-pixel coordinates. The canvas size
// in sub-pixels is (Width*2) x (Height*4).
func (c *Canvas) Set(x, y int) {
	if x < 0 || y < 0 {
		return
	}

	col := x / 2
	row := y / 4
	if col >= c.Width || row >= c.Height {
		return
	}

	subX := x % 2
	subY := y % 4

	c.Grid[row][col] |= rune(pixelMap[subY][subX])
}

// Clear resets the canvas
func (c *Canvas) Clear() {
	for i := range c.Grid {
		for j := range c.Grid[i] {
			c.Grid[i][j] = 0x2800
		}
	}
}

// DrawLine draws a line using Bresenham's algorithm
func (c *Canvas) DrawLine(x0, y0, x1, y1 int) {
	dx := absInt(x1 - x0)
	dy := absInt(y1 - y0)
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	err := dx - dy

	for {
		c.Set(x0, y0)
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x0 += sx
		}
		if e2 < dx {
			err += dx
			y0 += sy
		}
	}
}

func (c *Canvas) String() string {
	var b strings.Builder
	for _, row := range c.Grid {
		b.WriteString(string(row) + "\n")
	}
	return b.String()
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// Projection maps a world-coordinate window onto the canvas sub-pixel
// grid, picking two of the three axes.
type Projection struct {
	Canvas                 *Canvas
	MinU, MaxU, MinV, MaxV float64
	// AxisU/AxisV pick the projected world components: 0=x, 1=y, 2=z.
	AxisU, AxisV int
}

// NewProjection builds an x-y projection spanning the given window.
func NewProjection(w, h int, minU, maxU, minV, maxV float64) *Projection {
	return &Projection{
		Canvas: NewCanvas(w, h),
		MinU:   minU, MaxU: maxU,
		MinV: minV, MaxV: maxV,
		AxisU: 0, AxisV: 1,
	}
}

func component(p r3.Vec, axis int) float64 {
	switch axis {
	case 1:
		return p.Y
	case 2:
		return p.Z
	}
	return p.X
}

func (p *Projection) toPixel(pos r3.Vec) (int, int, bool) {
	du := p.MaxU - p.MinU
	dv := p.MaxV - p.MinV
	if du <= 0 || dv <= 0 {
		return 0, 0, false
	}
	u := (component(pos, p.AxisU) - p.MinU) / du
	v := (component(pos, p.AxisV) - p.MinV) / dv
	if u < 0 || u > 1 || v < 0 || v > 1 {
		return 0, 0, false
	}
	px := int(u * float64(p.Canvas.Width*2-1))
	py := int((1 - v) * float64(p.Canvas.Height*4-1))
	return px, py, true
}

// Trajectory draws a polyline through the world positions.
func (p *Projection) Trajectory(points []r3.Vec) {
	var prevX, prevY int
	havePrev := false
	for _, pos := range points {
		x, y, ok := p.toPixel(pos)
		if !ok {
			havePrev = false
			continue
		}
		if havePrev {
			p.Canvas.DrawLine(prevX, prevY, x, y)
		} else {
			p.Canvas.Set(x, y)
		}
		prevX, prevY = x, y
		havePrev = true
	}
}

// VerticalMarker draws a vertical line at world coordinate u, e.g. a
// detection layer seen edge-on.
func (p *Projection) VerticalMarker(u float64) {
	if p.AxisU != 0 {
		return
	}
	x, _, ok := p.toPixel(r3.Vec{X: u, Y: p.MinV, Z: p.MinV})
	if !ok {
		return
	}
	p.Canvas.DrawLine(x, 0, x, p.Canvas.Height*4-1)
}

func (p *Projection) String() string { return p.Canvas.String() }

// render draws the exploration map onto a vg.Canvas: a pass over every cell,
// an optional path overlay, and an optional robot marker. Drawing happens in
// screen space (origin top left, y down) so cell (row, col) covers the pixels
// starting at (col*CellSize, row*CellSize).
package render

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"math"

	"mapview/models"

	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/vgimg"
)

// Fixed styling, in pixels.
const (
	CellSize   vg.Length = 30
	LineWidth  vg.Length = 3
	BodyRadius vg.Length = 40
	HeadRadius vg.Length = 5

	// The robot body sits in the middle of its center cell. The heading dot is
	// drawn slightly below the middle of the head cell.
	bodyOffsetX, bodyOffsetY vg.Length = 15, 15
	headOffsetX, headOffsetY vg.Length = 15, 20
)

// Renderer holds the canvas dimensions in cells. It has no other state, so
// rendering the same frame twice issues identical drawing calls.
type Renderer struct {
	rows, cols int
}

// NewRenderer returns a renderer for a canvas of rows x cols cells.
func NewRenderer(rows, cols int) *Renderer {
	return &Renderer{rows: rows, cols: cols}
}

// Width returns the canvas width in pixels.
func (r *Renderer) Width() vg.Length {
	return vg.Length(r.cols) * CellSize
}

// Height returns the canvas height in pixels.
func (r *Renderer) Height() vg.Length {
	return vg.Length(r.rows) * CellSize
}

// ErrExceedsCanvas is returned for a grid with more rows or columns than the canvas.
var ErrExceedsCanvas = errors.New("grid exceeds canvas")

// Fits reports ErrExceedsCanvas when the grid would be clipped by the canvas.
func (r *Renderer) Fits(grid models.Grid) error {
	if grid.Rows() > r.rows || grid.Cols() > r.cols {
		return fmt.Errorf("%dx%d grid on %dx%d canvas: %w", grid.Rows(), grid.Cols(), r.rows, r.cols, ErrExceedsCanvas)
	}
	return nil
}

// Render clears the canvas and draws the frame. Cells are drawn for the grid's
// actual dimensions. Path cells that are way-points or lie outside the grid are
// skipped, as is a robot whose center or head lies outside the grid.
func (r *Renderer) Render(c vg.Canvas, frame models.Frame) {
	c.Push()
	defer c.Pop()

	// vg is y-up; flip once so everything below is in screen coordinates.
	c.Translate(vg.Point{X: 0, Y: r.Height()})
	c.Scale(1, -1)

	c.SetColor(unexploredFill)
	c.Fill(rect(0, 0, r.Width(), r.Height()))

	c.SetLineWidth(LineWidth)
	frame.Grid.Visit(func(coord models.Coord, state models.CellState) {
		drawCell(c, coord, ColorOf(state))
	})

	for _, coord := range frame.Path {
		if state, ok := frame.Grid.At(coord); ok && state != models.WAYPOINT {
			drawCell(c, coord, pathFill)
		}
	}

	if frame.HasPose() && frame.Grid.Contains(*frame.Center) && frame.Grid.Contains(*frame.Head) {
		drawRobot(c, *frame.Center, *frame.Head)
	}
}

// Snapshot renders the frame onto a fresh image canvas and returns it PNG encoded.
// The canvas uses 72 dpi so that one vg point is one pixel. Grids larger than
// the canvas are refused rather than clipped.
func (r *Renderer) Snapshot(frame models.Frame) ([]byte, error) {
	if err := r.Fits(frame.Grid); err != nil {
		return nil, err
	}

	canvas := vgimg.NewWith(
		vgimg.UseWH(r.Width(), r.Height()),
		vgimg.UseDPI(72),
		vgimg.UseBackgroundColor(unexploredFill),
	)
	r.Render(canvas, frame)

	var buf bytes.Buffer
	png := vgimg.PngCanvas{Canvas: canvas}
	if _, err := png.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

// drawCell fills the cell and strokes its border. Line width must already be set.
func drawCell(c vg.Canvas, coord models.Coord, fill color.Color) {
	x := vg.Length(coord.Col()) * CellSize
	y := vg.Length(coord.Row()) * CellSize
	square := rect(x, y, CellSize, CellSize)

	c.SetColor(fill)
	c.Fill(square)
	c.SetColor(strokeColor)
	c.Stroke(square)
}

// drawRobot draws the outlined body over the center cell and the heading dot at the head cell.
func drawRobot(c vg.Canvas, center, head models.Coord) {
	body := circle(
		vg.Length(center.Col())*CellSize+bodyOffsetX,
		vg.Length(center.Row())*CellSize+bodyOffsetY,
		BodyRadius)
	c.SetColor(robotFill)
	c.Fill(body)
	c.SetColor(strokeColor)
	c.Stroke(body)

	dot := circle(
		vg.Length(head.Col())*CellSize+headOffsetX,
		vg.Length(head.Row())*CellSize+headOffsetY,
		HeadRadius)
	c.SetColor(pathFill)
	c.Fill(dot)
}

func rect(x, y, w, h vg.Length) (path vg.Path) {
	path.Move(vg.Point{X: x, Y: y})
	path.Line(vg.Point{X: x + w, Y: y})
	path.Line(vg.Point{X: x + w, Y: y + h})
	path.Line(vg.Point{X: x, Y: y + h})
	path.Close()
	return
}

func circle(cx, cy, radius vg.Length) (path vg.Path) {
	path.Move(vg.Point{X: cx + radius, Y: cy})
	path.Arc(vg.Point{X: cx, Y: cy}, radius, 0, 2*math.Pi)
	path.Close()
	return
}

// Blank returns the all-unexplored frame that fills this renderer's canvas.
func (r *Renderer) Blank() models.Frame {
	return models.Frame{Grid: models.NewGridSized(r.rows, r.cols)}
}

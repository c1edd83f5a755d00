package render

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"mapview/models"

	"github.com/google/go-cmp/cmp"
	. "github.com/smartystreets/goconvey/convey"
	"gonum.org/v1/plot/font"
	"gonum.org/v1/plot/vg"
)

// drawOp is a single fill or stroke issued to the recorder.
type drawOp struct {
	Kind  string
	Color color.Color
	Path  vg.Path
}

// recorder is a vg.Canvas that records fills and strokes with the color that was current.
type recorder struct {
	color color.Color
	ops   []drawOp
}

func (rc *recorder) SetLineWidth(vg.Length) {}
func (rc *recorder) SetLineDash([]vg.Length, vg.Length) {}
func (rc *recorder) SetColor(c color.Color) { rc.color = c }
func (rc *recorder) Rotate(float64) {}
func (rc *recorder) Translate(vg.Point) {}
func (rc *recorder) Scale(float64, float64) {}
func (rc *recorder) Push() {}
func (rc *recorder) Pop() {}
func (rc *recorder) FillString(font.Face, vg.Point, string) {}
func (rc *recorder) DrawImage(vg.Rectangle, image.Image) {}

func (rc *recorder) Stroke(path vg.Path) {
	rc.ops = append(rc.ops, drawOp{Kind: "stroke", Color: rc.color, Path: path})
}

func (rc *recorder) Fill(path vg.Path) {
	rc.ops = append(rc.ops, drawOp{Kind: "fill", Color: rc.color, Path: path})
}

// fills returns the fill ops of the given color.
func (rc *recorder) fills(c color.Color) (ops []drawOp) {
	for _, op := range rc.ops {
		if op.Kind == "fill" && op.Color == c {
			ops = append(ops, op)
		}
	}
	return
}

// arcs returns the fills whose path is a circle, in draw order.
func (rc *recorder) arcs() (comps []vg.PathComp) {
	for _, op := range rc.ops {
		if op.Kind != "fill" {
			continue
		}
		for _, comp := range op.Path {
			if comp.Type == vg.ArcComp {
				comps = append(comps, comp)
			}
		}
	}
	return
}

func TestColorOf(t *testing.T) {
	Convey("When ColorOf is called", t, func() {
		Convey("Each known state maps to its fixed color", func() {
			expected := map[models.CellState]color.RGBA{
				models.UNEXPLORED: {0x1a, 0x1e, 0x24, 0xff},
				models.EXPLORED:   {0xf9, 0xf0, 0xdd, 0xff},
				models.OBSTACLE:   {0x00, 0x3b, 0xcb, 0xff},
				models.START:      {0x30, 0x80, 0x7d, 0xff},
				models.GOAL:       {0x08, 0xae, 0x69, 0xff},
				models.ROBOT:      {0x35, 0x44, 0x58, 0xff},
				models.PATH:       {0x7a, 0xcd, 0xc8, 0xff},
				models.WAYPOINT:   {0x67, 0x3a, 0xb7, 0xff},
			}
			for state, want := range expected {
				So(ColorOf(state), ShouldResemble, want)
				// No hidden state: asking again gives the same answer.
				So(ColorOf(state), ShouldResemble, want)
			}
		})

		Convey("Unknown states fall back to unexplored", func() {
			for _, state := range []models.CellState{-1, 8, 42} {
				So(ColorOf(state), ShouldResemble, ColorOf(models.UNEXPLORED))
			}
		})
	})
}

func TestRender(t *testing.T) {
	renderer := NewRenderer(models.MAX_ROWS, models.MAX_COLS)

	Convey("When the renderer draws a frame", t, func() {
		grid := models.NewGrid()
		grid[2][3] = models.EXPLORED
		grid[5][5] = models.OBSTACLE
		center, head := models.Coord{2, 3}, models.Coord{2, 4}
		frame := models.Frame{Grid: grid, Center: &center, Head: &head}

		Convey("Every cell is filled and outlined", func() {
			rc := &recorder{}
			renderer.Render(rc, models.Frame{Grid: grid})

			strokes := 0
			for _, op := range rc.ops {
				if op.Kind == "stroke" {
					strokes++
					So(op.Color, ShouldResemble, strokeColor)
				}
			}
			So(strokes, ShouldEqual, models.MAX_ROWS*models.MAX_COLS)
			So(len(rc.fills(obstacleFill)), ShouldEqual, 1)
			So(rc.fills(obstacleFill)[0].Path, ShouldResemble, rect(150, 150, 30, 30))
			So(rc.arcs(), ShouldBeEmpty)
		})

		Convey("Drawing the same frame twice issues identical calls", func() {
			first, second := &recorder{}, &recorder{}
			renderer.Render(first, frame)
			renderer.Render(second, frame)
			So(cmp.Diff(first.ops, second.ops), ShouldBeEmpty)
		})

		Convey("The robot body and heading dot are placed from center and head", func() {
			rc := &recorder{}
			renderer.Render(rc, frame)

			arcs := rc.arcs()
			So(len(arcs), ShouldEqual, 2)
			So(arcs[0].Pos, ShouldResemble, vg.Point{X: 30*3 + 15, Y: 30*2 + 15})
			So(arcs[0].Radius, ShouldEqual, vg.Length(40))
			So(arcs[1].Pos, ShouldResemble, vg.Point{X: 30*4 + 15, Y: 30*2 + 20})
			So(arcs[1].Radius, ShouldEqual, vg.Length(5))

			So(len(rc.fills(robotFill)), ShouldEqual, 1)
		})

		Convey("The robot is not drawn without a head", func() {
			rc := &recorder{}
			renderer.Render(rc, models.Frame{Grid: grid, Center: &center})
			So(rc.arcs(), ShouldBeEmpty)
		})

		Convey("The robot is not drawn when its center is off the grid", func() {
			outside := models.Coord{models.MAX_ROWS, 0}
			rc := &recorder{}
			renderer.Render(rc, models.Frame{Grid: grid, Center: &outside, Head: &head})
			So(rc.arcs(), ShouldBeEmpty)
		})

		Convey("Path cells are overlaid except way-points", func() {
			grid[1][1] = models.WAYPOINT
			rc := &recorder{}
			renderer.Render(rc, models.Frame{
				Grid: grid,
				Path: models.Path{{1, 1}, {1, 2}, {-1, 0}, {0, models.MAX_COLS}},
			})

			overlays := rc.fills(pathFill)
			So(len(overlays), ShouldEqual, 1)
			So(overlays[0].Path, ShouldResemble, rect(60, 30, 30, 30))
			So(len(rc.fills(waypointFill)), ShouldEqual, 1)
		})

		Convey("Path overlays are drawn after the base pass", func() {
			rc := &recorder{}
			renderer.Render(rc, models.Frame{Grid: grid, Path: models.Path{{0, 0}}})

			last := -1
			for i, op := range rc.ops {
				if op.Kind == "fill" && op.Color == color.Color(pathFill) {
					last = i
				}
			}
			// The overlay's fill and stroke are the final two calls.
			So(last, ShouldEqual, len(rc.ops)-2)
		})
	})
}

func TestSnapshot(t *testing.T) {
	renderer := NewRenderer(models.MAX_ROWS, models.MAX_COLS)

	Convey("When a snapshot is taken", t, func() {
		grid := models.NewGrid()
		grid[0][0] = models.OBSTACLE
		frame := models.Frame{Grid: grid}

		data, err := renderer.Snapshot(frame)
		So(err, ShouldBeNil)

		Convey("It is a png of the canvas size", func() {
			img, err := png.Decode(bytes.NewReader(data))
			So(err, ShouldBeNil)
			So(img.Bounds().Dx(), ShouldEqual, 450)
			So(img.Bounds().Dy(), ShouldEqual, 600)

			toRGBA := func(c color.Color) color.RGBA {
				r, g, b, a := c.RGBA()
				return color.RGBA{uint8(r >> 8), uint8(g >> 8), uint8(b >> 8), uint8(a >> 8)}
			}
			// Row 0 is at the top of the image.
			So(toRGBA(img.At(15, 15)), ShouldResemble, obstacleFill)
			So(toRGBA(img.At(15, 585)), ShouldResemble, unexploredFill)
		})

		Convey("Rendering the same frame again gives identical bytes", func() {
			again, err := renderer.Snapshot(frame)
			So(err, ShouldBeNil)
			So(bytes.Equal(data, again), ShouldBeTrue)
		})

		Convey("A grid larger than the canvas is refused", func() {
			for _, oversized := range []models.Grid{
				models.NewGridSized(models.MAX_ROWS+1, models.MAX_COLS),
				models.NewGridSized(models.MAX_ROWS, models.MAX_COLS+1),
			} {
				data, err := renderer.Snapshot(models.Frame{Grid: oversized})
				So(data, ShouldBeNil)
				So(errors.Is(err, ErrExceedsCanvas), ShouldBeTrue)
			}
			So(renderer.Fits(models.NewGridSized(2, 2)), ShouldBeNil)
		})

		Convey("A different frame gives different bytes", func() {
			grid[0][0] = models.GOAL
			changed, err := renderer.Snapshot(models.Frame{Grid: grid})
			So(err, ShouldBeNil)
			So(bytes.Equal(data, changed), ShouldBeFalse)
		})
	})
}

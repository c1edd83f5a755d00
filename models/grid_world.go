package models

import (
	"errors"
	"fmt"
)

// CellState is the code the exploration server assigns to a grid cell.
// Only the codes below are meaningful; anything else is treated as unexplored
// when displayed.
type CellState int

// Cell states
const (
	UNEXPLORED CellState = iota
	EXPLORED
	OBSTACLE
	START
	GOAL
	ROBOT
	PATH
	WAYPOINT
)

// Arena dimensions used by the exploration server.
const (
	MAX_ROWS = 20
	MAX_COLS = 15
)

// Grid is the map as rows of cell states, indexed [row][col], where [0][0]
// is the top left cell when displayed. Grids are replaced whole on every
// update and never edited in place by the client.
type Grid [][]CellState

// NewGrid returns an all-unexplored grid of the arena's dimensions.
func NewGrid() Grid {
	return NewGridSized(MAX_ROWS, MAX_COLS)
}

// NewGridSized returns an all-unexplored grid with the given dimensions.
func NewGridSized(rows, cols int) Grid {
	grid := make(Grid, rows)
	for row := range grid {
		grid[row] = make([]CellState, cols)
	}
	return grid
}

// Rows returns the number of rows.
func (grid Grid) Rows() int {
	return len(grid)
}

// Cols returns the number of columns, taken from the first row.
func (grid Grid) Cols() int {
	if len(grid) == 0 {
		return 0
	}
	return len(grid[0])
}

// Contains reports whether the coordinate indexes a cell of the grid.
func (grid Grid) Contains(coord Coord) bool {
	row, col := coord.Row(), coord.Col()
	return row >= 0 && row < len(grid) && col >= 0 && col < len(grid[row])
}

// At returns the state at the coordinate, and false if the coordinate is out of bounds.
func (grid Grid) At(coord Coord) (CellState, bool) {
	if !grid.Contains(coord) {
		return UNEXPLORED, false
	}
	return grid[coord.Row()][coord.Col()], true
}

// Visit calls fn for every cell, in row-major order.
func (grid Grid) Visit(fn func(coord Coord, state CellState)) {
	for row := range grid {
		for col := range grid[row] {
			fn(Coord{row, col}, grid[row][col])
		}
	}
}

// Coord is a [row, col] grid position. It encodes to json as a two element array,
// which is the format the server uses for the robot center and head.
type Coord [2]int

func (coord Coord) Row() int { return coord[0] }
func (coord Coord) Col() int { return coord[1] }

func (coord Coord) String() string {
	return fmt.Sprintf("[%d,%d]", coord[0], coord[1])
}

// Path is an ordered sequence of cells the robot has traversed.
type Path []Coord

// Frame is everything needed to draw the map once: the grid, the optional robot
// pose, and the optional traversed path. The robot is only drawn when both Center
// and Head are set.
type Frame struct {
	Grid   Grid
	Center *Coord
	Head   *Coord
	Path   Path
}

// HasPose reports whether the frame carries a complete robot pose.
func (frame *Frame) HasPose() bool {
	return frame.Center != nil && frame.Head != nil
}

var (
	// ErrEmptyGrid is returned for grids with no rows or no columns.
	ErrEmptyGrid = errors.New("grid is empty")
	// ErrRaggedGrid is returned when the rows of a grid differ in length.
	ErrRaggedGrid = errors.New("grid rows differ in length")
	// ErrOutOfBounds is returned when a pose coordinate lies outside the grid.
	ErrOutOfBounds = errors.New("coordinate out of bounds")
)

// Validate checks the grid is rectangular and non-empty and that any pose
// coordinates lie inside it. The path is not checked; out of bounds path cells
// are simply not drawn.
func (frame *Frame) Validate() error {
	cols := frame.Grid.Cols()
	if len(frame.Grid) == 0 || cols == 0 {
		return ErrEmptyGrid
	}
	for row := range frame.Grid {
		if len(frame.Grid[row]) != cols {
			return fmt.Errorf("row %d has %d cells, want %d: %w", row, len(frame.Grid[row]), cols, ErrRaggedGrid)
		}
	}
	if frame.Center != nil && !frame.Grid.Contains(*frame.Center) {
		return fmt.Errorf("center %v: %w", *frame.Center, ErrOutOfBounds)
	}
	if frame.Head != nil && !frame.Grid.Contains(*frame.Head) {
		return fmt.Errorf("head %v: %w", *frame.Head, ErrOutOfBounds)
	}
	return nil
}

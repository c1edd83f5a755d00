package render

import (
	"image/color"

	"mapview/models"
)

var (
	unexploredFill = rgb(0x1a, 0x1e, 0x24) // #1a1e24
	exploredFill   = rgb(0xf9, 0xf0, 0xdd) // #F9F0DD
	obstacleFill   = rgb(0x00, 0x3b, 0xcb) // #003BCB
	startFill      = rgb(0x30, 0x80, 0x7d) // #30807d
	goalFill       = rgb(0x08, 0xae, 0x69) // #08ae69
	robotFill      = rgb(0x35, 0x44, 0x58) // #354458
	pathFill       = rgb(0x7a, 0xcd, 0xc8) // #7acdc8
	waypointFill   = rgb(0x67, 0x3a, 0xb7) // #673ab7

	// Cell borders and the robot outline.
	strokeColor = rgb(0x25, 0x2a, 0x33) // #252a33
)

func rgb(r, g, b uint8) color.RGBA {
	return color.RGBA{R: r, G: g, B: b, A: 0xff}
}

// ColorOf returns the fill for a cell state. Unknown states are drawn as unexplored.
func ColorOf(state models.CellState) color.RGBA {
	switch state {
	case models.UNEXPLORED:
		return unexploredFill
	case models.EXPLORED:
		return exploredFill
	case models.OBSTACLE:
		return obstacleFill
	case models.START:
		return startFill
	case models.GOAL:
		return goalFill
	case models.ROBOT:
		return robotFill
	case models.PATH:
		return pathFill
	case models.WAYPOINT:
		return waypointFill
	default:
		return unexploredFill
	}
}

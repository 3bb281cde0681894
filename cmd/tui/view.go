package main

import (
	"fmt"
	"math"

	"rocket-ragdoll/internal/game"

	"github.com/gdamore/tcell/v2"
)

// Terminal cells are roughly twice as tall as wide
const (
	cellWidth  = 12.0 // world pixels per column at zoom 1
	cellHeight = 24.0 // world pixels per row at zoom 1
	holdTicks  = 12   // terminals report no key release, so presses auto-release
)

// viewport maps world pixels around the camera onto terminal cells
type viewport struct {
	cols, rows int
	top        int // rows reserved for the HUD
	cx, cy     float64
	scale      float64
}

func newViewport(cols, rows, top int, cam game.CameraSnapshot) viewport {
	scale := cam.Scale
	if scale <= 0 {
		scale = 1
	}
	return viewport{cols: cols, rows: rows, top: top, cx: cam.X, cy: cam.Y, scale: scale}
}

// cell returns the terminal cell of a world point, ok is false off screen
func (v viewport) cell(x, y float64) (int, int, bool) {
	col := int(math.Floor((x-v.cx)*v.scale/cellWidth)) + v.cols/2
	row := int(math.Floor((y-v.cy)*v.scale/cellHeight)) + v.top + (v.rows-v.top)/2
	if col < 0 || col >= v.cols || row < v.top || row >= v.rows {
		return col, row, false
	}
	return col, row, true
}

var limbGlyphs = map[string]rune{
	"torso":    '#',
	"head":     'O',
	"leftArm":  '<',
	"rightArm": '>',
	"leftLeg":  '/',
	"rightLeg": '\\',
}

var (
	styleHUD     = tcell.StyleDefault.Foreground(tcell.ColorWhite).Bold(true)
	styleFloor   = tcell.StyleDefault.Foreground(tcell.ColorGreen)
	stylePlat    = tcell.StyleDefault.Foreground(tcell.ColorYellow)
	styleBouncer = tcell.StyleDefault.Foreground(tcell.ColorFuchsia)
	styleWall    = tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleOrb     = tcell.StyleDefault.Foreground(tcell.ColorGold).Bold(true)
	styleFlame   = tcell.StyleDefault.Foreground(tcell.ColorOrangeRed)
	styleLimb    = tcell.StyleDefault.Foreground(tcell.ColorAqua).Bold(true)
	styleError   = tcell.StyleDefault.Foreground(tcell.ColorRed)
)

func terrainStyle(label string) (rune, tcell.Style) {
	switch label {
	case game.LabelPlatform:
		return '=', stylePlat
	case game.LabelBouncer:
		return '~', styleBouncer
	case game.LabelWall:
		return '|', styleWall
	default:
		return '█', styleFloor
	}
}

// draw paints one snapshot; the caller calls Show
func draw(s tcell.Screen, snap *game.GameSnapshot) {
	s.Clear()
	cols, rows := s.Size()
	if snap == nil {
		drawText(s, 0, 0, styleHUD, "waiting for first snapshot...")
		return
	}
	v := newViewport(cols, rows, 2, snap.Camera)

	for _, b := range snap.Terrain {
		glyph, style := terrainStyle(b.Label)
		fillBox(s, v, b.X, b.Y, b.Width, b.Height, glyph, style)
	}
	for _, c := range snap.Collectibles {
		if c.Collected {
			continue
		}
		if col, row, ok := v.cell(c.X, c.Y); ok {
			s.SetContent(col, row, '*', nil, styleOrb)
		}
	}
	for _, p := range snap.Particles {
		if col, row, ok := v.cell(p.X, p.Y); ok {
			s.SetContent(col, row, '.', nil, styleFlame)
		}
	}
	for _, l := range snap.Limbs {
		glyph, ok := limbGlyphs[l.Limb]
		if !ok {
			glyph = '?'
		}
		if col, row, ok := v.cell(l.X, l.Y); ok {
			s.SetContent(col, row, glyph, nil, styleLimb)
		}
	}

	drawHUD(s, snap, cols)
}

// fillBox covers every cell touched by the axis-aligned extent of a centered box
func fillBox(s tcell.Screen, v viewport, x, y, w, h float64, glyph rune, style tcell.Style) {
	c0, r0, _ := v.cell(x-w/2, y-h/2)
	c1, r1, _ := v.cell(x+w/2, y+h/2)
	for row := max(r0, v.top); row <= min(r1, v.rows-1); row++ {
		for col := max(c0, 0); col <= min(c1, v.cols-1); col++ {
			s.SetContent(col, row, glyph, nil, style)
		}
	}
}

func drawHUD(s tcell.Screen, snap *game.GameSnapshot, cols int) {
	line := fmt.Sprintf("%-10s %-8s score %d (best %d) x%.2f",
		snap.Phase, snap.Mode, snap.Score.Current, snap.Score.Best, snap.Score.Multiplier)
	if snap.LevelID != "" {
		line += fmt.Sprintf("  %s %d/%d", snap.LevelID, snap.Objective.Collected, snap.Objective.Target)
	}
	drawText(s, 0, 0, styleHUD, line)

	fuel := ""
	for _, t := range snap.Thrusters {
		mark := ' '
		if t.Firing {
			mark = '^'
		} else if !t.Enabled {
			mark = 'x'
		}
		fuel += fmt.Sprintf("%s%c%3.0f ", shortLimb(t.Limb), mark, t.Fuel)
	}
	if snap.LastError != "" {
		drawText(s, 0, 1, styleError, truncate(fuel+" ! "+snap.LastError, cols))
		return
	}
	drawText(s, 0, 1, styleHUD, truncate(fuel, cols))
}

func shortLimb(name string) string {
	switch name {
	case "head":
		return "H"
	case "leftArm":
		return "LA"
	case "rightArm":
		return "RA"
	case "leftLeg":
		return "LL"
	case "rightLeg":
		return "RL"
	}
	return name
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		return string(r[:n])
	}
	return s
}

func drawText(s tcell.Screen, x, y int, style tcell.Style, text string) {
	for i, r := range []rune(text) {
		s.SetContent(x+i, y, r, nil, style)
	}
}

// keyCommand maps a key press to an engine input
func keyCommand(ev *tcell.EventKey) (game.InputCommand, bool) {
	thrust := func(a game.InputAction) (game.InputCommand, bool) {
		return game.InputCommand{Action: a, Pressed: true, HoldTicks: holdTicks}, true
	}

	switch ev.Key() {
	case tcell.KeyUp:
		return thrust(game.ActionThrustHead)
	case tcell.KeyLeft:
		return thrust(game.ActionThrustLeftArm)
	case tcell.KeyRight:
		return thrust(game.ActionThrustRightArm)
	case tcell.KeyDown:
		return thrust(game.ActionThrustLegs)
	case tcell.KeyRune:
	default:
		return game.InputCommand{}, false
	}

	switch ev.Rune() {
	case 'w', 'W':
		return thrust(game.ActionThrustHead)
	case 'a', 'A':
		return thrust(game.ActionThrustLeftArm)
	case 'd', 'D':
		return thrust(game.ActionThrustRightArm)
	case 'z', 'Z':
		return thrust(game.ActionThrustLeftLeg)
	case 'c', 'C':
		return thrust(game.ActionThrustRightLeg)
	case 's', 'S':
		return thrust(game.ActionThrustLegs)
	case 'r', 'R':
		return game.InputCommand{Action: game.ActionResetPose}, true
	case ' ':
		return game.InputCommand{Action: game.ActionStartGame}, true
	case 'p', 'P':
		return game.InputCommand{Action: game.ActionTogglePause}, true
	case '+':
		return game.InputCommand{Action: game.ActionZoom, Delta: -100}, true
	case '-':
		return game.InputCommand{Action: game.ActionZoom, Delta: 100}, true
	}
	return game.InputCommand{}, false
}

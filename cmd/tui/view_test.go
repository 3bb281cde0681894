package main

import (
	"testing"

	"rocket-ragdoll/internal/game"

	"github.com/gdamore/tcell/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyCommand(t *testing.T) {
	cases := []struct {
		key    tcell.Key
		r      rune
		action game.InputAction
	}{
		{tcell.KeyRune, 'w', game.ActionThrustHead},
		{tcell.KeyUp, 0, game.ActionThrustHead},
		{tcell.KeyRune, 'A', game.ActionThrustLeftArm},
		{tcell.KeyLeft, 0, game.ActionThrustLeftArm},
		{tcell.KeyRune, 'd', game.ActionThrustRightArm},
		{tcell.KeyRight, 0, game.ActionThrustRightArm},
		{tcell.KeyRune, 'z', game.ActionThrustLeftLeg},
		{tcell.KeyRune, 'c', game.ActionThrustRightLeg},
		{tcell.KeyRune, 's', game.ActionThrustLegs},
		{tcell.KeyDown, 0, game.ActionThrustLegs},
		{tcell.KeyRune, 'r', game.ActionResetPose},
		{tcell.KeyRune, ' ', game.ActionStartGame},
		{tcell.KeyRune, 'p', game.ActionTogglePause},
		{tcell.KeyRune, '+', game.ActionZoom},
	}
	for _, tc := range cases {
		cmd, ok := keyCommand(tcell.NewEventKey(tc.key, tc.r, tcell.ModNone))
		require.True(t, ok, "key %v %q", tc.key, tc.r)
		assert.Equal(t, tc.action, cmd.Action)
		if game.ThrustLimbsFor(tc.action) != nil {
			assert.True(t, cmd.Pressed)
			assert.Equal(t, holdTicks, cmd.HoldTicks)
		}
	}

	_, ok := keyCommand(tcell.NewEventKey(tcell.KeyRune, 'x', tcell.ModNone))
	assert.False(t, ok)
	_, ok = keyCommand(tcell.NewEventKey(tcell.KeyF1, 0, tcell.ModNone))
	assert.False(t, ok)
}

func TestViewportCell(t *testing.T) {
	v := newViewport(80, 24, 2, game.CameraSnapshot{X: 100, Y: 50, Scale: 1})

	col, row, ok := v.cell(100, 50)
	require.True(t, ok)
	assert.Equal(t, 40, col)
	assert.Equal(t, 13, row)

	col, row, ok = v.cell(100+cellWidth*3, 50-cellHeight*2)
	require.True(t, ok)
	assert.Equal(t, 43, col)
	assert.Equal(t, 11, row)

	// HUD rows are never world cells
	_, _, ok = v.cell(100, 50-cellHeight*12)
	assert.False(t, ok)

	// Zooming out halves the distance in cells
	v.scale = 0.5
	col, _, _ = v.cell(100+cellWidth*4, 50)
	assert.Equal(t, 42, col)
}

func TestDrawSnapshot(t *testing.T) {
	s := tcell.NewSimulationScreen("")
	require.NoError(t, s.Init())
	defer s.Fini()
	s.SetSize(80, 24)

	snap := &game.GameSnapshot{
		Phase:  game.PhasePlaying,
		Camera: game.CameraSnapshot{X: 0, Y: 0, Scale: 1},
		Limbs: []game.LimbSnapshot{
			{Limb: "torso", X: 0, Y: 0},
			{Limb: "head", X: 0, Y: -cellHeight},
		},
		Terrain: []game.BodySnapshot{
			{Label: game.LabelFloor, X: 0, Y: cellHeight * 5, Width: cellWidth * 10, Height: cellHeight},
		},
		Collectibles: []game.CollectibleSnapshot{{ID: 1, X: cellWidth * 5, Y: 0}},
		Score:        game.ScoreState{Current: 42, Best: 99, Multiplier: 1},
	}
	draw(s, snap)
	s.Show()

	glyph := func(x, y int) rune {
		r, _, _, _ := s.GetContent(x, y)
		return r
	}
	assert.Equal(t, '#', glyph(40, 13))
	assert.Equal(t, 'O', glyph(40, 12))
	assert.Equal(t, '*', glyph(45, 13))
	assert.Equal(t, '█', glyph(40, 18))
	assert.Equal(t, '█', glyph(35, 17))
	assert.Equal(t, ' ', glyph(34, 17))
	assert.Equal(t, 'p', glyph(0, 0))
}

func TestDrawWithoutSnapshot(t *testing.T) {
	s := tcell.NewSimulationScreen("")
	require.NoError(t, s.Init())
	defer s.Fini()
	s.SetSize(40, 10)

	draw(s, nil)
	s.Show()
	r, _, _, _ := s.GetContent(0, 0)
	assert.Equal(t, 'w', r)
}

package game

import (
	"math"

	"rocket-ragdoll/internal/config"
	"rocket-ragdoll/internal/physics"
)

// Bounds is an axis-aligned world rectangle
type Bounds struct {
	MinX, MinY, MaxX, MaxY float64
}

// Contains reports whether p lies inside the rectangle
func (b Bounds) Contains(p physics.Vec) bool {
	return p.X >= b.MinX && p.X <= b.MaxX && p.Y >= b.MinY && p.Y <= b.MaxY
}

// Camera smoothly follows a target and converts between world and screen space
type Camera struct {
	cfg      config.CameraConfig
	pos      physics.Vec
	scale    float64
	viewW    float64
	viewH    float64
	bounds   Bounds
	margin   float64
	clamping bool
}

// NewCamera creates a camera at the origin with scale 1
func NewCamera(cfg config.CameraConfig, viewW, viewH int) *Camera {
	return &Camera{
		cfg:      cfg,
		scale:    1,
		viewW:    float64(viewW),
		viewH:    float64(viewH),
		bounds:   Bounds{MinX: cfg.MinX, MinY: cfg.MinY, MaxX: cfg.MaxX, MaxY: cfg.MaxY},
		margin:   cfg.Margin,
		clamping: cfg.ClampToBounds,
	}
}

func (c *Camera) Position() physics.Vec { return c.pos }
func (c *Camera) Scale() float64        { return c.scale }

// SetBounds enables clamping to b shrunk by margin on every side
func (c *Camera) SetBounds(b Bounds, margin float64) {
	c.bounds = b
	c.margin = margin
	c.clamping = true
	c.clamp()
}

// ClearBounds returns to the configured bounds and clamping
func (c *Camera) ClearBounds() {
	c.clamping = c.cfg.ClampToBounds
	c.bounds = Bounds{MinX: c.cfg.MinX, MinY: c.cfg.MinY, MaxX: c.cfg.MaxX, MaxY: c.cfg.MaxY}
	c.margin = c.cfg.Margin
}

// Snap moves the camera to target without smoothing
func (c *Camera) Snap(target physics.Vec) {
	if !finiteVec(target) {
		return
	}
	c.pos = target
	c.clamp()
}

// Follow moves a fraction of the remaining distance toward target
func (c *Camera) Follow(target physics.Vec) {
	if !finiteVec(target) {
		return
	}
	c.pos = c.pos.Add(target.Sub(c.pos).Mult(c.cfg.Smoothing))
	c.clamp()
}

// FollowWithLookahead biases the target by velocity scaled by the lookahead time
func (c *Camera) FollowWithLookahead(target, velocity physics.Vec) {
	c.Follow(target.Add(velocity.Mult(c.cfg.Lookahead)))
}

func (c *Camera) clamp() {
	if !c.clamping {
		return
	}
	m := c.margin
	lo := physics.Vec{X: c.bounds.MinX + m, Y: c.bounds.MinY + m}
	hi := physics.Vec{X: c.bounds.MaxX - m, Y: c.bounds.MaxY - m}
	// A margin wider than the bounds pins the camera to the center
	if lo.X > hi.X {
		lo.X = (c.bounds.MinX + c.bounds.MaxX) / 2
		hi.X = lo.X
	}
	if lo.Y > hi.Y {
		lo.Y = (c.bounds.MinY + c.bounds.MaxY) / 2
		hi.Y = lo.Y
	}
	c.pos.X = clamp(c.pos.X, lo.X, hi.X)
	c.pos.Y = clamp(c.pos.Y, lo.Y, hi.Y)
}

// AdjustZoom applies a wheel delta; scrolling down zooms out
func (c *Camera) AdjustZoom(delta float64) {
	if math.IsNaN(delta) {
		return
	}
	c.SetZoom(c.scale - delta*c.cfg.ZoomSensitivity)
}

// SetZoom sets the scale clamped to the configured range
func (c *Camera) SetZoom(scale float64) {
	if math.IsNaN(scale) {
		return
	}
	c.scale = clamp(scale, c.cfg.MinZoom, c.cfg.MaxZoom)
}

// WorldToScreen maps a world point to viewport pixels
func (c *Camera) WorldToScreen(p physics.Vec) physics.Vec {
	return physics.Vec{
		X: (p.X-c.pos.X)*c.scale + c.viewW/2,
		Y: (p.Y-c.pos.Y)*c.scale + c.viewH/2,
	}
}

// ScreenToWorld maps viewport pixels back to world space
func (c *Camera) ScreenToWorld(p physics.Vec) physics.Vec {
	return physics.Vec{
		X: (p.X-c.viewW/2)/c.scale + c.pos.X,
		Y: (p.Y-c.viewH/2)/c.scale + c.pos.Y,
	}
}

// ViewBounds is the world rectangle currently visible
func (c *Camera) ViewBounds() Bounds {
	hw := c.viewW / 2 / c.scale
	hh := c.viewH / 2 / c.scale
	return Bounds{MinX: c.pos.X - hw, MinY: c.pos.Y - hh, MaxX: c.pos.X + hw, MaxY: c.pos.Y + hh}
}

func finiteVec(v physics.Vec) bool {
	return !math.IsNaN(v.X) && !math.IsNaN(v.Y) && !math.IsInf(v.X, 0) && !math.IsInf(v.Y, 0)
}

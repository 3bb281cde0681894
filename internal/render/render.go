// Package render draws game snapshots into images with gg.
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"sync"

	"github.com/fogleman/gg"

	"rocket-ragdoll/internal/game"
)

var (
	skyTop      = color.RGBA{18, 22, 48, 255}
	skyBottom   = color.RGBA{58, 40, 86, 255}
	gridColor   = color.RGBA{255, 255, 255, 18}
	hudText     = color.RGBA{240, 240, 250, 255}
	hudShade    = color.RGBA{0, 0, 0, 140}
	fuelEmpty   = color.RGBA{51, 51, 51, 255}
	orbColor    = color.RGBA{255, 214, 10, 255}
	orbTaken    = color.RGBA{255, 214, 10, 90}
	pointerGlow = color.RGBA{255, 214, 10, 200}
)

var terrainColors = map[string]color.RGBA{
	game.LabelFloor:    {46, 64, 87, 255},
	game.LabelPlatform: {80, 110, 140, 255},
	game.LabelBouncer:  {6, 214, 160, 255},
	game.LabelWall:     {120, 90, 70, 255},
}

var limbColors = map[string]color.RGBA{
	"torso":     {76, 201, 240, 255},
	"head":      {255, 209, 102, 255},
	"left-arm":  {239, 71, 111, 255},
	"right-arm": {239, 71, 111, 255},
	"left-leg":  {247, 140, 107, 255},
	"right-leg": {247, 140, 107, 255},
}

// Renderer draws snapshots into a reused context. Safe for concurrent use.
type Renderer struct {
	mu     sync.Mutex
	width  int
	height int
	dc     *gg.Context
	frames uint64
}

// New creates a renderer for a width x height viewport
func New(width, height int) *Renderer {
	return &Renderer{width: width, height: height, dc: gg.NewContext(width, height)}
}

// Frames returns the number of frames drawn
func (r *Renderer) Frames() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

// Render draws snap and returns a copy of the frame
func (r *Renderer) Render(snap *game.GameSnapshot) image.Image {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.draw(snap)
	r.frames++

	src := r.dc.Image().(*image.RGBA)
	out := image.NewRGBA(src.Bounds())
	copy(out.Pix, src.Pix)
	return out
}

// EncodePNG renders snap and writes it as PNG
func (r *Renderer) EncodePNG(w io.Writer, snap *game.GameSnapshot) error {
	if err := png.Encode(w, r.Render(snap)); err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	return nil
}

func (r *Renderer) draw(snap *game.GameSnapshot) {
	dc := r.dc
	r.drawBackground(dc)
	if snap == nil {
		return
	}

	cam := snap.Camera
	scale := cam.Scale
	if scale <= 0 {
		scale = 1
	}

	// World layer: everything below is drawn in world coordinates
	dc.Push()
	dc.Translate(float64(r.width)/2, float64(r.height)/2)
	dc.Scale(scale, scale)
	dc.Translate(-cam.X, -cam.Y)

	r.drawTerrain(dc, snap.Terrain)
	r.drawCollectibles(dc, snap.Collectibles)
	r.drawParticles(dc, snap.Particles)
	r.drawFlames(dc, snap.Thrusters)
	r.drawLimbs(dc, snap.Limbs)
	dc.Pop()

	r.drawIndicators(dc, snap.Indicators)
	r.drawHUD(dc, snap)
}

func (r *Renderer) drawBackground(dc *gg.Context) {
	grad := gg.NewLinearGradient(0, 0, 0, float64(r.height))
	grad.AddColorStop(0, skyTop)
	grad.AddColorStop(1, skyBottom)
	dc.SetFillStyle(grad)
	dc.DrawRectangle(0, 0, float64(r.width), float64(r.height))
	dc.Fill()

	dc.SetColor(gridColor)
	dc.SetLineWidth(1)
	gridSize := 80.0
	for x := 0.0; x < float64(r.width); x += gridSize {
		dc.DrawLine(x, 0, x, float64(r.height))
		dc.Stroke()
	}
	for y := 0.0; y < float64(r.height); y += gridSize {
		dc.DrawLine(0, y, float64(r.width), y)
		dc.Stroke()
	}
}

func (r *Renderer) drawTerrain(dc *gg.Context, bodies []game.BodySnapshot) {
	for _, b := range bodies {
		c, ok := terrainColors[b.Label]
		if !ok {
			c = terrainColors[game.LabelPlatform]
		}
		dc.SetColor(c)
		drawBody(dc, b.Shape, b.X, b.Y, b.Angle, b.Width, b.Height)
		dc.Fill()
	}
}

func (r *Renderer) drawLimbs(dc *gg.Context, limbs []game.LimbSnapshot) {
	for _, l := range limbs {
		c, ok := limbColors[l.Limb]
		if !ok {
			c = hudText
		}
		dc.SetColor(c)
		drawBody(dc, l.Shape, l.X, l.Y, l.Angle, l.Width, l.Height)
		dc.Fill()
	}
}

// drawBody traces a box or circle centered at (x, y) rotated by angle
func drawBody(dc *gg.Context, shape string, x, y, angle, w, h float64) {
	if shape == "circle" {
		dc.DrawCircle(x, y, w/2)
		return
	}
	dc.Push()
	dc.Translate(x, y)
	dc.Rotate(angle)
	dc.DrawRectangle(-w/2, -h/2, w, h)
	dc.Pop()
}

func (r *Renderer) drawCollectibles(dc *gg.Context, items []game.CollectibleSnapshot) {
	for _, c := range items {
		radius := c.Radius * c.Scale
		if c.Collected {
			dc.SetColor(orbTaken)
			dc.DrawCircle(c.X, c.Y, radius*1.5)
			dc.Fill()
			continue
		}
		dc.SetColor(orbColor)
		dc.DrawCircle(c.X, c.Y, radius)
		dc.Fill()
		dc.SetColor(color.White)
		dc.SetLineWidth(2)
		dc.DrawCircle(c.X, c.Y, radius)
		dc.Stroke()
	}
}

func (r *Renderer) drawParticles(dc *gg.Context, particles []game.ParticleSnapshot) {
	for _, p := range particles {
		c := parseHexColor(p.Color)
		c.A = uint8(clamp01(p.Alpha) * 255)
		dc.SetColor(c)
		dc.DrawCircle(p.X, p.Y, 2+2*p.Alpha)
		dc.Fill()
	}
}

// drawFlames draws a cone behind every firing nozzle
func (r *Renderer) drawFlames(dc *gg.Context, thrusters []game.ThrusterSnapshot) {
	for _, t := range thrusters {
		if !t.Firing {
			continue
		}
		back := t.Direction + math.Pi
		length := 18 * t.Multiplier
		tipX := t.EmitX + math.Cos(back)*length
		tipY := t.EmitY + math.Sin(back)*length
		side := t.Direction + math.Pi/2
		hw := 6.0

		dc.SetColor(color.RGBA{255, 160, 40, 220})
		dc.MoveTo(t.EmitX+math.Cos(side)*hw, t.EmitY+math.Sin(side)*hw)
		dc.LineTo(tipX, tipY)
		dc.LineTo(t.EmitX-math.Cos(side)*hw, t.EmitY-math.Sin(side)*hw)
		dc.ClosePath()
		dc.Fill()
	}
}

// drawIndicators places an arrow at the screen edge toward every pickup
func (r *Renderer) drawIndicators(dc *gg.Context, indicators []game.Indicator) {
	cx, cy := float64(r.width)/2, float64(r.height)/2
	reach := math.Min(cx, cy) - 30
	for _, ind := range indicators {
		x := cx + ind.Direction.X*reach
		y := cy + ind.Direction.Y*reach
		dc.Push()
		dc.Translate(x, y)
		dc.Rotate(ind.Angle)
		dc.SetColor(pointerGlow)
		dc.MoveTo(10, 0)
		dc.LineTo(-6, -6)
		dc.LineTo(-6, 6)
		dc.ClosePath()
		dc.Fill()
		dc.Pop()
	}
}

func (r *Renderer) drawHUD(dc *gg.Context, snap *game.GameSnapshot) {
	dc.SetColor(hudShade)
	dc.DrawRectangle(10, 10, 230, 64+float64(len(snap.Thrusters))*14)
	dc.Fill()

	dc.SetColor(hudText)
	dc.DrawString(fmt.Sprintf("SCORE %d  x%.2f", snap.Score.Current, snap.Score.Multiplier), 20, 28)
	dc.DrawString(fmt.Sprintf("BEST  %d", snap.Score.Best), 20, 44)
	status := snap.Phase.String()
	if snap.LevelID != "" {
		status = fmt.Sprintf("%s  %s %d/%d", status, snap.LevelID, snap.Objective.Collected, snap.Objective.Target)
	}
	dc.DrawString(status, 20, 60)

	// Fuel bars
	y := 70.0
	for _, t := range snap.Thrusters {
		dc.SetColor(fuelEmpty)
		dc.DrawRectangle(90, y, 140, 8)
		dc.Fill()
		if t.Enabled && t.MaxFuel > 0 {
			pct := clamp01(t.Fuel / t.MaxFuel)
			switch {
			case pct > 0.5:
				dc.SetColor(color.RGBA{83, 255, 69, 255})
			case pct > 0.25:
				dc.SetColor(color.RGBA{255, 149, 0, 255})
			default:
				dc.SetColor(color.RGBA{255, 62, 62, 255})
			}
			dc.DrawRectangle(90, y, 140*pct, 8)
			dc.Fill()
		}
		dc.SetColor(hudText)
		dc.DrawString(t.Limb, 20, y+8)
		y += 14
	}

	if snap.LastError != "" {
		dc.SetColor(color.RGBA{255, 62, 62, 255})
		dc.DrawString(snap.LastError, 20, float64(r.height)-20)
	}
}

func parseHexColor(hex string) color.RGBA {
	if len(hex) != 7 || hex[0] != '#' {
		return color.RGBA{255, 255, 255, 255}
	}

	var r, g, b uint8
	fmt.Sscanf(hex[1:], "%02x%02x%02x", &r, &g, &b)
	return color.RGBA{r, g, b, 255}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

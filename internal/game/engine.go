package game

import (
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"rocket-ragdoll/internal/config"
	"rocket-ragdoll/internal/levels"
	"rocket-ragdoll/internal/physics"
)

// Mode selects endless streaming play or training levels
type Mode uint8

const (
	ModeEndless Mode = iota
	ModeTraining
)

func (m Mode) String() string {
	if m == ModeTraining {
		return "training"
	}
	return "endless"
}

func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// ParseMode maps "endless" or "training" to a Mode
func ParseMode(s string) (Mode, error) {
	switch s {
	case "endless":
		return ModeEndless, nil
	case "training":
		return ModeTraining, nil
	}
	return 0, fmt.Errorf("unknown mode %q", s)
}

var (
	// ErrNotReady is returned when the character could not be built
	ErrNotReady = errors.New("character not ready")
	// ErrTrainingComplete is returned by NextLevel after the last level
	ErrTrainingComplete = errors.New("training complete")
)

const (
	completionDelayTicks = 120 // beat between a completed level and the next one
	heartbeatTicks       = 60  // ticks between tick events
	wallHeight           = 8000
)

// Options configures a new engine
type Options struct {
	Config    config.GameConfig
	Levels    *levels.Catalog // nil disables training mode
	BestScore int             // persisted best score
	Store     BestScoreSaver
	Hook      Hook // receives every event in addition to the in-memory recorder
}

// tickStage is one named step of the per-tick pipeline. Each stage is
// isolated: an error or panic is reported and the next stage still runs.
type tickStage struct {
	name string
	run  func(dt float64) error
}

type contactPair struct {
	a, b *physics.Body
}

// Engine owns the world and every subsystem. All mutation happens on the
// tick goroutine or under mu; readers use snapshots.
type Engine struct {
	mu  sync.RWMutex
	cfg config.GameConfig

	world        *physics.World
	ragdoll      *Ragdoll
	thrusters    *Thrusters
	streamer     *Streamer
	camera       *Camera
	score        *ScoreKeeper
	objective    *Objective
	collectibles *CollectibleRegistry
	particles    *ParticleSystem
	scheduler    *TickScheduler
	phase        *PhaseMachine
	inputs       *InputQueue
	pipeline     []tickStage

	catalog *levels.Catalog
	mode    Mode
	level   *levels.Level
	walls   []*physics.Body
	spawn   physics.Vec

	pointerLimb Limb
	pointerHeld bool // thrusting from a pointer press
	dragging    bool // dragging a limb in setup
	holdUntil   [limbCount]uint64

	contacts   []contactPair
	limbStates []LimbState
	inputBuf   []InputCommand
	lastErr    error
	failures   map[string]uint64

	tickRate   int
	running    bool
	ticker     *time.Ticker
	stopChan   chan struct{}
	tickCount  uint64
	lastTickNs atomic.Int64

	hook         Hook
	recorder     *Recorder
	snapshotPool *SnapshotPool
	rng          *rand.Rand
}

// NewEngine builds the world and places the character in the setup phase.
// A character that cannot be built leaves the engine in setup with LastError set.
func NewEngine(opts Options) (*Engine, error) {
	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	table, err := ThrustTableFromConfig(cfg.Thrust)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:          cfg,
		catalog:      opts.Levels,
		spawn:        physics.Vec{X: cfg.Physics.SpawnX, Y: cfg.Physics.SpawnY},
		failures:     make(map[string]uint64),
		tickRate:     cfg.Viewport.TickRate,
		stopChan:     make(chan struct{}),
		recorder:     NewRecorder(cfg.Limits.MaxEvents),
		snapshotPool: NewSnapshotPool(cfg.Limits),
		rng:          rand.New(rand.NewSource(cfg.Streamer.Seed)),
		limbStates:   make([]LimbState, 0, int(limbCount)),
		inputBuf:     make([]InputCommand, 0, cfg.Limits.InputQueueSize),
	}

	var inner Hook = e.recorder
	if opts.Hook != nil {
		inner = MultiHook{e.recorder, opts.Hook}
	}
	e.hook = tickHook{inner: inner, tick: &e.tickCount}

	e.world = physics.NewWorld(physics.Vec{Y: cfg.Physics.SetupGravity})
	e.world.OnCollisionStart(func(a, b *physics.Body) {
		e.contacts = append(e.contacts, contactPair{a: a, b: b})
	})

	e.scheduler = NewTickScheduler()
	e.phase = NewPhaseMachine(e.hook)
	e.thrusters = NewThrusters(table, FuelModelFromConfig(cfg.Thrust), e.hook)
	e.thrusters.EnableAll()
	e.streamer = NewStreamer(e.world, cfg.Streamer, e.hook)
	e.camera = NewCamera(cfg.Camera, cfg.Viewport.Width, cfg.Viewport.Height)
	e.score = NewScoreKeeper(cfg.Score, cfg.Streamer.FloorY, opts.BestScore, opts.Store, e.hook)
	e.collectibles = NewCollectibleRegistry(e.world, cfg.Collectibles, cfg.Limits.MaxCollectibles, e.scheduler, e.rng, e.hook)
	e.collectibles.OnCollect(e.onCollect)
	e.particles = NewParticleSystem(cfg.Limits.MaxParticles, e.rng)
	e.inputs = NewInputQueue(cfg.Limits.InputQueueSize)

	e.pipeline = []tickStage{
		{"input", e.stageInput},
		{"thrust", e.stageThrust},
		{"physics", e.stagePhysics},
		{"readback", e.stageReadback},
		{"streamer", e.stageStreamer},
		{"camera", e.stageCamera},
		{"score", e.stageScore},
		{"collectibles", e.stageCollectibles},
		{"particles", e.stageParticles},
		{"objective", e.stageObjective},
		{"respawn", e.stageFall},
		{"scheduler", e.stageScheduler},
	}

	if err := e.setup(e.spawn); err != nil {
		e.fail("character", err)
	}
	e.produceSnapshot()
	return e, nil
}

// Start begins the game loop
func (e *Engine) Start() {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.mu.Unlock()

	e.ticker = time.NewTicker(time.Second / time.Duration(e.tickRate))

	go func() {
		for {
			select {
			case <-e.ticker.C:
				e.tick()
			case <-e.stopChan:
				return
			}
		}
	}()

	log.Printf("🎮 Game engine started at %d TPS", e.tickRate)
}

// Stop stops the game loop
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.running {
		return
	}

	e.running = false
	if e.ticker != nil {
		e.ticker.Stop()
	}
	close(e.stopChan)
	log.Println("🛑 Game engine stopped")
}

// Step runs exactly one tick; used by tests and frontends that drive the clock
func (e *Engine) Step() {
	e.tick()
}

// tick is called at tickRate times per second
func (e *Engine) tick() {
	start := time.Now()
	e.mu.Lock()
	defer e.mu.Unlock()

	e.tickCount++
	dt := 1.0 / float64(e.tickRate)

	for _, st := range e.pipeline {
		e.runStage(st, dt)
	}

	if e.tickCount%heartbeatTicks == 0 {
		emit(e.hook, EventTypeTick, "engine", TickPayload{
			Phase:       e.phase.Current().String(),
			Chunks:      e.streamer.Count(),
			Bodies:      e.world.BodyCount(),
			DeltaTimeNs: int64(dt * 1e9),
		})
	}

	e.produceSnapshot()
	e.lastTickNs.Store(time.Since(start).Nanoseconds())
}

func (e *Engine) runStage(st tickStage, dt float64) {
	defer func() {
		if r := recover(); r != nil {
			e.fail(st.name, fmt.Errorf("panic: %v", r))
		}
	}()
	if err := st.run(dt); err != nil {
		e.fail(st.name, err)
	}
}

// fail records a subsystem error without stopping the tick
func (e *Engine) fail(stage string, err error) {
	e.lastErr = fmt.Errorf("%s: %w", stage, err)
	e.failures[stage]++

	t := EventTypeSubsystemFailure
	switch {
	case errors.Is(err, physics.ErrBodyRemoved), errors.Is(err, physics.ErrNilBody):
		t = EventTypeInvalidReference
	case errors.Is(err, config.ErrInvalidConfig), errors.Is(err, levels.ErrInvalidLevel):
		t = EventTypeConfigError
	}
	emit(e.hook, t, stage, FailurePayload{Operation: stage, Error: err.Error()})

	if n := e.failures[stage]; n == 1 || n%uint64(e.tickRate*10) == 0 {
		log.Printf("⚠️ %s failed (%d times): %v", stage, n, err)
	}
}

func (e *Engine) frozen() bool {
	return e.phase.Current() == PhasePaused
}

// =============================================================================
// TICK STAGES
// =============================================================================

func (e *Engine) stageInput(float64) error {
	e.inputBuf = e.inputs.Drain(e.inputBuf[:0])
	var errs []error
	for _, cmd := range e.inputBuf {
		if err := e.apply(cmd); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", cmd.Action, err))
		}
	}
	return errors.Join(errs...)
}

func (e *Engine) stageThrust(float64) error {
	if e.phase.Current() != PhasePlaying || !e.ragdoll.Valid() {
		return nil
	}
	e.thrusters.Tick(e.world, e.ragdoll)
	e.particles.EmitFor(e.thrusters, e.ragdoll)
	return nil
}

func (e *Engine) stagePhysics(dt float64) error {
	if e.frozen() {
		return nil
	}
	e.world.Step(dt)
	return nil
}

func (e *Engine) stageReadback(float64) error {
	e.limbStates = e.ragdoll.States(e.limbStates[:0])
	return nil
}

func (e *Engine) stageStreamer(float64) error {
	if !e.ragdoll.Valid() {
		return nil
	}
	pos := e.ragdoll.AggregatePosition()
	vel := e.ragdoll.AggregateVelocity()
	return e.streamer.Update(pos.X, vel.X)
}

func (e *Engine) stageCamera(float64) error {
	if !e.ragdoll.Valid() {
		return nil
	}
	e.camera.FollowWithLookahead(e.ragdoll.AggregatePosition(), e.ragdoll.AggregateVelocity())
	return nil
}

func (e *Engine) stageScore(float64) error {
	if e.phase.Current() != PhasePlaying {
		return nil
	}
	e.score.Evaluate(e.limbStates)
	return nil
}

func (e *Engine) stageCollectibles(float64) error {
	contacts := e.contacts
	e.contacts = e.contacts[:0]
	if e.phase.Current() != PhasePlaying {
		return nil
	}
	for _, c := range contacts {
		e.collectibles.HandleContact(c.a, c.b, e.isCharacter)
	}
	return nil
}

func (e *Engine) stageParticles(dt float64) error {
	if e.frozen() {
		return nil
	}
	e.particles.Update(dt)
	return nil
}

func (e *Engine) stageObjective(float64) error {
	if e.phase.Current() != PhasePlaying || !e.objective.Completed() {
		return nil
	}
	if err := e.phase.Transition(PhaseComplete, e.tickCount); err != nil {
		return err
	}
	e.thrusters.ReleaseAll()
	log.Printf("🏁 Level %s complete", e.objective.Progress().LevelID)

	if e.catalog == nil || e.level == nil {
		return nil
	}
	next, ok := e.catalog.Next(e.level.ID)
	if !ok {
		return nil
	}
	e.scheduler.After(completionDelayTicks, func() {
		if e.phase.Current() != PhaseComplete {
			return
		}
		if err := e.loadLevel(next); err != nil {
			e.fail("level", err)
		}
	})
	return nil
}

// stageFall sends a character that dropped past the fall limit to respawn
func (e *Engine) stageFall(float64) error {
	if e.phase.Current() != PhasePlaying || !e.ragdoll.Valid() {
		return nil
	}
	if e.ragdoll.AggregatePosition().Y < e.cfg.Streamer.FloorY+e.cfg.Physics.FallLimit {
		return nil
	}
	return e.beginRespawn()
}

func (e *Engine) stageScheduler(float64) error {
	if e.frozen() {
		return nil
	}
	e.scheduler.Advance()
	return nil
}

// =============================================================================
// INPUT
// =============================================================================

// Enqueue queues an input for the next tick. Safe from any goroutine.
func (e *Engine) Enqueue(cmd InputCommand) bool {
	return e.inputs.Enqueue(cmd)
}

// InputStats returns input queue metrics
func (e *Engine) InputStats() QueueStats {
	return e.inputs.Stats()
}

func (e *Engine) apply(cmd InputCommand) error {
	if limbs := ThrustLimbsFor(cmd.Action); limbs != nil {
		if e.phase.Current() != PhasePlaying {
			return nil
		}
		for _, l := range limbs {
			if err := e.thrusters.SetActivation(l, cmd.Pressed); err != nil {
				return err
			}
			if cmd.Pressed && cmd.HoldTicks > 0 {
				e.holdRelease(l, cmd.HoldTicks)
			}
		}
		return nil
	}

	switch cmd.Action {
	case ActionResetPose:
		return e.resetPose()
	case ActionStartGame:
		if e.phase.Current() == PhaseSetup {
			return e.startGame()
		}
	case ActionTogglePause:
		return ignoreTransition(e.togglePause())
	case ActionPointerDown:
		return e.pointerDown(physics.Vec{X: cmd.X, Y: cmd.Y})
	case ActionPointerMove:
		return e.pointerMove(physics.Vec{X: cmd.X, Y: cmd.Y})
	case ActionPointerUp:
		e.pointerUp()
	case ActionZoom:
		e.camera.AdjustZoom(cmd.Delta)
	}
	return nil
}

func ignoreTransition(err error) error {
	if errors.Is(err, ErrInvalidTransition) {
		return nil
	}
	return err
}

// holdRelease releases l after ticks unless a later press extended the hold
func (e *Engine) holdRelease(l Limb, ticks int) {
	until := e.tickCount + uint64(ticks)
	e.holdUntil[l] = until
	e.scheduler.After(ticks, func() {
		if e.holdUntil[l] == until {
			_ = e.thrusters.SetActivation(l, false)
		}
	})
}

// pointerDown drags a limb in setup or fires the nearest limb's thruster in play
func (e *Engine) pointerDown(screen physics.Vec) error {
	world := e.camera.ScreenToWorld(screen)
	l, ok := e.ragdoll.LimbNear(world, e.cfg.Collectibles.PointerRadius)
	if !ok {
		return nil
	}
	switch e.phase.Current() {
	case PhaseSetup:
		e.pointerLimb, e.dragging = l, true
		return e.ragdoll.DragLimb(l, world)
	case PhasePlaying:
		if e.thrusters.Get(l) == nil {
			return nil
		}
		e.pointerLimb, e.pointerHeld = l, true
		return e.thrusters.SetActivation(l, true)
	}
	return nil
}

func (e *Engine) pointerMove(screen physics.Vec) error {
	if !e.dragging || e.phase.Current() != PhaseSetup {
		return nil
	}
	return e.ragdoll.DragLimb(e.pointerLimb, e.camera.ScreenToWorld(screen))
}

func (e *Engine) pointerUp() {
	if e.pointerHeld {
		_ = e.thrusters.SetActivation(e.pointerLimb, false)
	}
	e.pointerHeld, e.dragging = false, false
}

// =============================================================================
// PHASES, MODES AND LEVELS
// =============================================================================

// setup places the character at base in the posing state: low gravity,
// low friction, full tanks.
func (e *Engine) setup(base physics.Vec) error {
	e.world.SetGravity(physics.Vec{Y: e.cfg.Physics.SetupGravity})
	e.thrusters.ReleaseAll()
	e.thrusters.Refuel()
	e.particles.Clear()
	e.pointerHeld, e.dragging = false, false

	if !e.ragdoll.Valid() {
		r, err := NewRagdoll(e.world, base, e.cfg.Physics)
		if err != nil {
			e.ragdoll = nil
			return err
		}
		e.ragdoll = r
	}
	if err := e.ragdoll.ResetPose(base); err != nil {
		return err
	}
	if err := e.ragdoll.EnterSetup(); err != nil {
		return err
	}
	e.camera.Snap(base)
	return e.streamer.Update(base.X, 0)
}

// startPoint is the spawn point shifted by the level's start offset
func (e *Engine) startPoint() physics.Vec {
	if e.level == nil {
		return e.spawn
	}
	return e.spawn.Add(physics.Vec{X: e.level.Start.X, Y: e.level.Start.Y})
}

// StartGame leaves setup: full gravity, play friction, motion zeroed
func (e *Engine) StartGame() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.startGame()
}

func (e *Engine) startGame() error {
	if !e.ragdoll.Valid() {
		err := fmt.Errorf("%w: cannot leave setup", ErrNotReady)
		e.lastErr = err
		return err
	}
	if err := e.phase.Transition(PhasePlaying, e.tickCount); err != nil {
		return err
	}
	e.world.SetGravity(physics.Vec{Y: e.cfg.Physics.Gravity})
	return e.ragdoll.CommitPose()
}

// TogglePause switches between playing and paused
func (e *Engine) TogglePause() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.togglePause()
}

func (e *Engine) togglePause() error {
	if e.phase.Current() == PhasePaused {
		return e.phase.Transition(PhasePlaying, e.tickCount)
	}
	if err := e.phase.Transition(PhasePaused, e.tickCount); err != nil {
		return err
	}
	e.thrusters.ReleaseAll()
	return nil
}

// ResetPose puts the character back in the ready stance at the start point
func (e *Engine) ResetPose() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.resetPose()
}

func (e *Engine) resetPose() error {
	if !e.ragdoll.Valid() {
		return ErrNotReady
	}
	at := e.startPoint()
	e.thrusters.ReleaseAll()
	if err := e.ragdoll.ResetPose(at); err != nil {
		return err
	}
	if e.phase.Current() == PhaseSetup {
		if err := e.ragdoll.EnterSetup(); err != nil {
			return err
		}
	}
	e.camera.Snap(at)
	return nil
}

func (e *Engine) beginRespawn() error {
	if err := e.phase.Transition(PhaseRespawning, e.tickCount); err != nil {
		return err
	}
	e.thrusters.ReleaseAll()
	e.score.ResetRun()

	at := e.startPoint()
	emit(e.hook, EventTypeRespawn, "character", RespawnPayload{SpawnX: at.X, SpawnY: at.Y})
	e.scheduler.After(e.cfg.Physics.RespawnTicks, func() {
		if e.phase.Current() != PhaseRespawning {
			return
		}
		if err := e.ragdoll.ResetPose(at); err != nil {
			e.fail("respawn", err)
			return
		}
		e.thrusters.Refuel()
		e.camera.Snap(at)
		if err := e.phase.Transition(PhasePlaying, e.tickCount); err != nil {
			e.fail("respawn", err)
		}
	})
	return nil
}

// EnableThrusters enables exactly the listed limbs' thrusters
func (e *Engine) EnableThrusters(limbs []Limb) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.thrusters.Enable(limbs)
}

// SetThrust activates or releases one limb's thruster directly
func (e *Engine) SetThrust(l Limb, on bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.thrusters.SetActivation(l, on)
}

// StartEndless clears training state and returns to setup in endless mode
func (e *Engine) StartEndless() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.mode = ModeEndless
	e.level = nil
	e.objective = nil
	e.resetWorldState()
	e.thrusters.EnableAll()
	e.camera.ClearBounds()

	if err := e.setup(e.spawn); err != nil {
		e.fail("character", err)
		return err
	}
	emit(e.hook, EventTypeLevelStarted, "engine", LevelPayload{Mode: ModeEndless.String()})
	log.Printf("🌄 Endless mode started")
	return nil
}

// StartLevel validates and starts a training level. An invalid level is
// reported and does not start.
func (e *Engine) StartLevel(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.catalog == nil {
		return fmt.Errorf("%w: %q (no catalog)", levels.ErrLevelNotFound, id)
	}
	lvl, err := e.catalog.Get(id)
	if err != nil {
		return err
	}
	return e.loadLevel(lvl)
}

// NextLevel starts the level unlocked by the current one, or the first
// level when none is active.
func (e *Engine) NextLevel() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.catalog == nil {
		return fmt.Errorf("%w: no catalog", levels.ErrLevelNotFound)
	}
	if e.level == nil {
		first := e.catalog.First()
		if first == nil {
			return fmt.Errorf("%w: empty catalog", levels.ErrLevelNotFound)
		}
		return e.loadLevel(first)
	}
	next, ok := e.catalog.Next(e.level.ID)
	if !ok {
		return ErrTrainingComplete
	}
	return e.loadLevel(next)
}

func (e *Engine) loadLevel(lvl *levels.Level) error {
	limbs := make([]Limb, 0, len(lvl.AvailableRockets))
	for _, name := range lvl.AvailableRockets {
		l, err := ParseLimb(name)
		if err != nil || l == LimbTorso {
			err = fmt.Errorf("%w: %s rocket %q", levels.ErrInvalidLevel, lvl.ID, name)
			e.fail("level", err)
			return err
		}
		limbs = append(limbs, l)
	}

	e.mode = ModeTraining
	e.level = lvl
	e.resetWorldState()
	e.objective = NewObjective(lvl.ID, lvl.Target(), e.hook)
	e.fitCamera(lvl.Bounds)

	start := e.startPoint()
	if err := e.setup(start); err != nil {
		e.fail("character", err)
		return err
	}
	e.thrusters.Enable(limbs)

	if err := e.buildWalls(lvl.Bounds); err != nil {
		e.fail("level", err)
	}
	var errs []error
	for _, p := range lvl.Collectibles {
		if _, err := e.collectibles.Spawn(e.spawn.X+p.X, e.spawn.Y+p.Y); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		e.fail("collectibles", err)
	}

	emit(e.hook, EventTypeLevelStarted, lvl.ID, LevelPayload{LevelID: lvl.ID, Mode: ModeTraining.String()})
	log.Printf("🎯 Level %s (%s) started: %d collectibles, rockets %v", lvl.ID, lvl.Name, len(lvl.Collectibles), lvl.AvailableRockets)
	return nil
}

// resetWorldState drops everything a level or run leaves behind
func (e *Engine) resetWorldState() {
	e.collectibles.ClearAll()
	e.scheduler.Clear()
	e.clearWalls()
	e.score.ResetRun()
	e.phase.Reset(e.tickCount)
	e.holdUntil = [limbCount]uint64{}
}

func wallThickness(b *levels.Bounds) float64 {
	if b.Thickness <= 0 {
		return 100
	}
	return b.Thickness
}

// fitCamera keeps the camera center a wall thickness inside the arena,
// between the ceiling (or the configured top) and the floor
func (e *Engine) fitCamera(b *levels.Bounds) {
	if b == nil {
		e.camera.ClearBounds()
		return
	}
	top := e.cfg.Camera.MinY
	if b.Ceiling != 0 {
		top = e.spawn.Y + b.Ceiling
	}
	e.camera.SetBounds(Bounds{
		MinX: e.spawn.X + b.Left,
		MaxX: e.spawn.X + b.Right,
		MinY: top,
		MaxY: e.cfg.Streamer.FloorY,
	}, wallThickness(b))
}

// buildWalls places the arena: two side walls and an optional ceiling
func (e *Engine) buildWalls(b *levels.Bounds) error {
	if b == nil {
		return nil
	}
	th := wallThickness(b)
	opts := physics.BodyOptions{Static: true, Friction: e.cfg.Physics.LimbFriction, Label: LabelWall}
	left := e.spawn.X + b.Left
	right := e.spawn.X + b.Right

	type rect struct{ x, y, w, h float64 }
	rects := []rect{
		{left, e.spawn.Y, th, wallHeight},
		{right, e.spawn.Y, th, wallHeight},
	}
	if b.Ceiling != 0 {
		rects = append(rects, rect{(left + right) / 2, e.spawn.Y + b.Ceiling, right - left + th, th})
	}
	for _, r := range rects {
		wall, err := e.world.NewBox(r.x, r.y, r.w, r.h, opts)
		if err != nil {
			return fmt.Errorf("wall: %w", err)
		}
		e.walls = append(e.walls, wall)
	}
	return nil
}

func (e *Engine) clearWalls() {
	for _, w := range e.walls {
		if !w.Removed() {
			_ = e.world.RemoveBody(w)
		}
	}
	e.walls = e.walls[:0]
}

func (e *Engine) isCharacter(b *physics.Body) bool {
	_, ok := e.ragdoll.Owns(b)
	return ok
}

func (e *Engine) onCollect(c *Collectible) {
	e.score.Credit(c.Value)
	e.objective.Record()
}

// =============================================================================
// QUERIES
// =============================================================================

// GetSnapshot returns the latest immutable snapshot for lock-free rendering
func (e *Engine) GetSnapshot() *GameSnapshot {
	return e.snapshotPool.AcquireRead()
}

// Phase returns the current phase
func (e *Engine) Phase() Phase {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.phase.Current()
}

// Mode returns the current mode
func (e *Engine) Mode() Mode {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.mode
}

// Level returns the active training level, nil in endless mode
func (e *Engine) Level() *levels.Level {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.level
}

// Score returns the score view
func (e *Engine) Score() ScoreState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.score.State()
}

// Objective returns the objective view; zero in endless mode
func (e *Engine) Objective() ObjectiveProgress {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.objective.Progress()
}

// Limbs returns the per-limb kinematics
func (e *Engine) Limbs() []LimbState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ragdoll.States(nil)
}

// AggregatePosition returns the character position and false without a character
func (e *Engine) AggregatePosition() (physics.Vec, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.ragdoll.Valid() {
		return physics.Vec{}, false
	}
	return e.ragdoll.AggregatePosition(), true
}

// Thrusters returns the fuel and activation of every thruster
func (e *Engine) Thrusters() []ThrusterState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.thrusters.States(e.ragdoll, nil)
}

// ChunkView is the query view of one resident chunk
type ChunkView struct {
	Index  int            `json:"index"`
	Bodies []BodySnapshot `json:"bodies"`
}

// Chunks returns every resident chunk in index order
func (e *Engine) Chunks() []ChunkView {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]ChunkView, 0, e.streamer.Count())
	for _, idx := range e.streamer.Indices() {
		ch := e.streamer.Chunk(idx)
		view := ChunkView{Index: idx, Bodies: make([]BodySnapshot, 0, len(ch.Bodies))}
		for _, b := range ch.Bodies {
			view.Bodies = append(view.Bodies, bodySnapshot(b))
		}
		out = append(out, view)
	}
	return out
}

// CameraView is the camera query view
type CameraView struct {
	Position physics.Vec `json:"position"`
	Scale    float64     `json:"scale"`
	View     Bounds      `json:"view"`
}

// Camera returns the camera position, scale and visible world rectangle
func (e *Engine) Camera() CameraView {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return CameraView{Position: e.camera.Position(), Scale: e.camera.Scale(), View: e.camera.ViewBounds()}
}

// Indicators returns pointers from the character to every uncollected pickup
func (e *Engine) Indicators() []Indicator {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.ragdoll.Valid() {
		return nil
	}
	return e.collectibles.Indicators(e.ragdoll.AggregatePosition())
}

// LastError returns the most recent subsystem failure, nil if none
func (e *Engine) LastError() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastErr
}

// Events returns the recently recorded events
func (e *Engine) Events() []Event {
	return e.recorder.Events()
}

// TickCount returns the number of ticks run
func (e *Engine) TickCount() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.tickCount
}

// EngineStats are counters for metrics and the debug surface
type EngineStats struct {
	Tick         uint64             `json:"tick"`
	Phase        string             `json:"phase"`
	Bodies       int                `json:"bodies"`
	Joints       int                `json:"joints"`
	Chunks       int                `json:"chunks"`
	Collectibles int                `json:"collectibles"`
	Particles    int                `json:"particles"`
	PendingTasks int                `json:"pendingTasks"`
	LastTickMs   float64            `json:"lastTickMs"`
	Failures     map[string]uint64  `json:"failures"`
	Score        int                `json:"score"`
	BestScore    int                `json:"bestScore"`
	Multiplier   float64            `json:"multiplier"`
	FuelByLimb   map[string]float64 `json:"fuel"`
}

// Stats returns a consistent set of counters
func (e *Engine) Stats() EngineStats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	score := e.score.State()
	st := EngineStats{
		Tick:         e.tickCount,
		Phase:        e.phase.Current().String(),
		Bodies:       e.world.BodyCount(),
		Joints:       e.world.JointCount(),
		Chunks:       e.streamer.Count(),
		Collectibles: e.collectibles.Count(),
		Particles:    e.particles.Len(),
		PendingTasks: e.scheduler.Pending(),
		LastTickMs:   float64(e.lastTickNs.Load()) / 1e6,
		Failures:     make(map[string]uint64, len(e.failures)),
		Score:        score.Current,
		BestScore:    score.Best,
		Multiplier:   score.Multiplier,
		FuelByLimb:   make(map[string]float64, len(ThrustLimbs)),
	}
	for k, v := range e.failures {
		st.Failures[k] = v
	}
	for _, l := range ThrustLimbs {
		if t := e.thrusters.Get(l); t != nil {
			st.FuelByLimb[l.String()] = t.Fuel()
		}
	}
	return st
}

// =============================================================================
// SNAPSHOTS
// =============================================================================

func bodySnapshot(b *physics.Body) BodySnapshot {
	w, h := b.Size()
	p := b.Position()
	return BodySnapshot{
		ID:     b.ID(),
		Label:  b.Label(),
		Shape:  b.Kind().String(),
		X:      p.X,
		Y:      p.Y,
		Angle:  b.Angle(),
		Width:  w,
		Height: h,
	}
}

// produceSnapshot copies the current state into the next pool slot.
// Called at the end of each tick.
func (e *Engine) produceSnapshot() {
	snap := e.snapshotPool.AcquireWrite()
	limits := e.snapshotPool.GetLimits()

	snap.TickNumber = e.tickCount
	snap.Phase = e.phase.Current()
	snap.Mode = e.mode
	if e.level != nil {
		snap.LevelID = e.level.ID
	}

	for _, l := range e.ragdoll.States(e.limbStates[:0]) {
		snap.Limbs = append(snap.Limbs, LimbSnapshot{
			Limb:            l.Limb.String(),
			Shape:           l.Shape.String(),
			X:               l.Position.X,
			Y:               l.Position.Y,
			Angle:           l.Angle,
			VX:              l.Velocity.X,
			VY:              l.Velocity.Y,
			AngularVelocity: l.AngularVelocity,
			Width:           l.Width,
			Height:          l.Height,
		})
	}

	for _, idx := range e.streamer.Indices() {
		snap.Chunks = append(snap.Chunks, idx)
		for _, b := range e.streamer.Chunk(idx).Bodies {
			snap.Terrain = append(snap.Terrain, bodySnapshot(b))
		}
	}
	for _, w := range e.walls {
		snap.Terrain = append(snap.Terrain, bodySnapshot(w))
	}

	for _, t := range e.thrusters.States(e.ragdoll, nil) {
		snap.Thrusters = append(snap.Thrusters, ThrusterSnapshot{
			Limb:       t.Limb.String(),
			Active:     t.Active,
			Enabled:    t.Enabled,
			Firing:     t.Firing,
			Fuel:       t.Fuel,
			MaxFuel:    t.MaxFuel,
			Multiplier: t.Multiplier,
			EmitX:      t.Emission.X,
			EmitY:      t.Emission.Y,
			Direction:  t.Direction,
		})
	}

	nowMs := float64(e.tickCount) * 1000 / float64(e.tickRate)
	for _, c := range e.collectibles.InView(e.camera.ViewBounds()) {
		if len(snap.Collectibles) >= limits.MaxCollectibles {
			break
		}
		snap.Collectibles = append(snap.Collectibles, CollectibleSnapshot{
			ID:        c.ID,
			X:         c.Position.X,
			Y:         c.Position.Y,
			Radius:    e.cfg.Collectibles.Radius,
			Scale:     c.PulseScale(nowMs),
			Collected: c.Collected,
		})
	}
	if e.ragdoll.Valid() {
		snap.Indicators = append(snap.Indicators, e.collectibles.Indicators(e.ragdoll.AggregatePosition())...)
	}

	for _, p := range e.particles.All() {
		if len(snap.Particles) >= limits.MaxParticles {
			break
		}
		snap.Particles = append(snap.Particles, ParticleSnapshot{X: p.X, Y: p.Y, Color: p.Color, Alpha: p.Life})
	}

	cam := e.camera.Position()
	snap.Camera = CameraSnapshot{
		X:      cam.X,
		Y:      cam.Y,
		Scale:  e.camera.Scale(),
		Width:  e.cfg.Viewport.Width,
		Height: e.cfg.Viewport.Height,
	}
	snap.Score = e.score.State()
	snap.Objective = e.objective.Progress()
	if e.lastErr != nil {
		snap.LastError = e.lastErr.Error()
	}

	e.snapshotPool.PublishWrite()
}

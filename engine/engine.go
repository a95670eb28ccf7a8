package engine

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync/atomic"

	"github.com/spaghettifunk/anima-gl/engine/assets"
	"github.com/spaghettifunk/anima-gl/engine/config"
	"github.com/spaghettifunk/anima-gl/engine/core"
	"github.com/spaghettifunk/anima-gl/engine/platform"
	"github.com/spaghettifunk/anima-gl/engine/renderer"
	"github.com/spaghettifunk/anima-gl/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-gl/engine/renderer/opengl"
	"github.com/spaghettifunk/anima-gl/engine/systems"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

// Frames between two FPS log lines.
const statsInterval = 300

type Engine struct {
	currentStage Stage
	gameInstance *Game
	config       *config.Config
	// Cleared from event handlers, which may run on the signal goroutine.
	isRunning    atomic.Bool
	isSuspended  bool
	platform     *platform.Platform
	backend      *opengl.OpenGLRenderer
	renderer     *renderer.Renderer
	shaders      *assets.ShaderWatcher
	jobs         *systems.JobSystem
	width        uint32
	height       uint32
	clock        *core.Clock
	metrics      *core.Metrics
	lastTime     float64
	// Set when a frame reported context loss; cleared once the context is restored.
	contextLost bool
}

func New(g *Game, cfg *config.Config) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := core.SetLogLevel(cfg.Renderer.LogLevel); err != nil {
		return nil, fmt.Errorf("renderer.log_level: %w", err)
	}

	p, err := platform.New()
	if err != nil {
		return nil, err
	}

	js, err := systems.NewJobSystem(runtime.NumCPU(), 64)
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}

	e := &Engine{
		currentStage: EngineStageUninitialized,
		gameInstance: g,
		config:       cfg,
		clock:        core.NewClock(),
		metrics:      core.NewMetrics(),
		platform:     p,
		jobs:         js,
		isSuspended:  false,
		width:        cfg.Application.StartWidth,
		height:       cfg.Application.StartHeight,
	}
	e.isRunning.Store(true)
	return e, nil
}

func (e *Engine) Initialize() error {
	e.currentStage = EngineStageInitializing

	// initialize events
	if !core.EventSystemInitialize() {
		return fmt.Errorf("failed to initialize the event system")
	}

	// register some events
	core.EventRegister(core.EVENT_CODE_APPLICATION_QUIT, e, e.onEvent)
	core.EventRegister(core.EVENT_CODE_RESIZED, e, e.onResized)
	core.EventRegister(core.EVENT_CODE_CONTEXT_LOST, e, e.onContextLost)
	core.EventRegister(core.EVENT_CODE_RESOURCE_CREATION_FAILED, e, e.onCreationFailed)

	app := e.config.Application
	if err := e.platform.Startup(app.Name, app.StartPosX, app.StartPosY, app.StartWidth, app.StartHeight); err != nil {
		return err
	}
	e.width, e.height = e.platform.FramebufferSize()

	e.backend = opengl.New(opengl.Options{
		IsCurrent: e.platform.IsContextCurrent,
		Debug:     e.config.Renderer.Debug,
	})
	r, err := renderer.New(e.backend, &e.config.Renderer)
	if err != nil {
		return err
	}
	if err := r.Initialize(); err != nil {
		return err
	}
	e.renderer = r

	if err := e.initializeShaders(); err != nil {
		return err
	}

	if e.gameInstance.FnInitialize != nil {
		if err := e.gameInstance.FnInitialize(e); err != nil {
			return err
		}
	}
	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(e.width, e.height); err != nil {
			return err
		}
	}

	e.currentStage = EngineStageInitialized
	return nil
}

func (e *Engine) initializeShaders() error {
	dir := e.config.Assets.ShaderDir
	if _, err := os.Stat(dir); err != nil {
		core.LogWarn("shader dir %s not available: %s", dir, err)
		return nil
	}
	sw, err := assets.NewShaderWatcher(dir)
	if err != nil {
		return err
	}
	if e.config.Assets.Watch {
		if err := sw.Start(); err != nil {
			return err
		}
		core.LogInfo("watching %s for shader changes", dir)
	}
	e.shaders = sw
	return nil
}

func (e *Engine) Renderer() *renderer.Renderer {
	return e.renderer
}

// Shaders is nil when the configured shader dir does not exist.
func (e *Engine) Shaders() *assets.ShaderWatcher {
	return e.shaders
}

func (e *Engine) Jobs() *systems.JobSystem {
	return e.jobs
}

func (e *Engine) Config() *config.Config {
	return e.config
}

// GetFramebufferSize returns the width and height (in this order) of the
// application framebuffer
func (e *Engine) GetFramebufferSize() (uint32, uint32) {
	return e.width, e.height
}

func (e *Engine) Run() error {
	e.currentStage = EngineStageRunning
	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()

	var frameCount uint64 = 0

	for e.isRunning.Load() {
		e.platform.PumpMessages()
		if e.isSuspended {
			continue
		}

		// Update clock and get delta time.
		e.clock.Update()
		currentTime := e.clock.Elapsed()
		delta := currentTime - e.lastTime
		frameStartTime := e.platform.GetAbsoluteTime()

		if e.contextLost && !e.recoverContext() {
			e.lastTime = currentTime
			continue
		}

		// Sync point: content produced since the last frame is handed over
		// before any command of this frame is built.
		e.jobs.Update()
		if e.shaders != nil {
			e.shaders.Sync()
		}

		if e.gameInstance.FnUpdate != nil {
			if err := e.gameInstance.FnUpdate(delta); err != nil {
				core.LogError("game update failed, shutting down: %s", err)
				e.isRunning.Store(false)
				break
			}
		}

		packet := &metadata.RenderPacket{DeltaTime: delta}
		if e.gameInstance.FnRender != nil {
			if err := e.gameInstance.FnRender(packet, delta); err != nil {
				core.LogError("game render failed, shutting down: %s", err)
				e.isRunning.Store(false)
				break
			}
		}

		report, err := e.renderer.DrawFrame(packet)
		switch {
		case errors.Is(err, core.ErrContextLost):
			// The renderer already invalidated everything; retry next frame.
			e.contextLost = true
		case err != nil:
			core.LogError("frame %d: %s", e.renderer.Frame(), err)
		default:
			e.platform.SwapBuffers()
		}

		frameElapsedTime := e.platform.GetAbsoluteTime() - frameStartTime
		e.metrics.Update(frameElapsedTime)
		frameCount++
		if frameCount%statsInterval == 0 && report != nil {
			fps, ms := e.metrics.Frame()
			core.LogDebug("%.0f fps, %.2f ms, %d draws, %d elided binds, %d resources", fps, ms, report.Stats.DrawCalls, report.Stats.ElidedBinds, e.renderer.Factory().Len())
		}

		// Update last time
		e.lastTime = currentTime
	}

	return nil
}

// recoverContext brings a lost context back. Resources are rebuilt lazily by
// the next frame's commands.
func (e *Engine) recoverContext() bool {
	e.platform.MakeContextCurrent()
	if err := e.backend.Restore(); err != nil {
		core.LogWarn("context not restored yet: %s", err)
		return false
	}
	e.contextLost = false
	return true
}

func (e *Engine) Shutdown() error {
	if e.currentStage == EngineStageShuttingDown {
		return nil
	}
	e.currentStage = EngineStageShuttingDown
	e.isRunning.Store(false)

	if err := e.jobs.Shutdown(); err != nil {
		return err
	}
	if e.shaders != nil {
		if err := e.shaders.Close(); err != nil {
			return err
		}
	}
	if e.renderer != nil {
		if e.gameInstance.FnShutdown != nil {
			if err := e.gameInstance.FnShutdown(e); err != nil {
				core.LogError(err.Error())
			}
		}
		if err := e.renderer.Shutdown(); err != nil {
			return err
		}
	}
	if err := e.platform.Shutdown(); err != nil {
		return err
	}
	return core.EventSystemShutdown()
}

func (e *Engine) onEvent(code core.SystemEventCode, sender interface{}, listener interface{}, context core.EventContext) bool {
	switch code {
	case core.EVENT_CODE_APPLICATION_QUIT:
		core.LogInfo("EVENT_CODE_APPLICATION_QUIT received, shutting down.")
		e.isRunning.Store(false)
		return true
	}
	return false
}

func (e *Engine) onResized(code core.SystemEventCode, sender interface{}, listener interface{}, context core.EventContext) bool {
	width := context.Data.U32[0]
	height := context.Data.U32[1]

	// Check if different. If so, trigger a resize event.
	if width == e.width && height == e.height {
		return false
	}
	e.width = width
	e.height = height
	core.LogDebug("Window resize: %d, %d", width, height)

	// Handle minimization
	if width == 0 || height == 0 {
		core.LogInfo("Window minimized, suspending application.")
		e.isSuspended = true
		return true
	}
	if e.isSuspended {
		core.LogInfo("Window restored, resuming application.")
		e.isSuspended = false
	}
	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(width, height); err != nil {
			core.LogError(err.Error())
		}
	}
	return false
}

func (e *Engine) onContextLost(code core.SystemEventCode, sender interface{}, listener interface{}, context core.EventContext) bool {
	core.LogWarn("graphics context lost at frame %d, recovering on the next frame", context.Data.U32[0])
	e.contextLost = true
	return false
}

func (e *Engine) onCreationFailed(code core.SystemEventCode, sender interface{}, listener interface{}, context core.EventContext) bool {
	if err, ok := context.Payload.(error); ok {
		var resErr *renderer.ResourceError
		if errors.As(err, &resErr) {
			core.LogDebug("%s %q (id=%d) will be retried next frame", resErr.Kind, resErr.Name, resErr.ID)
		}
	}
	return false
}

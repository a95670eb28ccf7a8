// Package rendertest provides a recording renderer backend that needs no
// graphics context.
package rendertest

import (
	"fmt"
	"sync"

	"github.com/spaghettifunk/anima-gl/engine/core"
	"github.com/spaghettifunk/anima-gl/engine/renderer/metadata"
)

type Op string

const (
	OpCreate           Op = "Create"
	OpDestroy          Op = "Destroy"
	OpBindGeometry     Op = "BindGeometry"
	OpBindProgram      Op = "BindProgram"
	OpBindTexture      Op = "BindTexture"
	OpBindRenderTarget Op = "BindRenderTarget"
	OpSetUniform       Op = "SetUniform"
	OpDraw             Op = "Draw"
	OpClear            Op = "Clear"
	OpSetBlendState    Op = "SetBlendState"
	OpSetDepthState    Op = "SetDepthState"
	OpSetStencilState  Op = "SetStencilState"
	OpSetViewport      Op = "SetViewport"
	OpSetScissor       Op = "SetScissor"
)

// Resource is the GPU resource handed out by the Recorder.
type Resource struct {
	kind metadata.ResourceKind
	// Name of the CPU resource it was built from.
	Name string
	// Serial is unique per Create call.
	Serial int
	valid  bool
}

func (r *Resource) Kind() metadata.ResourceKind { return r.kind }
func (r *Resource) Valid() bool                 { return r.valid }
func (r *Resource) Invalidate()                 { r.valid = false }

// Call is one recorded backend call.
type Call struct {
	Op   Op
	Kind metadata.ResourceKind
	// Name of the resource involved, empty for state calls and the default framebuffer.
	Name  string
	Unit  uint8
	First uint32
	Count uint32
	Value interface{}
}

// Recorder implements the renderer backend by recording every call.
// Failures and context loss can be injected.
type Recorder struct {
	mu    sync.Mutex
	calls []Call

	serial    int
	live      map[*Resource]bool
	failNames map[string]error
	failKinds map[metadata.ResourceKind]error
	loseOn    Op

	units   uint8
	current bool
	lost    bool

	initialized bool
	frames      int
	inFrame     bool
}

func NewRecorder() *Recorder {
	return &Recorder{
		live:      make(map[*Resource]bool),
		failNames: make(map[string]error),
		failKinds: make(map[metadata.ResourceKind]error),
		units:     16,
		current:   true,
	}
}

// FailCreate makes every Create for the named CPU resource fail with err.
func (r *Recorder) FailCreate(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failNames[name] = err
}

// FailKind makes every Create of the given kind fail with err.
func (r *Recorder) FailKind(kind metadata.ResourceKind, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failKinds[kind] = err
}

func (r *Recorder) ClearFailures() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.failNames)
	clear(r.failKinds)
}

// SetCurrent toggles whether the context counts as current on the caller's thread.
func (r *Recorder) SetCurrent(current bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = current
}

func (r *Recorder) SetMaxTextureUnits(units uint8) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.units = units
}

// LoseContext drops every live handle, as a real context loss would.
func (r *Recorder) LoseContext() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loseContext()
}

// LoseContextOn loses the context the next time op is called.
func (r *Recorder) LoseContextOn(op Op) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loseOn = op
}

// Restore brings the context back after a loss. A frame aborted by the
// loss never saw EndFrame, so it is closed here.
func (r *Recorder) Restore() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lost = false
	r.inFrame = false
}

func (r *Recorder) loseContext() {
	r.lost = true
	for res := range r.live {
		delete(r.live, res)
	}
}

func (r *Recorder) record(c Call) {
	r.calls = append(r.calls, c)
	if r.loseOn != "" && r.loseOn == c.Op {
		r.loseOn = ""
		r.loseContext()
	}
}

// Calls returns a copy of everything recorded so far.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Count returns how many calls of op were recorded.
func (r *Recorder) Count(op Op) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// CountKind returns how many calls of op touched a resource of kind.
func (r *Recorder) CountKind(op Op, kind metadata.ResourceKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if c.Op == op && c.Kind == kind && c.Name != "" {
			n++
		}
	}
	return n
}

// CountName returns how many calls of op touched the named resource.
func (r *Recorder) CountName(op Op, name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if c.Op == op && c.Name == name {
			n++
		}
	}
	return n
}

// Reset forgets the recorded calls. Live resources are kept.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}

// Live is the number of created and not yet destroyed resources.
func (r *Recorder) Live() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.live)
}

func (r *Recorder) Frames() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

func (r *Recorder) Initialize() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.initialized = true
	return nil
}

func (r *Recorder) Shutdown() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.initialized = false
	return nil
}

func (r *Recorder) BeginFrame() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lost {
		return fmt.Errorf("begin frame: %w", core.ErrContextLost)
	}
	if r.inFrame {
		return fmt.Errorf("begin frame: frame %d still open", r.frames)
	}
	r.inFrame = true
	r.frames++
	return nil
}

func (r *Recorder) EndFrame() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inFrame = false
	if r.lost {
		return fmt.Errorf("end frame: %w", core.ErrContextLost)
	}
	return nil
}

func (r *Recorder) IsContextCurrent() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current && !r.lost
}

func (r *Recorder) ContextLost() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lost
}

func (r *Recorder) MaxTextureUnits() uint8 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.units
}

func (r *Recorder) Create(res *metadata.CPUResource) (metadata.GPUResource, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record(Call{Op: OpCreate, Kind: res.Kind, Name: res.Name})
	if r.lost {
		return nil, fmt.Errorf("create %s: %w", res, core.ErrContextLost)
	}
	if err, ok := r.failNames[res.Name]; ok {
		return nil, err
	}
	if err, ok := r.failKinds[res.Kind]; ok {
		return nil, err
	}
	r.serial++
	gpu := &Resource{kind: res.Kind, Name: res.Name, Serial: r.serial, valid: true}
	r.live[gpu] = true
	return gpu, nil
}

func (r *Recorder) Destroy(gpu metadata.GPUResource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := gpu.(*Resource)
	r.record(Call{Op: OpDestroy, Kind: res.kind, Name: res.Name})
	delete(r.live, res)
	res.valid = false
}

func (r *Recorder) bind(op Op, gpu metadata.GPUResource, unit uint8) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := Call{Op: op, Unit: unit}
	if res, ok := gpu.(*Resource); ok && res != nil {
		c.Kind = res.kind
		c.Name = res.Name
	}
	r.record(c)
}

func (r *Recorder) BindGeometry(geometry metadata.GPUResource) {
	r.bind(OpBindGeometry, geometry, 0)
}

func (r *Recorder) BindProgram(program metadata.GPUResource) {
	r.bind(OpBindProgram, program, 0)
}

func (r *Recorder) BindTexture(unit uint8, texture metadata.GPUResource) {
	r.bind(OpBindTexture, texture, unit)
}

func (r *Recorder) BindRenderTarget(target metadata.GPUResource) {
	r.bind(OpBindRenderTarget, target, 0)
}

func (r *Recorder) SetUniform(program metadata.GPUResource, name string, uniformType metadata.ShaderUniformType, value interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record(Call{Op: OpSetUniform, Kind: metadata.ResourceKindProgram, Name: name, Value: value})
}

func (r *Recorder) Draw(geometry metadata.GPUResource, primitive metadata.Primitive, first, count uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := geometry.(*Resource)
	r.record(Call{Op: OpDraw, Kind: res.kind, Name: res.Name, First: first, Count: count, Value: primitive})
}

func (r *Recorder) state(op Op, value interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record(Call{Op: op, Value: value})
}

func (r *Recorder) Clear(values metadata.ClearValues) {
	r.state(OpClear, values)
}

func (r *Recorder) SetBlendState(state metadata.BlendState) {
	r.state(OpSetBlendState, state)
}

func (r *Recorder) SetDepthState(state metadata.DepthState) {
	r.state(OpSetDepthState, state)
}

func (r *Recorder) SetStencilState(state metadata.StencilState) {
	r.state(OpSetStencilState, state)
}

func (r *Recorder) SetViewport(rect metadata.Rect) {
	r.state(OpSetViewport, rect)
}

func (r *Recorder) SetScissor(enabled bool, rect metadata.Rect) {
	r.state(OpSetScissor, [2]interface{}{enabled, rect})
}

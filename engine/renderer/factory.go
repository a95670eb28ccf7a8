package renderer

import (
	"errors"
	"fmt"
	"sync"

	"github.com/spaghettifunk/anima-gl/engine/containers"
	"github.com/spaghettifunk/anima-gl/engine/core"
	"github.com/spaghettifunk/anima-gl/engine/renderer/metadata"
)

type resourceEntry struct {
	cpu *metadata.CPUResource
	gpu metadata.GPUResource
	// Last creation failure, kept until the next attempt.
	lastErr error
	// Frame in which the last attempt failed.
	failedFrame uint64
	failed      bool
}

type factoryCounters struct {
	creations        uint32
	creationFailures uint32
	releases         uint32
}

// ResourceFactory decides when a CPU resource needs its GPU side (re)built
// and owns every GPU resource it hands out. A CPU resource's ID is its slot
// in the factory's table.
type ResourceFactory struct {
	mu           sync.Mutex
	backend      RendererBackend
	table        *core.IdentifierTable[*resourceEntry]
	releases     *containers.RingQueue[metadata.GPUResource]
	maxResources int
	frame        uint64
	counters     factoryCounters
}

func NewResourceFactory(backend RendererBackend, maxResources uint32) *ResourceFactory {
	return &ResourceFactory{
		backend:      backend,
		table:        core.NewIdentifierTable[*resourceEntry](int(maxResources)),
		releases:     containers.NewGrowableRingQueue[metadata.GPUResource](16),
		maxResources: int(maxResources),
	}
}

// Register starts tracking cpu. Registering the same resource twice is a no-op.
func (f *ResourceFactory) Register(cpu *metadata.CPUResource) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.register(cpu)
}

func (f *ResourceFactory) register(cpu *metadata.CPUResource) error {
	if cpu == nil {
		return &UsageError{Index: -1, Reason: "cannot register a nil resource"}
	}
	if cpu.Registered() {
		if _, ok := f.lookup(cpu); ok {
			return nil
		}
		return &UsageError{Index: -1, Reason: fmt.Sprintf("%s carries id %d owned by another renderer", cpu, cpu.ID)}
	}
	if err := validatePayload(cpu); err != nil {
		return &UsageError{Index: -1, Reason: err.Error()}
	}
	if f.maxResources > 0 && f.table.Len() >= f.maxResources {
		return &UsageError{Index: -1, Reason: fmt.Sprintf("resource table is full (max=%d), cannot register %s", f.maxResources, cpu)}
	}
	cpu.ID = f.table.Acquire(&resourceEntry{cpu: cpu})
	core.LogDebug("registered %s as id %d", cpu, cpu.ID)
	return nil
}

// Submit registers cpu, or flags an already registered resource for rebuild.
func (f *ResourceFactory) Submit(cpu *metadata.CPUResource) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cpu != nil && cpu.Registered() {
		if _, ok := f.lookup(cpu); ok {
			if err := validatePayload(cpu); err != nil {
				return &UsageError{Index: -1, Reason: fmt.Sprintf("%s: %s", cpu, err)}
			}
			cpu.MarkDirty()
			return nil
		}
	}
	return f.register(cpu)
}

// EnsureResource returns the current GPU resource for cpu, building it first
// when it is missing, dirty or was invalidated. A resource that failed this
// frame is not retried until the next frame unless its payload changes.
// RESOURCE_CREATION_FAILED is fired once the factory is unlocked, so
// listeners may call back into it.
func (f *ResourceFactory) EnsureResource(cpu *metadata.CPUResource) (metadata.GPUResource, error) {
	f.mu.Lock()
	gpu, failed, err := f.ensure(cpu)
	f.mu.Unlock()

	if failed {
		rerr := err.(*ResourceError)
		ctx := core.EventContext{Payload: rerr}
		ctx.Data.U32[0] = rerr.ID
		ctx.Data.U32[1] = uint32(rerr.Kind)
		ctx.Data.C[0] = rerr.Name
		core.EventFire(core.EVENT_CODE_RESOURCE_CREATION_FAILED, f, ctx)
	}
	return gpu, err
}

// ensure does the work of EnsureResource with f.mu held. failed is set when
// err is a new creation failure that listeners have not heard about.
func (f *ResourceFactory) ensure(cpu *metadata.CPUResource) (metadata.GPUResource, bool, error) {
	entry, ok := f.lookup(cpu)
	if !ok {
		if cpu == nil {
			return nil, false, &UsageError{Index: -1, Reason: "nil resource"}
		}
		return nil, false, &UsageError{Index: -1, Reason: fmt.Sprintf("%s is not registered", cpu)}
	}

	dirty := cpu.IsDirty()
	if !dirty && entry.gpu != nil && entry.gpu.Valid() {
		return entry.gpu, false, nil
	}
	if !dirty && entry.failed && entry.failedFrame == f.frame {
		return nil, false, entry.lastErr
	}

	cpu.TakeDirty()
	if entry.gpu != nil {
		f.drop(entry.gpu)
		entry.gpu = nil
	}

	// The payload fields are exported and may have been edited in place.
	var gpu metadata.GPUResource
	err := validatePayload(cpu)
	if err != nil {
		err = fmt.Errorf("invalid payload: %w", err)
	} else {
		gpu, err = f.backend.Create(cpu)
	}
	if err == nil && (gpu == nil || gpu.Kind() != cpu.Kind || !gpu.Valid()) {
		if gpu != nil && gpu.Valid() {
			f.backend.Destroy(gpu)
		}
		err = fmt.Errorf("backend returned an unusable resource for a %s", cpu.Kind)
	}
	if err != nil {
		if errors.Is(err, core.ErrContextLost) {
			return nil, false, err
		}
		rerr := &ResourceError{
			Kind:       cpu.Kind,
			ID:         cpu.ID,
			Name:       cpu.Name,
			Diagnostic: err.Error(),
			Err:        err,
		}
		entry.lastErr = rerr
		entry.failed = true
		entry.failedFrame = f.frame
		f.counters.creationFailures++
		core.LogWarn(rerr.Error())
		return nil, true, rerr
	}

	entry.gpu = gpu
	entry.lastErr = nil
	entry.failed = false
	f.counters.creations++
	core.LogDebug("materialized %s (id=%d)", cpu, cpu.ID)
	return gpu, false, nil
}

// IsCurrent reports whether cpu has a valid GPU resource that reflects its payload.
func (f *ResourceFactory) IsCurrent(cpu *metadata.CPUResource) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry, ok := f.lookup(cpu)
	return ok && entry.gpu != nil && entry.gpu.Valid() && !cpu.IsDirty()
}

// Lookup returns the GPU resource currently attached to cpu, if it is valid.
func (f *ResourceFactory) Lookup(cpu *metadata.CPUResource) (metadata.GPUResource, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry, ok := f.lookup(cpu)
	if !ok || entry.gpu == nil || !entry.gpu.Valid() {
		return nil, false
	}
	return entry.gpu, true
}

// LastError returns the most recent creation failure for cpu.
func (f *ResourceFactory) LastError(cpu *metadata.CPUResource) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if entry, ok := f.lookup(cpu); ok {
		return entry.lastErr
	}
	return nil
}

// InvalidateAll marks every GPU resource dead without calling the backend.
// CPU resources stay registered and rebuild on their next EnsureResource.
func (f *ResourceFactory) InvalidateAll() {
	f.mu.Lock()
	defer f.mu.Unlock()

	count := 0
	f.table.Each(func(id uint32, entry *resourceEntry) bool {
		if entry.gpu != nil {
			entry.gpu.Invalidate()
			count++
		}
		entry.failed = false
		entry.lastErr = nil
		return true
	})
	// The handles died with the context; there is nothing left to delete.
	for !f.releases.IsEmpty() {
		gpu, _ := f.releases.Dequeue()
		gpu.Invalidate()
	}
	core.LogInfo("invalidated %d GPU resources", count)
}

// ReleaseResource stops tracking cpu and frees its GPU side. The slot is
// removed first so nothing can reach the handles again; the handles are
// deleted now when the context is current, otherwise at the next frame.
func (f *ResourceFactory) ReleaseResource(cpu *metadata.CPUResource) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	entry, ok := f.lookup(cpu)
	if !ok {
		if cpu == nil {
			return &UsageError{Index: -1, Reason: "cannot release a nil resource"}
		}
		return &UsageError{Index: -1, Reason: fmt.Sprintf("%s is not registered", cpu)}
	}
	if err := f.table.Release(cpu.ID); err != nil {
		return err
	}
	cpu.ID = metadata.InvalidID
	if entry.gpu != nil {
		f.drop(entry.gpu)
		entry.gpu = nil
	}
	entry.cpu = nil
	return nil
}

// BeginFrame advances the frame counter and deletes deferred handles.
func (f *ResourceFactory) BeginFrame(frame uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frame = frame
	f.flushReleases()
}

// PendingReleases is the number of GPU resources waiting for deletion.
func (f *ResourceFactory) PendingReleases() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.releases.Len()
}

// Len is the number of registered CPU resources.
func (f *ResourceFactory) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.table.Len()
}

// Shutdown destroys every GPU resource and unregisters every CPU resource.
func (f *ResourceFactory) Shutdown() {
	f.mu.Lock()
	defer f.mu.Unlock()

	var ids []uint32
	f.table.Each(func(id uint32, entry *resourceEntry) bool {
		ids = append(ids, id)
		return true
	})
	for _, id := range ids {
		entry, _ := f.table.Get(id)
		if entry.gpu != nil {
			f.drop(entry.gpu)
		}
		entry.cpu.ID = metadata.InvalidID
		if err := f.table.Release(id); err != nil {
			core.LogWarn(err.Error())
		}
	}
	f.flushReleases()
	// Whatever is left could not be deleted on this thread.
	for !f.releases.IsEmpty() {
		gpu, _ := f.releases.Dequeue()
		gpu.Invalidate()
	}
}

func (f *ResourceFactory) takeCounters() factoryCounters {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.counters
	f.counters = factoryCounters{}
	return c
}

func (f *ResourceFactory) lookup(cpu *metadata.CPUResource) (*resourceEntry, bool) {
	if cpu == nil || !cpu.Registered() {
		return nil, false
	}
	entry, ok := f.table.Get(cpu.ID)
	if !ok || entry.cpu != cpu {
		return nil, false
	}
	return entry, true
}

// drop retires gpu. Live handles are deleted or queued; dead ones are simply forgotten.
func (f *ResourceFactory) drop(gpu metadata.GPUResource) {
	if !gpu.Valid() {
		return
	}
	if f.backend.IsContextCurrent() {
		f.backend.Destroy(gpu)
		f.counters.releases++
		return
	}
	if err := f.releases.Enqueue(gpu); err != nil {
		core.LogError("failed to defer release of %s resource: %s", gpu.Kind(), err)
	}
}

func (f *ResourceFactory) flushReleases() {
	if f.releases.IsEmpty() || !f.backend.IsContextCurrent() {
		return
	}
	for !f.releases.IsEmpty() {
		gpu, err := f.releases.Dequeue()
		if err != nil {
			break
		}
		if gpu.Valid() {
			f.backend.Destroy(gpu)
			f.counters.releases++
		}
	}
}

func validatePayload(cpu *metadata.CPUResource) error {
	switch cpu.Kind {
	case metadata.ResourceKindGeometry:
		return cpu.Geometry.Validate()
	case metadata.ResourceKindTexture:
		return cpu.Texture.Validate()
	case metadata.ResourceKindProgram:
		return cpu.Program.Validate()
	case metadata.ResourceKindRenderTarget:
		return cpu.Target.Validate()
	default:
		return fmt.Errorf("unknown resource kind %s", cpu.Kind)
	}
}

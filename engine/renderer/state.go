package renderer

import "github.com/spaghettifunk/anima-gl/engine/renderer/metadata"

type binding struct {
	known bool
	gpu   metadata.GPUResource
}

func (b *binding) set(gpu metadata.GPUResource) bool {
	if b.known && b.gpu == gpu {
		return false
	}
	b.known = true
	b.gpu = gpu
	return true
}

type cachedValue[T comparable] struct {
	known bool
	value T
}

func (c *cachedValue[T]) set(value T) bool {
	if c.known && c.value == value {
		return false
	}
	c.known = true
	c.value = value
	return true
}

type uniformKey struct {
	program metadata.GPUResource
	name    string
}

type scissorState struct {
	enabled bool
	rect    metadata.Rect
}

// stateCache mirrors what is bound on the backend so redundant calls can be
// skipped. Every slot starts unknown, so the first request of each kind in a
// frame always reaches the backend. Bindings compare by GPU resource
// identity; a rebuilt resource is a new value and is always rebound.
type stateCache struct {
	program  binding
	geometry binding
	target   binding
	textures []binding

	blend    cachedValue[metadata.BlendState]
	depth    cachedValue[metadata.DepthState]
	stencil  cachedValue[metadata.StencilState]
	viewport cachedValue[metadata.Rect]
	scissor  cachedValue[scissorState]

	// Uniform values written this frame, per program.
	uniforms map[uniformKey]interface{}
}

func newStateCache(textureUnits uint8) *stateCache {
	return &stateCache{
		textures: make([]binding, textureUnits),
		uniforms: make(map[uniformKey]interface{}),
	}
}

// reset forgets everything. Called at frame start and after the context is invalidated.
func (s *stateCache) reset() {
	s.program = binding{}
	s.geometry = binding{}
	s.target = binding{}
	for i := range s.textures {
		s.textures[i] = binding{}
	}
	s.blend = cachedValue[metadata.BlendState]{}
	s.depth = cachedValue[metadata.DepthState]{}
	s.stencil = cachedValue[metadata.StencilState]{}
	s.viewport = cachedValue[metadata.Rect]{}
	s.scissor = cachedValue[scissorState]{}
	clear(s.uniforms)
}

func (s *stateCache) bindProgram(gpu metadata.GPUResource) bool {
	return s.program.set(gpu)
}

func (s *stateCache) bindGeometry(gpu metadata.GPUResource) bool {
	return s.geometry.set(gpu)
}

// bindTarget records the bound framebuffer; nil is the default one.
func (s *stateCache) bindTarget(gpu metadata.GPUResource) bool {
	return s.target.set(gpu)
}

func (s *stateCache) targetKnown() bool {
	return s.target.known
}

func (s *stateCache) bindTexture(unit uint8, gpu metadata.GPUResource) bool {
	if int(unit) >= len(s.textures) {
		return true
	}
	return s.textures[unit].set(gpu)
}

func (s *stateCache) setBlend(state metadata.BlendState) bool {
	return s.blend.set(state)
}

func (s *stateCache) setDepth(state metadata.DepthState) bool {
	return s.depth.set(state)
}

func (s *stateCache) setStencil(state metadata.StencilState) bool {
	return s.stencil.set(state)
}

func (s *stateCache) setViewport(rect metadata.Rect) bool {
	return s.viewport.set(rect)
}

func (s *stateCache) setScissor(enabled bool, rect metadata.Rect) bool {
	if !enabled {
		// The rectangle is irrelevant while the test is off.
		rect = metadata.Rect{}
	}
	return s.scissor.set(scissorState{enabled: enabled, rect: rect})
}

// setUniform reports whether value differs from what program last received this frame.
func (s *stateCache) setUniform(program metadata.GPUResource, name string, value interface{}) bool {
	key := uniformKey{program: program, name: name}
	if prev, ok := s.uniforms[key]; ok && prev == value {
		return false
	}
	s.uniforms[key] = value
	return true
}

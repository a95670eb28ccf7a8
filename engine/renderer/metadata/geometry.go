package metadata

import (
	"errors"
	"fmt"
)

/** @brief How often the geometry data is expected to change. */
type BufferUsage int

const (
	BufferUsageStatic BufferUsage = iota
	BufferUsageDynamic
	BufferUsageStream
)

/**
 * @brief Describes one float vertex attribute inside an interleaved vertex.
 */
type VertexAttribute struct {
	/** @brief The shader attribute location. */
	Location uint32
	/** @brief Number of float components, 1 to 4. */
	Components int32
	/** @brief Whether fixed-point data should be normalized. */
	Normalized bool
	/** @brief Offset in bytes from the start of the vertex. */
	Offset uint32
}

/**
 * @brief The layout of one interleaved vertex.
 */
type VertexLayout struct {
	/** @brief The size of one vertex in bytes. */
	Stride uint32
	/** @brief The attributes making up a vertex. */
	Attributes []VertexAttribute
}

/**
 * @brief Backend independent geometry payload.
 */
type GeometryData struct {
	Layout VertexLayout
	/** @brief Interleaved vertex data. */
	Vertices []float32
	/** @brief Optional index data. When empty, draws are non-indexed. */
	Indices []uint32
	Usage   BufferUsage
}

// VertexCount is the number of whole vertices in Vertices.
func (g *GeometryData) VertexCount() uint32 {
	if g.Layout.Stride == 0 {
		return 0
	}
	return uint32(len(g.Vertices)*4) / g.Layout.Stride
}

// Indexed reports whether draws use the index buffer.
func (g *GeometryData) Indexed() bool {
	return len(g.Indices) > 0
}

// ElementCount is the number of elements a full draw consumes.
func (g *GeometryData) ElementCount() uint32 {
	if g.Indexed() {
		return uint32(len(g.Indices))
	}
	return g.VertexCount()
}

func (g *GeometryData) Validate() error {
	if g == nil {
		return errors.New("missing geometry payload")
	}
	if g.Layout.Stride == 0 || g.Layout.Stride%4 != 0 {
		return fmt.Errorf("vertex stride %d must be a non-zero multiple of 4", g.Layout.Stride)
	}
	if len(g.Layout.Attributes) == 0 {
		return errors.New("vertex layout has no attributes")
	}
	if len(g.Vertices) == 0 {
		return errors.New("no vertices")
	}
	if uint32(len(g.Vertices)*4)%g.Layout.Stride != 0 {
		return fmt.Errorf("%d vertex floats do not divide into stride %d", len(g.Vertices), g.Layout.Stride)
	}
	seen := make(map[uint32]bool, len(g.Layout.Attributes))
	for _, a := range g.Layout.Attributes {
		if a.Components < 1 || a.Components > 4 {
			return fmt.Errorf("attribute %d has %d components, want 1..4", a.Location, a.Components)
		}
		if a.Offset+uint32(a.Components)*4 > g.Layout.Stride {
			return fmt.Errorf("attribute %d overruns the vertex stride", a.Location)
		}
		if seen[a.Location] {
			return fmt.Errorf("attribute location %d declared twice", a.Location)
		}
		seen[a.Location] = true
	}
	count := g.VertexCount()
	for i, idx := range g.Indices {
		if idx >= count {
			return fmt.Errorf("index %d at position %d is out of range (vertices=%d)", idx, i, count)
		}
	}
	return nil
}

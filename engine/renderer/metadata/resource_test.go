package metadata

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func triangleData() *GeometryData {
	return &GeometryData{
		Layout: VertexLayout{
			Stride:     12,
			Attributes: []VertexAttribute{{Location: 0, Components: 3}},
		},
		Vertices: []float32{
			-0.5, -0.5, 0,
			0.5, -0.5, 0,
			0, 0.5, 0,
		},
	}
}

func TestNewResourcesStartUnregistered(t *testing.T) {
	geo, err := NewGeometry("", triangleData())
	if err != nil {
		t.Fatalf("NewGeometry() error = %v", err)
	}
	if geo.Registered() {
		t.Error("new resource reports Registered() = true")
	}
	if geo.Name == "" {
		t.Error("unnamed resource did not get a generated name")
	}
	if geo.Kind != ResourceKindGeometry || geo.Geometry == nil {
		t.Errorf("NewGeometry() kind = %s, payload = %v", geo.Kind, geo.Geometry)
	}
	if geo.IsDirty() {
		t.Error("new resource is dirty")
	}
}

func TestGeometryValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(g *GeometryData)
	}{
		{"zero stride", func(g *GeometryData) { g.Layout.Stride = 0 }},
		{"unaligned stride", func(g *GeometryData) { g.Layout.Stride = 10 }},
		{"no attributes", func(g *GeometryData) { g.Layout.Attributes = nil }},
		{"partial vertex", func(g *GeometryData) { g.Vertices = g.Vertices[:8] }},
		{"five components", func(g *GeometryData) { g.Layout.Attributes[0].Components = 5 }},
		{"overrun", func(g *GeometryData) { g.Layout.Attributes[0].Offset = 4 }},
		{"index out of range", func(g *GeometryData) { g.Indices = []uint32{0, 1, 3} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := triangleData()
			tt.mutate(g)
			if _, err := NewGeometry("bad", g); err == nil {
				t.Error("NewGeometry() error = nil, want validation error")
			}
		})
	}

	g := triangleData()
	if got := g.ElementCount(); got != 3 {
		t.Errorf("ElementCount() = %d, want 3", got)
	}
	g.Indices = []uint32{0, 1, 2, 2, 1, 0}
	if got := g.ElementCount(); got != 6 {
		t.Errorf("indexed ElementCount() = %d, want 6", got)
	}
}

func TestTextureValidateAndUpdate(t *testing.T) {
	tex, err := NewTexture("tex", &TextureData{Width: 2, Height: 2, Format: PixelFormatRGBA8, Pixels: make([]uint8, 16)})
	if err != nil {
		t.Fatalf("NewTexture() error = %v", err)
	}
	if err := tex.UpdateTexturePixels(2, 2, make([]uint8, 15)); err == nil {
		t.Error("UpdateTexturePixels with a short buffer succeeded")
	}
	if tex.IsDirty() {
		t.Error("failed update marked the resource dirty")
	}
	if tex.Texture.Width != 2 || len(tex.Texture.Pixels) != 16 {
		t.Error("failed update changed the payload")
	}
	if err := tex.UpdateTexturePixels(1, 4, make([]uint8, 16)); err != nil {
		t.Fatalf("UpdateTexturePixels() error = %v", err)
	}
	if !tex.IsDirty() {
		t.Error("successful update did not mark the resource dirty")
	}
	if !tex.TakeDirty() {
		t.Error("TakeDirty() = false after update")
	}
	if tex.TakeDirty() {
		t.Error("TakeDirty() = true twice in a row")
	}
	if err := tex.UpdateGeometry(triangleData()); err == nil {
		t.Error("UpdateGeometry on a texture succeeded")
	}
}

func TestProgramValidate(t *testing.T) {
	base := func() *ProgramData {
		return &ProgramData{
			VertexSource:   "void main() {}",
			FragmentSource: "void main() {}",
			Uniforms: []ShaderUniformDecl{
				{Name: "u_mvp", Type: ShaderUniformTypeMat4},
				{Name: "u_tex", Type: ShaderUniformTypeSampler, Unit: 0},
			},
		}
	}
	if _, err := NewProgram("ok", base()); err != nil {
		t.Fatalf("NewProgram() error = %v", err)
	}

	p := base()
	p.FragmentSource = "  "
	if _, err := NewProgram("empty", p); err == nil {
		t.Error("empty fragment source accepted")
	}

	p = base()
	p.Uniforms = append(p.Uniforms, ShaderUniformDecl{Name: "u_other", Type: ShaderUniformTypeSampler, Unit: 0})
	if _, err := NewProgram("shared unit", p); err == nil {
		t.Error("two samplers on one unit accepted")
	}

	p = base()
	p.Uniforms = append(p.Uniforms, ShaderUniformDecl{Name: "u_mvp", Type: ShaderUniformTypeVec4})
	if _, err := NewProgram("dup", p); err == nil {
		t.Error("duplicate uniform accepted")
	}

	if units := base().Samplers(); len(units) != 1 || units[0] != 0 {
		t.Errorf("Samplers() = %v, want [0]", units)
	}
}

func TestUniformTypeAccepts(t *testing.T) {
	tests := []struct {
		typ   ShaderUniformType
		value interface{}
		want  bool
	}{
		{ShaderUniformTypeFloat32, float32(1), true},
		{ShaderUniformTypeFloat32, float64(1), false},
		{ShaderUniformTypeInt32, int32(3), true},
		{ShaderUniformTypeVec4, mgl32.Vec4{1, 0, 0, 1}, true},
		{ShaderUniformTypeVec3, mgl32.Vec4{}, false},
		{ShaderUniformTypeMat4, mgl32.Ident4(), true},
		{ShaderUniformTypeMat3, mgl32.Ident3(), true},
		{ShaderUniformTypeSampler, int32(0), false},
	}
	for _, tt := range tests {
		if got := tt.typ.Accepts(tt.value); got != tt.want {
			t.Errorf("%s.Accepts(%T) = %v, want %v", tt.typ, tt.value, got, tt.want)
		}
	}
}

func TestRenderTargetResize(t *testing.T) {
	rt, err := NewRenderTarget("rt", &RenderTargetData{Width: 64, Height: 64, Depth: true})
	if err != nil {
		t.Fatalf("NewRenderTarget() error = %v", err)
	}
	if err := rt.ResizeRenderTarget(0, 32); err == nil {
		t.Error("ResizeRenderTarget(0, 32) succeeded")
	}
	if err := rt.ResizeRenderTarget(128, 32); err != nil {
		t.Fatalf("ResizeRenderTarget() error = %v", err)
	}
	if rt.Target.Width != 128 || !rt.IsDirty() {
		t.Errorf("after resize width = %d dirty = %v", rt.Target.Width, rt.IsDirty())
	}
}

func TestTextureFitWithin(t *testing.T) {
	tex := NewCheckerboardTextureData(8)
	same, err := tex.FitWithin(8)
	if err != nil || same != tex {
		t.Errorf("FitWithin(8) = %p, %v; want the receiver", same, err)
	}

	small, err := tex.FitWithin(4)
	if err != nil {
		t.Fatalf("FitWithin(4) error = %v", err)
	}
	if small.Width != 4 || small.Height != 4 || len(small.Pixels) != 4*4*4 {
		t.Errorf("FitWithin(4) = %dx%d with %d bytes", small.Width, small.Height, len(small.Pixels))
	}
	if err := small.Validate(); err != nil {
		t.Errorf("scaled payload invalid: %v", err)
	}
	if tex.Width != 8 || len(tex.Pixels) != 8*8*4 {
		t.Error("FitWithin modified the receiver")
	}

	r8 := &TextureData{Width: 8, Height: 2, Format: PixelFormatR8, Pixels: make([]uint8, 16)}
	if _, err := r8.FitWithin(4); err == nil {
		t.Error("FitWithin scaled an R8 texture")
	}
}

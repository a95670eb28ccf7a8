package metadata

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
)

/** @brief Available uniform types. */
type ShaderUniformType int

const (
	ShaderUniformTypeFloat32 ShaderUniformType = iota
	ShaderUniformTypeInt32
	ShaderUniformTypeVec2
	ShaderUniformTypeVec3
	ShaderUniformTypeVec4
	ShaderUniformTypeMat3
	ShaderUniformTypeMat4
	ShaderUniformTypeSampler
)

func (t ShaderUniformType) String() string {
	switch t {
	case ShaderUniformTypeFloat32:
		return "float"
	case ShaderUniformTypeInt32:
		return "int"
	case ShaderUniformTypeVec2:
		return "vec2"
	case ShaderUniformTypeVec3:
		return "vec3"
	case ShaderUniformTypeVec4:
		return "vec4"
	case ShaderUniformTypeMat3:
		return "mat3"
	case ShaderUniformTypeMat4:
		return "mat4"
	case ShaderUniformTypeSampler:
		return "sampler2D"
	default:
		return fmt.Sprintf("ShaderUniformType(%d)", int(t))
	}
}

// Accepts reports whether value is the Go representation of this uniform type.
// Samplers take no value; their unit comes from the declaration.
func (t ShaderUniformType) Accepts(value interface{}) bool {
	switch value.(type) {
	case float32:
		return t == ShaderUniformTypeFloat32
	case int32:
		return t == ShaderUniformTypeInt32
	case mgl32.Vec2:
		return t == ShaderUniformTypeVec2
	case mgl32.Vec3:
		return t == ShaderUniformTypeVec3
	case mgl32.Vec4:
		return t == ShaderUniformTypeVec4
	case mgl32.Mat3:
		return t == ShaderUniformTypeMat3
	case mgl32.Mat4:
		return t == ShaderUniformTypeMat4
	default:
		return false
	}
}

/**
 * @brief A vertex attribute name bound to a fixed location before linking.
 */
type ShaderAttributeBinding struct {
	Name     string
	Location uint32
}

/**
 * @brief A single entry of the program's uniform table.
 */
type ShaderUniformDecl struct {
	/** @brief The uniform name as written in the shader source. */
	Name string
	/** @brief The type of uniform. */
	Type ShaderUniformType
	/** @brief The texture unit a sampler reads from. Ignored for other types. */
	Unit uint8
}

/**
 * @brief Backend independent shader program payload. Sources are handed to
 * the backend as-is; no source transformation takes place.
 */
type ProgramData struct {
	VertexSource   string
	FragmentSource string
	Attributes     []ShaderAttributeBinding
	Uniforms       []ShaderUniformDecl
}

// Uniform looks up a declared uniform by name.
func (p *ProgramData) Uniform(name string) (ShaderUniformDecl, bool) {
	for _, u := range p.Uniforms {
		if u.Name == name {
			return u, true
		}
	}
	return ShaderUniformDecl{}, false
}

// Samplers lists the texture units the program samples from.
func (p *ProgramData) Samplers() []uint8 {
	var units []uint8
	for _, u := range p.Uniforms {
		if u.Type == ShaderUniformTypeSampler {
			units = append(units, u.Unit)
		}
	}
	return units
}

func (p *ProgramData) Validate() error {
	if p == nil {
		return errors.New("missing program payload")
	}
	if strings.TrimSpace(p.VertexSource) == "" {
		return errors.New("empty vertex shader source")
	}
	if strings.TrimSpace(p.FragmentSource) == "" {
		return errors.New("empty fragment shader source")
	}
	names := make(map[string]bool, len(p.Uniforms))
	units := make(map[uint8]string)
	for _, u := range p.Uniforms {
		if u.Name == "" {
			return errors.New("uniform with empty name")
		}
		if names[u.Name] {
			return fmt.Errorf("uniform %q declared twice", u.Name)
		}
		names[u.Name] = true
		if u.Type == ShaderUniformTypeSampler {
			if other, ok := units[u.Unit]; ok {
				return fmt.Errorf("samplers %q and %q share texture unit %d", other, u.Name, u.Unit)
			}
			units[u.Unit] = u.Name
		}
	}
	for _, a := range p.Attributes {
		if a.Name == "" {
			return errors.New("attribute binding with empty name")
		}
	}
	return nil
}

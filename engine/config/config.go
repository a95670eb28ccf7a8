package config

import (
	"bytes"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// FailurePolicy decides what the renderer does with a texture whose GPU side
// could not be created.
type FailurePolicy string

const (
	// Bind a 1x1 white placeholder texture in place of the failed one.
	FailurePolicyPlaceholder FailurePolicy = "placeholder"
	// Leave the texture unit unbound. Draws that sample it are skipped.
	FailurePolicySkip FailurePolicy = "skip"
)

type ApplicationConfig struct {
	// The application name used in windowing, if applicable.
	Name string `toml:"name"`
	// Window starting position x axis, if applicable.
	StartPosX uint32 `toml:"start_pos_x"`
	// Window starting position y axis, if applicable.
	StartPosY uint32 `toml:"start_pos_y"`
	// Window starting width, if applicable.
	StartWidth uint32 `toml:"start_width"`
	// Window starting height, if applicable.
	StartHeight uint32 `toml:"start_height"`
}

type RendererConfig struct {
	// Upper bound on simultaneously registered CPU resources.
	MaxResources uint32 `toml:"max_resources"`
	// Number of texture units tracked by the state cache.
	TextureUnits uint8 `toml:"texture_units"`
	// What to do when a texture fails to materialize.
	FailurePolicy FailurePolicy `toml:"failure_policy"`
	// When set, invalid usage errors are also returned from DrawFrame.
	Debug bool `toml:"debug"`
	// Log level name understood by charmbracelet/log.
	LogLevel string `toml:"log_level"`
}

type AssetsConfig struct {
	// Directory holding <name>.vert / <name>.frag shader sources.
	ShaderDir string `toml:"shader_dir"`
	// Reload shader sources when they change on disk.
	Watch bool `toml:"watch"`
}

type Config struct {
	Application ApplicationConfig `toml:"application"`
	Renderer    RendererConfig    `toml:"renderer"`
	Assets      AssetsConfig      `toml:"assets"`
}

func Default() *Config {
	return &Config{
		Application: ApplicationConfig{
			Name:        "anima-gl",
			StartPosX:   100,
			StartPosY:   100,
			StartWidth:  1280,
			StartHeight: 720,
		},
		Renderer: DefaultRendererConfig(),
		Assets: AssetsConfig{
			ShaderDir: "assets/shaders",
			Watch:     false,
		},
	}
}

func DefaultRendererConfig() RendererConfig {
	return RendererConfig{
		MaxResources:  4096,
		TextureUnits:  16,
		FailurePolicy: FailurePolicyPlaceholder,
		Debug:         false,
		LogLevel:      "info",
	}
}

// Load reads a TOML file on top of the defaults. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Encode writes the configuration back out as TOML.
func (c *Config) Encode() ([]byte, error) {
	return toml.Marshal(c)
}

func (c *Config) Validate() error {
	if c.Application.StartWidth == 0 || c.Application.StartHeight == 0 {
		return fmt.Errorf("application.start_width and application.start_height must be > 0")
	}
	return c.Renderer.Validate()
}

func (rc *RendererConfig) Validate() error {
	if rc.MaxResources == 0 {
		return fmt.Errorf("renderer.max_resources must be > 0")
	}
	if rc.TextureUnits == 0 {
		return fmt.Errorf("renderer.texture_units must be > 0")
	}
	switch rc.FailurePolicy {
	case FailurePolicyPlaceholder, FailurePolicySkip:
	default:
		return fmt.Errorf("renderer.failure_policy %q is not one of %q, %q", rc.FailurePolicy, FailurePolicyPlaceholder, FailurePolicySkip)
	}
	return nil
}

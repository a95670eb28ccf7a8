//go:build mage

package main

import (
	"fmt"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

type Build mg.Namespace

// Builds the demo binary into bin/.
func (Build) Demo() error {
	if err := sh.Run(mg.GoCmd(), "mod", "download"); err != nil {
		return err
	}
	return goRun("build", "-o", filepath.Join("bin", "anima-gl"), ".")
}

// Checks every GLSL source under assets/shaders with glslangValidator.
func (Build) Shaders() error {
	files, err := shaderSources()
	if err != nil {
		return err
	}
	for _, f := range files {
		if err := sh.RunV("glslangValidator", f); err != nil {
			return fmt.Errorf("shader %s: %w", f, err)
		}
	}
	return nil
}

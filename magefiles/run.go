//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Runs the demo with the given config file (empty for defaults).
func (Run) Demo(configPath string) error {
	mg.Deps(Build.Shaders)
	fmt.Println("Run demo...")
	args := []string{"run", "."}
	if configPath != "" {
		args = append(args, "-config", configPath)
	}
	return goRun(args...)
}

type Test mg.Namespace

// Runs every test in the module.
func (Test) All() error {
	return goRun("test", "./...")
}

// Runs the tests that need no GL context with the race detector.
func (Test) Race() error {
	return goRun("test", "-race",
		"./engine/core/...",
		"./engine/containers/...",
		"./engine/config/...",
		"./engine/math/...",
		"./engine/assets/...",
		"./engine/systems/...",
		"./engine/renderer",
		"./engine/renderer/metadata/...",
	)
}

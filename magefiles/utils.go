//go:build mage

package main

import (
	"path/filepath"
	"sort"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const shaderDir = "assets/shaders"

// goRun runs the go tool, streaming its output.
func goRun(args ...string) error {
	return sh.RunV(mg.GoCmd(), args...)
}

// shaderSources lists every vertex and fragment stage under shaderDir.
func shaderSources() ([]string, error) {
	var files []string
	for _, ext := range []string{".vert", ".frag"} {
		matches, err := filepath.Glob(filepath.Join(shaderDir, "*"+ext))
		if err != nil {
			return nil, err
		}
		files = append(files, matches...)
	}
	sort.Strings(files)
	return files, nil
}

package assets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/spaghettifunk/anima-gl/engine/core"
	"github.com/spaghettifunk/anima-gl/engine/renderer/metadata"
)

const (
	VertexShaderExt   = ".vert"
	FragmentShaderExt = ".frag"
)

type programSource struct {
	vertex   string
	fragment string
}

// ShaderWatcher loads program sources from a directory and reloads them when
// they change on disk. Reloaded sources are only queued by the watch
// goroutine; Sync applies them to the CPU resources and must run at the
// engine's sync point, before the frame is submitted.
type ShaderWatcher struct {
	dir string

	mutex    sync.Mutex
	programs map[string]*metadata.CPUResource
	pending  map[string]programSource

	fsnotify *fsnotify.Watcher
	done     chan struct{}
	stopped  chan struct{}
	started  bool
	isClosed bool
}

func NewShaderWatcher(dir string) (*ShaderWatcher, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("shader dir %s is not a directory", dir)
	}
	return &ShaderWatcher{
		dir:      dir,
		programs: make(map[string]*metadata.CPUResource),
		pending:  make(map[string]programSource),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}, nil
}

func (sw *ShaderWatcher) readSources(name string) (programSource, error) {
	base := filepath.Join(sw.dir, filepath.FromSlash(name))
	vertex, err := os.ReadFile(base + VertexShaderExt)
	if err != nil {
		return programSource{}, err
	}
	fragment, err := os.ReadFile(base + FragmentShaderExt)
	if err != nil {
		return programSource{}, err
	}
	return programSource{vertex: string(vertex), fragment: string(fragment)}, nil
}

// LoadProgram reads <dir>/<name>.vert and <dir>/<name>.frag and builds a
// program resource from them. The resource is tracked for reloads.
func (sw *ShaderWatcher) LoadProgram(name string, attributes []metadata.ShaderAttributeBinding, uniforms []metadata.ShaderUniformDecl) (*metadata.CPUResource, error) {
	src, err := sw.readSources(name)
	if err != nil {
		return nil, err
	}
	program, err := metadata.NewProgram(name, &metadata.ProgramData{
		VertexSource:   src.vertex,
		FragmentSource: src.fragment,
		Attributes:     attributes,
		Uniforms:       uniforms,
	})
	if err != nil {
		return nil, err
	}

	sw.mutex.Lock()
	sw.programs[name] = program
	sw.mutex.Unlock()
	core.LogDebug("loaded program %q from %s", name, sw.dir)
	return program, nil
}

// Forget stops tracking a program, e.g. right before it is released.
func (sw *ShaderWatcher) Forget(name string) {
	sw.mutex.Lock()
	defer sw.mutex.Unlock()
	delete(sw.programs, name)
	delete(sw.pending, name)
}

// Start begins watching the shader directory and all sub-directories.
func (sw *ShaderWatcher) Start() error {
	if sw.isClosed {
		return errors.New("shader watcher already closed")
	}
	if sw.started {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	sw.fsnotify = watcher
	if err := sw.watchRecursive(sw.dir); err != nil {
		watcher.Close()
		return err
	}
	sw.started = true
	go sw.start()
	return nil
}

func (sw *ShaderWatcher) Close() error {
	if sw.isClosed {
		return nil
	}
	sw.isClosed = true
	if !sw.started {
		return nil
	}
	close(sw.done)
	<-sw.stopped
	return nil
}

func (sw *ShaderWatcher) start() {
	defer close(sw.stopped)
	for {
		select {
		case e, ok := <-sw.fsnotify.Events:
			if !ok {
				return
			}
			if e.Op&fsnotify.Create != 0 {
				if s, err := os.Stat(e.Name); err == nil && s.IsDir() {
					if err := sw.watchRecursive(e.Name); err != nil {
						core.LogWarn("failed to watch %s: %s", e.Name, err)
					}
					continue
				}
			}
			if e.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				sw.handleFileEvent(e.Name)
			}

		case err, ok := <-sw.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError(err.Error())

		case <-sw.done:
			sw.fsnotify.Close()
			return
		}
	}
}

// watchRecursive adds path and every directory below it to the watch list.
func (sw *ShaderWatcher) watchRecursive(path string) error {
	return filepath.Walk(path, func(walkPath string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			return sw.fsnotify.Add(walkPath)
		}
		return nil
	})
}

// programName maps a shader file to the name of the program it belongs to.
func (sw *ShaderWatcher) programName(path string) (string, bool) {
	ext := filepath.Ext(path)
	if ext != VertexShaderExt && ext != FragmentShaderExt {
		return "", false
	}
	rel, err := filepath.Rel(sw.dir, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return filepath.ToSlash(strings.TrimSuffix(rel, ext)), true
}

// Handle the creation or modification of a shader file
func (sw *ShaderWatcher) handleFileEvent(path string) {
	name, ok := sw.programName(path)
	if !ok {
		return
	}
	sw.mutex.Lock()
	_, tracked := sw.programs[name]
	sw.mutex.Unlock()
	if !tracked {
		return
	}

	// Editors often write the file in several steps; a half written pair is
	// caught again by the next event.
	src, err := sw.readSources(name)
	if err != nil {
		core.LogWarn("failed to reload program %q: %s", name, err)
		return
	}

	sw.mutex.Lock()
	defer sw.mutex.Unlock()
	if _, tracked := sw.programs[name]; tracked {
		sw.pending[name] = src
		core.LogDebug("program %q changed on disk", name)
	}
}

// Pending reports how many programs have reloaded sources waiting for Sync.
func (sw *ShaderWatcher) Pending() int {
	sw.mutex.Lock()
	defer sw.mutex.Unlock()
	return len(sw.pending)
}

// Sync applies queued source updates. Each updated program is marked dirty
// and rebuilt by the renderer on its next use. Sources that fail validation
// are logged and dropped; the program keeps its previous sources.
func (sw *ShaderWatcher) Sync() []*metadata.CPUResource {
	sw.mutex.Lock()
	names := make([]string, 0, len(sw.pending))
	for name := range sw.pending {
		names = append(names, name)
	}
	sort.Strings(names)

	var updated []*metadata.CPUResource
	for _, name := range names {
		src := sw.pending[name]
		delete(sw.pending, name)
		program := sw.programs[name]
		if program.Program.VertexSource == src.vertex && program.Program.FragmentSource == src.fragment {
			continue
		}
		if err := program.UpdateProgramSource(src.vertex, src.fragment); err != nil {
			core.LogError(err.Error())
			continue
		}
		core.LogInfo("reloaded program %q", name)
		updated = append(updated, program)
	}
	sw.mutex.Unlock()
	return updated
}

// Package manifest handles smalljs.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/chazu/smalljs/vm"
)

// FileName is the manifest file looked up by FindAndLoad.
const FileName = "smalljs.toml"

// Manifest represents a smalljs.toml project configuration.
type Manifest struct {
	Project Project      `toml:"project"`
	Engine  EngineConfig `toml:"engine"`
	Log     LogConfig    `toml:"log"`
	Store   StoreConfig  `toml:"store"`

	// Dir is the directory containing the smalljs.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name  string `toml:"name"`
	Entry string `toml:"entry"`
}

// EngineConfig sizes the engine. Zero values fall back to the engine defaults.
type EngineConfig struct {
	StackSize int   `toml:"stack-size"`
	HeapSize  int   `toml:"heap-size"`
	MaxSteps  int64 `toml:"max-steps"`
	Trace     bool  `toml:"trace"`
}

// LogConfig configures commonlog.
type LogConfig struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// StoreConfig locates the image store.
type StoreConfig struct {
	Path string `toml:"path"`
}

// Default returns the manifest used when no smalljs.toml is found.
func Default(dir string) *Manifest {
	m := &Manifest{Dir: dir}
	m.applyDefaults()
	return m
}

// Load parses a smalljs.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	if m.Engine.StackSize < 0 || m.Engine.HeapSize < 0 || m.Engine.MaxSteps < 0 {
		return nil, fmt.Errorf("%s: engine sizes must not be negative", path)
	}

	m.applyDefaults()
	return &m, nil
}

func (m *Manifest) applyDefaults() {
	if m.Project.Entry == "" {
		m.Project.Entry = "main.sjs"
	}
	if m.Engine.StackSize == 0 {
		m.Engine.StackSize = vm.DefaultStackSize
	}
	if m.Engine.HeapSize == 0 {
		m.Engine.HeapSize = vm.DefaultHeapSize
	}
	if m.Store.Path == "" {
		m.Store.Path = filepath.Join(".smalljs", "images.db")
	}
}

// FindAndLoad walks up from startDir to find a smalljs.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// EngineConfig returns the engine configuration.
func (m *Manifest) EngineConfig() vm.Config {
	return vm.Config{
		StackSize: m.Engine.StackSize,
		HeapSize:  m.Engine.HeapSize,
		MaxSteps:  m.Engine.MaxSteps,
		Trace:     m.Engine.Trace,
	}
}

// EntryPath returns the absolute path of the entry source file.
func (m *Manifest) EntryPath() string {
	return m.resolve(m.Project.Entry)
}

// StorePath returns the absolute path of the image store database.
func (m *Manifest) StorePath() string {
	return m.resolve(m.Store.Path)
}

// LogPath returns the absolute path of the log file, or "" for stderr.
func (m *Manifest) LogPath() string {
	if m.Log.File == "" {
		return ""
	}
	return m.resolve(m.Log.File)
}

func (m *Manifest) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(m.Dir, path)
}

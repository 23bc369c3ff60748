// Package loader populates the process table before the kernel boots.
package loader

import (
	"errors"
	"fmt"
	"os"

	"github.com/google/shlex"
	"gopkg.in/yaml.v3"
)

var (
	ErrEmptyManifest = errors.New("loader: manifest lists no processes")
	ErrEmptyCommand  = errors.New("loader: empty command")
	ErrUnknownImage  = errors.New("loader: unknown image")
)

// Entry is one process to start: its pid and the command line its main
// receives as argv.
type Entry struct {
	PID int32  `yaml:"pid"`
	Cmd string `yaml:"cmd"`
}

// Args splits the command line the way a shell would.
func (e Entry) Args() ([]string, error) {
	args, err := shlex.Split(e.Cmd)
	if err != nil {
		return nil, fmt.Errorf("loader: pid %d: %q: %w", e.PID, e.Cmd, err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("pid %d: %w", e.PID, ErrEmptyCommand)
	}
	return args, nil
}

// Manifest is the boot image: the processes present when the kernel starts.
// Table slots are filled in manifest order.
type Manifest struct {
	Processes []Entry `yaml:"processes"`
}

const defaultManifest = `
processes:
  - pid: 1
    cmd: sysproc
  - pid: 4
    cmd: idle
  - pid: 5
    cmd: pong
  - pid: 6
    cmd: ping 5 3
  - pid: 7
    cmd: hello "egos grass"
  - pid: 8
    cmd: spin
`

// Default returns the compiled-in manifest.
func Default() *Manifest {
	m, err := Parse([]byte(defaultManifest))
	if err != nil {
		panic(err)
	}
	return m
}

// Parse decodes a YAML manifest.
func Parse(b []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("loader: manifest: %w", err)
	}
	if len(m.Processes) == 0 {
		return nil, ErrEmptyManifest
	}
	return &m, nil
}

// ReadFile reads and decodes the manifest at path.
func ReadFile(path string) (*Manifest, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loader: %w", err)
	}
	return Parse(b)
}

package loader

import (
	"fmt"
	"strings"

	"egos/abi"
	"egos/hal"
	"egos/machine"
)

// Table is the kernel's slot population contract.
type Table interface {
	Install(pid int32) error
}

// Images registers a program to run as pid.
type Images interface {
	Load(pid int32, img machine.Image) error
}

// Memory is the MMU as the loader sees it.
type Memory interface {
	Switch(pid int32) error
	WriteAt(p []byte, addr uint32) (int, error)
}

// Loader installs manifest entries into a kernel and machine.
type Loader struct {
	Table  Table
	Images Images
	Memory Memory
	Lookup func(name string) (machine.Image, bool)
	Log    hal.Logger
}

// Load installs every entry in order. It stops at the first failure;
// entries before it stay installed.
func (l *Loader) Load(m *Manifest) error {
	if m == nil || len(m.Processes) == 0 {
		return ErrEmptyManifest
	}
	for _, e := range m.Processes {
		if err := l.install(e); err != nil {
			return err
		}
	}
	return nil
}

func (l *Loader) install(e Entry) error {
	args, err := e.Args()
	if err != nil {
		return err
	}
	img, ok := l.Lookup(args[0])
	if !ok {
		return fmt.Errorf("pid %d: %q: %w", e.PID, args[0], ErrUnknownImage)
	}
	argv, err := abi.EncodeArgs(args)
	if err != nil {
		return fmt.Errorf("loader: pid %d: %w", e.PID, err)
	}

	if err := l.Table.Install(e.PID); err != nil {
		return fmt.Errorf("loader: %w", err)
	}
	if err := l.Images.Load(e.PID, img); err != nil {
		return fmt.Errorf("loader: %w", err)
	}
	if err := l.Memory.Switch(e.PID); err != nil {
		return fmt.Errorf("loader: pid %d: %w", e.PID, err)
	}
	if _, err := l.Memory.WriteAt(argv, abi.AppsArg); err != nil {
		return fmt.Errorf("loader: pid %d: args: %w", e.PID, err)
	}

	if l.Log != nil {
		l.Log.WriteLineString(fmt.Sprintf("[INFO] loader: pid %d: %s", e.PID, strings.Join(args, " ")))
	}
	return nil
}

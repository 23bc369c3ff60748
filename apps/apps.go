// Package apps holds the application images the loader can start.
package apps

import (
	"sort"

	"egos/machine"
	"egos/ulib"
)

var registry = map[string]ulib.Main{
	"sysproc": sysproc,
	"idle":    idle,
	"hello":   hello,
	"ping":    ping,
	"pong":    pong,
	"spin":    spin,
}

// Lookup returns the image called name.
func Lookup(name string) (machine.Image, bool) {
	main, ok := registry[name]
	if !ok {
		return machine.Image{}, false
	}
	return ulib.Image(name, main), true
}

// Names lists the known images in order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

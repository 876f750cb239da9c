// ABOUTME: Backend selection for audio output devices
// ABOUTME: Resolves a backend name once and opens devices from it
package output

import (
	"fmt"
	"sort"
)

// Bindings is a resolved audio backend. It is created once with Load and
// handed to whatever needs to open devices.
type Bindings struct {
	Backend string
	newFunc func() Device
}

var backends = map[string]func() Device{
	"oto":       func() Device { return NewOto() },
	"malgo":     func() Device { return NewMalgo() },
	"portaudio": func() Device { return NewPortAudio() },
	"null":      func() Device { return NewNull() },
}

// Backends lists the backend names Load accepts.
func Backends() []string {
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Load resolves a backend by name.
func Load(backend string) (*Bindings, error) {
	fn, ok := backends[backend]
	if !ok {
		return nil, fmt.Errorf("%w: unknown backend %q (available: %v)", ErrBackendUnavailable, backend, Backends())
	}
	return &Bindings{Backend: backend, newFunc: fn}, nil
}

// NewBindings wraps a custom device constructor, e.g. a Memory device in
// tests.
func NewBindings(name string, newFunc func() Device) *Bindings {
	return &Bindings{Backend: name, newFunc: newFunc}
}

// OpenDevice creates and opens a device. On error nothing is left open.
func (b *Bindings) OpenDevice() (Device, error) {
	dev := b.newFunc()
	if err := dev.Open(); err != nil {
		dev.Close()
		return nil, fmt.Errorf("failed to open %s device: %w", b.Backend, err)
	}
	return dev, nil
}

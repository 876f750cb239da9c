// ABOUTME: Tests for the CLI session helpers
// ABOUTME: Covers TUI control handling against a renderer on a null device
package main

import (
	"bytes"
	"context"
	"log"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/LAGonauta/pcmrender/internal/ui"
	"github.com/LAGonauta/pcmrender/pkg/audio/output"
	"github.com/LAGonauta/pcmrender/pkg/renderer"
)

// syncBuffer is a log destination safe to read while logging continues.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func captureLog(t *testing.T) *syncBuffer {
	t.Helper()
	out := &syncBuffer{}
	log.SetOutput(out)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })
	return out
}

func newNullRenderer(t *testing.T) *renderer.Renderer {
	t.Helper()
	r, err := renderer.New(renderer.Config{
		Bindings: output.NewBindings("null", func() output.Device { return output.NewNull() }),
	})
	if err != nil {
		t.Fatalf("failed to create renderer: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

// runControls runs handleControls until the test ends.
func runControls(t *testing.T, r *renderer.Renderer) *ui.Controls {
	t.Helper()
	controls := ui.NewControls()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		handleControls(ctx, r, controls)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return controls
}

func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestHandleControlsTogglesPause(t *testing.T) {
	captureLog(t)
	r := newNullRenderer(t)
	if err := r.Run(); err != nil {
		t.Fatal(err)
	}
	controls := runControls(t, r)

	controls.Changes <- ui.ControlMsg{Action: ui.ActionPause}
	waitUntil(t, "pause", func() bool { return r.State() == renderer.StatePaused })

	controls.Changes <- ui.ControlMsg{Action: ui.ActionPause}
	waitUntil(t, "resume", func() bool { return r.State() == renderer.StateRunning })

	controls.Changes <- ui.ControlMsg{Action: ui.ActionVolume, Volume: -1500}
	waitUntil(t, "volume", func() bool { return r.Volume() == -1500 })
}

func TestHandleControlsLogsErrors(t *testing.T) {
	tests := []struct {
		name string
		msg  ui.ControlMsg
		want string
	}{
		{"resume on closed renderer", ui.ControlMsg{Action: ui.ActionPause}, "Pause/resume failed"},
		{"volume out of range", ui.ControlMsg{Action: ui.ActionVolume, Volume: 100}, "Volume change failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logs := captureLog(t)
			r := newNullRenderer(t)
			if err := r.Close(); err != nil {
				t.Fatal(err)
			}
			controls := runControls(t, r)

			controls.Changes <- tt.msg
			waitUntil(t, "error log", func() bool { return strings.Contains(logs.String(), tt.want) })
		})
	}
}

// ABOUTME: High-level PCM renderer API
// ABOUTME: Entry point for hosts that push decoded audio at an output device
// Package renderer plays PCM pushed by a media pipeline on a sound device.
//
// This is the main entry point for most library users, providing:
//   - Format negotiation against what the device can play
//   - Deliver for producer-paced PCM input
//   - Run, Pause and Stop transport control with a play clock
//   - Volume in millibels and a stored balance
//
// For lower-level control, see the mixer, playback and audio/output packages.
//
// Example:
//
//	r, err := renderer.New(renderer.Config{Backend: "malgo"})
//	err = r.SetFormat(2, 48000, 16, false)
//	err = r.Run()
//	for chunk := range chunks {
//	    r.Deliver(chunk)
//	}
//	r.EndOfStream()
package renderer

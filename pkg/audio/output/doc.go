// ABOUTME: Audio output package for playing audio
// ABOUTME: Provides the buffer-queue Device interface and its backends
// Package output provides buffer-queue audio devices.
//
// A Device owns a small set of buffers. The caller fills a buffer, submits
// it to the play queue, polls for processed buffers and unqueues them for
// reuse. Backends built on callback APIs (oto, malgo, PortAudio) share one
// queue implementation that their audio thread pulls from, applying the
// device gain as it goes.
//
// Backends:
//   - oto: any layout, u8/s16/float, one format per process
//   - malgo: any layout, u8/s16/s32/float, reinitialized on format change
//   - portaudio: build with -tags portaudio
//   - null: discards audio at the stream rate
//
// Example:
//
//	bindings, err := output.Load("malgo")
//	dev, err := bindings.OpenDevice()
//	ids, err := dev.AllocateBuffers(8)
//	err = dev.Submit(ids[0], pcm, output.TagFor(format), format.SampleRate)
//	dev.Play()
package output

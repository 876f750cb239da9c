// Package mixer bridges a push-based PCM producer and a pull-based
// consumer.
//
// The producer delivers interleaved buffers of any size with Receive and
// is paced by the consumer: each call returns once the consumer signals
// that it wants more, or after a bounded timeout. The consumer pulls a
// fixed number of frames per call with Mix and always receives a full
// buffer; when the producer falls behind, the tail is silence and the
// returned frame count says how much was real.
//
// Format changes go through SetFormat, which discards the queued samples
// of the old format before new ones can arrive. The current format is
// published through FormatState so the consumer can notice a change and
// rebuild whatever it derived from the old one.
package mixer

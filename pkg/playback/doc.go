// ABOUTME: Playback package
// ABOUTME: Output bus clock and gapless buffer scheduling with barge-in
// Package playback turns a stream of decoded response buffers into
// continuous audio.
//
// A Bus is the output graph: backends in pkg/audio/output pull frames from
// it and the frames rendered so far form the output clock. A Scheduler
// places each buffer at a cursor on that clock so consecutive buffers play
// without gaps or overlap, and Interrupt silences everything at once when
// the user starts talking over the model.
//
// Example:
//
//	bus := playback.NewBus(24000, nil)
//	sched := playback.NewScheduler(bus)
//	out := output.NewOto()
//	out.Open(bus.SampleRate(), 1, bus)
//	sched.Enqueue(buf)
package playback

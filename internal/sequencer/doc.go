// Package sequencer plays a script item by item. For every position it
// resolves audio from the cache or the remote synthesizer, plays it, and
// falls back to local speech when either step fails, while prefetching the
// positions ahead of the playhead. It also resolves a whole script for
// export without playing anything.
//
// Callbacks run on the sequencer's goroutines and must not call Start or
// Stop synchronously; run those from a separate goroutine instead.
package sequencer

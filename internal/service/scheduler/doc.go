// Package scheduler regenerates the note at a fixed cadence while the
// activation state is Sounding.
//
// The loop runs on its own goroutine and is the only caller of the playback
// driver. Ticks that come due while a note is still playing are skipped and
// counted, never queued, so a note longer than the interval degrades into
// back-to-back notes instead of a growing backlog.
package scheduler

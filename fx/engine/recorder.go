package engine

import "sync"

// Recorder is a pass-through that captures the signal while armed. It stops
// by itself once limit frames have been captured.
type Recorder struct {
	mu sync.Mutex

	armed   bool
	capped  bool
	limit   int
	l, r    []float64
	onLimit func()
}

// NewRecorder creates an idle recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Arm starts capturing up to limit frames, discarding any previous take.
// onLimit, if set, runs on its own goroutine when the limit is reached.
func (rec *Recorder) Arm(limit int, onLimit func()) {
	rec.mu.Lock()
	defer rec.mu.Unlock()

	rec.armed = true
	rec.capped = false
	rec.limit = limit
	rec.l, rec.r = nil, nil
	rec.onLimit = onLimit
}

// Disarm stops capturing and returns the captured frames.
func (rec *Recorder) Disarm() Buffer {
	rec.mu.Lock()
	defer rec.mu.Unlock()

	rec.armed = false
	out := Buffer{L: rec.l, R: rec.r}
	rec.l, rec.r = nil, nil

	return out
}

// Armed reports whether the recorder is capturing.
func (rec *Recorder) Armed() bool {
	rec.mu.Lock()
	defer rec.mu.Unlock()

	return rec.armed
}

// Capped reports whether the last take ended by hitting its limit.
func (rec *Recorder) Capped() bool {
	rec.mu.Lock()
	defer rec.mu.Unlock()

	return rec.capped
}

// Captured returns the number of frames captured in the current take.
func (rec *Recorder) Captured() int {
	rec.mu.Lock()
	defer rec.mu.Unlock()

	return len(rec.l)
}

func (rec *Recorder) Process(buf Buffer) {
	rec.mu.Lock()
	defer rec.mu.Unlock()

	if !rec.armed {
		return
	}

	n := min(buf.Frames(), rec.limit-len(rec.l))
	rec.l = append(rec.l, buf.L[:n]...)
	rec.r = append(rec.r, buf.R[:n]...)

	if len(rec.l) >= rec.limit {
		rec.armed = false
		rec.capped = true

		if rec.onLimit != nil {
			go rec.onLimit()
		}
	}
}

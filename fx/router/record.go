package router

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Snow-Parrot-Labs/PromptFX-sub000/fx/pcm"
)

// Recording is a finished take of the post-master signal.
type Recording struct {
	ID      uuid.UUID
	Started time.Time
	Clip    pcm.Clip
	// Capped is set when the take was stopped by the recording limit.
	Capped bool
}

type take struct {
	id       uuid.UUID
	started  time.Time
	channels int
}

// RecordingLimit returns the hard cap on one recording.
func (r *Router) RecordingLimit() time.Duration { return r.recordingLimit }

// StartRecording starts capturing the post-master signal and returns the
// take's id. A take that reaches the recording limit is stopped by the
// router and kept until StopRecording collects it.
func (r *Router) StartRecording() (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return uuid.Nil, ErrClosed
	}

	if r.take != nil {
		return uuid.Nil, ErrRecording
	}

	channels := 2
	if r.source != nil {
		channels = r.source.Channels()
	}

	t := &take{id: uuid.New(), started: time.Now(), channels: channels}
	limit := int(r.recordingLimit.Seconds() * r.ctx.SampleRate())

	r.take = t
	r.finished = nil
	r.path.recorder.Arm(limit, func() { r.limitReached(t) })

	r.log.Info("recording started", slog.String("id", t.id.String()), slog.Int("channels", channels))

	return t.id, nil
}

// Recording reports whether a take is being captured.
func (r *Router) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.take != nil
}

// RecordedDuration returns the length captured so far in the current take,
// or zero when no take is running.
func (r *Router) RecordedDuration() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.take == nil {
		return 0
	}

	frames := r.path.recorder.Captured()

	return time.Duration(float64(frames) / r.ctx.SampleRate() * float64(time.Second))
}

// StopRecording ends the current take, or returns the take the recording
// limit stopped.
func (r *Router) StopRecording() (Recording, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.take == nil {
		if r.finished == nil {
			return Recording{}, ErrNotRecording
		}

		rec := *r.finished
		r.finished = nil

		return rec, nil
	}

	return r.finishLocked()
}

func (r *Router) limitReached(t *take) {
	r.mu.Lock()

	if r.take != t {
		r.mu.Unlock()
		return
	}

	rec, err := r.finishLocked()
	if err == nil {
		r.finished = &rec
	}

	r.mu.Unlock()

	r.log.Warn("recording limit reached; recording stopped",
		slog.String("id", t.id.String()), slog.Duration("limit", r.recordingLimit))

	if err == nil && r.onLimit != nil {
		r.onLimit(rec)
	}
}

func (r *Router) finishLocked() (Recording, error) {
	t := r.take
	r.take = nil

	capped := r.path.recorder.Capped()

	clip, err := clipOf(r.path.recorder.Disarm(), r.ctx.SampleRate(), t.channels)
	if err != nil {
		return Recording{}, err
	}

	r.log.Info("recording stopped", slog.String("id", t.id.String()), slog.Duration("length", clip.Duration()))

	return Recording{ID: t.id, Started: t.started, Clip: clip, Capped: capped}, nil
}

package audio

import (
	"context"
	"time"
)

// FrameInterval is the wall-clock spacing real network peers expect
// between voice frames
const FrameInterval = 100 * time.Millisecond

// PlayPaced feeds pcm to emit one 160-sample frame at a time, paced to
// wall-clock deadlines computed from the start time (start + i*interval),
// so drift does not accumulate across a multi-second tone. A short final
// frame is zero-padded. Cancelling the context stops playback between
// frames.
func PlayPaced(ctx context.Context, pcm []int16, interval time.Duration, emit func([]int16) error) error {
	if interval <= 0 {
		interval = FrameInterval
	}

	start := time.Now()
	for i := 0; i*SamplesPerFrame < len(pcm); i++ {
		frame := make([]int16, SamplesPerFrame)
		copy(frame, pcm[i*SamplesPerFrame:])

		if err := emit(frame); err != nil {
			return err
		}

		deadline := start.Add(time.Duration(i+1) * interval)
		if err := sleepUntil(ctx, deadline); err != nil {
			return err
		}
	}

	return nil
}

func sleepUntil(ctx context.Context, deadline time.Time) error {
	remain := time.Until(deadline)
	if remain <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(remain)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

package engine

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-dsp/dsp/delay"
)

// MaxDelaySeconds is the longest delay time a Delay can hold.
const MaxDelaySeconds = 2.5

// Delay is a stereo feedback delay with its own wet/dry blend.
type Delay struct {
	Time     *Param // seconds
	Feedback *Param
	Mix      *Param

	sampleRate float64
	lines      [2]*delay.Line
}

// NewDelay creates a feedback delay. time is in seconds.
func NewDelay(c *Context, time, feedback, mix float64) (*Delay, error) {
	size := int(math.Ceil(MaxDelaySeconds*c.sampleRate)) + 4

	d := &Delay{
		Time:       c.NewParam(time, 1/c.sampleRate, MaxDelaySeconds),
		Feedback:   c.NewParam(feedback, 0, 0.99),
		Mix:        c.NewParam(mix, 0, 1),
		sampleRate: c.sampleRate,
	}

	for ch := range d.lines {
		line, err := delay.New(size)
		if err != nil {
			return nil, fmt.Errorf("engine: delay line: %w", err)
		}

		d.lines[ch] = line
	}

	return d, nil
}

func (d *Delay) Process(buf Buffer) {
	for i := range buf.L {
		samples := math.Max(1, d.Time.next()*d.sampleRate)
		fb := d.Feedback.next()
		mix := d.Mix.next()

		for ch, line := range d.lines {
			x := buf.Channel(ch)[i]
			y := line.ReadFractional(samples)
			line.Write(x + fb*y)
			buf.Channel(ch)[i] = (1-mix)*x + mix*y
		}
	}
}

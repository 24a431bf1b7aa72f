package engine

import (
	"fmt"

	"github.com/cwbudde/algo-dsp/dsp/effects"
	"github.com/cwbudde/algo-dsp/dsp/filter/biquad"
	"github.com/cwbudde/algo-dsp/dsp/filter/design"
)

// DistortionMode selects the shaping curve of a Distortion.
type DistortionMode uint8

const (
	SoftClip DistortionMode = iota
	HardClip
	Bitcrush
)

// Oversample returns the internal oversampling factor the mode runs at.
// Hard clipping produces stronger high harmonics and gets the higher rate.
func (m DistortionMode) Oversample() int {
	switch m {
	case SoftClip:
		return 2
	case HardClip:
		return 4
	default:
		return 1
	}
}

const (
	distortionMaxDrive = 20
	antiAliasOrder     = 4
)

// BitsFunc maps a distortion amount to a bit depth for the bitcrush mode.
type BitsFunc func(amount float64) int

// Distortion is a stereo waveshaper with soft and hard clipping curves run
// oversampled, and a bit crusher variant.
type Distortion struct {
	Amount *Param
	Mix    *Param // ignored in Bitcrush mode

	ctx    *Context
	mode   DistortionMode
	bits   BitsFunc
	factor int

	shapers  [2]*effects.Distortion
	crushers [2]*effects.BitCrusher
	aa       [2]*biquad.Chain
	prev     [2]float64

	curAmount float64
	curBits   int

	fault
}

// NewDistortion creates a distortion unit. bits converts the amount into a
// bit depth when the unit runs in Bitcrush mode.
func NewDistortion(c *Context, mode DistortionMode, amount, mix float64, bits BitsFunc) (*Distortion, error) {
	d := &Distortion{
		Amount:    c.NewParam(amount, 0, 1),
		Mix:       c.NewParam(mix, 0, 1),
		ctx:       c,
		bits:      bits,
		curAmount: -1,
		fault:     fault{ctx: c},
	}

	if err := d.configure(mode); err != nil {
		return nil, err
	}

	return d, nil
}

// SetMode switches the shaping curve without a ramp.
func (d *Distortion) SetMode(mode DistortionMode) error {
	d.ctx.mu.Lock()
	defer d.ctx.mu.Unlock()

	if mode == d.mode {
		return nil
	}

	return d.configure(mode)
}

// Mode returns the current shaping curve.
func (d *Distortion) Mode() DistortionMode {
	d.ctx.mu.Lock()
	defer d.ctx.mu.Unlock()

	return d.mode
}

// Bits returns the bit depth in use, or 0 outside Bitcrush mode.
func (d *Distortion) Bits() int {
	d.ctx.mu.Lock()
	defer d.ctx.mu.Unlock()

	if d.mode != Bitcrush {
		return 0
	}

	return d.curBits
}

func (d *Distortion) configure(mode DistortionMode) error {
	sr := d.ctx.sampleRate

	d.mode = mode
	d.factor = mode.Oversample()
	d.curAmount = -1
	d.curBits = 0
	d.prev = [2]float64{}

	if mode == Bitcrush {
		d.curAmount = d.Amount.value
		d.curBits = d.bitsFor(d.curAmount)
	}

	for ch := range 2 {
		d.shapers[ch], d.crushers[ch], d.aa[ch] = nil, nil, nil

		if mode == Bitcrush {
			bc, err := effects.NewBitCrusher(sr,
				effects.WithBitCrusherBitDepth(float64(d.curBits)),
				effects.WithBitCrusherMix(1),
			)
			if err != nil {
				return fmt.Errorf("engine: bit crusher: %w", err)
			}

			d.crushers[ch] = bc

			continue
		}

		curve := effects.DistortionModeSoftClip
		if mode == HardClip {
			curve = effects.DistortionModeHardClip
		}

		osRate := sr * float64(d.factor)

		shaper, err := effects.NewDistortion(osRate,
			effects.WithDistortionMode(curve),
			effects.WithDistortionDrive(driveFor(d.Amount.value)),
			effects.WithDistortionMix(1),
		)
		if err != nil {
			return fmt.Errorf("engine: waveshaper: %w", err)
		}

		d.shapers[ch] = shaper
		d.aa[ch] = biquad.NewChain(design.ButterworthLP(sr*0.45, antiAliasOrder, osRate))
	}

	return nil
}

func (d *Distortion) Process(buf Buffer) {
	amount := d.Amount.skip(0)

	if d.mode == Bitcrush {
		d.Amount.skip(buf.Frames())
		d.Mix.skip(buf.Frames())

		if amount != d.curAmount {
			d.curAmount = amount
			d.setBits(d.bitsFor(amount))
		}

		d.crushers[0].ProcessInPlace(buf.L)
		d.crushers[1].ProcessInPlace(buf.R)

		return
	}

	for i := range buf.L {
		amount = d.Amount.next()
		mix := d.Mix.next()

		if amount != d.curAmount {
			d.curAmount = amount
			for _, s := range d.shapers {
				d.note(s.SetDrive(driveFor(amount)))
			}
		}

		for ch := range 2 {
			x := buf.Channel(ch)[i]
			y := d.shapeOversampled(ch, x)
			buf.Channel(ch)[i] = (1-mix)*x + mix*y
		}
	}
}

// shapeOversampled interpolates x up by the mode's factor, shapes every
// sub-sample, low-pass filters the result and keeps the last sub-sample.
func (d *Distortion) shapeOversampled(ch int, x float64) float64 {
	prev := d.prev[ch]
	d.prev[ch] = x

	var y float64
	for k := 1; k <= d.factor; k++ {
		u := prev + (x-prev)*float64(k)/float64(d.factor)
		y = d.aa[ch].ProcessSample(d.shapers[ch].ProcessSample(u))
	}

	return y
}

// setBits moves both crushers to bits. A depth the crusher rejects leaves
// the previous one in place.
func (d *Distortion) setBits(bits int) {
	for _, bc := range d.crushers {
		if !d.note(bc.SetBitDepth(float64(bits))) {
			return
		}
	}

	d.curBits = bits
}

func (d *Distortion) bitsFor(amount float64) int {
	if d.bits == nil {
		return 8
	}

	return max(1, d.bits(amount))
}

func driveFor(amount float64) float64 {
	return 1 + amount*(distortionMaxDrive-1)
}

// Package config loads the engine settings from a JSON file.
//
// Every option is optional in the file. Missing options are filled with
// defaults before validation, so a missing or empty file yields a working
// configuration.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math/bits"
	"os"
	"time"

	"github.com/Snow-Parrot-Labs/PromptFX-sub000/internal/logging"
)

// EnvPath names the environment variable holding the config file path.
const EnvPath = "PROMPTFX_CONFIG"

// DefaultPath is used when neither a flag nor EnvPath names a file.
const DefaultPath = "promptfx.json"

type OptionError struct {
	Option  string
	Message string
}

func NewOptionError(option string, message string) OptionError {
	return OptionError{Option: option, Message: message}
}

func (e OptionError) Error() string {
	return "error while configuring option " + e.Option + ": " + e.Message
}

type AudioSettings struct {
	SampleRateHz *int `json:"sampleRateHz"`
	BlockSize    *int `json:"blockSize"`
}

func (s *AudioSettings) init() {
	if s.SampleRateHz == nil {
		v := 48000
		s.SampleRateHz = &v
	}

	if s.BlockSize == nil {
		v := 128
		s.BlockSize = &v
	}
}

func (s *AudioSettings) validate() []error {
	var errs []error

	if *s.SampleRateHz < 8000 || *s.SampleRateHz > 192000 {
		errs = append(errs, NewOptionError("audio.sampleRateHz", "invalid value. must be between 8000 and 192000"))
	}

	if *s.BlockSize < 1 || *s.BlockSize > 8192 {
		errs = append(errs, NewOptionError("audio.blockSize", "invalid value. must be between 1 and 8192"))
	}

	return errs
}

type AutomationSettings struct {
	RampMs *float64 `json:"rampMs"`
}

func (s *AutomationSettings) init() {
	if s.RampMs == nil {
		v := 20.0
		s.RampMs = &v
	}
}

func (s *AutomationSettings) validate() []error {
	if *s.RampMs <= 0 {
		return []error{NewOptionError("automation.rampMs", "invalid value (must be greater than 0)")}
	}

	return nil
}

// Ramp is the parameter glide time.
func (s *AutomationSettings) Ramp() time.Duration {
	return millis(*s.RampMs)
}

type RouterSettings struct {
	CrossfadeMs         *float64 `json:"crossfadeMs"`
	RecordingLimitSec   *float64 `json:"recordingLimitSec"`
	MeterIntervalMs     *float64 `json:"meterIntervalMs"`
	FFTSize             *int     `json:"fftSize"`
	SpectrumBands       *int     `json:"spectrumBands"`
	SpectrumSmoothing   *float64 `json:"spectrumSmoothing"`
	ExportTailSec       *float64 `json:"exportTailSec"`
	DefaultInputDevice  *string  `json:"defaultInputDevice"`
	DefaultOutputDevice *string  `json:"defaultOutputDevice"`
}

func (s *RouterSettings) init() {
	if s.CrossfadeMs == nil {
		v := 10.0
		s.CrossfadeMs = &v
	}

	if s.RecordingLimitSec == nil {
		v := 600.0
		s.RecordingLimitSec = &v
	}

	if s.MeterIntervalMs == nil {
		v := 50.0
		s.MeterIntervalMs = &v
	}

	if s.FFTSize == nil {
		v := 2048
		s.FFTSize = &v
	}

	if s.SpectrumBands == nil {
		v := 32
		s.SpectrumBands = &v
	}

	if s.SpectrumSmoothing == nil {
		v := 0.8
		s.SpectrumSmoothing = &v
	}

	if s.ExportTailSec == nil {
		v := 2.0
		s.ExportTailSec = &v
	}

	if s.DefaultInputDevice == nil {
		v := ""
		s.DefaultInputDevice = &v
	}

	if s.DefaultOutputDevice == nil {
		v := ""
		s.DefaultOutputDevice = &v
	}
}

func (s *RouterSettings) validate() []error {
	var errs []error

	if *s.CrossfadeMs <= 0 {
		errs = append(errs, NewOptionError("router.crossfadeMs", "invalid value (must be greater than 0)"))
	}

	if *s.RecordingLimitSec <= 0 {
		errs = append(errs, NewOptionError("router.recordingLimitSec", "invalid value (must be greater than 0)"))
	}

	if *s.MeterIntervalMs <= 0 {
		errs = append(errs, NewOptionError("router.meterIntervalMs", "invalid value (must be greater than 0)"))
	}

	if n := *s.FFTSize; n < 32 || n > 32768 || bits.OnesCount(uint(n)) != 1 {
		errs = append(errs, NewOptionError("router.fftSize", fmt.Sprintf("invalid value %d. must be a power of two between 32 and 32768", n)))
	}

	if *s.SpectrumBands < 1 || *s.SpectrumBands > *s.FFTSize/2 {
		errs = append(errs, NewOptionError("router.spectrumBands", "invalid value. must be between 1 and half the fft size"))
	}

	if *s.SpectrumSmoothing < 0 || *s.SpectrumSmoothing >= 1 {
		errs = append(errs, NewOptionError("router.spectrumSmoothing", "invalid value. must be in [0, 1)"))
	}

	if *s.ExportTailSec < 0 {
		errs = append(errs, NewOptionError("router.exportTailSec", "invalid value. minimum of 0"))
	}

	return errs
}

func (s *RouterSettings) Crossfade() time.Duration { return millis(*s.CrossfadeMs) }

func (s *RouterSettings) RecordingLimit() time.Duration { return seconds(*s.RecordingLimitSec) }

func (s *RouterSettings) MeterInterval() time.Duration { return millis(*s.MeterIntervalMs) }

func (s *RouterSettings) ExportTail() time.Duration { return seconds(*s.ExportTailSec) }

type LogSettings struct {
	Format *logging.Format `json:"format"`
	Level  *logging.Level  `json:"level"`
	Output *string         `json:"output"`
}

func (s *LogSettings) init() {
	if s.Format == nil {
		v := logging.FormatPretty
		s.Format = &v
	}

	if s.Level == nil {
		v := logging.LevelInfo
		s.Level = &v
	}

	if s.Output == nil {
		v := "stderr"
		s.Output = &v
	}
}

func (s *LogSettings) validate() []error {
	var errs []error

	switch *s.Format {
	case logging.FormatPretty, logging.FormatJSON:
	default:
		errs = append(errs, NewOptionError("logging.format", fmt.Sprintf("invalid handler type \"%s\"", string(*s.Format))))
	}

	if _, err := logging.ParseLevel(*s.Level); err != nil {
		errs = append(errs, NewOptionError("logging.level", err.Error()))
	}

	return errs
}

type Settings struct {
	Audio      *AudioSettings      `json:"audio"`
	Automation *AutomationSettings `json:"automation"`
	Router     *RouterSettings     `json:"router"`
	Logging    *LogSettings        `json:"logging"`
}

func (s *Settings) init() {
	if s.Audio == nil {
		s.Audio = &AudioSettings{}
	}
	s.Audio.init()

	if s.Automation == nil {
		s.Automation = &AutomationSettings{}
	}
	s.Automation.init()

	if s.Router == nil {
		s.Router = &RouterSettings{}
	}
	s.Router.init()

	if s.Logging == nil {
		s.Logging = &LogSettings{}
	}
	s.Logging.init()
}

func (s *Settings) validate() []error {
	var errs []error

	errs = append(errs, s.Audio.validate()...)
	errs = append(errs, s.Automation.validate()...)
	errs = append(errs, s.Router.validate()...)
	errs = append(errs, s.Logging.validate()...)

	return errs
}

// Default returns the settings used when no file is present.
func Default() Settings {
	var s Settings
	s.init()

	return s
}

// Parse decodes settings from JSON, fills defaults and validates. All
// invalid options are reported together.
func Parse(data []byte) (Settings, error) {
	var s Settings

	if err := json.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config: %w", err)
	}

	s.init()

	if errs := s.validate(); len(errs) > 0 {
		return Settings{}, errors.Join(errs...)
	}

	return s, nil
}

// Load reads the settings file at path. An empty path falls back to
// EnvPath and then DefaultPath; a missing file is an error only when it was
// named explicitly.
func Load(path string) (Settings, error) {
	explicit := path != ""

	if !explicit {
		path = DefaultPath
		if opt, ok := os.LookupEnv(EnvPath); ok && opt != "" {
			path, explicit = opt, true
		}
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) && !explicit {
		return Default(), nil
	}

	if err != nil {
		return Settings{}, fmt.Errorf("failed to open config file at %s: %w", path, err)
	}

	s, err := Parse(data)
	if err != nil {
		return Settings{}, fmt.Errorf("config file at %s: %w", path, err)
	}

	return s, nil
}

func millis(v float64) time.Duration {
	return time.Duration(v * float64(time.Millisecond))
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Snow-Parrot-Labs/PromptFX-sub000/internal/logging"
)

func TestDefaults(t *testing.T) {
	t.Parallel()

	s := Default()

	assert.Equal(t, 48000, *s.Audio.SampleRateHz)
	assert.Equal(t, 128, *s.Audio.BlockSize)
	assert.Equal(t, 20*time.Millisecond, s.Automation.Ramp())
	assert.Equal(t, 10*time.Millisecond, s.Router.Crossfade())
	assert.Equal(t, 10*time.Minute, s.Router.RecordingLimit())
	assert.Equal(t, 50*time.Millisecond, s.Router.MeterInterval())
	assert.Equal(t, 2*time.Second, s.Router.ExportTail())
	assert.Equal(t, 2048, *s.Router.FFTSize)
	assert.Equal(t, logging.FormatPretty, *s.Logging.Format)
	assert.Equal(t, logging.LevelInfo, *s.Logging.Level)
	assert.Empty(t, s.validate())
}

func TestParseMergesWithDefaults(t *testing.T) {
	t.Parallel()

	s, err := Parse([]byte(`{
		"audio": {"sampleRateHz": 44100},
		"automation": {"rampMs": 5},
		"router": {"crossfadeMs": 2.5, "fftSize": 4096},
		"logging": {"format": "json", "level": "debug"}
	}`))
	require.NoError(t, err)

	assert.Equal(t, 44100, *s.Audio.SampleRateHz)
	assert.Equal(t, 128, *s.Audio.BlockSize)
	assert.Equal(t, 5*time.Millisecond, s.Automation.Ramp())
	assert.Equal(t, 2500*time.Microsecond, s.Router.Crossfade())
	assert.Equal(t, 4096, *s.Router.FFTSize)
	assert.Equal(t, 32, *s.Router.SpectrumBands)
	assert.Equal(t, logging.FormatJSON, *s.Logging.Format)
	assert.Equal(t, "stderr", *s.Logging.Output)
}

func TestParseReportsEveryInvalidOption(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte(`{
		"audio": {"blockSize": 0},
		"automation": {"rampMs": 0},
		"router": {"fftSize": 1000, "recordingLimitSec": 0},
		"logging": {"format": "xml", "level": "loud"}
	}`))
	require.Error(t, err)

	var optErr OptionError
	require.True(t, errors.As(err, &optErr))
	assert.Equal(t, "audio.blockSize", optErr.Option)

	for _, opt := range []string{"audio.blockSize", "automation.rampMs", "router.fftSize", "router.recordingLimitSec", "logging.format", "logging.level"} {
		assert.Contains(t, err.Error(), "error while configuring option "+opt)
	}

	_, err = Parse([]byte(`{"audio": `))
	require.ErrorContains(t, err, "failed to parse config")
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fx.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"router": {"spectrumBands": 8}}`), 0o600))

	t.Setenv(EnvPath, "")

	s, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 32, *s.Router.SpectrumBands, "missing default file falls back to defaults")

	s, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8, *s.Router.SpectrumBands)

	t.Setenv(EnvPath, path)

	s, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, 8, *s.Router.SpectrumBands)

	_, err = Load(filepath.Join(dir, "missing.json"))
	require.ErrorContains(t, err, "failed to open config file")

	t.Setenv(EnvPath, filepath.Join(dir, "missing.json"))

	_, err = Load("")
	require.Error(t, err, "a file named through the environment must exist")
}

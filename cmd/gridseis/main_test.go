package main

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gridseis"
	"gridseis/Acquisition"
	"gridseis/Actuator"
)

func TestMakeFileExist(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	name, err := makeFileExist(dir, "x.yaml")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "x.yaml"), name)
	info, err := os.Stat(name)
	require.NoError(t, err)
	assert.Equal(t, int64(0), info.Size())

	// 已存在的文件不会被清空
	require.NoError(t, os.WriteFile(name, []byte("keep"), 0664))
	_, err = makeFileExist(dir, "x.yaml")
	require.NoError(t, err)
	data, _ := os.ReadFile(name)
	assert.Equal(t, "keep", string(data))
}

func TestSetupViper_WritesDefaults(t *testing.T) {
	dir := t.TempDir()
	v := viper.New()
	require.NoError(t, setupViper(v, dir))

	data, err := os.ReadFile(filepath.Join(dir, "config.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "nominal_hz: 50")
	assert.Contains(t, string(data), "cycle_gap: 100ms")

	cfg, err := loadConfig(v)
	require.NoError(t, err)
	assert.Equal(t, gridseis.DefaultConfig(), cfg)
}

func TestLoadConfig_Overrides(t *testing.T) {
	dir := t.TempDir()
	yml := `
acquisition:
  source: serial
serial:
  port: /dev/ttyACM3
display:
  half_range_hz: 0.2
loop:
  cycle_gap: 250ms
actuator:
  driver: maestro
  channel: 2
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yml), 0664))
	v := viper.New()
	require.NoError(t, setupViper(v, dir))
	cfg, err := loadConfig(v)
	require.NoError(t, err)

	assert.Equal(t, gridseis.SourceSerial, cfg.Acquisition.Source)
	assert.Equal(t, "/dev/ttyACM3", cfg.Serial.Port)
	assert.Equal(t, 0.2, cfg.Display.HalfRangeHz)
	assert.Equal(t, 250*time.Millisecond, cfg.Loop.CycleGap)
	assert.Equal(t, gridseis.DriverMaestro, cfg.Actuator.Driver)
	assert.Equal(t, 2, cfg.Actuator.Channel)
	// 未出现的键保持默认值
	assert.Equal(t, 50.0, cfg.Estimator.NominalHz)
	assert.Equal(t, 115200, cfg.Serial.Baud)
}

func TestLoadConfig_Invalid(t *testing.T) {
	dir := t.TempDir()
	yml := "acquisition:\n  window_length: 512\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yml), 0664))
	v := viper.New()
	require.NoError(t, setupViper(v, dir))
	_, err := loadConfig(v)
	assert.ErrorIs(t, err, gridseis.ErrWindowDuration)
}

func TestStartLogger(t *testing.T) {
	cfg := gridseis.DefaultConfig()
	cfg.Logging.Dir = t.TempDir()
	logger, name, err := startLogger(cfg)
	require.NoError(t, err)
	logger.Printf("hello")

	data, err := os.ReadFile(name)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
}

func TestBuildSourceAndActuator(t *testing.T) {
	logger := log.New(io.Discard, "", 0)
	cfg := gridseis.DefaultConfig()

	src, err := buildSource(cfg, logger)
	require.NoError(t, err)
	assert.IsType(t, &Acquisition.ToneSource{}, src)
	require.NoError(t, src.Close())

	act, err := buildActuator(cfg, logger)
	require.NoError(t, err)
	assert.IsType(t, &Actuator.Dummy{}, act)

	cfg.Acquisition.Source = gridseis.SourceADC
	_, err = buildSource(cfg, logger)
	assert.ErrorIs(t, err, gridseis.ErrSourceUnavailable)

	cfg.Acquisition.Source = "radio"
	_, err = buildSource(cfg, logger)
	assert.ErrorIs(t, err, gridseis.ErrUnknownSource)

	cfg.Actuator.Driver = "stepper"
	_, err = buildActuator(cfg, logger)
	assert.ErrorIs(t, err, gridseis.ErrUnknownDriver)
}

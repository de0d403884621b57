package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"

	"github.com/davecgh/go-spew/spew"
	"github.com/oklog/ulid/v2"
	"github.com/spf13/viper"
	"github.com/tarm/serial"
	"go.bug.st/serial/enumerator"

	"gridseis"
	"gridseis/Acquisition"
	"gridseis/Actuator"
)

var version = "0.3.0"
var githash = "githash not computed"

func main() {
	// 1. 解析命令行参数
	configDir := flag.String("config", "", "directory holding config.yaml (default $HOME/.gridseis)")
	source := flag.String("source", "", "acquisition source: tone, serial, audio or wav")
	driver := flag.String("actuator", "", "actuator driver: none, maestro or pca9685")
	wavFile := flag.String("file", "", "replay a wav file (implies -source wav)")
	record := flag.String("record", "", "record every acquired window to this wav file")
	debugCSV := flag.String("debug-csv", "", "write per-cycle I/Q/phase values to this csv file")
	noSweep := flag.Bool("no-sweep", false, "skip the startup dial sweep")
	listPorts := flag.Bool("list", false, "list serial ports and quit")
	verbose := flag.Bool("verbose", false, "verbose logging")
	printVersion := flag.Bool("version", false, "print version and quit")
	flag.Parse()

	if *printVersion {
		fmt.Printf("This is GridSeis version %s (git commit %s)\n", version, githash)
		fmt.Printf("Built on go version %s\n", runtime.Version())
		os.Exit(0)
	}
	if *listPorts {
		if err := printPorts(os.Stdout); err != nil {
			log.Fatalf("Failed to list serial ports: %v", err)
		}
		os.Exit(0)
	}

	// 2. 读取配置
	dir := *configDir
	if dir == "" {
		dir = filepath.Join("$HOME", ".gridseis")
	}
	v := viper.New()
	if err := setupViper(v, dir); err != nil {
		log.Fatalf("Config failed: %v", err)
	}
	cfg, err := loadConfig(v)
	if err != nil {
		log.Fatalf("Config failed: %v", err)
	}
	if *source != "" {
		cfg.Acquisition.Source = *source
	}
	if *wavFile != "" {
		cfg.Acquisition.Source = gridseis.SourceWav
		cfg.Wav.File = *wavFile
	}
	if *driver != "" {
		cfg.Actuator.Driver = *driver
	}
	if *record != "" {
		cfg.Record.WavFile = *record
	}
	if *debugCSV != "" {
		cfg.Record.DebugCSV = *debugCSV
	}
	if *noSweep {
		cfg.Sweep.Enabled = false
	}
	if *verbose {
		cfg.Logging.Verbose = true
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	// 3. 日志
	logger, logname, err := startLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to start logger: %v", err)
	}
	runID := ulid.Make()
	banner := fmt.Sprintf("GridSeis - Grid Frequency Monitor %s (run %s)", version, runID)
	logger.Printf("%s", banner)
	logger.Printf("%s", strings.Repeat("=", len(banner)))
	logger.Printf("Logging to %s", logname)
	if cfg.Logging.Verbose {
		logger.Printf("Effective config:\n%s", spew.Sdump(cfg))
	}

	// 4. 组装并运行
	if err := run(cfg, logger); err != nil {
		logger.Printf("Exited with error: %v", err)
		os.Exit(1)
	}
}

// run 组装各个组件并运行测量循环，直到收到退出信号或数据源结束
func run(cfg *gridseis.Config, logger *log.Logger) error {
	src, err := buildSource(cfg, logger)
	if err != nil {
		return err
	}
	act, err := buildActuator(cfg, logger)
	if err != nil {
		src.Close()
		return err
	}
	out, err := openTelemetry(cfg)
	if err != nil {
		src.Close()
		act.Close()
		return err
	}
	defer out.Close()

	monitor, err := gridseis.NewMonitor(cfg, src, act, out, logger)
	if err != nil {
		src.Close()
		act.Close()
		return err
	}
	defer func() {
		if err := monitor.Close(); err != nil {
			logger.Printf("Warning: close failed: %v", err)
		}
	}()

	if cfg.Record.WavFile != "" {
		rec, err := Acquisition.NewWavRecorder(cfg.Record.WavFile, int(cfg.Acquisition.SampleRate), cfg.Estimator.HalfScale)
		if err != nil {
			return fmt.Errorf("failed to create wav file: %w", err)
		}
		monitor.SetRecorder(rec)
		logger.Printf("Recording windows to %s", cfg.Record.WavFile)
	}
	if cfg.Record.DebugCSV != "" {
		dbg, err := gridseis.NewCsvCycleDebugger(cfg.Record.DebugCSV)
		if err != nil {
			return err
		}
		monitor.SetDebugger(dbg)
		logger.Printf("Writing cycle debug data to %s", cfg.Record.DebugCSV)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigChan:
			logger.Printf("Shutting down...")
			cancel()
		case <-ctx.Done():
		}
	}()

	monitor.LogBounds()
	if err := monitor.Sweep(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	err = monitor.Run(ctx)
	logger.Printf("Stopped after %d cycles, %d acquisition faults", monitor.Cycles(), monitor.Faults())
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// buildSource 按配置创建采集源
func buildSource(cfg *gridseis.Config, logger *log.Logger) (gridseis.Source, error) {
	fs := cfg.Acquisition.SampleRate
	half := cfg.Estimator.HalfScale
	switch cfg.Acquisition.Source {
	case gridseis.SourceTone:
		logger.Printf("Mode: SYNTHETIC (%.3f Hz tone)", cfg.Tone.FrequencyHz)
		return Acquisition.NewToneSource(Acquisition.ToneConfig{
			SampleRate:  fs,
			FrequencyHz: cfg.Tone.FrequencyHz,
			Amplitude:   cfg.Tone.Amplitude,
			NoiseStdDev: cfg.Tone.NoiseStdDev,
			HalfScale:   half,
			Quantize:    cfg.Tone.Quantize,
			Realtime:    cfg.Tone.Realtime,
			Seed:        cfg.Tone.Seed,
		}), nil
	case gridseis.SourceSerial:
		logger.Printf("Mode: SERIAL ADC (%s @ %d)", cfg.Serial.Port, cfg.Serial.Baud)
		return Acquisition.OpenSerialSource(Acquisition.SerialConfig{
			Port:      cfg.Serial.Port,
			Baud:      cfg.Serial.Baud,
			HalfScale: half,
		})
	case gridseis.SourceAudio:
		logger.Printf("Mode: AUDIO (%d Hz capture)", cfg.Audio.CaptureRate)
		as, err := Acquisition.NewAudioSource(Acquisition.AudioConfig{
			DeviceName:  cfg.Audio.Device,
			CaptureRate: cfg.Audio.CaptureRate,
			SampleRate:  fs,
			WindowSize:  cfg.Acquisition.WindowLength,
			FilterOrder: cfg.Audio.FilterOrder,
			HalfScale:   half,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to init audio capture: %w", err)
		}
		if err := as.Start(); err != nil {
			as.Close()
			return nil, fmt.Errorf("failed to start audio capture: %w", err)
		}
		return as, nil
	case gridseis.SourceWav:
		ws, err := Acquisition.OpenWavSource(Acquisition.WavConfig{
			File:        cfg.Wav.File,
			SampleRate:  fs,
			HalfScale:   half,
			FilterOrder: cfg.Audio.FilterOrder,
			Realtime:    cfg.Wav.Realtime,
		})
		if err != nil {
			return nil, err
		}
		logger.Printf("Mode: REPLAY (%s, %dHz)", cfg.Wav.File, ws.FileSampleRate())
		return ws, nil
	case gridseis.SourceADC:
		return nil, fmt.Errorf("%w: %q needs the firmware build", gridseis.ErrSourceUnavailable, cfg.Acquisition.Source)
	}
	return nil, fmt.Errorf("%w: %q", gridseis.ErrUnknownSource, cfg.Acquisition.Source)
}

// buildActuator 按配置创建舵机驱动
func buildActuator(cfg *gridseis.Config, logger *log.Logger) (gridseis.Actuator, error) {
	pulse := Actuator.PulseConfig{MinUs: cfg.Actuator.PulseMinUs, MaxUs: cfg.Actuator.PulseMaxUs}
	switch cfg.Actuator.Driver {
	case gridseis.DriverNone:
		var servoLog *log.Logger
		if cfg.Logging.Verbose {
			servoLog = logger
		}
		return Actuator.NewDummy(servoLog, 16), nil
	case gridseis.DriverMaestro:
		logger.Printf("Servo: Maestro %s channel %d", cfg.Actuator.Port, cfg.Actuator.Channel)
		return Actuator.OpenMaestro(Actuator.MaestroConfig{
			Port:    cfg.Actuator.Port,
			Baud:    cfg.Actuator.Baud,
			Channel: cfg.Actuator.Channel,
			Pulse:   pulse,
		})
	case gridseis.DriverPCA9685:
		logger.Printf("Servo: PCA9685 0x%02x channel %d", cfg.Actuator.I2CAddr, cfg.Actuator.Channel)
		return Actuator.OpenPCA9685(Actuator.PCA9685Config{
			Bus:     cfg.Actuator.I2CBus,
			Addr:    cfg.Actuator.I2CAddr,
			Channel: cfg.Actuator.Channel,
			Pulse:   pulse,
		})
	}
	return nil, fmt.Errorf("%w: %q", gridseis.ErrUnknownDriver, cfg.Actuator.Driver)
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// openTelemetry 遥测写到串口或 stdout
func openTelemetry(cfg *gridseis.Config) (io.WriteCloser, error) {
	if cfg.Telemetry.Port == "" {
		return nopWriteCloser{os.Stdout}, nil
	}
	p, err := serial.OpenPort(&serial.Config{Name: cfg.Telemetry.Port, Baud: cfg.Telemetry.Baud})
	if err != nil {
		return nil, fmt.Errorf("failed to open telemetry port %s: %w", cfg.Telemetry.Port, err)
	}
	return p, nil
}

// printPorts 列出串口，USB 设备附带 VID/PID
func printPorts(w io.Writer) error {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Fprintln(w, "No serial ports found.")
		return nil
	}
	for _, p := range ports {
		if p.IsUSB {
			fmt.Fprintf(w, "%s  USB %s:%s  %s  %s\n", p.Name, p.VID, p.PID, p.SerialNumber, p.Product)
		} else {
			fmt.Fprintf(w, "%s\n", p.Name)
		}
	}
	return nil
}

package gridseis

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	ErrInvalidSampleRate = errors.New("sample rate must be positive")
	ErrInvalidWindow     = errors.New("window length must be positive")
	ErrWindowDuration    = errors.New("window length must equal sample rate (one-second window)")
	ErrInvalidNominal    = errors.New("nominal frequency must be a positive whole number of cycles per window below Nyquist")
	ErrInvalidHalfRange  = errors.New("half range must be positive")
	ErrInvalidHalfScale  = errors.New("half scale must be positive")
	ErrInvalidAlpha      = errors.New("smoothing alpha must be in (0, 1]")
	ErrInvalidAngleRange = errors.New("actuator angle range is invalid")
	ErrUnknownSource     = errors.New("unknown acquisition source")
	ErrSourceUnavailable = errors.New("acquisition source not available in this build")
	ErrUnknownDriver     = errors.New("unknown actuator driver")
)

// 采集源
const (
	SourceTone   = "tone"
	SourceSerial = "serial"
	SourceAudio  = "audio"
	SourceWav    = "wav"
	SourceADC    = "adc" // 片上 ADC，只有固件版本可用
)

// 执行器驱动
const (
	DriverNone    = "none"
	DriverMaestro = "maestro"
	DriverPCA9685 = "pca9685"
)

// Config 集中管理测量链路的所有可调参数
type Config struct {
	// --- 频率估计 ---
	Estimator struct {
		NominalHz float64 `mapstructure:"nominal_hz" yaml:"nominal_hz"` // 电网标称频率 (50 或 60)
		HalfScale float64 `mapstructure:"half_scale" yaml:"half_scale"` // ADC 半量程，用于幅度归一化 (12-bit ADC 为 2048)
	} `mapstructure:"estimator" yaml:"estimator"`

	// --- 采集 ---
	Acquisition struct {
		Source       string  `mapstructure:"source" yaml:"source"`               // tone / serial / audio / wav / adc
		SampleRate   float64 `mapstructure:"sample_rate" yaml:"sample_rate"`     // 采样率 (Hz)
		WindowLength int     `mapstructure:"window_length" yaml:"window_length"` // 每个窗口的采样点数，必须等于采样率
	} `mapstructure:"acquisition" yaml:"acquisition"`

	// 合成信号，没有硬件时使用
	Tone struct {
		FrequencyHz float64 `mapstructure:"frequency_hz" yaml:"frequency_hz"`
		Amplitude   float64 `mapstructure:"amplitude" yaml:"amplitude"` // ADC 计数
		NoiseStdDev float64 `mapstructure:"noise_std" yaml:"noise_std"` // 高斯噪声标准差 (ADC 计数)
		Quantize    bool    `mapstructure:"quantize" yaml:"quantize"`   // 模拟 ADC 量化与削顶
		Realtime    bool    `mapstructure:"realtime" yaml:"realtime"`   // 按真实时间节奏产生窗口
		Seed        uint64  `mapstructure:"seed" yaml:"seed"`
	} `mapstructure:"tone" yaml:"tone"`

	// 串口 ADC，每行一个十进制读数
	Serial struct {
		Port string `mapstructure:"port" yaml:"port"`
		Baud int    `mapstructure:"baud" yaml:"baud"`
	} `mapstructure:"serial" yaml:"serial"`

	// 声卡采集，降采样到 SampleRate
	Audio struct {
		Device      string `mapstructure:"device" yaml:"device"`             // 设备名子串，空为默认设备
		CaptureRate int    `mapstructure:"capture_rate" yaml:"capture_rate"` // 必须是 SampleRate 的整数倍
		FilterOrder int    `mapstructure:"filter_order" yaml:"filter_order"` // 抗混叠滤波器阶数 (偶数)
	} `mapstructure:"audio" yaml:"audio"`

	// WAV 回放
	Wav struct {
		File     string `mapstructure:"file" yaml:"file"`
		Realtime bool   `mapstructure:"realtime" yaml:"realtime"`
	} `mapstructure:"wav" yaml:"wav"`

	// --- 表盘 ---
	Display struct {
		HalfRangeHz    float64 `mapstructure:"half_range_hz" yaml:"half_range_hz"`     // 满偏频率偏差
		SmoothingAlpha float64 `mapstructure:"smoothing_alpha" yaml:"smoothing_alpha"` // 日志用平滑频率的 EMA 系数
	} `mapstructure:"display" yaml:"display"`

	// --- 执行器 ---
	Actuator struct {
		Driver     string  `mapstructure:"driver" yaml:"driver"` // none / maestro / pca9685
		CenterDeg  float64 `mapstructure:"center_deg" yaml:"center_deg"`
		SwingDeg   float64 `mapstructure:"swing_deg" yaml:"swing_deg"`
		MinAngle   float64 `mapstructure:"min_angle" yaml:"min_angle"`
		MaxAngle   float64 `mapstructure:"max_angle" yaml:"max_angle"`
		PulseMinUs float64 `mapstructure:"pulse_min_us" yaml:"pulse_min_us"` // 0° 对应脉宽
		PulseMaxUs float64 `mapstructure:"pulse_max_us" yaml:"pulse_max_us"` // 180° 对应脉宽
		Port       string  `mapstructure:"port" yaml:"port"`                 // Maestro 串口
		Baud       int     `mapstructure:"baud" yaml:"baud"`
		Channel    int     `mapstructure:"channel" yaml:"channel"`
		I2CBus     string  `mapstructure:"i2c_bus" yaml:"i2c_bus"` // PCA9685 所在总线，空为第一个
		I2CAddr    uint16  `mapstructure:"i2c_addr" yaml:"i2c_addr"`
	} `mapstructure:"actuator" yaml:"actuator"`

	// 启动时的表盘扫动，用于确认量程
	Sweep struct {
		Enabled   bool    `mapstructure:"enabled" yaml:"enabled"`
		TimeScale float64 `mapstructure:"time_scale" yaml:"time_scale"` // 停留时间倍率，1.0 为原始时长
	} `mapstructure:"sweep" yaml:"sweep"`

	Loop struct {
		CycleGap time.Duration `mapstructure:"cycle_gap" yaml:"cycle_gap"` // 两次测量之间的间隔
	} `mapstructure:"loop" yaml:"loop"`

	// 频谱自检，只写日志，不影响测量
	Hum struct {
		Enabled      bool    `mapstructure:"enabled" yaml:"enabled"`
		CheckEvery   int     `mapstructure:"check_every" yaml:"check_every"` // 每多少个周期检查一次，0 为只检查第一个窗口
		MinHz        float64 `mapstructure:"min_hz" yaml:"min_hz"`
		MaxHz        float64 `mapstructure:"max_hz" yaml:"max_hz"`
		MaxOffsetHz  float64 `mapstructure:"max_offset_hz" yaml:"max_offset_hz"`
		MinAmplitude float64 `mapstructure:"min_amplitude" yaml:"min_amplitude"`
	} `mapstructure:"hum" yaml:"hum"`

	// 遥测输出，Port 为空时写 stdout
	Telemetry struct {
		Port string `mapstructure:"port" yaml:"port"`
		Baud int    `mapstructure:"baud" yaml:"baud"`
	} `mapstructure:"telemetry" yaml:"telemetry"`

	// 可选的原始数据记录
	Record struct {
		WavFile  string `mapstructure:"wav_file" yaml:"wav_file"`
		DebugCSV string `mapstructure:"debug_csv" yaml:"debug_csv"`
	} `mapstructure:"record" yaml:"record"`

	Logging struct {
		Dir        string `mapstructure:"dir" yaml:"dir"`
		MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
		MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
		MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
		Compress   bool   `mapstructure:"compress" yaml:"compress"`
		Verbose    bool   `mapstructure:"verbose" yaml:"verbose"`
	} `mapstructure:"logging" yaml:"logging"`
}

// DefaultConfig 返回与原型硬件一致的默认配置
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Estimator.NominalHz = 50.0
	cfg.Estimator.HalfScale = 2048.0

	cfg.Acquisition.Source = SourceTone
	cfg.Acquisition.SampleRate = 1000.0
	cfg.Acquisition.WindowLength = 1000

	cfg.Tone.FrequencyHz = 50.0
	cfg.Tone.Amplitude = 400.0
	cfg.Tone.NoiseStdDev = 20.0
	cfg.Tone.Quantize = true
	cfg.Tone.Realtime = true
	cfg.Tone.Seed = 1

	cfg.Serial.Port = "/dev/ttyUSB0"
	cfg.Serial.Baud = 115200

	cfg.Audio.CaptureRate = 8000
	cfg.Audio.FilterOrder = 8

	cfg.Wav.Realtime = false

	cfg.Display.HalfRangeHz = 0.15
	cfg.Display.SmoothingAlpha = 0.3

	cfg.Actuator.Driver = DriverNone
	cfg.Actuator.CenterDeg = 90.0
	cfg.Actuator.SwingDeg = 45.0
	cfg.Actuator.MinAngle = 0.0
	cfg.Actuator.MaxAngle = 180.0
	cfg.Actuator.PulseMinUs = 500.0
	cfg.Actuator.PulseMaxUs = 2500.0
	cfg.Actuator.Port = "/dev/ttyACM0"
	cfg.Actuator.Baud = 9600
	cfg.Actuator.Channel = 0
	cfg.Actuator.I2CAddr = 0x40

	cfg.Sweep.Enabled = true
	cfg.Sweep.TimeScale = 1.0

	cfg.Loop.CycleGap = 100 * time.Millisecond

	cfg.Hum.Enabled = true
	cfg.Hum.CheckEvery = 60
	cfg.Hum.MinHz = 20.0
	cfg.Hum.MaxHz = 200.0
	cfg.Hum.MaxOffsetHz = 1.0
	cfg.Hum.MinAmplitude = 0.005

	cfg.Telemetry.Baud = 115200

	cfg.Logging.Dir = "$HOME/.gridseis/logs"
	cfg.Logging.MaxSizeMB = 10
	cfg.Logging.MaxBackups = 4
	cfg.Logging.MaxAgeDays = 180
	cfg.Logging.Compress = true

	return cfg
}

// Validate 检查启动时必须成立的约束
func (c *Config) Validate() error {
	fs := c.Acquisition.SampleRate
	n := c.Acquisition.WindowLength
	if fs <= 0 || math.IsNaN(fs) || math.IsInf(fs, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidSampleRate, fs)
	}
	if n <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWindow, n)
	}
	if float64(n) != fs {
		return fmt.Errorf("%w: window_length=%d sample_rate=%v", ErrWindowDuration, n, fs)
	}
	f0 := c.Estimator.NominalHz
	cycles := f0 * float64(n) / fs
	if f0 <= 0 || f0 >= fs/2 || cycles != math.Trunc(cycles) {
		return fmt.Errorf("%w: %v", ErrInvalidNominal, f0)
	}
	if c.Estimator.HalfScale <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidHalfScale, c.Estimator.HalfScale)
	}
	if c.Display.HalfRangeHz <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidHalfRange, c.Display.HalfRangeHz)
	}
	if a := c.Display.SmoothingAlpha; a <= 0 || a > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidAlpha, a)
	}
	a := c.Actuator
	if a.MinAngle < 0 || a.MaxAngle > 180 || a.MinAngle >= a.MaxAngle {
		return fmt.Errorf("%w: [%v, %v]", ErrInvalidAngleRange, a.MinAngle, a.MaxAngle)
	}
	if a.PulseMinUs <= 0 || a.PulseMaxUs <= a.PulseMinUs {
		return fmt.Errorf("%w: pulse [%v, %v] us", ErrInvalidAngleRange, a.PulseMinUs, a.PulseMaxUs)
	}
	switch c.Acquisition.Source {
	case SourceTone, SourceSerial, SourceAudio, SourceWav, SourceADC:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownSource, c.Acquisition.Source)
	}
	switch a.Driver {
	case DriverNone, DriverMaestro, DriverPCA9685:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDriver, a.Driver)
	}
	return nil
}

// Dial 返回配置对应的表盘映射
func (c *Config) Dial() Dial {
	return Dial{
		NominalHz:   c.Estimator.NominalHz,
		HalfRangeHz: c.Display.HalfRangeHz,
		CenterDeg:   c.Actuator.CenterDeg,
		SwingDeg:    c.Actuator.SwingDeg,
	}
}

// NewEstimator 按配置创建估计器
func (c *Config) NewEstimator() *Estimator {
	return NewEstimator(c.Estimator.NominalHz, c.Acquisition.SampleRate, c.Acquisition.WindowLength, c.Estimator.HalfScale)
}

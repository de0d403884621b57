package Acquisition

import (
	"context"
	"io"
	"math"
	"math/rand/v2"
	"sync/atomic"

	"gonum.org/v1/gonum/stat/distuv"
)

// ToneConfig 合成信号参数
type ToneConfig struct {
	SampleRate  float64
	FrequencyHz float64
	Amplitude   float64 // ADC 计数
	NoiseStdDev float64 // 高斯噪声标准差，0 为无噪声
	HalfScale   float64 // ADC 半量程，Quantize 时用于削顶
	Quantize    bool    // 模拟整数 ADC 读数
	Realtime    bool    // 按窗口时长节奏交付
	Seed        uint64
	Limit       int // 交付多少个窗口后返回 io.EOF，0 为不限
}

// ToneSource 模拟一路拾取到工频的 ADC
// 相位在窗口之间连续，可随时改变频率
type ToneSource struct {
	cfg    ToneConfig
	freq   atomic.Uint64 // math.Float64bits
	phase  float64       // 周期数，保持在 [0, 1)
	noise  *distuv.Normal
	pace   *pacer
	count  int
	closed atomic.Bool
}

// NewToneSource 创建合成信号源
func NewToneSource(cfg ToneConfig) *ToneSource {
	s := &ToneSource{cfg: cfg}
	s.SetFrequency(cfg.FrequencyHz)
	if cfg.NoiseStdDev > 0 {
		s.noise = &distuv.Normal{
			Mu:    0,
			Sigma: cfg.NoiseStdDev,
			Src:   rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15),
		}
	}
	return s
}

// SetFrequency 修改输出频率，相位保持连续
func (s *ToneSource) SetFrequency(hz float64) {
	s.freq.Store(math.Float64bits(hz))
}

// Frequency 返回当前输出频率
func (s *ToneSource) Frequency() float64 {
	return math.Float64frombits(s.freq.Load())
}

// ReadWindow 填满 window
func (s *ToneSource) ReadWindow(ctx context.Context, window []float64) error {
	if s.closed.Load() {
		return io.EOF
	}
	if s.cfg.Limit > 0 && s.count >= s.cfg.Limit {
		return io.EOF
	}
	if s.cfg.Realtime {
		if s.pace == nil {
			s.pace = newPacer(windowDuration(len(window), s.cfg.SampleRate))
		}
		if err := s.pace.wait(ctx); err != nil {
			return err
		}
	}

	step := s.Frequency() / s.cfg.SampleRate
	for i := range window {
		v := s.cfg.Amplitude * math.Cos(2*math.Pi*s.phase)
		if s.noise != nil {
			v += s.noise.Rand()
		}
		if s.cfg.Quantize {
			v = s.quantize(v)
		}
		window[i] = v

		s.phase += step
		s.phase -= math.Floor(s.phase)
	}
	s.count++
	return nil
}

// quantize 把去直流后的值还原成 ADC 整数读数再去直流
func (s *ToneSource) quantize(v float64) float64 {
	half := s.cfg.HalfScale
	raw := math.Round(v + half)
	if raw < 0 {
		raw = 0
	}
	if raw > 2*half-1 {
		raw = 2*half - 1
	}
	return raw - half
}

// Close 之后 ReadWindow 返回 io.EOF
func (s *ToneSource) Close() error {
	s.closed.Store(true)
	return nil
}

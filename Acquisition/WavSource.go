package Acquisition

import (
	"context"
	"fmt"
	"io"
)

// WavConfig WAV 回放参数
type WavConfig struct {
	File        string
	SampleRate  float64 // 目标采样率，文件采样率必须是它的整数倍
	HalfScale   float64
	FilterOrder int
	Realtime    bool
}

// WavSource 回放录音文件，文件结束时返回 io.EOF
type WavSource struct {
	reader    *WavReader
	decimator *Decimator
	halfScale float64
	pending   []float64 // 已降采样但还没交付的采样
	frames    []float64
	pace      *pacer
	realtime  bool
	rate      float64
}

// OpenWavSource 打开文件并按需建立降采样器
func OpenWavSource(cfg WavConfig) (*WavSource, error) {
	r, err := OpenWavReader(cfg.File)
	if err != nil {
		return nil, fmt.Errorf("failed to open replay file: %w", err)
	}
	dec, err := NewDecimator(float64(r.SampleRate), cfg.SampleRate, cfg.FilterOrder)
	if err != nil {
		r.Close()
		return nil, err
	}
	return &WavSource{
		reader:    r,
		decimator: dec,
		halfScale: cfg.HalfScale,
		frames:    make([]float64, 4096),
		realtime:  cfg.Realtime,
		rate:      cfg.SampleRate,
	}, nil
}

// FileSampleRate 返回文件本身的采样率
func (s *WavSource) FileSampleRate() int {
	return s.reader.SampleRate
}

// ReadWindow 读满一个窗口，文件剩余不足一个窗口时返回 io.EOF
func (s *WavSource) ReadWindow(ctx context.Context, window []float64) error {
	for len(s.pending) < len(window) {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := s.reader.ReadFrames(s.frames)
		if n == 0 {
			if err == nil {
				err = io.EOF
			}
			return err
		}
		for i := 0; i < n; i++ {
			s.frames[i] *= s.halfScale
		}
		s.pending = s.decimator.Process(s.pending, s.frames[:n])
	}

	if s.realtime {
		if s.pace == nil {
			s.pace = newPacer(windowDuration(len(window), s.rate))
		}
		if err := s.pace.wait(ctx); err != nil {
			return err
		}
	}

	copy(window, s.pending)
	s.pending = append(s.pending[:0], s.pending[len(window):]...)
	return nil
}

// Close 关闭文件
func (s *WavSource) Close() error {
	return s.reader.Close()
}

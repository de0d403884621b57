package Filters

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
)

// 生成正弦波辅助函数
func generateSineWave(freq, amplitude float64, samples int, sampleRate float64) []float64 {
	data := make([]float64, samples)
	for i := range data {
		data[i] = amplitude * math.Sin(2*math.Pi*freq*float64(i)/sampleRate)
	}
	return data
}

func TestExpSmoother(t *testing.T) {
	s := NewExpSmoother(0.3, 50.0)
	assert.Equal(t, 50.0, s.Value())

	got := s.Update(51.0)
	assert.InDelta(t, 50.3, got, 1e-12)
	got = s.Update(51.0)
	assert.InDelta(t, 50.51, got, 1e-12)

	// 持续输入同一值时收敛到该值
	for i := 0; i < 200; i++ {
		s.Update(49.9)
	}
	assert.InDelta(t, 49.9, s.Value(), 1e-9)

	s.Reset(50.0)
	assert.Equal(t, 50.0, s.Value())
}

func TestExpSmoother_AlphaOne(t *testing.T) {
	s := NewExpSmoother(1.0, 50.0)
	assert.Equal(t, 49.95, s.Update(49.95))
}

func TestButterworth_DCGain(t *testing.T) {
	f := NewButterworthLowpass(8, 8000, 200)
	var out float64
	for i := 0; i < 20000; i++ {
		out = f.Process(1.0)
	}
	assert.InDelta(t, 1.0, out, 1e-6)
}

func TestButterworth_Attenuation(t *testing.T) {
	const fs = 8000.0
	peak := func(freq float64) float64 {
		f := NewButterworthLowpass(8, fs, 200)
		in := generateSineWave(freq, 1.0, 16000, fs)
		maxAbs := 0.0
		// 跳过前半段瞬态
		for i, v := range in {
			y := f.Process(v)
			if i > len(in)/2 && math.Abs(y) > maxAbs {
				maxAbs = math.Abs(y)
			}
		}
		return maxAbs
	}

	pass := peak(50)
	stop := peak(1000)
	t.Logf("50Hz gain %.4f, 1000Hz gain %.6f", pass, stop)
	assert.InDelta(t, 1.0, pass, 0.02)
	assert.Less(t, stop, 1e-4)
}

func TestButterworth_OddOrderPanics(t *testing.T) {
	assert.Panics(t, func() { NewButterworthLowpass(3, 1000, 100) })
}

func TestButterworth_Reset(t *testing.T) {
	f := NewButterworthLowpass(4, 1000, 50)
	for i := 0; i < 100; i++ {
		f.Process(1.0)
	}
	f.Reset()
	assert.Equal(t, 0.0, f.Process(0.0))
}

func TestHumDetector_Accuracy(t *testing.T) {
	hd := NewHumDetector(HumDetectorConfig{
		SampleRate: 1000,
		FFTSize:    8192,
		MinFreq:    20,
		MaxFreq:    200,
	})

	for _, target := range []float64{50.0, 50.3, 59.8} {
		in := generateSineWave(target, 400, 1000, 1000)
		r := hd.Detect(in)
		if !r.Found {
			t.Fatalf("target %v: no peak found", target)
		}
		if math.Abs(r.FrequencyHz-target) > 0.1 {
			t.Errorf("target %v: got %v", target, r.FrequencyHz)
		}
		assert.InDelta(t, 400, r.Amplitude, 40, "target %v", target)
	}
}

func TestHumDetector_IgnoresOutOfBand(t *testing.T) {
	hd := NewHumDetector(HumDetectorConfig{SampleRate: 1000, FFTSize: 4096, MinFreq: 40, MaxFreq: 70})

	in := generateSineWave(50, 100, 1000, 1000)
	strong := generateSineWave(150, 1000, 1000, 1000)
	for i := range in {
		in[i] += strong[i] + 500 // 叠加直流
	}
	r := hd.Detect(in)
	assert.True(t, r.Found)
	assert.InDelta(t, 50.0, r.FrequencyHz, 0.1)
}

func TestHumDetector_SNR(t *testing.T) {
	hd := NewHumDetector(HumDetectorConfig{SampleRate: 1000, FFTSize: 4096, MinFreq: 20, MaxFreq: 200})
	rng := rand.New(rand.NewPCG(1, 2))

	clean := generateSineWave(50, 400, 1000, 1000)
	noisy := make([]float64, len(clean))
	noise := make([]float64, len(clean))
	for i := range clean {
		n := rng.NormFloat64() * 50
		noisy[i] = clean[i] + n
		noise[i] = n * 8
	}

	a := hd.Detect(noisy)
	b := hd.Detect(noise)
	t.Logf("tone SNR %.1f, noise-only SNR %.1f", a.SNR, b.SNR)
	assert.Greater(t, a.SNR, 100.0)
	assert.Less(t, b.SNR, a.SNR)
}

func TestHumDetector_ShortInput(t *testing.T) {
	hd := NewHumDetector(HumDetectorConfig{SampleRate: 1000, FFTSize: 1024, MinFreq: 20, MaxFreq: 200})
	assert.False(t, hd.Detect([]float64{1, 2}).Found)
	assert.False(t, hd.Detect(make([]float64, 1000)).Found)
}

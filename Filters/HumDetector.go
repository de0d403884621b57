package Filters

import (
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
)

// HumDetectorConfig 频谱自检参数
type HumDetectorConfig struct {
	SampleRate float64
	FFTSize    int     // 补零后的 FFT 点数，小于窗口长度时取窗口长度
	MinFreq    float64 // 搜索下限 (Hz)
	MaxFreq    float64 // 搜索上限 (Hz)
}

// HumReading 是一次频谱检查的结果
type HumReading struct {
	FrequencyHz float64 // 抛物线插值后的峰值频率
	Amplitude   float64 // 峰值处的正弦幅度估计 (与输入同单位)
	SNR         float64 // 峰值功率 / 搜索带内其余频点平均功率
	Found       bool
}

// HumDetector 用 FFT 找出搜索带内能量最大的频率
// 只用于诊断: 确认输入里确实有工频分量，不参与频率估计
type HumDetector struct {
	config HumDetectorConfig
}

// NewHumDetector 创建新实例
func NewHumDetector(cfg HumDetectorConfig) *HumDetector {
	return &HumDetector{config: cfg}
}

// Detect 分析一个窗口
func (hd *HumDetector) Detect(samples []float64) HumReading {
	if len(samples) < 4 || hd.config.SampleRate <= 0 {
		return HumReading{}
	}

	spectrum, size, gain := hd.computeFFT(samples)
	return hd.findPeak(spectrum, size, gain)
}

// computeFFT 去直流、加汉宁窗、补零后做 FFT
// 返回频谱、FFT 点数和窗函数的相干增益 (窗系数之和)
func (hd *HumDetector) computeFFT(samples []float64) ([]complex128, int, float64) {
	n := len(samples)
	size := hd.config.FFTSize
	if size < n {
		size = n
	}

	mean := 0.0
	for _, v := range samples {
		mean += v
	}
	mean /= float64(n)

	w := window.Hann(n)
	gain := 0.0
	input := make([]float64, size)
	for i, v := range samples {
		input[i] = (v - mean) * w[i]
		gain += w[i]
	}
	return fft.FFTReal(input), size, gain
}

// findPeak 在搜索带内找最大幅度并做抛物线插值
func (hd *HumDetector) findPeak(spectrum []complex128, size int, gain float64) HumReading {
	binRes := hd.config.SampleRate / float64(size)
	minBin := int(hd.config.MinFreq / binRes)
	maxBin := int(hd.config.MaxFreq/binRes) + 1
	if minBin < 1 {
		minBin = 1
	}
	if maxBin > size/2 {
		maxBin = size / 2
	}
	if minBin >= maxBin {
		return HumReading{}
	}

	maxMag := -1.0
	maxIndex := -1
	total := 0.0
	for i := minBin; i < maxBin; i++ {
		m := cmplx.Abs(spectrum[i])
		total += m * m
		if m > maxMag {
			maxMag = m
			maxIndex = i
		}
	}
	if maxIndex < 0 || maxMag <= 0 {
		return HumReading{}
	}

	delta := 0.0
	if maxIndex > 0 && maxIndex < len(spectrum)-1 {
		y1 := cmplx.Abs(spectrum[maxIndex-1])
		y3 := cmplx.Abs(spectrum[maxIndex+1])
		denominator := 2 * (2*maxMag - y1 - y3)
		if denominator != 0 {
			delta = (y3 - y1) / denominator
		}
	}

	// 噪声功率: 去掉峰值附近 ±4 个频点
	noise, count := total, maxBin-minBin
	for i := maxIndex - 4; i <= maxIndex+4; i++ {
		if i >= minBin && i < maxBin {
			m := cmplx.Abs(spectrum[i])
			noise -= m * m
			count--
		}
	}
	snr := 0.0
	if count > 0 && noise > 0 {
		snr = maxMag * maxMag / (noise / float64(count))
	}

	return HumReading{
		FrequencyHz: (float64(maxIndex) + delta) * binRes,
		Amplitude:   2 * maxMag / gain,
		SNR:         snr,
		Found:       true,
	}
}

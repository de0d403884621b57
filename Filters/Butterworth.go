package Filters

import "math"

// biquad 二阶 IIR 节 (Direct Form II transposed)
type biquad struct {
	b0, b1, b2 float64 // 分子
	a1, a2     float64 // 分母 (a0 已归一化为 1)
	z1, z2     float64
}

func (q *biquad) process(in float64) float64 {
	out := in*q.b0 + q.z1
	q.z1 = in*q.b1 - out*q.a1 + q.z2
	q.z2 = in*q.b2 - out*q.a2
	return out
}

// ButterworthFilter 由若干 biquad 级联的巴特沃斯低通
// 采集链路中用作降采样前的抗混叠滤波
type ButterworthFilter struct {
	sections []biquad
}

// NewButterworthLowpass 创建 order 阶低通 (order 必须为偶数)
func NewButterworthLowpass(order int, sampleRate, cutoffHz float64) *ButterworthFilter {
	if order <= 0 || order%2 != 0 {
		panic("Butterworth filter order must be a positive even number")
	}
	// tan 在 Nyquist 附近发散
	if cutoffHz >= sampleRate*0.499 {
		cutoffHz = sampleRate * 0.499
	}

	k := 2.0 * sampleRate
	// 预畸变后的模拟截止角频率
	wc := k * math.Tan(math.Pi*cutoffHz/sampleRate)

	half := order / 2
	sections := make([]biquad, half)
	for i := 0; i < half; i++ {
		// 低 Q 节在前
		theta := math.Pi * (2.0*float64(half-1-i) + 1.0) / (2.0 * float64(order))
		re := -wc * math.Sin(theta)
		im := wc * math.Cos(theta)
		mag2 := re*re + im*im

		// 双线性变换
		norm := k*k - 2.0*k*re + mag2
		sections[i] = biquad{
			b0: wc * wc / norm,
			b1: 2.0 * wc * wc / norm,
			b2: wc * wc / norm,
			a1: (2.0*mag2 - 2.0*k*k) / norm,
			a2: (k*k + 2.0*k*re + mag2) / norm,
		}
	}
	return &ButterworthFilter{sections: sections}
}

// Process 处理单个采样点
func (f *ButterworthFilter) Process(in float64) float64 {
	out := in
	for i := range f.sections {
		out = f.sections[i].process(out)
	}
	return out
}

// Reset 清空延迟线
func (f *ButterworthFilter) Reset() {
	for i := range f.sections {
		f.sections[i].z1, f.sections[i].z2 = 0, 0
	}
}

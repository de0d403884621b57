package gridseis

import "math"

// ReferenceTable 保存一个窗口长度的标称频率正弦/余弦参考表
// 创建后只读，由 Estimator 独占
type ReferenceTable struct {
	NominalHz  float64
	SampleRate float64
	sin        []float64
	cos        []float64
}

// NewReferenceTable 生成 n 点参考表
// sin[i] = sin(2π·f0·i/fs), cos[i] = cos(2π·f0·i/fs)
func NewReferenceTable(nominalHz, sampleRate float64, n int) *ReferenceTable {
	if n < 0 {
		n = 0
	}
	rt := &ReferenceTable{
		NominalHz:  nominalHz,
		SampleRate: sampleRate,
		sin:        make([]float64, n),
		cos:        make([]float64, n),
	}
	w := 2 * math.Pi * nominalHz / sampleRate
	for i := 0; i < n; i++ {
		rt.sin[i], rt.cos[i] = math.Sincos(w * float64(i))
	}
	return rt
}

// Len 返回参考表长度 (即窗口长度 N)
func (rt *ReferenceTable) Len() int {
	return len(rt.sin)
}

// Sin 返回正弦表，调用方不得修改
func (rt *ReferenceTable) Sin() []float64 {
	return rt.sin
}

// Cos 返回余弦表，调用方不得修改
func (rt *ReferenceTable) Cos() []float64 {
	return rt.cos
}

// WindowDuration 返回一个窗口覆盖的时长 (秒)
func (rt *ReferenceTable) WindowDuration() float64 {
	return float64(rt.Len()) / rt.SampleRate
}

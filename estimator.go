package gridseis

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// PhaseState 是两次测量之间唯一需要保留的状态
// 零值表示 "还没有上一次相位"，第一次测量会把它填上
type PhaseState struct {
	Phase float64 // 上一个窗口的原始相位 (弧度, 未展开)
	Valid bool
}

// Demodulation 是一个窗口的 IQ 解调结果
type Demodulation struct {
	I float64 // mean(sample * cos)
	Q float64 // mean(sample * sin)
}

// Phase 返回 atan2(Q, I)
func (d Demodulation) Phase() float64 {
	return math.Atan2(d.Q, d.I)
}

// Magnitude 返回 sqrt(I² + Q²)，单位与采样值相同
func (d Demodulation) Magnitude() float64 {
	return math.Hypot(d.I, d.Q)
}

// Estimate 是单次测量的结果
type Estimate struct {
	FrequencyHz float64 // 热身周期恒为标称频率
	Amplitude   float64 // 幅度 / halfScale，不做限幅
	Phase       float64 // 本窗口原始相位
	Delta       float64 // 展开后的相位差，热身周期为 0
	IQ          Demodulation
}

// Demodulate 将窗口与参考表做相干解调
// window 长度必须等于参考表长度
func Demodulate(window []float64, ref *ReferenceTable) Demodulation {
	n := ref.Len()
	if n == 0 {
		return Demodulation{}
	}
	return Demodulation{
		I: floats.Dot(window, ref.cos) / float64(n),
		Q: floats.Dot(window, ref.sin) / float64(n),
	}
}

// UnwrapPhase 把相位差折回 (-π, π]，只做一次 ±2π 修正
func UnwrapPhase(delta float64) float64 {
	if delta > math.Pi {
		delta -= 2 * math.Pi
	}
	if delta <= -math.Pi {
		delta += 2 * math.Pi
	}
	return delta
}

// Estimator 基于相邻窗口的相位差估计电网频率
// 本身无可变状态，相位状态由调用方传入传出
type Estimator struct {
	ref       *ReferenceTable
	nominalHz float64
	halfScale float64
	period    float64 // 窗口时长 T (秒)
}

// NewEstimator 创建估计器并生成参考表
// windowLength/sampleRate 应为整秒，否则参考表在窗口边界处不连续
func NewEstimator(nominalHz, sampleRate float64, windowLength int, halfScale float64) *Estimator {
	ref := NewReferenceTable(nominalHz, sampleRate, windowLength)
	if halfScale <= 0 {
		halfScale = 1
	}
	return &Estimator{
		ref:       ref,
		nominalHz: nominalHz,
		halfScale: halfScale,
		period:    ref.WindowDuration(),
	}
}

// Reference 返回内部参考表
func (e *Estimator) Reference() *ReferenceTable {
	return e.ref
}

// NominalHz 返回标称频率
func (e *Estimator) NominalHz() float64 {
	return e.nominalHz
}

// WindowLength 返回每次测量需要的采样点数
func (e *Estimator) WindowLength() int {
	return e.ref.Len()
}

// Measure 对一个完整窗口做一次测量
// prev 无效时 (第一次调用) 返回标称频率，只记录相位
// 返回的 PhaseState 必须原样传给下一次调用
func (e *Estimator) Measure(window []float64, prev PhaseState) (Estimate, PhaseState) {
	demod := Demodulate(window, e.ref)
	phase := demod.Phase()

	est := Estimate{
		FrequencyHz: e.nominalHz,
		Amplitude:   demod.Magnitude() / e.halfScale,
		Phase:       phase,
		IQ:          demod,
	}
	next := PhaseState{Phase: phase, Valid: true}

	if !prev.Valid {
		return est, next
	}

	// 频率高于标称时相位每个窗口后退 2π·Δf·T
	est.Delta = UnwrapPhase(phase - prev.Phase)
	est.FrequencyHz = e.nominalHz - est.Delta/(2*math.Pi*e.period)
	return est, next
}

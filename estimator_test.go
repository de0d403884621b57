package gridseis

import (
	"math"
	"math/rand/v2"
	"testing"
)

const (
	testSampleRate = 1000.0
	testWindow     = 1000
	testHalfScale  = 2048.0
)

// 生成相位连续的多个窗口: s = A*cos(2π f t)
func generateHumWindows(freq, amplitude float64, windows int) [][]float64 {
	out := make([][]float64, windows)
	for k := range out {
		w := make([]float64, testWindow)
		for i := range w {
			t := float64(k*testWindow+i) / testSampleRate
			w[i] = amplitude * math.Cos(2*math.Pi*freq*t)
		}
		out[k] = w
	}
	return out
}

func newTestEstimator() *Estimator {
	return NewEstimator(50.0, testSampleRate, testWindow, testHalfScale)
}

// 依次测量所有窗口，返回每次的结果
func measureAll(e *Estimator, windows [][]float64) []Estimate {
	var state PhaseState
	out := make([]Estimate, len(windows))
	for i, w := range windows {
		out[i], state = e.Measure(w, state)
	}
	return out
}

func TestReferenceTable(t *testing.T) {
	rt := NewReferenceTable(50, testSampleRate, testWindow)
	if rt.Len() != testWindow {
		t.Fatalf("Len = %d", rt.Len())
	}
	if rt.WindowDuration() != 1.0 {
		t.Errorf("WindowDuration = %v", rt.WindowDuration())
	}
	s, c := rt.Sin(), rt.Cos()
	if s[0] != 0 || c[0] != 1 {
		t.Errorf("table must start at sin=0 cos=1, got %v %v", s[0], c[0])
	}
	// 50Hz @ 1kHz: 第 5 个采样是四分之一周期
	if math.Abs(s[5]-1) > 1e-12 || math.Abs(c[5]) > 1e-12 {
		t.Errorf("quarter period: sin=%v cos=%v", s[5], c[5])
	}
	for i := range s {
		if math.Abs(s[i]*s[i]+c[i]*c[i]-1) > 1e-12 {
			t.Fatalf("entry %d is not unit magnitude", i)
		}
	}

	again := NewReferenceTable(50, testSampleRate, testWindow)
	for i := range s {
		if again.Sin()[i] != s[i] || again.Cos()[i] != c[i] {
			t.Fatal("reference table is not deterministic")
		}
	}
}

func TestMeasure_WarmUp(t *testing.T) {
	e := newTestEstimator()
	w := generateHumWindows(50.07, 400, 1)[0]

	est, next := e.Measure(w, PhaseState{})
	if est.FrequencyHz != 50.0 {
		t.Errorf("warm-up frequency = %v, want nominal", est.FrequencyHz)
	}
	if est.Delta != 0 {
		t.Errorf("warm-up delta = %v", est.Delta)
	}
	if !next.Valid || next.Phase != est.Phase {
		t.Errorf("warm-up must record phase, got %+v", next)
	}
}

func TestMeasure_NominalTone(t *testing.T) {
	results := measureAll(newTestEstimator(), generateHumWindows(50.0, 400, 4))
	for i, r := range results {
		if math.Abs(r.FrequencyHz-50.0) > 1e-9 {
			t.Errorf("window %d: %v", i, r.FrequencyHz)
		}
		// 整周期窗口: |I+jQ| = A/2
		if math.Abs(r.Amplitude-200.0/testHalfScale) > 1e-9 {
			t.Errorf("window %d amplitude %v", i, r.Amplitude)
		}
	}
}

func TestMeasure_Deviation(t *testing.T) {
	cases := []float64{49.85, 49.9, 49.95, 49.99, 50.02, 50.05, 50.1, 50.15, 50.3, 49.6}
	for _, f := range cases {
		results := measureAll(newTestEstimator(), generateHumWindows(f, 400, 5))
		if results[0].FrequencyHz != 50.0 {
			t.Errorf("%v Hz: warm-up reported %v", f, results[0].FrequencyHz)
		}
		for i, r := range results[1:] {
			if math.Abs(r.FrequencyHz-f) > 0.01 {
				t.Errorf("%v Hz: window %d estimated %v", f, i+1, r.FrequencyHz)
			}
		}
		t.Logf("%v Hz -> %.5f Hz", f, results[len(results)-1].FrequencyHz)
	}
}

func TestMeasure_PhaseDirection(t *testing.T) {
	high := measureAll(newTestEstimator(), generateHumWindows(50.05, 400, 2))
	low := measureAll(newTestEstimator(), generateHumWindows(49.95, 400, 2))
	if high[1].Delta >= 0 {
		t.Errorf("above nominal phase should fall, delta %v", high[1].Delta)
	}
	if low[1].Delta <= 0 {
		t.Errorf("below nominal phase should rise, delta %v", low[1].Delta)
	}
}

func TestMeasure_Aliasing(t *testing.T) {
	// 偏差超过 0.5Hz 时单次展开会折叠: 50.6 -> 49.6
	results := measureAll(newTestEstimator(), generateHumWindows(50.6, 400, 3))
	for _, r := range results[1:] {
		if math.Abs(r.FrequencyHz-49.6) > 0.01 {
			t.Errorf("expected alias at 49.6, got %v", r.FrequencyHz)
		}
	}
}

func TestMeasure_ZeroSignal(t *testing.T) {
	e := newTestEstimator()
	zero := make([]float64, testWindow)
	var state PhaseState
	for i := 0; i < 3; i++ {
		var est Estimate
		est, state = e.Measure(zero, state)
		if est.Amplitude != 0 {
			t.Errorf("amplitude %v", est.Amplitude)
		}
		if math.IsNaN(est.FrequencyHz) || math.IsInf(est.FrequencyHz, 0) {
			t.Fatalf("frequency not finite: %v", est.FrequencyHz)
		}
		if est.FrequencyHz != 50.0 {
			t.Errorf("cycle %d: %v", i, est.FrequencyHz)
		}
	}
}

func TestMeasure_Noise(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 1))
	windows := generateHumWindows(50.04, 400, 10)
	for _, w := range windows {
		for i := range w {
			w[i] += rng.NormFloat64() * 50
		}
	}
	results := measureAll(newTestEstimator(), windows)
	for i, r := range results[1:] {
		if math.Abs(r.FrequencyHz-50.04) > 0.01 {
			t.Errorf("window %d: %v", i+1, r.FrequencyHz)
		}
	}
}

func TestMeasure_IndependentStates(t *testing.T) {
	e := newTestEstimator()
	a := generateHumWindows(50.05, 400, 3)
	b := generateHumWindows(49.92, 300, 3)

	var sa, sb PhaseState
	var ea, eb Estimate
	// 交替使用同一个估计器，两个状态互不影响
	for i := 0; i < 3; i++ {
		ea, sa = e.Measure(a[i], sa)
		eb, sb = e.Measure(b[i], sb)
	}
	if math.Abs(ea.FrequencyHz-50.05) > 0.01 || math.Abs(eb.FrequencyHz-49.92) > 0.01 {
		t.Errorf("interleaved estimates: %v %v", ea.FrequencyHz, eb.FrequencyHz)
	}
}

func TestUnwrapPhase(t *testing.T) {
	cases := []struct {
		in, want float64
	}{
		{0.5, 0.5},
		{-0.5, -0.5},
		{math.Pi, math.Pi},
		{-math.Pi, math.Pi},
		{math.Pi + 0.1, -math.Pi + 0.1},
		{-math.Pi - 0.1, math.Pi - 0.1},
		{2*math.Pi - 0.2, -0.2},
		{-2*math.Pi + 0.2, 0.2},
	}
	for _, c := range cases {
		got := UnwrapPhase(c.in)
		if math.Abs(got-c.want) > 1e-12 {
			t.Errorf("UnwrapPhase(%v) = %v, want %v", c.in, got, c.want)
		}
		if got <= -math.Pi || got > math.Pi {
			t.Errorf("UnwrapPhase(%v) = %v out of (-π, π]", c.in, got)
		}
	}
}

func TestEndToEnd_AboveNominalDeflectsLeft(t *testing.T) {
	results := measureAll(newTestEstimator(), generateHumWindows(50.05, 400, 2))
	angle := MapAngle(results[1].FrequencyHz, DefaultDial())
	if angle >= 90 {
		t.Errorf("angle %v, want < 90", angle)
	}
	if math.Abs(angle-75) > 3 {
		t.Errorf("angle %v, want about 75", angle)
	}
}

package gridseis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"time"

	"gridseis/Filters"
)

// Source 提供定长、等间隔、去直流的采样窗口
// 返回 nil 时 window 全部有效；返回错误时 window 内容未定义，必须丢弃
type Source interface {
	ReadWindow(ctx context.Context, window []float64) error
	Close() error
}

// Actuator 接收 [0, 180] 度的指针角度
type Actuator interface {
	SetAngle(deg float64) error
	Close() error
}

// WindowRecorder 保存原始窗口 (例如写 WAV)
type WindowRecorder interface {
	WriteWindow(window []float64) error
	Close() error
}

// MIN 位置回弹的幅度 (度)
const sweepBounceDeg = 15.0

// Monitor 管理整个测量循环: 采集 -> 估计 -> 平滑 -> 映射 -> 驱动 -> 遥测
// 相位状态只由运行 Step/Run 的 goroutine 读写
type Monitor struct {
	cfg    *Config
	logger *log.Logger

	// 组件
	source    Source
	actuator  Actuator
	telemetry *TelemetryWriter
	estimator *Estimator
	smoother  *Filters.ExpSmoother
	hum       *Filters.HumDetector
	recorder  WindowRecorder
	debugger  CycleDebugger
	dial      Dial

	// 状态
	window []float64
	state  PhaseState
	start  time.Time
	cycles int
	faults int
	now    func() time.Time
}

// NewMonitor 校验配置并创建测量循环
func NewMonitor(cfg *Config, src Source, act Actuator, out io.Writer, logger *log.Logger) (*Monitor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if src == nil || act == nil || out == nil {
		return nil, errors.New("monitor needs a source, an actuator and a telemetry writer")
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	m := &Monitor{
		cfg:       cfg,
		logger:    logger,
		source:    src,
		actuator:  act,
		telemetry: NewTelemetryWriter(out),
		estimator: cfg.NewEstimator(),
		smoother:  Filters.NewExpSmoother(cfg.Display.SmoothingAlpha, cfg.Estimator.NominalHz),
		debugger:  NoOpDebugger{},
		dial:      cfg.Dial(),
		window:    make([]float64, cfg.Acquisition.WindowLength),
		now:       time.Now,
	}
	if cfg.Hum.Enabled {
		m.hum = Filters.NewHumDetector(Filters.HumDetectorConfig{
			SampleRate: cfg.Acquisition.SampleRate,
			FFTSize:    nextPow2(4 * cfg.Acquisition.WindowLength),
			MinFreq:    cfg.Hum.MinHz,
			MaxFreq:    cfg.Hum.MaxHz,
		})
	}
	m.start = m.now()
	return m, nil
}

// SetRecorder 开启原始窗口录音
func (m *Monitor) SetRecorder(r WindowRecorder) {
	m.recorder = r
}

// SetDebugger 开启逐周期 CSV 调试输出
func (m *Monitor) SetDebugger(d CycleDebugger) {
	if d == nil {
		d = NoOpDebugger{}
	}
	m.debugger = d
}

// Cycles 返回成功完成的周期数 (含热身周期)
func (m *Monitor) Cycles() int {
	return m.cycles
}

// Faults 返回采集失败的次数
func (m *Monitor) Faults() int {
	return m.faults
}

// PhaseState 返回当前相位状态
func (m *Monitor) PhaseState() PhaseState {
	return m.state
}

// LogBounds 打印表盘量程
func (m *Monitor) LogBounds() {
	lo, nom, hi := m.dial.Bounds()
	m.logger.Printf("========== FREQUENCY BOUNDS ==========")
	m.logger.Printf("  MIN: %.3f Hz (servo %.0f°)", lo, MapAngle(lo, m.dial))
	m.logger.Printf("  NOM: %.3f Hz (servo %.0f°)", nom, MapAngle(nom, m.dial))
	m.logger.Printf("  MAX: %.3f Hz (servo %.0f°)", hi, MapAngle(hi, m.dial))
	m.logger.Printf("=======================================")
}

type sweepStep struct {
	angle float64
	hold  time.Duration
}

// sweepPlan 生成启动扫动序列: MIN 位置双回弹 -> 标称 -> MAX -> 回中
func (m *Monitor) sweepPlan() []sweepStep {
	lo, _, hi := m.dial.Bounds()
	minAngle := MapAngle(lo, m.dial)
	maxAngle := MapAngle(hi, m.dial)
	bounce := minAngle - sweepBounceDeg
	center := m.dial.CenterDeg
	return []sweepStep{
		{minAngle, 3000 * time.Millisecond},
		{bounce, 300 * time.Millisecond},
		{minAngle, 300 * time.Millisecond},
		{bounce, 300 * time.Millisecond},
		{minAngle, 3000 * time.Millisecond},
		{center, 2000 * time.Millisecond},
		{maxAngle, 7000 * time.Millisecond},
		{center, 1000 * time.Millisecond},
	}
}

// Sweep 让指针依次指向量程下限、标称和上限，便于目视确认刻度
func (m *Monitor) Sweep(ctx context.Context) error {
	if !m.cfg.Sweep.Enabled {
		return nil
	}
	lo, nom, hi := m.dial.Bounds()
	scale := m.cfg.Sweep.TimeScale
	for i, step := range m.sweepPlan() {
		switch i {
		case 0:
			m.logger.Printf("Showing MIN: %.3f Hz (double bounce)", lo)
		case 5:
			m.logger.Printf("Showing NOM: %.3f Hz", nom)
		case 6:
			m.logger.Printf("Showing MAX: %.3f Hz", hi)
		}
		if err := m.actuate(step.angle); err != nil {
			return err
		}
		if err := sleepCtx(ctx, time.Duration(float64(step.hold)*scale)); err != nil {
			return err
		}
	}
	return nil
}

// actuate 限幅后驱动执行器
func (m *Monitor) actuate(angle float64) error {
	angle = ClampAngle(angle, m.cfg.Actuator.MinAngle, m.cfg.Actuator.MaxAngle)
	if err := m.actuator.SetAngle(angle); err != nil {
		return fmt.Errorf("failed to set angle %.1f: %w", angle, err)
	}
	return nil
}

// Step 执行一个测量周期
// 只有采集阶段会阻塞并响应取消；采集失败时窗口被丢弃，相位状态不变
func (m *Monitor) Step(ctx context.Context) (Record, error) {
	if err := m.source.ReadWindow(ctx, m.window); err != nil {
		if errors.Is(err, io.EOF) || ctx.Err() != nil {
			return Record{}, err
		}
		m.faults++
		m.logger.Printf("Measurement failed: %v", err)
		return Record{}, fmt.Errorf("acquisition failed: %w", err)
	}

	if m.recorder != nil {
		if err := m.recorder.WriteWindow(m.window); err != nil {
			m.logger.Printf("Warning: failed to record window: %v", err)
		}
	}
	if m.humCheckDue() {
		m.checkHum()
	}

	est, next := m.estimator.Measure(m.window, m.state)
	m.state = next
	smoothed := m.smoother.Update(est.FrequencyHz)

	// 指针跟随瞬时频率，平滑值只用于遥测
	if err := m.actuate(MapAngle(est.FrequencyHz, m.dial)); err != nil {
		m.logger.Printf("Warning: %v", err)
	}

	rec := Record{
		TimestampMs: m.now().Sub(m.start).Milliseconds(),
		FrequencyHz: est.FrequencyHz,
		SmoothedHz:  smoothed,
		Amplitude:   est.Amplitude,
	}
	if err := m.telemetry.Emit(rec); err != nil {
		m.logger.Printf("Warning: %v", err)
	}
	m.debugger.Record(m.cycles, est)
	m.cycles++
	return rec, nil
}

// Run 循环执行 Step，直到数据源结束或 ctx 取消
// 数据源返回 io.EOF 时正常退出并返回 nil
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.Printf("Starting frequency measurement...")
	m.logger.Printf("Range: %.2f - %.2f Hz", m.dial.NominalHz-m.dial.HalfRangeHz, m.dial.NominalHz+m.dial.HalfRangeHz)

	for {
		_, err := m.Step(ctx)
		if errors.Is(err, io.EOF) {
			m.logger.Printf("Source exhausted after %d cycles (%d faults)", m.cycles, m.faults)
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err := sleepCtx(ctx, m.cfg.Loop.CycleGap); err != nil {
			return err
		}
	}
}

func (m *Monitor) humCheckDue() bool {
	if m.hum == nil {
		return false
	}
	if m.cycles == 0 {
		return true
	}
	every := m.cfg.Hum.CheckEvery
	return every > 0 && m.cycles%every == 0
}

// checkHum 用 FFT 检查输入里是否有工频，只写日志
func (m *Monitor) checkHum() {
	r := m.hum.Detect(m.window)
	if !r.Found {
		m.logger.Printf("[HUM] Warning: no spectral peak between %.0f and %.0f Hz", m.cfg.Hum.MinHz, m.cfg.Hum.MaxHz)
		return
	}
	amplitude := r.Amplitude / m.cfg.Estimator.HalfScale
	m.logger.Printf("[HUM] Peak %.2f Hz, amplitude %.3f, SNR %.1f dB", r.FrequencyHz, amplitude, 10*math.Log10(r.SNR+1e-12))
	if math.Abs(r.FrequencyHz-m.cfg.Estimator.NominalHz) > m.cfg.Hum.MaxOffsetHz {
		m.logger.Printf("[HUM] Warning: dominant peak is %.2f Hz away from nominal %.0f Hz", r.FrequencyHz-m.cfg.Estimator.NominalHz, m.cfg.Estimator.NominalHz)
	}
	if amplitude < m.cfg.Hum.MinAmplitude {
		m.logger.Printf("[HUM] Warning: signal amplitude %.4f below %.4f, check the pickup", amplitude, m.cfg.Hum.MinAmplitude)
	}
}

// Close 释放所有组件
func (m *Monitor) Close() error {
	var errs []error
	if m.recorder != nil {
		errs = append(errs, m.recorder.Close())
	}
	errs = append(errs, m.debugger.Close())
	errs = append(errs, m.source.Close())
	errs = append(errs, m.actuator.Close())
	return errors.Join(errs...)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

//go:build tinygo

// 固件版本: RP2040 直接采样变压器信号并驱动舵机，串口输出与主机版相同的 JSON 遥测
package main

import (
	"context"
	"log"
	"machine"
	"math"
	"os"
	"time"

	"tinygo.org/x/drivers/servo"

	"gridseis"
)

// adcSource 以固定节拍读取 ADC，12-bit 读数减去半量程
type adcSource struct {
	adc      machine.ADC
	interval time.Duration
	next     time.Time
}

func (s *adcSource) ReadWindow(ctx context.Context, window []float64) error {
	if s.next.IsZero() {
		s.next = time.Now()
	}
	for i := range window {
		for time.Now().Before(s.next) {
		}
		s.next = s.next.Add(s.interval)
		// machine.ADC 总是返回 16-bit 左对齐的值
		window[i] = float64(s.adc.Get()>>4) - 2048
	}
	return ctx.Err()
}

func (s *adcSource) Close() error { return nil }

// servoActuator 把角度交给 tinygo servo 驱动
type servoActuator struct {
	s servo.Servo
}

func (a *servoActuator) SetAngle(deg float64) error {
	return a.s.SetAngle(int(math.Round(deg)))
}

func (a *servoActuator) Close() error { return nil }

func main() {
	time.Sleep(2 * time.Second) // 等 USB 串口就绪

	cfg := gridseis.DefaultConfig()
	cfg.Acquisition.Source = gridseis.SourceADC
	cfg.Hum.Enabled = false // 4096 点 FFT 太占内存
	cfg.Loop.CycleGap = 0   // 前台采样，窗口之间不能留空

	machine.InitADC()
	adc := machine.ADC{Pin: machine.ADC0}
	adc.Configure(machine.ADCConfig{})
	src := &adcSource{adc: adc, interval: time.Second / time.Duration(cfg.Acquisition.SampleRate)}

	sv, err := servo.New(machine.PWM3, machine.GP22)
	if err != nil {
		println("error creating servo:", err.Error())
		return
	}

	logger := log.New(os.Stdout, "# ", 0)
	monitor, err := gridseis.NewMonitor(cfg, src, &servoActuator{s: sv}, os.Stdout, logger)
	if err != nil {
		println("error creating monitor:", err.Error())
		return
	}

	ctx := context.Background()
	monitor.LogBounds()
	if err := monitor.Sweep(ctx); err != nil {
		println("sweep failed:", err.Error())
	}
	if err := monitor.Run(ctx); err != nil {
		println("stopped:", err.Error())
	}
}

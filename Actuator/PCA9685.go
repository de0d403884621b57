package Actuator

import (
	"fmt"
	"math"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/pca9685"
	"periph.io/x/host/v3"
)

// pca9685 的计数器是 12 位
const pcaCounts = 4096

// PCA9685Config I2C PWM 板参数
type PCA9685Config struct {
	Bus     string // 空为第一个可用总线
	Addr    uint16 // 通常为 0x40
	Channel int
	Pulse   PulseConfig
}

type pwmSetter interface {
	SetPwm(channel int, on, off gpio.Duty) error
}

// PCA9685 在树莓派等 Linux 板上通过 PCA9685 驱动舵机
type PCA9685 struct {
	bus     i2c.BusCloser
	dev     pwmSetter
	channel int
	pulse   PulseConfig
	last    float64
}

// OpenPCA9685 初始化主机驱动、打开总线并把 PWM 频率设为 50Hz
func OpenPCA9685(cfg PCA9685Config) (*PCA9685, error) {
	if cfg.Channel < 0 || cfg.Channel > 15 {
		return nil, fmt.Errorf("invalid pca9685 channel %d", cfg.Channel)
	}
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to init periph host: %w", err)
	}
	bus, err := i2creg.Open(cfg.Bus)
	if err != nil {
		return nil, fmt.Errorf("failed to open i2c bus %q: %w", cfg.Bus, err)
	}
	dev, err := pca9685.NewI2C(bus, cfg.Addr)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("failed to open pca9685 at 0x%02x: %w", cfg.Addr, err)
	}
	if err := dev.SetPwmFreq(50 * physic.Hertz); err != nil {
		bus.Close()
		return nil, fmt.Errorf("failed to set pwm frequency: %w", err)
	}
	p := newPCA9685(dev, cfg.Channel, cfg.Pulse)
	p.bus = bus
	return p, nil
}

func newPCA9685(dev pwmSetter, channel int, pulse PulseConfig) *PCA9685 {
	return &PCA9685{dev: dev, channel: channel, pulse: pulse}
}

// dutyCounts 把脉宽换算成 20ms 周期内的 12 位计数
func dutyCounts(us float64) gpio.Duty {
	return gpio.Duty(math.Round(us / PeriodUs * pcaCounts))
}

// SetAngle 设置舵机角度
func (p *PCA9685) SetAngle(deg float64) error {
	off := dutyCounts(PulseWidth(deg, p.pulse))
	if err := p.dev.SetPwm(p.channel, 0, off); err != nil {
		return fmt.Errorf("failed to set pwm: %w", err)
	}
	p.last = deg
	return nil
}

// Angle 返回最后一次成功设置的角度
func (p *PCA9685) Angle() float64 {
	return p.last
}

// Close 关闭 I2C 总线
func (p *PCA9685) Close() error {
	if p.bus != nil {
		return p.bus.Close()
	}
	return nil
}

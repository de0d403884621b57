package Actuator

import (
	"fmt"
	"io"
	"math"

	"go.bug.st/serial"
)

// Pololu Maestro 紧凑协议
const maestroSetTarget = 0x84

// MaestroConfig Maestro 舵机控制器参数
type MaestroConfig struct {
	Port    string
	Baud    int
	Channel int
	Pulse   PulseConfig
}

// Maestro 通过 USB 串口驱动 Pololu Maestro 上的一路舵机
type Maestro struct {
	port    io.WriteCloser
	channel byte
	pulse   PulseConfig
	last    float64
}

// OpenMaestro 打开控制器的命令串口
func OpenMaestro(cfg MaestroConfig) (*Maestro, error) {
	if cfg.Channel < 0 || cfg.Channel > 23 {
		return nil, fmt.Errorf("invalid maestro channel %d", cfg.Channel)
	}
	mode := &serial.Mode{
		BaudRate: cfg.Baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(cfg.Port, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open maestro port %s: %w", cfg.Port, err)
	}
	return NewMaestro(port, cfg.Channel, cfg.Pulse), nil
}

// NewMaestro 用已打开的连接创建驱动
func NewMaestro(port io.WriteCloser, channel int, pulse PulseConfig) *Maestro {
	return &Maestro{port: port, channel: byte(channel), pulse: pulse}
}

// SetAngle 发送 Set Target 命令，目标值单位为 0.25us
func (m *Maestro) SetAngle(deg float64) error {
	target := uint16(math.Round(PulseWidth(deg, m.pulse) * 4))
	frame := []byte{maestroSetTarget, m.channel, byte(target & 0x7F), byte((target >> 7) & 0x7F)}
	if _, err := m.port.Write(frame); err != nil {
		return fmt.Errorf("failed to set maestro target: %w", err)
	}
	m.last = deg
	return nil
}

// Angle 返回最后一次成功设置的角度
func (m *Maestro) Angle() float64 {
	return m.last
}

// Close 关闭串口
func (m *Maestro) Close() error {
	return m.port.Close()
}

package Actuator

import (
	"log"
	"sync"
)

// Dummy 没有硬件时使用，只记录角度
type Dummy struct {
	mu      sync.Mutex
	logger  *log.Logger // 为 nil 时不打印
	angles  []float64
	history int
}

// NewDummy 创建虚拟舵机，history 为保留的历史角度个数
func NewDummy(logger *log.Logger, history int) *Dummy {
	return &Dummy{logger: logger, history: history}
}

// SetAngle 记录角度
func (d *Dummy) SetAngle(deg float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.angles = append(d.angles, deg)
	if d.history > 0 && len(d.angles) > d.history {
		d.angles = d.angles[len(d.angles)-d.history:]
	}
	if d.logger != nil {
		d.logger.Printf("[SERVO] %.1f°", deg)
	}
	return nil
}

// Angles 返回历史角度的副本
func (d *Dummy) Angles() []float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]float64(nil), d.angles...)
}

// Angle 返回最后一次设置的角度，没有设置过时返回 0
func (d *Dummy) Angle() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.angles) == 0 {
		return 0
	}
	return d.angles[len(d.angles)-1]
}

func (d *Dummy) Close() error { return nil }

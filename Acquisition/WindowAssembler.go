package Acquisition

import "sync/atomic"

// WindowAssembler 把连续的采样流切成定长窗口，通过 1 格通道交给测量循环
// 如果循环还没取走上一个窗口，新窗口被丢弃而不是排队
type WindowAssembler struct {
	size    int
	buf     []float64
	out     chan []float64
	dropped atomic.Uint64
}

// NewWindowAssembler 创建窗口长度为 size 的组装器
func NewWindowAssembler(size int) *WindowAssembler {
	return &WindowAssembler{
		size: size,
		buf:  make([]float64, 0, size),
		out:  make(chan []float64, 1),
	}
}

// Push 追加采样，窗口满时尝试交付
// 只能从一个 goroutine 调用 (采集回调)
func (wa *WindowAssembler) Push(samples []float64) {
	for len(samples) > 0 {
		n := wa.size - len(wa.buf)
		if n > len(samples) {
			n = len(samples)
		}
		wa.buf = append(wa.buf, samples[:n]...)
		samples = samples[n:]

		if len(wa.buf) == wa.size {
			select {
			case wa.out <- wa.buf:
				wa.buf = make([]float64, 0, wa.size)
			default:
				wa.dropped.Add(1)
				wa.buf = wa.buf[:0]
			}
		}
	}
}

// Windows 返回完整窗口的通道
func (wa *WindowAssembler) Windows() <-chan []float64 {
	return wa.out
}

// Dropped 返回因消费者太慢而丢弃的窗口数
func (wa *WindowAssembler) Dropped() uint64 {
	return wa.dropped.Load()
}

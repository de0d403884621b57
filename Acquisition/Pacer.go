package Acquisition

import (
	"context"
	"time"
)

// pacer 让离线数据源按真实时间节奏交付窗口
// 上一次交付后至少间隔 interval 才返回
type pacer struct {
	interval time.Duration
	lastread time.Time
}

func newPacer(interval time.Duration) *pacer {
	return &pacer{interval: interval, lastread: time.Now()}
}

// wait 阻塞到下一个窗口时刻，ctx 取消时返回 ctx.Err()
func (p *pacer) wait(ctx context.Context) error {
	nextread := p.lastread.Add(p.interval)
	waittime := time.Until(nextread)
	if waittime > 0 {
		timer := time.NewTimer(waittime)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	p.lastread = time.Now()
	return nil
}

// windowDuration 返回 n 个采样点对应的时长
func windowDuration(n int, sampleRate float64) time.Duration {
	return time.Duration(float64(n) / sampleRate * float64(time.Second))
}

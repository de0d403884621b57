package gridseis

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"sync"
)

// Record 是每个测量周期输出的一行遥测
// JSON 键名与采集脚本保持一致: {"t":..,"freq":..,"smoothed":..,"signal":..}
type Record struct {
	TimestampMs int64   `json:"t"`
	FrequencyHz float64 `json:"freq"`
	SmoothedHz  float64 `json:"smoothed"`
	Amplitude   float64 `json:"signal"`
}

// AppendLine 把记录格式化为一行 JSON (含换行) 追加到 dst
// 频率保留 4 位小数，幅度保留 3 位
func (r Record) AppendLine(dst []byte) []byte {
	dst = append(dst, `{"t":`...)
	dst = strconv.AppendInt(dst, r.TimestampMs, 10)
	dst = append(dst, `,"freq":`...)
	dst = appendNumber(dst, r.FrequencyHz, 4)
	dst = append(dst, `,"smoothed":`...)
	dst = appendNumber(dst, r.SmoothedHz, 4)
	dst = append(dst, `,"signal":`...)
	dst = appendNumber(dst, r.Amplitude, 3)
	dst = append(dst, "}\n"...)
	return dst
}

// JSON 不能表示 NaN/Inf，输出 null
func appendNumber(dst []byte, v float64, prec int) []byte {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return append(dst, "null"...)
	}
	return strconv.AppendFloat(dst, v, 'f', prec, 64)
}

// TelemetryWriter 把记录逐行写到下游 (stdout 或串口)
// 写入是同步的，下游慢会直接拖慢测量循环
type TelemetryWriter struct {
	mu  sync.Mutex
	w   io.Writer
	buf []byte
}

// NewTelemetryWriter 创建遥测输出
func NewTelemetryWriter(w io.Writer) *TelemetryWriter {
	return &TelemetryWriter{w: w, buf: make([]byte, 0, 96)}
}

// Emit 写出一行记录
func (t *TelemetryWriter) Emit(r Record) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = r.AppendLine(t.buf[:0])
	if _, err := t.w.Write(t.buf); err != nil {
		return fmt.Errorf("failed to write telemetry: %w", err)
	}
	return nil
}

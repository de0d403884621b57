package gridseis

import (
	"bufio"
	"fmt"
	"os"
)

// CycleDebugger 记录每个周期的解调中间量
// Monitor 只依赖这个接口，不依赖具体的文件操作
type CycleDebugger interface {
	Record(cycle int, est Estimate)
	Close() error
}

// CsvCycleDebugger 把解调中间量写成 CSV，便于离线分析相位跳变
type CsvCycleDebugger struct {
	file   *os.File
	writer *bufio.Writer
}

// NewCsvCycleDebugger 创建 CSV 调试器并写入表头
func NewCsvCycleDebugger(filename string) (*CsvCycleDebugger, error) {
	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create debug csv: %w", err)
	}

	w := bufio.NewWriter(f)
	if _, err := w.WriteString("Cycle,I,Q,Phase,Delta,Frequency,Amplitude\n"); err != nil {
		f.Close()
		return nil, err
	}

	return &CsvCycleDebugger{
		file:   f,
		writer: w,
	}, nil
}

// Record 记录一个周期
func (d *CsvCycleDebugger) Record(cycle int, est Estimate) {
	fmt.Fprintf(d.writer, "%d,%f,%f,%f,%f,%f,%f\n",
		cycle, est.IQ.I, est.IQ.Q, est.Phase, est.Delta, est.FrequencyHz, est.Amplitude)
}

// Close 刷新缓冲区并关闭文件
func (d *CsvCycleDebugger) Close() error {
	if d.writer != nil {
		if err := d.writer.Flush(); err != nil {
			d.file.Close()
			return err
		}
	}
	if d.file != nil {
		return d.file.Close()
	}
	return nil
}

// NoOpDebugger 是空实现，不记录数据时使用
type NoOpDebugger struct{}

func (NoOpDebugger) Record(cycle int, est Estimate) {}
func (NoOpDebugger) Close() error                   { return nil }

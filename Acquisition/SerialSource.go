package Acquisition

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/tarm/serial"
)

var ErrMalformedReading = errors.New("malformed ADC reading")

// SerialPort 定义串口操作接口，方便测试 Mock
type SerialPort interface {
	io.ReadCloser
}

// SerialConfig 串口 ADC 参数
type SerialConfig struct {
	Port      string
	Baud      int
	HalfScale float64 // 读数范围为 [0, 2*HalfScale)，减去 HalfScale 后得到去直流采样
}

// SerialSource 从串口读取 ADC 读数，每行一个十进制整数
// 任何一行解析失败都会丢弃当前窗口，下次调用从头开始填充
type SerialSource struct {
	conn      SerialPort
	reader    *bufio.Reader
	halfScale float64
	// tarm/serial 读超时返回 io.EOF，真实串口上需要把它当作 "暂时没数据"
	eofIsTimeout bool
	pending      string // 超时时读到的半行
	faults       int
}

// OpenSerialSource 打开串口
func OpenSerialSource(cfg SerialConfig) (*SerialSource, error) {
	config := &serial.Config{
		Name:        cfg.Port,
		Baud:        cfg.Baud,
		ReadTimeout: time.Millisecond * 500,
	}
	p, err := serial.OpenPort(config)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", cfg.Port, err)
	}
	s := NewSerialSource(p, cfg.HalfScale)
	s.eofIsTimeout = true
	return s, nil
}

// NewSerialSource 用已打开的连接创建数据源
func NewSerialSource(conn SerialPort, halfScale float64) *SerialSource {
	return &SerialSource{
		conn:      conn,
		reader:    bufio.NewReader(conn),
		halfScale: halfScale,
	}
}

// Faults 返回被丢弃的窗口数
func (s *SerialSource) Faults() int {
	return s.faults
}

// ReadWindow 读满 len(window) 个读数
func (s *SerialSource) ReadWindow(ctx context.Context, window []float64) error {
	filled := 0
	for filled < len(window) {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, err := s.reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) && s.eofIsTimeout {
				s.pending += line
				continue
			}
			// 流结束时最后一行可以没有换行符
			if !errors.Is(err, io.EOF) || line == "" {
				s.pending = ""
				return err
			}
		}
		line, s.pending = s.pending+line, ""

		text := strings.TrimSpace(line)
		if text == "" {
			continue
		}
		v, perr := s.parse(text)
		if perr != nil {
			s.faults++
			return perr
		}
		window[filled] = v
		filled++
	}
	return nil
}

// parse 解析一行读数并去直流
func (s *SerialSource) parse(text string) (float64, error) {
	raw, err := strconv.Atoi(text)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrMalformedReading, text)
	}
	if raw < 0 || float64(raw) >= 2*s.halfScale {
		return 0, fmt.Errorf("%w: %d out of range", ErrMalformedReading, raw)
	}
	return float64(raw) - s.halfScale, nil
}

// Close 关闭串口
func (s *SerialSource) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

package Acquisition

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"unsafe"

	"github.com/gen2brain/malgo"
)

// AudioConfig 声卡采集参数
type AudioConfig struct {
	DeviceName  string  // 设备名子串，空为默认设备
	CaptureRate int     // 声卡采样率
	SampleRate  float64 // 降采样后的目标采样率
	WindowSize  int
	FilterOrder int
	HalfScale   float64 // 满幅 ±1.0 对应 ±HalfScale 计数
}

// AudioSource 通过声卡线路输入拾取工频 (例如接一段感应线圈)
// 回调线程只操作自己的降采样器和窗口组装器
type AudioSource struct {
	ctx       *malgo.AllocatedContext
	device    *malgo.Device
	decimator *Decimator
	assembler *WindowAssembler
	halfScale float64
	scratch   []float64
	decimated []float64

	closeOnce sync.Once
	done      chan struct{}
}

// NewAudioSource 初始化声卡设备 (尚未开始采集)
func NewAudioSource(cfg AudioConfig, logger *log.Logger) (*AudioSource, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	dec, err := NewDecimator(float64(cfg.CaptureRate), cfg.SampleRate, cfg.FilterOrder)
	if err != nil {
		return nil, err
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to init malgo context: %w", err)
	}

	as := &AudioSource{
		ctx:       ctx,
		decimator: dec,
		assembler: NewWindowAssembler(cfg.WindowSize),
		halfScale: cfg.HalfScale,
		done:      make(chan struct{}),
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = uint32(cfg.CaptureRate)
	deviceConfig.Alsa.NoMMap = 1

	if cfg.DeviceName != "" {
		infos, err := ctx.Devices(malgo.Capture)
		if err == nil {
			for _, info := range infos {
				if strings.Contains(strings.ToLower(info.Name()), strings.ToLower(cfg.DeviceName)) {
					deviceConfig.Capture.DeviceID = info.ID.Pointer()
					logger.Printf("Selected audio device: %s", info.Name())
					break
				}
			}
		}
	}

	onRecvFrames := func(pOutputSample, pInputSamples []byte, framecount uint32) {
		if len(pInputSamples) == 0 {
			return
		}
		samples := unsafe.Slice((*float32)(unsafe.Pointer(&pInputSamples[0])), int(framecount))
		as.push(samples)
	}

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, malgo.DeviceCallbacks{Data: onRecvFrames})
	if err != nil {
		_ = ctx.Uninit()
		ctx.Free()
		return nil, fmt.Errorf("failed to init device: %w", err)
	}
	as.device = device

	if int(device.SampleRate()) != cfg.CaptureRate {
		device.Uninit()
		_ = ctx.Uninit()
		ctx.Free()
		return nil, fmt.Errorf("audio device runs at %d Hz, want %d Hz", device.SampleRate(), cfg.CaptureRate)
	}
	logger.Printf("Audio device initialized: %d Hz, decimating by %d", device.SampleRate(), dec.Factor())
	return as, nil
}

// push 在采集回调中执行: 转换、降采样、组装窗口
func (as *AudioSource) push(samples []float32) {
	as.scratch = as.scratch[:0]
	for _, v := range samples {
		as.scratch = append(as.scratch, float64(v)*as.halfScale)
	}
	as.decimated = as.decimator.Process(as.decimated[:0], as.scratch)
	as.assembler.Push(as.decimated)
}

// Start 开始采集
func (as *AudioSource) Start() error {
	if as.device == nil {
		return fmt.Errorf("device not initialized")
	}
	return as.device.Start()
}

// Dropped 返回被丢弃的窗口数
func (as *AudioSource) Dropped() uint64 {
	return as.assembler.Dropped()
}

// ReadWindow 等待下一个完整窗口
func (as *AudioSource) ReadWindow(ctx context.Context, window []float64) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-as.done:
		return io.EOF
	case w := <-as.assembler.Windows():
		if len(w) != len(window) {
			return fmt.Errorf("audio window has %d samples, want %d", len(w), len(window))
		}
		copy(window, w)
		return nil
	}
}

// Close 停止采集并释放资源
func (as *AudioSource) Close() error {
	as.closeOnce.Do(func() {
		close(as.done)
		if as.device != nil {
			as.device.Uninit()
			as.device = nil
		}
		if as.ctx != nil {
			_ = as.ctx.Uninit()
			as.ctx.Free()
			as.ctx = nil
		}
	})
	return nil
}

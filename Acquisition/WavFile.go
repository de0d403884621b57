package Acquisition

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

var ErrInvalidWav = errors.New("invalid wav file")

// WavReader 读取 16-bit PCM WAV，多声道时只取第一个声道
type WavReader struct {
	file       *os.File
	SampleRate int
	Channels   int
	DataSize   int
	remaining  int // data 块剩余字节
	buf        []byte
}

// OpenWavReader 解析 RIFF 头并定位到 data 块
func OpenWavReader(filename string) (*WavReader, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	r, err := newWavReader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

func newWavReader(f *os.File) (*WavReader, error) {
	var riff [12]byte
	if _, err := io.ReadFull(f, riff[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWav, err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return nil, fmt.Errorf("%w: missing RIFF/WAVE header", ErrInvalidWav)
	}

	r := &WavReader{file: f}
	bitsPerSample := 0
	foundFmt := false
	for {
		var hdr [8]byte
		if _, err := io.ReadFull(f, hdr[:]); err != nil {
			return nil, fmt.Errorf("%w: missing data chunk", ErrInvalidWav)
		}
		id := string(hdr[0:4])
		size := int64(binary.LittleEndian.Uint32(hdr[4:8]))
		pad := size % 2

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, fmt.Errorf("%w: fmt chunk too small", ErrInvalidWav)
			}
			body := make([]byte, size+pad)
			if _, err := io.ReadFull(f, body); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidWav, err)
			}
			r.Channels = int(binary.LittleEndian.Uint16(body[2:4]))
			r.SampleRate = int(binary.LittleEndian.Uint32(body[4:8]))
			bitsPerSample = int(binary.LittleEndian.Uint16(body[14:16]))
			foundFmt = true
		case "data":
			if !foundFmt {
				return nil, fmt.Errorf("%w: data chunk before fmt chunk", ErrInvalidWav)
			}
			if bitsPerSample != 16 {
				return nil, fmt.Errorf("only 16-bit wav supported, got %d", bitsPerSample)
			}
			if r.Channels < 1 {
				return nil, fmt.Errorf("%w: %d channels", ErrInvalidWav, r.Channels)
			}
			r.DataSize = int(size)
			r.remaining = int(size)
			return r, nil
		default:
			if _, err := f.Seek(size+pad, io.SeekCurrent); err != nil {
				return nil, err
			}
		}
	}
}

// ReadFrames 读取最多 len(dst) 帧，返回 [-1, 1) 范围的第一声道采样
// 数据读完时返回 0, io.EOF
func (r *WavReader) ReadFrames(dst []float64) (int, error) {
	frameBytes := 2 * r.Channels
	want := len(dst) * frameBytes
	if want > r.remaining {
		want = r.remaining - r.remaining%frameBytes
	}
	if want == 0 {
		return 0, io.EOF
	}
	if cap(r.buf) < want {
		r.buf = make([]byte, want)
	}
	buf := r.buf[:want]
	n, err := io.ReadFull(r.file, buf)
	r.remaining -= n
	frames := n / frameBytes
	for i := 0; i < frames; i++ {
		val := int16(binary.LittleEndian.Uint16(buf[i*frameBytes:]))
		dst[i] = float64(val) / 32768.0
	}
	if err != nil && frames == 0 {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			err = io.EOF
		}
		return 0, err
	}
	return frames, nil
}

// Close 关闭文件
func (r *WavReader) Close() error {
	return r.file.Close()
}

// WavWriter 写 16-bit 单声道 PCM WAV，关闭时回写头部长度
type WavWriter struct {
	file       *os.File
	sampleRate int
	dataSize   int
	buf        []byte
}

// CreateWavWriter 创建文件并写入占位头
func CreateWavWriter(filename string, sampleRate int) (*WavWriter, error) {
	f, err := os.Create(filename)
	if err != nil {
		return nil, err
	}
	w := &WavWriter{file: f, sampleRate: sampleRate}
	if _, err := f.Write(w.header()); err != nil {
		f.Close()
		return nil, err
	}
	return w, nil
}

// WriteFrames 写入 [-1, 1] 范围的采样，超出部分削顶
func (w *WavWriter) WriteFrames(samples []float64) error {
	need := len(samples) * 2
	if cap(w.buf) < need {
		w.buf = make([]byte, need)
	}
	buf := w.buf[:need]
	for i, s := range samples {
		if s > 1.0 {
			s = 1.0
		} else if s < -1.0 {
			s = -1.0
		}
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(int16(s*32767)))
	}
	n, err := w.file.Write(buf)
	w.dataSize += n
	return err
}

// header 生成 44 字节的 PCM 头
func (w *WavWriter) header() []byte {
	h := make([]byte, 44)
	copy(h[0:], "RIFF")
	binary.LittleEndian.PutUint32(h[4:], uint32(36+w.dataSize))
	copy(h[8:], "WAVE")
	copy(h[12:], "fmt ")
	binary.LittleEndian.PutUint32(h[16:], 16)                     // PCM fmt 块长度
	binary.LittleEndian.PutUint16(h[20:], 1)                      // PCM
	binary.LittleEndian.PutUint16(h[22:], 1)                      // 单声道
	binary.LittleEndian.PutUint32(h[24:], uint32(w.sampleRate))   // 采样率
	binary.LittleEndian.PutUint32(h[28:], uint32(w.sampleRate*2)) // 字节率
	binary.LittleEndian.PutUint16(h[32:], 2)                      // 块对齐
	binary.LittleEndian.PutUint16(h[34:], 16)                     // 位深
	copy(h[36:], "data")
	binary.LittleEndian.PutUint32(h[40:], uint32(w.dataSize))
	return h
}

// Close 回写头部并关闭文件
func (w *WavWriter) Close() error {
	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		w.file.Close()
		return err
	}
	if _, err := w.file.Write(w.header()); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}

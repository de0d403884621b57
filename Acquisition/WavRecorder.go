package Acquisition

// WavRecorder 把每个采集到的窗口写入单声道 WAV，方便之后回放复现
type WavRecorder struct {
	writer    *WavWriter
	halfScale float64
	scratch   []float64
}

// NewWavRecorder 创建录音文件
func NewWavRecorder(filename string, sampleRate int, halfScale float64) (*WavRecorder, error) {
	w, err := CreateWavWriter(filename, sampleRate)
	if err != nil {
		return nil, err
	}
	return &WavRecorder{writer: w, halfScale: halfScale}, nil
}

// WriteWindow 按半量程归一化后写入
func (r *WavRecorder) WriteWindow(window []float64) error {
	r.scratch = r.scratch[:0]
	for _, v := range window {
		r.scratch = append(r.scratch, v/r.halfScale)
	}
	return r.writer.WriteFrames(r.scratch)
}

// Close 回写 WAV 头并关闭
func (r *WavRecorder) Close() error {
	return r.writer.Close()
}

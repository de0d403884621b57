package gridseis

// Dial 描述频率到指针角度的映射
// 频率低于标称时指针向大角度偏转，高于标称时向小角度偏转
type Dial struct {
	NominalHz   float64
	HalfRangeHz float64 // 满偏对应的频率偏差
	CenterDeg   float64 // 标称频率对应的角度 (默认 90)
	SwingDeg    float64 // 满偏时相对中心的角度 (默认 45)
}

// DefaultDial 返回 50Hz ±0.15Hz、90°±45° 的表盘
func DefaultDial() Dial {
	return Dial{
		NominalHz:   50.0,
		HalfRangeHz: 0.15,
		CenterDeg:   90.0,
		SwingDeg:    45.0,
	}
}

// MapAngle 把频率线性映射为角度
// angle = center - ((f - nominal) / halfRange) * swing
// 不做限幅，超出范围的频率会得到超出 [center-swing, center+swing] 的角度
func MapAngle(freqHz float64, d Dial) float64 {
	normalized := (freqHz - d.NominalHz) / d.HalfRangeHz
	return d.CenterDeg - normalized*d.SwingDeg
}

// ClampAngle 把角度限制在执行器的物理范围内
func ClampAngle(angle, minDeg, maxDeg float64) float64 {
	if angle < minDeg {
		return minDeg
	}
	if angle > maxDeg {
		return maxDeg
	}
	return angle
}

// Bounds 返回满量程对应的频率下限、标称和上限
func (d Dial) Bounds() (minHz, nominalHz, maxHz float64) {
	return d.NominalHz - d.HalfRangeHz, d.NominalHz, d.NominalHz + d.HalfRangeHz
}

package Actuator

// PulseConfig 舵机脉宽范围
// 标准舵机 0° 对应约 500us，180° 对应约 2500us，周期 20ms
type PulseConfig struct {
	MinUs float64
	MaxUs float64
}

// DefaultPulse 返回 500-2500us
func DefaultPulse() PulseConfig {
	return PulseConfig{MinUs: 500, MaxUs: 2500}
}

// PeriodUs 是 50Hz 舵机信号的周期
const PeriodUs = 20000.0

// PulseWidth 把 [0, 180] 度线性映射为脉宽 (us)，超出范围先限幅
func PulseWidth(angle float64, cfg PulseConfig) float64 {
	if angle < 0 {
		angle = 0
	}
	if angle > 180 {
		angle = 180
	}
	return cfg.MinUs + angle/180.0*(cfg.MaxUs-cfg.MinUs)
}

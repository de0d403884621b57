package Filters

// ExpSmoother 一阶指数滑动平均
// y = alpha*x + (1-alpha)*y
type ExpSmoother struct {
	Alpha float64
	value float64
}

// NewExpSmoother 创建平滑器，initial 为起始值 (通常取标称频率)
func NewExpSmoother(alpha, initial float64) *ExpSmoother {
	return &ExpSmoother{Alpha: alpha, value: initial}
}

// Update 输入一个新值，返回平滑后的值
func (s *ExpSmoother) Update(x float64) float64 {
	s.value = s.Alpha*x + (1.0-s.Alpha)*s.value
	return s.value
}

// Value 返回当前平滑值
func (s *ExpSmoother) Value() float64 {
	return s.value
}

// Reset 把平滑值重置为 v
func (s *ExpSmoother) Reset(v float64) {
	s.value = v
}

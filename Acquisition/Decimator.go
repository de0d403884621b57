package Acquisition

import (
	"fmt"
	"math"

	"gridseis/Filters"
)

// Decimator 先做抗混叠低通，再按整数倍抽取
type Decimator struct {
	filter *Filters.ButterworthFilter
	factor int
	pos    int
}

// NewDecimator 创建 inRate -> outRate 的降采样器
// inRate 必须是 outRate 的整数倍，截止频率取 outRate 的 0.4 倍
func NewDecimator(inRate, outRate float64, order int) (*Decimator, error) {
	if inRate <= 0 || outRate <= 0 {
		return nil, fmt.Errorf("invalid decimation rates %v -> %v", inRate, outRate)
	}
	ratio := inRate / outRate
	factor := int(math.Round(ratio))
	if factor < 1 || math.Abs(ratio-float64(factor)) > 1e-9 {
		return nil, fmt.Errorf("input rate %v is not an integer multiple of %v", inRate, outRate)
	}
	d := &Decimator{factor: factor}
	if factor > 1 {
		if order <= 0 {
			order = 8
		}
		d.filter = Filters.NewButterworthLowpass(order, inRate, 0.4*outRate)
	}
	return d, nil
}

// Factor 返回抽取倍数
func (d *Decimator) Factor() int {
	return d.factor
}

// Process 滤波并抽取，结果追加到 dst
// 抽取相位在多次调用之间保持连续
func (d *Decimator) Process(dst []float64, in []float64) []float64 {
	for _, v := range in {
		if d.filter != nil {
			v = d.filter.Process(v)
		}
		if d.pos == 0 {
			dst = append(dst, v)
		}
		d.pos++
		if d.pos == d.factor {
			d.pos = 0
		}
	}
	return dst
}

package preview

import "math"

// 波形显示的 dB 范围
const (
	minDisplayDB = -60.0
	maxDisplayDB = 0.0
)

// peakReducer 把采样按块归约成 0..1 的对数峰值，每块一个值
type peakReducer struct {
	perPeak   int
	fullScale float64
	cur       float64
	n         int
	peaks     []float64
}

func newPeakReducer(perPeak int, fullScale float64) *peakReducer {
	if perPeak < 1 {
		perPeak = 1
	}
	return &peakReducer{perPeak: perPeak, fullScale: fullScale}
}

// add 送入一帧（多声道时取各声道绝对值最大者）
func (r *peakReducer) add(frame ...int) {
	for _, v := range frame {
		a := math.Abs(float64(v))
		if a > r.cur {
			r.cur = a
		}
	}
	r.n++
	if r.n >= r.perPeak {
		r.flush()
	}
}

func (r *peakReducer) flush() {
	if r.n == 0 {
		return
	}
	r.peaks = append(r.peaks, toDisplay(r.cur/r.fullScale))
	r.cur, r.n = 0, 0
}

func (r *peakReducer) result() []float64 {
	r.flush()
	if r.peaks == nil {
		return []float64{}
	}
	return r.peaks
}

// toDisplay 线性幅度转为 0..1 的显示高度
func toDisplay(linear float64) float64 {
	db := minDisplayDB
	if linear >= 1e-6 {
		db = 20 * math.Log10(linear)
	}
	db = math.Min(maxDisplayDB, math.Max(minDisplayDB, db))
	return (db - minDisplayDB) / (maxDisplayDB - minDisplayDB)
}

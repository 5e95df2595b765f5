// 随机数引擎，包装了golang.org/x/exp/rand，提供了一些常用的随机数生成方法
package randengine

import "golang.org/x/exp/rand"

// Engine 随机数引擎
// 功能：基于golang.org/x/exp/rand提供可复现的随机数
// 说明：每个智能体使用 配置种子+自身ID 创建独立引擎，结果与遍历顺序无关
type Engine struct {
	*rand.Rand // 底层随机数生成器
}

// New 创建随机数引擎
// 参数：seed-随机数种子
func New(seed uint64) *Engine {
	return &Engine{Rand: rand.New(rand.NewSource(seed))}
}

// ForAgent 为智能体创建独立的引擎，kind区分车辆与行人
func ForAgent(seed uint64, kind, id int32) *Engine {
	return New(seed ^ uint64(kind)<<32 ^ uint64(uint32(id)))
}

// Noise 返回[1-scale, 1+scale)内均匀分布的乘性扰动（非线程安全）
// 说明：scale为0时恒为1，不消耗随机数
func (e *Engine) Noise(scale float64) float64 {
	if scale == 0 {
		return 1
	}
	return 1 + scale*(2*e.Float64()-1)
}

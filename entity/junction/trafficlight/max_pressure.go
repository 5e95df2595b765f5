// 提供Max Pressure信号灯控制算法
// 不会按照原来的相位顺序切换，而是在每个相位结束后计算所有相位的pressure，选取pressure最大的相位
package trafficlight

import (
	"errors"

	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	"github.com/mshenfield/abstreet/utils/container"
	"github.com/samber/lo"
)

var (
	ErrMaxPressure = errors.New("mp: cannot set traffic light with traffic light algorithm")
)

// ITurn 最大压力法读取的转向信息
type ITurn interface {
	IsCrosswalk() bool // 是否为人行横道
	Pressure() float64 // 转向压力（如排队请求数）
}

// MaxPressureOptions 最大压力法参数
type MaxPressureOptions struct {
	YellowTime          float64 // 黄灯时间
	PedestrianClearTime float64 // 行人清空时间
	AllRedTime          float64 // 全红时间
	PhaseTime           float64 // 相位时间
	MaxRepeatCount      int     // 每个相位最多重复的次数
}

// DefaultMaxPressureOptions 默认最大压力法参数
var DefaultMaxPressureOptions = MaxPressureOptions{
	YellowTime:          3,
	PedestrianClearTime: 5,
	AllRedTime:          3,
	PhaseTime:           15,
	MaxRepeatCount:      6,
}

// mpTlRuntime 最大压力信号灯运行时数据结构
// 功能：存储最大压力算法的运行时状态，包括相位信息、时间控制、过渡状态等
type mpTlRuntime struct {
	phases           [][]mapv2.LightState // 可供最大压力算法选择的相位列表
	index            int                  // 当前相位
	repeatCount      int                  // 当前相位重复的次数
	remainingT       float64              // 当前相位剩余时间
	transitionPhases [][]mapv2.LightState // 过渡相位 包含行人清空、黄灯和全红等相位
	transitionTimes  []float64            // 过渡相位持续时长

	nextIndex int // 黄灯状态后的下一个相位
}

// mpTrafficLight 最大压力信号灯控制器
// 功能：根据转向压力动态选择相位
type mpTrafficLight struct {
	junctionID         int32
	turns              []ITurn
	opts               MaxPressureOptions
	snapshotState      []mapv2.LightState // 本步各转向灯色
	snapshotRemainingT float64            // 本步剩余时间
	runtime            mpTlRuntime
}

// NewMaxPressureTrafficLight 创建Max Pressure算法信号灯控制器
// 参数：junctionID-路口ID，turns-按路口顺序排列的转向，phases-可用相位列表
func NewMaxPressureTrafficLight(
	junctionID int32, turns []ITurn, phases [][]mapv2.LightState, opts MaxPressureOptions,
) *mpTrafficLight {
	return &mpTrafficLight{
		junctionID: junctionID,
		turns:      turns,
		opts:       opts,
		runtime:    mpTlRuntime{phases: phases, remainingT: opts.PhaseTime},
	}
}

// current 当前生效的灯色
// 说明：至少需要两个相位才有信控，否则保持全绿
func (l *mpTrafficLight) current() []mapv2.LightState {
	if len(l.runtime.phases) < 2 {
		return lo.Map(l.turns, func(ITurn, int) mapv2.LightState { return mapv2.LightState_LIGHT_STATE_GREEN })
	}
	if len(l.runtime.transitionPhases) > 0 {
		return l.runtime.transitionPhases[0]
	}
	return l.runtime.phases[l.runtime.index]
}

// Prepare 准备阶段，写入snapshot
func (l *mpTrafficLight) Prepare() {
	l.snapshotRemainingT = l.runtime.remainingT
	l.snapshotState = append(l.snapshotState[:0], l.current()...)
}

// Update 更新阶段，执行最大压力算法的核心逻辑
// 算法说明：
// 1. 计算所有转向的压力值
// 2. 为每个相位计算总压力（绿灯转向压力之和）
// 3. 选择压力最大的相位作为下一个相位
// 4. 如果最大压力相位未变化且未达到最大重复次数，则延长当前相位
// 5. 生成过渡相位（行人清空、黄灯、全红）
func (l *mpTrafficLight) Update(dt float64) {
	if len(l.runtime.phases) < 2 {
		return
	}

	l.runtime.remainingT -= dt
	if l.runtime.remainingT > 0 {
		// 当前相位没走完，啥事都不干
		return
	}
	if len(l.runtime.transitionPhases) == 1 {
		// 切换相位（过渡相位->下一相位）进入下一相位
		l.runtime.index = l.runtime.nextIndex
		l.runtime.remainingT += l.opts.PhaseTime
		l.runtime.transitionPhases = nil
	} else if len(l.runtime.transitionPhases) > 1 {
		// 切换相位（过渡相位->下一个过渡相位）
		l.runtime.transitionTimes = l.runtime.transitionTimes[1:]
		l.runtime.transitionPhases = l.runtime.transitionPhases[1:]
		l.runtime.remainingT += l.runtime.transitionTimes[0]
	} else {
		l.choosePhase()
	}
	if l.runtime.remainingT <= 0 {
		log.Warnf("traffic light %d remaining time %f <= 0", l.junctionID, l.runtime.remainingT)
	}
}

// choosePhase 正常灯结束，根据最大压力计算下一相位并生成过渡相位
func (l *mpTrafficLight) choosePhase() {
	turnPressure := lo.Map(l.turns, func(t ITurn, _ int) float64 {
		return t.Pressure()
	})
	pressureHeap := container.NewPriorityQueue[int]()
	for i, phase := range l.runtime.phases {
		// 统计所有绿灯转向的压力和
		pressure := 0.
		for j, state := range phase {
			if state == mapv2.LightState_LIGHT_STATE_GREEN {
				pressure += turnPressure[j]
			}
		}
		pressureHeap.HeapPush(i, -pressure) // 小顶堆，压力越大越靠前
	}
	// 如果最大压力的相位没有变化，延时直至达到最长时间（并切换到第二大压力的相位）
	// 如果有变化，进入黄灯状态
	maxIndex, _ := pressureHeap.HeapPop()
	if maxIndex == l.runtime.index {
		if l.runtime.repeatCount >= l.opts.MaxRepeatCount {
			maxIndex, _ = pressureHeap.HeapPop()
		} else {
			l.runtime.remainingT += l.opts.PhaseTime
			l.runtime.repeatCount++
			return
		}
	}
	l.runtime.nextIndex = maxIndex
	l.runtime.repeatCount = 1
	current := l.runtime.phases[l.runtime.index]
	nextPhase := l.runtime.phases[maxIndex]
	// 行人清空相位
	clearPhase := make([]mapv2.LightState, len(l.turns))
	// 黄灯相位，把当前为绿灯、下一时刻为红灯的变为黄灯
	yellowPhase := make([]mapv2.LightState, len(l.turns))
	hasClearPhase := false
	// 全红相位
	allRedPhase := make([]mapv2.LightState, len(l.turns))
	hasAllRedPhase := false
	copy(yellowPhase, current)
	copy(clearPhase, current)
	copy(allRedPhase, nextPhase)
	for i, state := range current {
		if state == mapv2.LightState_LIGHT_STATE_GREEN && nextPhase[i] == mapv2.LightState_LIGHT_STATE_RED {
			yellowPhase[i] = mapv2.LightState_LIGHT_STATE_YELLOW
			if l.turns[i].IsCrosswalk() {
				hasClearPhase = true
				clearPhase[i] = mapv2.LightState_LIGHT_STATE_YELLOW
			}
		}
		if state == mapv2.LightState_LIGHT_STATE_RED && nextPhase[i] == mapv2.LightState_LIGHT_STATE_GREEN && !l.turns[i].IsCrosswalk() {
			allRedPhase[i] = mapv2.LightState_LIGHT_STATE_RED
			hasAllRedPhase = true
		}
	}
	// 顺序 最大压力信控相位1--行人清空相位--黄灯相位--全红相位--最大压力信控相位2
	l.runtime.transitionPhases = make([][]mapv2.LightState, 0)
	l.runtime.transitionTimes = make([]float64, 0)
	if hasClearPhase {
		l.runtime.transitionPhases = append(l.runtime.transitionPhases, clearPhase)
		l.runtime.transitionTimes = append(l.runtime.transitionTimes, l.opts.PedestrianClearTime)
	}
	l.runtime.transitionPhases = append(l.runtime.transitionPhases, yellowPhase)
	l.runtime.transitionTimes = append(l.runtime.transitionTimes, l.opts.YellowTime)
	if hasAllRedPhase {
		l.runtime.transitionPhases = append(l.runtime.transitionPhases, allRedPhase)
		l.runtime.transitionTimes = append(l.runtime.transitionTimes, l.opts.AllRedTime)
	}
	l.runtime.remainingT += l.runtime.transitionTimes[0]
}

// Get 最大压力算法不保存外部程序，始终返回nil
func (l *mpTrafficLight) Get() *mapv2.TrafficLight {
	return nil
}

// Set 最大压力算法不支持外部程序设置
func (l *mpTrafficLight) Set(tl *mapv2.TrafficLight) error {
	return ErrMaxPressure
}

// Step 最大压力算法返回-1表示动态相位
func (l *mpTrafficLight) Step() int32 {
	return -1
}

// RemainingTime 获取当前相位剩余时间
func (l *mpTrafficLight) RemainingTime() float64 {
	return l.snapshotRemainingT
}

// State 第turn个转向的灯色
func (l *mpTrafficLight) State(turn int) mapv2.LightState {
	return l.snapshotState[turn]
}

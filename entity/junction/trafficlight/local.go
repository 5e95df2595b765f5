package trafficlight

import (
	"fmt"

	"git.fiblab.net/general/common/v2/protoutil"
	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
)

// localTlRuntime 本地信号灯运行时数据结构
// 功能：存储固定相位信号灯的运行时状态，包括程序、相位索引、时间控制等
type localTlRuntime struct {
	tl           *mapv2.TrafficLight
	tlStep       int32
	tlRemainingT float64
}

// localTrafficLight 本地固定相位信号灯控制器
// 功能：按照预设的相位顺序和时间循环切换
type localTrafficLight struct {
	JunctionID int32 // 所属路口ID
	numTurns   int   // 路口转向数，每个相位的States与之等长

	snapshot localTlRuntime // snapshot，本步决策读取的数据
	runtime  localTlRuntime // 运行时数据
}

// NewLocalTrafficLight 创建固定相位信号灯控制器
// 参数：junctionID-路口ID，numTurns-路口转向数
func NewLocalTrafficLight(junctionID int32, numTurns int) *localTrafficLight {
	return &localTrafficLight{
		JunctionID: junctionID,
		numTurns:   numTurns,
	}
}

// Prepare 准备阶段，写入snapshot
func (l *localTrafficLight) Prepare() {
	l.snapshot = l.runtime
}

// Update 更新阶段，按剩余时间切换相位
// 说明：时长为0的相位被跳过，一步跨过多个相位时依次扣除
func (l *localTrafficLight) Update(dt float64) {
	if l.runtime.tl == nil {
		return
	}
	l.runtime.tlRemainingT -= dt
	for l.runtime.tlRemainingT <= 0 {
		l.runtime.tlStep = (l.runtime.tlStep + 1) % int32(len(l.runtime.tl.Phases))
		l.runtime.tlRemainingT += l.runtime.tl.Phases[l.runtime.tlStep].Duration
	}
}

// Get 获取当前信号灯程序
func (l *localTrafficLight) Get() *mapv2.TrafficLight {
	return l.snapshot.tl
}

// Set 设置信号灯程序
// 功能：校验并拷贝程序，初始相位为 路口ID % 相位数
// 说明：程序在下一次Prepare后对外可见
func (l *localTrafficLight) Set(tl *mapv2.TrafficLight) error {
	if tl.JunctionId != l.JunctionID {
		return fmt.Errorf("set junction %d with wrong traffic light id %d", l.JunctionID, tl.JunctionId)
	}
	if len(tl.Phases) == 0 {
		return fmt.Errorf("set with empty traffic light")
	}
	cycle := 0.
	for _, p := range tl.Phases {
		if len(p.States) != l.numTurns {
			return fmt.Errorf("number of turns %d and traffic light states %d does not match", l.numTurns, len(p.States))
		}
		if p.Duration < 0 {
			return fmt.Errorf("negative phase duration %v", p.Duration)
		}
		cycle += p.Duration
	}
	if cycle <= 0 {
		return fmt.Errorf("traffic light of junction %d has zero cycle time", l.JunctionID)
	}
	tl = protoutil.Clone(tl)
	phaseIndex := l.JunctionID % int32(len(tl.Phases))
	l.runtime = localTlRuntime{
		tl:           tl,
		tlStep:       phaseIndex,
		tlRemainingT: tl.Phases[phaseIndex].Duration,
	}
	if l.runtime.tlRemainingT <= 0 {
		l.Update(0)
	}
	log.Debugf("junction %d: fixed program with %d phases, start at phase %d", l.JunctionID, len(tl.Phases), l.runtime.tlStep)
	return nil
}

// Step 获取当前相位索引
func (l *localTrafficLight) Step() int32 {
	return l.snapshot.tlStep
}

// RemainingTime 获取当前相位剩余时间
func (l *localTrafficLight) RemainingTime() float64 {
	return l.snapshot.tlRemainingT
}

// State 当前相位下第turn个转向的灯色，无程序时全绿
func (l *localTrafficLight) State(turn int) mapv2.LightState {
	if l.snapshot.tl == nil {
		return mapv2.LightState_LIGHT_STATE_GREEN
	}
	return l.snapshot.tl.Phases[l.snapshot.tlStep].States[turn]
}

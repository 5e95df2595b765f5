package junction

import (
	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
)

// 依赖倒置，表达junction对信号灯实现的接口需求

// 给交通参与者提供的信控读取接口
type ITrafficLightGetter interface {
	Get() *mapv2.TrafficLight        // 当前程序（最大压力法为nil）
	Step() int32                     // 当前相位（最大压力法为-1）
	RemainingTime() float64          // 当前相位剩余时长
	State(turn int) mapv2.LightState // 第turn个转向（按路口转向顺序）的灯色
}

// 信号灯接口
type ITrafficLight interface {
	ITrafficLightGetter
	Prepare()          // 准备阶段，将运行时状态写入snapshot，供本步决策读取
	Update(dt float64) // 更新阶段，推进信控相位

	Set(tl *mapv2.TrafficLight) error // 修改信控程序
}

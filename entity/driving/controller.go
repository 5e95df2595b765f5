package driving

import (
	"math"

	"git.fiblab.net/general/common/v2/mathutil"
	"github.com/mshenfield/abstreet/entity"
	"github.com/samber/lo"
)

const (
	idmTheta        = 4    // IDM速度项指数
	closeToEnd      = 0.5  // 到达目标位置的判定距离（米）
	minViewDistance = 50.0 // 最短前方观察距离（米）
	viewTime        = 12.0 // 前方观察距离 = max(v*viewTime, minViewDistance)
	requestSlack    = 1.0  // 请求转向的额外提前量（米）
	distEpsilon     = 1e-6 // 位置累加的浮点误差容限
)

// controller 车辆纵向控制器
// 功能：基于IDM计算本步加速度，只读取快照与车辆自身参数
type controller struct {
	maxA          float64
	usualBrakingA float64
	maxBrakingA   float64
	maxV          float64
	minGap        float64
	headway       float64

	v  float64 // 本步开始时的速度
	dt float64
}

func newController(c *car, dt float64) *controller {
	return &controller{
		maxA:          c.vehicle.MaxA,
		usualBrakingA: c.vehicle.UsualBrakingA,
		maxBrakingA:   c.vehicle.MaxBrakingA,
		maxV:          c.maxV,
		minGap:        c.vehicle.MinGap,
		headway:       c.vehicle.Headway,
		v:             c.v,
		dt:            dt,
	}
}

// followImpl 跟车模型核心实现
// 功能：实现智能驾驶模型(IDM)的跟车逻辑
// 参数：selfV-本车速度，targetV-目标速度，aheadV-前车速度，distance-车距，minGap-最小车距，headway-安全车头时距
// 返回：计算得到的加速度（米/秒²）
// 算法说明：
// 1. 检查是否发生碰撞（距离小于等于0）
// 2. 使用IDM模型计算期望车距：s_star = minGap + max(0, v*headway + v*(v-v_ahead)/(2*sqrt(a*b)))
// 3. 计算加速度：a = maxA * (1 - (v/targetV)^4 - (s_star/distance)^2)
// 4. 限制加速度在制动和加速范围内
func (l *controller) followImpl(
	selfV, targetV, aheadV, distance, minGap, headway float64,
) float64 {
	var acc float64
	if distance <= 0 {
		// 已贴近障碍，紧急制动
		acc = -mathutil.INF
	} else {
		// https://en.wikipedia.org/wiki/Intelligent_driver_model
		s_star := minGap + math.Max(
			0,
			selfV*headway+selfV*(selfV-aheadV)/2/math.Sqrt(-l.usualBrakingA*l.maxA),
		)
		acc = l.maxA * (1 - math.Pow(selfV/targetV, idmTheta) - math.Pow(s_star/distance, 2))
	}
	return lo.Clamp(acc, l.maxBrakingA, l.maxA)
}

// follow 跟随前车
// 参数：targetV-目标速度，aheadV-前车速度，distance-到前车车尾的距离
func (l *controller) follow(targetV, aheadV, distance float64) float64 {
	return l.followImpl(l.v, targetV, aheadV, distance, l.minGap, l.headway)
}

// stop 在指定距离内刹停（停止线、目标位置）
// 说明：停车的话，要先预判dt时间，而不需要按照跟车的headway进行计算
func (l *controller) stop(distance, targetV float64) float64 {
	return l.followImpl(l.v, targetV, 0, distance, 0, l.dt)
}

// free 前方无障碍时的加速度
func (l *controller) free(targetV float64) float64 {
	return l.followImpl(l.v, targetV, 0, mathutil.INF, 0, 0)
}

// Action 车辆动作
type Action struct {
	A float64 // 加速度（米/秒²）
}

// Update 采用取最小的方式合并加速度（最保守的制动）
func (a *Action) Update(others ...Action) {
	for _, o := range others {
		if o.A < a.A {
			a.A = o.A
		}
	}
}

// computeVAndDistance 按匀加速计算dt后的速度与行驶距离
func computeVAndDistance(v, a, dt float64) (float64, float64) {
	dv := a * dt
	if v+dv < 0 {
		// 刹车到停止
		return 0, v * v / 2 / -a
	}
	return v + dv, (v + dv/2) * dt
}

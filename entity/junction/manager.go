package junction

import (
	"fmt"

	"git.fiblab.net/general/common/v2/parallel"
	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	"github.com/mshenfield/abstreet/entity"
	"github.com/mshenfield/abstreet/entity/roadmap"
	"github.com/mshenfield/abstreet/utils/config"
	"github.com/samber/lo"
)

// Manager 路口控制状态（IntersectionSimState）
// 功能：按路口维护放行与等待状态，是路口控制状态唯一的写入方
type Manager struct {
	m *roadmap.Map

	data      map[entity.IntersectionID]*Junction
	junctions []*Junction
}

// NewManager 为地图中每个路口创建控制状态
// 说明：信号路口按配置使用固定相位程序或最大压力法
func NewManager(m *roadmap.Map, rc *config.RuntimeConfig) *Manager {
	mgr := &Manager{m: m}
	mgr.junctions = lo.Map(m.Intersections(), func(id entity.IntersectionID, _ int) *Junction {
		return newJunction(m, m.Intersection(id), rc)
	})
	mgr.data = lo.SliceToMap(mgr.junctions, func(j *Junction) (entity.IntersectionID, *Junction) {
		return j.ID(), j
	})
	mgr.Prepare()
	return mgr
}

// Get 根据ID获取路口，如果不存在则panic
func (mgr *Manager) Get(id entity.IntersectionID) *Junction {
	if j, ok := mgr.data[id]; !ok {
		log.Panicf("no id %d in junction data", id)
		return nil
	} else {
		return j
	}
}

// GetOrError 根据ID获取路口，如果不存在则返回error
func (mgr *Manager) GetOrError(id entity.IntersectionID) (*Junction, error) {
	if j, ok := mgr.data[id]; !ok {
		return nil, fmt.Errorf("no id %d in junction data", id)
	} else {
		return j, nil
	}
}

// junctionOf 转向所属路口，未知转向是调用方的错误
func (mgr *Manager) junctionOf(turn entity.TurnID) *Junction {
	if _, err := mgr.m.TurnOrError(turn); err != nil {
		log.Panicf("request unknown turn: %v", err)
	}
	j := mgr.Get(turn.Parent)
	if !j.inter.HasTurn(turn) {
		log.Panicf("%v is not a turn of junction %d", turn, j.ID())
	}
	return j
}

// RequestTurn 请求进入转向，返回是否放行
// 说明：放行保持到TurnFinished，期间重复请求同一转向返回true
func (mgr *Manager) RequestTurn(agent entity.AgentID, turn entity.TurnID, time float64) bool {
	return mgr.junctionOf(turn).requestTurn(agent, turn, time)
}

// TurnFinished 智能体离开转向，释放放行
func (mgr *Manager) TurnFinished(agent entity.AgentID, turn entity.TurnID) {
	mgr.junctionOf(turn).turnFinished(agent, turn)
}

// IsGranted 智能体是否已被放行进入转向
func (mgr *Manager) IsGranted(agent entity.AgentID, turn entity.TurnID) bool {
	t, ok := mgr.junctionOf(turn).accepted[agent]
	return ok && t == turn
}

// CancelRequests 撤销智能体在所有路口的等待请求
func (mgr *Manager) CancelRequests(agent entity.AgentID) {
	for _, j := range mgr.junctions {
		j.cancel(agent)
	}
}

// LightState 信号路口中转向的当前灯色，非信号路口返回false
func (mgr *Manager) LightState(turn entity.TurnID) (mapv2.LightState, bool) {
	j := mgr.junctionOf(turn)
	if j.trafficLight == nil {
		return 0, false
	}
	return j.lightState(turn), true
}

// AcceptedTurns 路口已放行的转向，按AgentID升序
func (mgr *Manager) AcceptedTurns(id entity.IntersectionID) []Grant {
	return mgr.Get(id).Accepted()
}

// WaitingRequests 路口等待中的请求，按先到先得顺序
func (mgr *Manager) WaitingRequests(id entity.IntersectionID) []Request {
	return mgr.Get(id).Waiting()
}

// Validate 检查所有路口的已放行转向两两不冲突
func (mgr *Manager) Validate() {
	for _, j := range mgr.junctions {
		j.validate()
	}
}

// Prepare 准备阶段，发布信号灯状态供本步决策读取
func (mgr *Manager) Prepare() {
	parallel.GoFor(mgr.junctions, func(j *Junction) { j.prepare() })
}

// Update 更新阶段，推进所有信号灯
func (mgr *Manager) Update(dt float64) {
	parallel.GoFor(mgr.junctions, func(j *Junction) { j.update(dt) })
}

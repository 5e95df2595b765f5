package task

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/mshenfield/abstreet/clock"
	"github.com/mshenfield/abstreet/entity"
	"github.com/mshenfield/abstreet/output"
	"github.com/mshenfield/abstreet/sim"
	"github.com/mshenfield/abstreet/utils/config"
	"github.com/mshenfield/abstreet/utils/input"
)

// Context 仿真任务上下文
// 功能：包含一次仿真任务的所有变量和状态
// 说明：管理时钟、仿真核心、场景输入与事件输出
type Context struct {
	// 关闭指令
	closed atomic.Bool

	// 时钟
	clock *clock.Clock
	// 运行时配置
	runtimeConfig *config.RuntimeConfig
	// 仿真核心
	sim *sim.Sim
	// 行程事件输出，未配置时为nil
	store *output.Store

	// 用于初始化的输入
	initRes *input.Input
	// 已输出的事件计数
	eventCount map[entity.TripEventKind]int
}

// NewContext 创建新的仿真任务上下文
// 算法说明：
// 1. 解析运行时配置，创建时钟
// 2. 读取场景并构建路网与仿真核心
// 3. 按配置打开事件数据库
func NewContext(c config.Config) (*Context, error) {
	rc, err := config.NewRuntimeConfig(c)
	if err != nil {
		return nil, err
	}
	in, err := input.Load(c.Input.Map)
	if err != nil {
		return nil, err
	}
	m, err := in.BuildMap()
	if err != nil {
		return nil, err
	}
	ctx := &Context{
		clock:         clock.New(c.Control.Step),
		runtimeConfig: rc,
		sim:           sim.New(m, rc),
		initRes:       in,
		eventCount:    make(map[entity.TripEventKind]int),
	}
	if c.Output.SQLite != "" {
		if ctx.store, err = output.Open(c.Output.SQLite); err != nil {
			return nil, err
		}
	}
	return ctx, nil
}

func (ctx *Context) GetInput() *input.Input {
	return ctx.initRes
}

func (ctx *Context) Clock() *clock.Clock {
	return ctx.clock
}

func (ctx *Context) Sim() *sim.Sim {
	return ctx.sim
}

func (ctx *Context) RuntimeConfig() *config.RuntimeConfig {
	return ctx.runtimeConfig
}

// EventCount 已处理的各类行程事件数
func (ctx *Context) EventCount() map[entity.TripEventKind]int {
	return ctx.eventCount
}

// Init 放置初始停放车辆并加入全部出行
// 说明：首段无法出发的出行记为放弃，不中断初始化
func (ctx *Context) Init() error {
	ctx.clock.Init()

	for _, p := range ctx.initRes.Parked() {
		if err := ctx.sim.SeedParkedCar(p.Vehicle, p.Spot); err != nil {
			return fmt.Errorf("seed parked car: %w", err)
		}
	}
	trips, err := ctx.initRes.TripSpecs(ctx.sim)
	if err != nil {
		return err
	}
	for i, spec := range trips {
		if err := ctx.reserveTargets(spec); err != nil {
			log.Warnf("skip trip #%d: %v", i, err)
			continue
		}
		if _, err := ctx.sim.SpawnTrip(spec); err != nil {
			if !errors.Is(err, sim.ErrLegSpawn) {
				return err
			}
			log.Warn(err)
		}
	}
	log.Infof("Parked: %v", len(ctx.initRes.ParkedCars))
	log.Infof("Trip: %v", len(trips))
	return nil
}

// reserveTargets 预留行程中各驾驶段的目标车位，失败时撤销本行程已做的预留
func (ctx *Context) reserveTargets(spec entity.TripSpec) error {
	done := make([]entity.ParkingSpot, 0)
	for _, l := range spec.Legs {
		if l.Mode != entity.LegDrive || l.Route.Goal.Kind != entity.GoalParkingSpot {
			continue
		}
		if err := ctx.sim.ReserveSpot(l.Route.Goal.Spot); err != nil {
			for _, s := range done {
				if err := ctx.sim.UnreserveSpot(s); err != nil {
					log.Panicf("undo reservation: %v", err)
				}
			}
			return err
		}
		done = append(done, l.Route.Goal.Spot)
	}
	return nil
}

// Close 关闭任务，可重复调用
func (ctx *Context) Close() {
	if ctx.closed.Swap(true) {
		return
	}
	if ctx.store != nil {
		if err := ctx.store.Close(); err != nil {
			log.Errorf("close store: %v", err)
		}
	}
}

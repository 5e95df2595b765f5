package task

import (
	"flag"

	"github.com/mshenfield/abstreet/entity"
	"github.com/samber/lo"
)

var (
	heartBeatInterval = flag.Int("log.heartbeat_interval", 100, "心跳日志间隔步数")
)

// prepare 准备阶段，每步执行一次
// 功能：推进时钟并定期输出心跳日志
// 返回：false表示已到结束步
func (ctx *Context) prepare() bool {
	if !ctx.clock.Next() {
		return false
	}
	if *heartBeatInterval > 0 && ctx.clock.Step%int32(*heartBeatInterval) == 0 {
		hour, minute, second := ctx.clock.GetHourMinuteSecond()
		log.Infof(
			"STEP: %d(%d:%d:%.2f) %s",
			ctx.clock.Step,
			hour, minute, second,
			ctx.sim.Summary(),
		)
	}
	return true
}

// update 更新阶段，每步执行一次
// 功能：推进仿真到当前时刻，输出本步产生的行程事件
func (ctx *Context) update() error {
	ctx.sim.StepIfNeeded(ctx.clock.T)
	events := ctx.sim.DrainTripEvents()
	for kind, n := range lo.CountValuesBy(events, func(e entity.TripEvent) entity.TripEventKind { return e.Kind }) {
		ctx.eventCount[kind] += n
	}
	if ctx.store != nil {
		if err := ctx.store.RecordTripEvents(events); err != nil {
			return err
		}
	}
	return nil
}

// Run 运行到结束步
func (ctx *Context) Run() error {
	defer ctx.Close()
	if err := ctx.Init(); err != nil {
		return err
	}
	for !ctx.closed.Load() && ctx.prepare() {
		log.Debugf("step %d: prepare complete", ctx.clock.Step)
		if err := ctx.update(); err != nil {
			return err
		}
		log.Debugf("step %d: update complete", ctx.clock.Step)
	}
	log.Infof("engine complete: %s", ctx.sim.Summary())
	return nil
}

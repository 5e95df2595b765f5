package entity

// Manager依赖倒置
// Driving/Walking只通过以下接口访问由Sim独占的停车与路口状态，
// Sim在每步内按顺序把可变访问权交给它们，从不同时交出

// entity/parking的依赖倒置
type IParkingManager interface {
	GetFreeSpots(lane LaneID) []ParkingSpot // 车道上空闲车位，按序号升序
	SpotState(spot ParkingSpot) SpotState   // 查询车位状态
	ReserveSpot(spot ParkingSpot)           // 预留车位，已预留或已占用时panic
	AddParkedCar(p ParkedCar)               // 预留车位转为占用，未预留时panic
	// 车位对应的行车道位置（车头），纯几何查询
	SpotToDrivingPos(spot ParkingSpot, vehicle Vehicle, drivingLane LaneID) Position
}

// entity/junction的依赖倒置
type IIntersectionManager interface {
	// 请求进入转向，返回是否放行；放行后保持到TurnFinished
	RequestTurn(agent AgentID, turn TurnID, time float64) bool
	// 智能体离开转向，释放放行
	TurnFinished(agent AgentID, turn TurnID)
	// 智能体是否已被放行进入转向
	IsGranted(agent AgentID, turn TurnID) bool
	// 撤销智能体所有尚未放行的请求，智能体离开仿真时调用
	CancelRequests(agent AgentID)
}

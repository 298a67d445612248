package server

import "time"

const (
	outboundQueueSize = 64
	heartbeatWindow   = 5 * time.Second

	tickBudgetAlarmMinStreak = 3
	tickBudgetAlarmMinRatio  = 2.0
)

const leaveReasonDisconnect = "disconnect"

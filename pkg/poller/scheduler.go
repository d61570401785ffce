package poller

import "time"

// Timer 可停止的定时任务
type Timer interface {
	Stop() bool
}

// Scheduler 定时调度，测试中可替换为手动推进的实现
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
	Now() time.Time
}

type clockScheduler struct{}

// NewClockScheduler 基于 time 包的调度器
func NewClockScheduler() Scheduler {
	return clockScheduler{}
}

func (clockScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

func (clockScheduler) Now() time.Time {
	return time.Now()
}

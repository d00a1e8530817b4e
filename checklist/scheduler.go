package checklist

import (
	"time"
)

type ScheduledTask interface {
	// returns false if the task already ran or was canceled
	Cancel() bool
}

// runs tasks after a delay. tasks may run on any goroutine
type Scheduler interface {
	Schedule(delay time.Duration, task func()) ScheduledTask
}

type timeScheduler struct {
}

func NewTimeScheduler() Scheduler {
	return &timeScheduler{}
}

func (self *timeScheduler) Schedule(delay time.Duration, task func()) ScheduledTask {
	return &timeScheduledTask{
		timer: time.AfterFunc(delay, task),
	}
}

type timeScheduledTask struct {
	timer *time.Timer
}

func (self *timeScheduledTask) Cancel() bool {
	return self.timer.Stop()
}

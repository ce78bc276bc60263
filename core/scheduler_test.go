package core

import "testing"

func resetSchedulerState() {
	timerList = nil
	currentTime = 0
	SetTime(0)
}

func TestTimerDispatchOrder(t *testing.T) {
	resetSchedulerState()

	var fired []string

	mk := func(name string, wake uint32) *Timer {
		timer := &Timer{WakeTime: wake}
		timer.Handler = func(*Timer) uint8 {
			fired = append(fired, name)
			return SF_DONE
		}
		return timer
	}

	// Insert out of order.
	ScheduleTimer(mk("b", 200))
	ScheduleTimer(mk("a", 100))
	ScheduleTimer(mk("c", 300))

	currentTime = 250
	TimerDispatch()

	if len(fired) != 2 || fired[0] != "a" || fired[1] != "b" {
		t.Errorf("expected [a b], got %v", fired)
	}

	currentTime = 300
	TimerDispatch()

	if len(fired) != 3 || fired[2] != "c" {
		t.Errorf("expected c to fire at 300, got %v", fired)
	}
}

func TestTimerReschedule(t *testing.T) {
	resetSchedulerState()

	count := 0
	timer := &Timer{WakeTime: 100}
	timer.Handler = func(tm *Timer) uint8 {
		count++
		if count >= 3 {
			return SF_DONE
		}
		tm.WakeTime += 100
		return SF_RESCHEDULE
	}
	ScheduleTimer(timer)

	currentTime = 1000
	TimerDispatch()

	if count != 3 {
		t.Errorf("expected 3 firings, got %d", count)
	}
	if timerList != nil {
		t.Error("timer list not empty after SF_DONE")
	}
}

func TestCancelTimer(t *testing.T) {
	resetSchedulerState()

	var fired []string

	mk := func(name string, wake uint32) *Timer {
		timer := &Timer{WakeTime: wake}
		timer.Handler = func(*Timer) uint8 {
			fired = append(fired, name)
			return SF_DONE
		}
		return timer
	}

	a := mk("a", 100)
	b := mk("b", 200)
	c := mk("c", 300)
	ScheduleTimer(a)
	ScheduleTimer(b)
	ScheduleTimer(c)

	CancelTimer(b)

	currentTime = 1000
	TimerDispatch()

	if len(fired) != 2 || fired[0] != "a" || fired[1] != "c" {
		t.Errorf("expected [a c], got %v", fired)
	}
}

func TestCancelTimerNotScheduled(t *testing.T) {
	resetSchedulerState()

	// Cancelling an unscheduled timer must not touch the list.
	orphan := &Timer{WakeTime: 100, Handler: func(*Timer) uint8 { return SF_DONE }}
	CancelTimer(orphan)

	fired := false
	timer := &Timer{WakeTime: 50}
	timer.Handler = func(*Timer) uint8 {
		fired = true
		return SF_DONE
	}
	ScheduleTimer(timer)
	CancelTimer(orphan)

	currentTime = 100
	TimerDispatch()

	if !fired {
		t.Error("scheduled timer did not fire after unrelated cancel")
	}
}

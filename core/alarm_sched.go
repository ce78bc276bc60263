// Scheduler-backed alarm driver
// Implements the AlarmDriver contract on the core timer scheduler. The
// rp2040 target dispatches it from the main loop against the hardware
// microsecond clock; tests drive it with SetTime/ProcessTimers.
package core

import "errors"

var (
	ErrNoSuchChannel = errors.New("no such hardware alarm channel")
	ErrPoolDestroyed = errors.New("alarm pool already destroyed")
	ErrZeroPeriod    = errors.New("alarm period must be nonzero")
)

// The RP2040 timer block exposes four alarm channels.
const numAlarmChannels = 4

// SchedAlarmDriver hands out alarm pools backed by the timer scheduler.
// Any number of pools may share a channel; the scheduler multiplexes
// all of their timers, so the channel reference counts exist only to
// mirror the hardware contract (configure on first use, release on
// last Destroy).
type SchedAlarmDriver struct {
	refs [numAlarmChannels]uint32
}

// NewSchedAlarmDriver creates a scheduler-backed alarm driver.
func NewSchedAlarmDriver() *SchedAlarmDriver {
	return &SchedAlarmDriver{}
}

// NewPool opens a fresh pool on the given alarm channel. Pools on the
// same channel are independent; each owns only the alarms it created.
func (d *SchedAlarmDriver) NewPool(channel uint8) (AlarmPool, error) {
	if int(channel) >= numAlarmChannels {
		return nil, ErrNoSuchChannel
	}

	state := disableInterrupts()
	defer restoreInterrupts(state)

	d.refs[channel]++

	return &schedAlarmPool{driver: d, channel: channel}, nil
}

type schedAlarmPool struct {
	driver    *SchedAlarmDriver
	channel   uint8
	alarms    *schedAlarm // owned alarms, most recently armed first
	destroyed bool
}

// schedAlarm couples a scheduler timer with its repeat callback.
type schedAlarm struct {
	timer     Timer
	periodUS  uint32
	callback  RepeatCallback
	cancelled bool
	nextAlarm *schedAlarm
}

// armedAlarms maps fired timers back to their alarms. A timer handle is
// only honored while its arming entry is present, so a late dispatch
// from a superseded alarm is a no-op rather than a use-after-teardown.
var armedAlarms = make(map[*Timer]*schedAlarm)

// AddRepeating arms cb to run every periodUS microseconds, starting one
// period from now.
func (p *schedAlarmPool) AddRepeating(periodUS uint32, cb RepeatCallback) (Alarm, error) {
	if p.destroyed {
		return nil, ErrPoolDestroyed
	}
	if periodUS == 0 {
		return nil, ErrZeroPeriod
	}

	a := &schedAlarm{periodUS: periodUS, callback: cb}
	a.timer.WakeTime = GetTime() + periodUS
	a.timer.Handler = repeatAlarmEvent

	state := disableInterrupts()
	armedAlarms[&a.timer] = a
	a.nextAlarm = p.alarms
	p.alarms = a
	restoreInterrupts(state)

	ScheduleTimer(&a.timer)
	return a, nil
}

// Destroy cancels every alarm created through this pool and drops its
// channel reference. Other pools on the channel are untouched.
func (p *schedAlarmPool) Destroy() {
	if p.destroyed {
		return
	}
	for a := p.alarms; a != nil; a = a.nextAlarm {
		a.Cancel()
	}

	state := disableInterrupts()
	defer restoreInterrupts(state)
	p.alarms = nil
	p.destroyed = true
	p.driver.refs[p.channel]--
}

// Cancel disarms the alarm.
func (a *schedAlarm) Cancel() {
	state := disableInterrupts()
	a.cancelled = true
	delete(armedAlarms, &a.timer)
	restoreInterrupts(state)

	CancelTimer(&a.timer)
}

// repeatAlarmEvent is the timer handler for repeating alarms
func repeatAlarmEvent(t *Timer) uint8 {
	a := armedAlarms[t]
	if a == nil || a.cancelled {
		return SF_DONE
	}

	if !a.callback() {
		// Callback self-terminated; drop the arming entry so an
		// over-fire cannot reach it again.
		delete(armedAlarms, t)
		return SF_DONE
	}

	t.WakeTime += a.periodUS
	return SF_RESCHEDULE
}

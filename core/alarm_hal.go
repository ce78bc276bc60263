package core

// The tone engine drives its polarity toggles from a repeating alarm.
// The alarm facility is modelled as an injectable driver so the engine
// can run against simulated time in host tests and against the hardware
// microsecond clock on a target.

// RepeatCallback runs once per alarm period in the dispatch context.
// Returning true keeps the alarm armed; false terminates it. Callbacks
// must not allocate, block, or take locks shared with foreground code:
// a stall here skews every later tick.
type RepeatCallback func() bool

// Alarm is an armed repeating alarm.
type Alarm interface {
	// Cancel disarms the alarm. Safe to call more than once.
	Cancel()
}

// AlarmPool groups the alarms one owner created on a hardware alarm
// channel.
type AlarmPool interface {
	// AddRepeating arms cb to run every periodUS microseconds.
	AddRepeating(periodUS uint32, cb RepeatCallback) (Alarm, error)

	// Destroy cancels every alarm created through this pool and drops
	// its reference to the backing channel.
	Destroy()
}

// AlarmDriver creates alarm pools backed by named hardware alarm
// channels. One channel multiplexes the alarms of every pool opened on
// it; the driver configures the channel when its first pool appears and
// releases it when the last one is destroyed.
type AlarmDriver interface {
	NewPool(channel uint8) (AlarmPool, error)
}

// ToneAlarmChannel is the hardware alarm channel claimed for tone
// toggling. Channel 3 stays clear of the runtime's default alarm pool.
const ToneAlarmChannel = 3

// Global singleton used by core code.
var alarmDriver AlarmDriver

// SetAlarmDriver is called by target-specific code to register its driver.
func SetAlarmDriver(d AlarmDriver) {
	alarmDriver = d
}

// MustAlarmDriver returns the configured driver or panics if missing.
func MustAlarmDriver() AlarmDriver {
	if alarmDriver == nil {
		panic("alarm driver not configured")
	}
	return alarmDriver
}

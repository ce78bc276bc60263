package core

import "testing"

func resetAlarmState() {
	timerList = nil
	currentTime = 0
	armedAlarms = make(map[*Timer]*schedAlarm)
	SetTime(0)
}

// advance moves simulated time forward in periodUS steps, dispatching
// timers at each step the way the target main loop does.
func advance(t *testing.T, totalUS, stepUS uint32) {
	t.Helper()
	for elapsed := uint32(0); elapsed < totalUS; elapsed += stepUS {
		SetTime(GetTime() + stepUS)
		ProcessTimers()
	}
}

func TestAlarmChannelSharing(t *testing.T) {
	resetAlarmState()
	driver := NewSchedAlarmDriver()

	poolA, err := driver.NewPool(0)
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}

	// A second pool opens on the same channel while the first is live.
	poolB, err := driver.NewPool(0)
	if err != nil {
		t.Fatalf("second NewPool on shared channel failed: %v", err)
	}

	countA, countB := 0, 0
	if _, err := poolA.AddRepeating(100, func() bool { countA++; return true }); err != nil {
		t.Fatalf("AddRepeating failed: %v", err)
	}
	if _, err := poolB.AddRepeating(100, func() bool { countB++; return true }); err != nil {
		t.Fatalf("AddRepeating failed: %v", err)
	}

	advance(t, 300, 100)
	if countA != 3 || countB != 3 {
		t.Errorf("expected 3 callbacks each, got %d and %d", countA, countB)
	}

	// Destroying one pool leaves the other's alarms armed.
	poolA.Destroy()
	advance(t, 300, 100)
	if countA != 3 {
		t.Errorf("destroyed pool's callback fired, count %d", countA)
	}
	if countB != 6 {
		t.Errorf("surviving pool stalled, count %d", countB)
	}

	poolB.Destroy()
	advance(t, 300, 100)
	if countB != 6 {
		t.Errorf("callback fired after last Destroy, count %d", countB)
	}

	// The channel opens again after the last pool is gone.
	pool, err := driver.NewPool(0)
	if err != nil {
		t.Errorf("NewPool after Destroy failed: %v", err)
	}
	pool.Destroy()
}

func TestAlarmBadChannel(t *testing.T) {
	resetAlarmState()
	driver := NewSchedAlarmDriver()

	if _, err := driver.NewPool(numAlarmChannels); err != ErrNoSuchChannel {
		t.Errorf("expected ErrNoSuchChannel, got %v", err)
	}
}

func TestRepeatingAlarmFires(t *testing.T) {
	resetAlarmState()
	driver := NewSchedAlarmDriver()

	pool, err := driver.NewPool(0)
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}
	defer pool.Destroy()

	count := 0
	_, err = pool.AddRepeating(100, func() bool {
		count++
		return count < 5
	})
	if err != nil {
		t.Fatalf("AddRepeating failed: %v", err)
	}

	advance(t, 1000, 100)

	if count != 5 {
		t.Errorf("expected 5 callbacks, got %d", count)
	}
	if timerList != nil {
		t.Error("timer still scheduled after callback terminated")
	}
}

func TestAlarmCancel(t *testing.T) {
	resetAlarmState()
	driver := NewSchedAlarmDriver()

	pool, err := driver.NewPool(0)
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}
	defer pool.Destroy()

	count := 0
	alarm, err := pool.AddRepeating(100, func() bool {
		count++
		return true
	})
	if err != nil {
		t.Fatalf("AddRepeating failed: %v", err)
	}

	advance(t, 300, 100)
	alarm.Cancel()
	advance(t, 300, 100)

	if count != 3 {
		t.Errorf("expected 3 callbacks before cancel, got %d", count)
	}

	// Cancel is idempotent.
	alarm.Cancel()
}

func TestAlarmPoolDestroyCancelsAll(t *testing.T) {
	resetAlarmState()
	driver := NewSchedAlarmDriver()

	pool, err := driver.NewPool(0)
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}

	count := 0
	if _, err := pool.AddRepeating(100, func() bool { count++; return true }); err != nil {
		t.Fatalf("AddRepeating failed: %v", err)
	}
	if _, err := pool.AddRepeating(150, func() bool { count++; return true }); err != nil {
		t.Fatalf("AddRepeating failed: %v", err)
	}

	pool.Destroy()
	advance(t, 1000, 50)

	if count != 0 {
		t.Errorf("callbacks fired after Destroy: %d", count)
	}

	if _, err := pool.AddRepeating(100, func() bool { return true }); err != ErrPoolDestroyed {
		t.Errorf("expected ErrPoolDestroyed, got %v", err)
	}
}

func TestAlarmZeroPeriod(t *testing.T) {
	resetAlarmState()
	driver := NewSchedAlarmDriver()

	pool, err := driver.NewPool(0)
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}
	defer pool.Destroy()

	if _, err := pool.AddRepeating(0, func() bool { return true }); err != ErrZeroPeriod {
		t.Errorf("expected ErrZeroPeriod, got %v", err)
	}
}

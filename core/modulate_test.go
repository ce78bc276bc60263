package core

import "testing"

func TestFreqToHalfPeriodUS(t *testing.T) {
	testCases := []struct {
		freq     float64
		expected uint32
	}{
		{440, 1136},  // A4: 1e6/880 = 1136.36
		{1000, 500},
		{100, 5000},
		{20000, 25},
		{261.63, 1911}, // C4
	}

	for _, tc := range testCases {
		got, err := FreqToHalfPeriodUS(tc.freq)
		if err != nil {
			t.Errorf("FreqToHalfPeriodUS(%g) failed: %v", tc.freq, err)
			continue
		}
		if got != tc.expected {
			t.Errorf("FreqToHalfPeriodUS(%g): expected %d, got %d", tc.freq, tc.expected, got)
		}
	}
}

func TestFreqToHalfPeriodUSRejectsNonPositive(t *testing.T) {
	for _, freq := range []float64{0, -1, -440} {
		_, err := FreqToHalfPeriodUS(freq)
		if err != ErrInvalidFrequency {
			t.Errorf("FreqToHalfPeriodUS(%g): expected ErrInvalidFrequency, got %v", freq, err)
		}
	}
}

func TestHalfPeriodDecreasesWithFrequency(t *testing.T) {
	freqs := []float64{50, 100, 261.63, 440, 880, 2000, 5000, 10000}

	var prev uint32
	for i, freq := range freqs {
		hp, err := FreqToHalfPeriodUS(freq)
		if err != nil {
			t.Fatalf("FreqToHalfPeriodUS(%g) failed: %v", freq, err)
		}
		if i > 0 && hp >= prev {
			t.Errorf("half period not decreasing: %gHz -> %dus, previous %dus", freq, hp, prev)
		}
		prev = hp
	}
}

func TestVolumeToLevel(t *testing.T) {
	testCases := []struct {
		volume   float64
		expected uint16
	}{
		{0, 0},
		{50, 500},
		{100, 1000},
		{95.1, 951},
		{95.11, 951}, // tenths resolution
		{0.05, 1},
	}

	for _, tc := range testCases {
		got := VolumeToLevel(tc.volume)
		if got != tc.expected {
			t.Errorf("VolumeToLevel(%g): expected %d, got %d", tc.volume, tc.expected, got)
		}
	}
}

func TestVolumeToLevelClamps(t *testing.T) {
	if got := VolumeToLevel(150); got != PWMTop {
		t.Errorf("VolumeToLevel(150): expected %d, got %d", PWMTop, got)
	}
	if got := VolumeToLevel(-10); got != 0 {
		t.Errorf("VolumeToLevel(-10): expected 0, got %d", got)
	}
}

func TestVolumeToLevelMonotonic(t *testing.T) {
	var prev uint16
	for v := 0.0; v <= 100.0; v += 0.5 {
		level := VolumeToLevel(v)
		if level < prev {
			t.Fatalf("level decreased: volume %g -> %d, previous %d", v, level, prev)
		}
		prev = level
	}
}

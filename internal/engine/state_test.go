package engine

import "testing"

// TestCanTransition проверяет таблицу переходов машины состояний
func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from Status
		to   Status
		want bool
	}{
		{"stopped -> running (operator start)", StatusStopped, StatusRunning, true},
		{"running -> stopped (operator stop)", StatusRunning, StatusStopped, true},
		{"running -> halted (risk breach)", StatusRunning, StatusHalted, true},
		{"halted -> running (operator restart)", StatusHalted, StatusRunning, true},
		{"halted -> stopped (operator stop)", StatusHalted, StatusStopped, true},

		// Halted входится только риск-движком из Running
		{"stopped -> halted forbidden", StatusStopped, StatusHalted, false},
		{"stopped -> stopped forbidden", StatusStopped, StatusStopped, false},
		{"running -> running forbidden", StatusRunning, StatusRunning, false},
		{"halted -> halted forbidden", StatusHalted, StatusHalted, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestStatusString(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{StatusStopped, "stopped"},
		{StatusRunning, "running"},
		{StatusHalted, "halted"},
		{Status(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.status.String(); got != tt.want {
			t.Errorf("Status(%d).String() = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestStateInfo_HaltedReason(t *testing.T) {
	s := State{Status: StatusHalted, Reason: "cancel rate 3.00/min exceeds max 2.00/min"}
	info := StateInfo(s)
	if info == "" || info == "Unknown state" {
		t.Fatalf("unexpected state info: %q", info)
	}
	// Причина halt'а должна быть видна оператору
	if want := s.Reason; len(info) < len(want) || info[len(info)-len(want):] != want {
		t.Errorf("halt reason missing from info %q", info)
	}
}

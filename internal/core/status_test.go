package core

import "testing"

func TestParseStatus(t *testing.T) {
	cases := []struct {
		in string
		ok bool
	}{
		{"active", true},
		{"paused", true},
		{"completed", true},
		{"archived", false},
		{"ACTIVE", false},
		{"", false},
	}
	for _, tc := range cases {
		_, err := ParseStatus(tc.in)
		if tc.ok && err != nil {
			t.Errorf("ParseStatus(%q) unexpected error: %v", tc.in, err)
		}
		if !tc.ok && err == nil {
			t.Errorf("ParseStatus(%q) expected error", tc.in)
		}
	}
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to GoalStatus
		want     bool
	}{
		{StatusActive, StatusPaused, true},
		{StatusActive, StatusCompleted, true},
		{StatusPaused, StatusActive, true},
		{StatusCompleted, StatusActive, true},
		{StatusPaused, StatusCompleted, false},
		{StatusCompleted, StatusPaused, false},
		{StatusActive, StatusActive, true},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransition(tc.to); got != tc.want {
			t.Errorf("%s -> %s = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestNextStatusAfterContribution(t *testing.T) {
	tests := []struct {
		name        string
		status      GoalStatus
		total       string
		target      string
		want        GoalStatus
		wantChanged bool
	}{
		{"below target stays active", StatusActive, "900", "1000", StatusActive, false},
		{"exactly at target completes", StatusActive, "1000", "1000", StatusCompleted, true},
		{"above target completes", StatusActive, "1001", "1000", StatusCompleted, true},
		{"paused goal never auto-completes", StatusPaused, "2000", "1000", StatusPaused, false},
		{"completed goal stays completed", StatusCompleted, "2000", "1000", StatusCompleted, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, changed := NextStatusAfterContribution(tt.status, dec(tt.total), dec(tt.target))
			if got != tt.want || changed != tt.wantChanged {
				t.Errorf("got (%s, %v), want (%s, %v)", got, changed, tt.want, tt.wantChanged)
			}
		})
	}
}

func TestNextStatusAfterDeletion(t *testing.T) {
	tests := []struct {
		name        string
		status      GoalStatus
		total       string
		target      string
		want        GoalStatus
		wantChanged bool
	}{
		{"completed falls below target reverts", StatusCompleted, "900", "1000", StatusActive, true},
		{"completed still at target stays", StatusCompleted, "1000", "1000", StatusCompleted, false},
		{"completed still above target stays", StatusCompleted, "1500", "1000", StatusCompleted, false},
		{"active goal never reverts", StatusActive, "0", "1000", StatusActive, false},
		{"paused goal untouched", StatusPaused, "0", "1000", StatusPaused, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, changed := NextStatusAfterDeletion(tt.status, dec(tt.total), dec(tt.target))
			if got != tt.want || changed != tt.wantChanged {
				t.Errorf("got (%s, %v), want (%s, %v)", got, changed, tt.want, tt.wantChanged)
			}
		})
	}
}

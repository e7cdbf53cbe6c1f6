package availability

import (
	"testing"

	"bikemap/internal/station"
)

func TestClassifyPrecedence(t *testing.T) {
	tests := []struct {
		name   string
		rent   int
		ret    int
		expect State
		color  string
	}{
		{"both zero is empty", 0, 0, Empty, "black"},
		{"no bikes", 0, 5, Empty, "black"},
		{"no docks", 3, 0, Full, "grey"},
		{"available", 3, 5, Available, "green"},
		{"single bike single dock", 1, 1, Available, "green"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(station.Station{AvailableRent: tc.rent, AvailableRet: tc.ret})
			if got != tc.expect {
				t.Errorf("Classify(rent=%d, return=%d) = %v, expected %v", tc.rent, tc.ret, got, tc.expect)
			}
			if got.Color() != tc.color {
				t.Errorf("Color() = %q, expected %q", got.Color(), tc.color)
			}
		})
	}
}

func TestUserColorIsDistinct(t *testing.T) {
	for _, s := range []State{Empty, Full, Available} {
		if s.Color() == UserColor {
			t.Errorf("state %v shares the user marker colour", s)
		}
	}
}

func TestSummarize(t *testing.T) {
	sum := Summarize([]station.Station{
		{AvailableRent: 0, AvailableRet: 0},
		{AvailableRent: 0, AvailableRet: 4},
		{AvailableRent: 2, AvailableRet: 0},
		{AvailableRent: 2, AvailableRet: 2},
	})
	if sum.Empty != 2 || sum.Full != 1 || sum.Available != 1 {
		t.Errorf("unexpected summary %+v", sum)
	}
	if sum.Total() != 4 {
		t.Errorf("Total() = %d", sum.Total())
	}
}

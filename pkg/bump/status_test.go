package bump

import (
	"math"
	"testing"
)

func TestDeriveStatus_Bands(t *testing.T) {
	tests := []struct {
		name   string
		health float64
		want   Status
	}{
		{"full health", 10000, StatusGood},
		{"good boundary belongs to good", 7000, StatusGood},
		{"just below good", 6999, StatusDamaged},
		{"mid damaged", 5000, StatusDamaged},
		{"damaged boundary belongs to damaged", 3000, StatusDamaged},
		{"just below damaged", 2999, StatusCritical},
		{"fractional just below damaged", 2999.999, StatusCritical},
		{"zero", 0, StatusCritical},
		{"negative", -50, StatusCritical},
		{"above range", 12000, StatusGood},
		{"positive infinity", math.Inf(1), StatusGood},
		{"negative infinity", math.Inf(-1), StatusCritical},
		{"NaN", math.NaN(), StatusCritical},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := DeriveStatus(tc.health); got != tc.want {
				t.Errorf("DeriveStatus(%v): got %s, want %s", tc.health, got, tc.want)
			}
		})
	}
}

func TestDeriveStatus_Monotonic(t *testing.T) {
	prev := DeriveStatus(-1)
	for h := 0; h <= MaxHealth+1; h++ {
		cur := DeriveStatus(float64(h))
		if cur.Rank() < prev.Rank() {
			t.Fatalf("rank decreased at health %d: %s → %s", h, prev, cur)
		}
		prev = cur
	}
}

func TestParseStatus(t *testing.T) {
	for _, in := range []string{"good", "GOOD", "Good"} {
		got, err := ParseStatus(in)
		if err != nil || got != StatusGood {
			t.Errorf("ParseStatus(%q): got (%q, %v), want Good", in, got, err)
		}
	}
	if _, err := ParseStatus("broken"); err == nil {
		t.Error("expected error for unknown status")
	}
}

func TestHealthPercent(t *testing.T) {
	tests := []struct {
		h    int
		want float64
	}{
		{0, 0}, {5000, 50}, {10000, 100}, {-10, 0}, {20000, 100},
	}
	for _, tc := range tests {
		if got := HealthPercent(tc.h); got != tc.want {
			t.Errorf("HealthPercent(%d): got %v, want %v", tc.h, got, tc.want)
		}
	}
}

func TestImpactDamage(t *testing.T) {
	tests := []struct {
		speed float64
		want  float64
	}{
		{20, 0},
		{35, 0},
		{40, 16},
		{50, 25},
		{100, 100},
		{math.NaN(), 0},
	}
	for _, tc := range tests {
		if got := ImpactDamage(tc.speed, DefaultSpeedLimitKmh); got != tc.want {
			t.Errorf("ImpactDamage(%v): got %v, want %v", tc.speed, got, tc.want)
		}
	}
}

func TestWear_ClampsAtZero(t *testing.T) {
	c := Wear(HealthCondition(40), DamagePoints(52.7))
	if h, _ := c.Health(); h != 0 {
		t.Errorf("health: got %d, want 0", h)
	}

	s := Wear(StatusCondition(StatusDamaged), 500)
	if s.Status() != StatusDamaged {
		t.Errorf("status variant changed: got %s", s.Status())
	}
}

func TestDamagePoints(t *testing.T) {
	tests := []struct {
		in   float64
		want int
	}{
		{0, 0}, {-4, 0}, {math.NaN(), 0}, {16.4, 16}, {16.5, 17}, {1e9, MaxHealth},
	}
	for _, tc := range tests {
		if got := DamagePoints(tc.in); got != tc.want {
			t.Errorf("DamagePoints(%v): got %d, want %d", tc.in, got, tc.want)
		}
	}
}

package bump

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestCondition_Validate(t *testing.T) {
	tests := []struct {
		name    string
		c       Condition
		wantErr bool
	}{
		{"zero health", HealthCondition(0), false},
		{"max health", HealthCondition(10000), false},
		{"below range", HealthCondition(-1), true},
		{"above range", HealthCondition(10001), true},
		{"known status", StatusCondition(StatusCritical), false},
		{"unknown status", StatusCondition("Broken"), true},
		{"empty", Condition{}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.c.Validate()
			if (err != nil) != tc.wantErr {
				t.Fatalf("Validate: got %v, wantErr %v", err, tc.wantErr)
			}
			var ve *ValidationError
			if err != nil && !errors.As(err, &ve) {
				t.Errorf("error type: got %T, want *ValidationError", err)
			}
		})
	}
}

func TestMode_Accept_RejectsOtherVariant(t *testing.T) {
	if err := ModeHealth.Accept(StatusCondition(StatusGood)); err == nil {
		t.Error("health mode accepted a status condition")
	}
	if err := ModeStatus.Accept(HealthCondition(5000)); err == nil {
		t.Error("status mode accepted a health condition")
	}
	if err := ModeHealth.Accept(HealthCondition(5000)); err != nil {
		t.Errorf("health mode rejected health: %v", err)
	}
}

func TestMode_Condition_Adapter(t *testing.T) {
	h := 2500
	damaged := "damaged"
	tests := []struct {
		name   string
		mode   Mode
		health *int
		status *string
		want   Status
	}{
		{"health mode uses health", ModeHealth, &h, &damaged, StatusCritical},
		{"health mode missing health reads full", ModeHealth, nil, &damaged, StatusGood},
		{"status mode uses status", ModeStatus, &h, &damaged, StatusDamaged},
		{"status mode missing status reads good", ModeStatus, &h, nil, StatusGood},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := tc.mode.Condition(tc.health, tc.status)
			if c.Kind() != tc.mode.Kind() {
				t.Errorf("kind: got %s, want %s", c.Kind(), tc.mode.Kind())
			}
			if got := c.Status(); got != tc.want {
				t.Errorf("status: got %s, want %s", got, tc.want)
			}
		})
	}
}

func TestCondition_MarshalJSON(t *testing.T) {
	b, err := json.Marshal(HealthCondition(6999))
	if err != nil {
		t.Fatal(err)
	}
	if got, want := string(b), `{"health":6999,"status":"Damaged"}`; got != want {
		t.Errorf("health variant: got %s, want %s", got, want)
	}
	b, _ = json.Marshal(StatusCondition(StatusCritical))
	if got, want := string(b), `{"status":"Critical"}`; got != want {
		t.Errorf("status variant: got %s, want %s", got, want)
	}
}

package bump

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func threeRecords() []Record {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return []Record{
		{ID: "a", StreetName: "Main Street", Condition: HealthCondition(8000), LastUpdated: t0},
		{ID: "b", StreetName: "Oak Avenue", Condition: HealthCondition(5000), LastUpdated: t0.Add(-time.Hour)},
		{ID: "c", StreetName: "Elm Street", Condition: HealthCondition(1000), LastUpdated: t0.Add(-2 * time.Hour)},
	}
}

func ids(recs []Record) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.ID)
	}
	return out
}

func TestSelect_ThreeRecords(t *testing.T) {
	recs := threeRecords()
	tests := []struct {
		filter Filter
		fold   bool
		want   []string
	}{
		{FilterAll, false, []string{"a", "b", "c"}},
		{FilterDamaged, false, []string{"b"}},
		{FilterCritical, false, []string{"c"}},
		{FilterDamaged, true, []string{"b", "c"}},
		{FilterCritical, true, []string{"c"}},
	}
	for _, tc := range tests {
		got := ids(Select(recs, tc.filter, tc.fold))
		if diff := cmp.Diff(tc.want, got); diff != "" {
			t.Errorf("Select(%s, fold=%v) mismatch (-want +got):\n%s", tc.filter, tc.fold, diff)
		}
	}
}

func TestSelect_Idempotent(t *testing.T) {
	recs := append(threeRecords(), DemoRecords(time.Now(), ModeHealth)...)
	opts := cmp.Options{cmp.AllowUnexported(Condition{}), cmpopts.EquateEmpty()}
	for _, f := range Filters {
		for _, fold := range []bool{false, true} {
			once := Select(recs, f, fold)
			twice := Select(once, f, fold)
			if diff := cmp.Diff(once, twice, opts); diff != "" {
				t.Errorf("filter %s fold=%v not idempotent (-once +twice):\n%s", f, fold, diff)
			}
		}
	}
}

func TestSelect_BoundariesBelongToHigherTier(t *testing.T) {
	recs := []Record{
		{ID: "7000", Condition: HealthCondition(7000)},
		{ID: "3000", Condition: HealthCondition(3000)},
	}
	if got := ids(Select(recs, FilterDamaged, false)); !cmp.Equal(got, []string{"3000"}) {
		t.Errorf("damaged: got %v, want [3000]", got)
	}
	if got := Select(recs, FilterCritical, false); len(got) != 0 {
		t.Errorf("critical: got %v, want none", ids(got))
	}
}

func TestParseFilter(t *testing.T) {
	tests := []struct {
		in      string
		want    Filter
		wantErr bool
	}{
		{"", FilterAll, false},
		{"all", FilterAll, false},
		{" Damaged ", FilterDamaged, false},
		{"CRITICAL", FilterCritical, false},
		{"good", "", true},
	}
	for _, tc := range tests {
		got, err := ParseFilter(tc.in)
		if (err != nil) != tc.wantErr {
			t.Fatalf("ParseFilter(%q) err: got %v, wantErr %v", tc.in, err, tc.wantErr)
		}
		if got != tc.want {
			t.Errorf("ParseFilter(%q): got %q, want %q", tc.in, got, tc.want)
		}
		var ve *ValidationError
		if tc.wantErr && !errors.As(err, &ve) {
			t.Errorf("ParseFilter(%q): error is %T, want *ValidationError", tc.in, err)
		}
	}
}

func TestFilter_FlagValue(t *testing.T) {
	var f Filter
	if f.String() != "all" {
		t.Errorf("zero String: got %q, want all", f.String())
	}
	if err := f.Set("critical"); err != nil {
		t.Fatal(err)
	}
	if f != FilterCritical {
		t.Errorf("after Set: got %q", f)
	}
	if err := f.Set("nope"); err == nil {
		t.Error("expected error for unknown filter")
	}
	if f != FilterCritical {
		t.Errorf("failed Set changed the value to %q", f)
	}
}

func TestSummarize(t *testing.T) {
	got := Summarize(DemoRecords(time.Now(), ModeHealth))
	want := Summary{Total: 8, Good: 4, Damaged: 2, Critical: 2}
	if got != want {
		t.Errorf("Summarize: got %+v, want %+v", got, want)
	}
	statusMode := Summarize(DemoRecords(time.Now(), ModeStatus))
	if statusMode != want {
		t.Errorf("status mode Summarize: got %+v, want %+v", statusMode, want)
	}
}

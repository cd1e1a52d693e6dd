package bump

import "time"

// DemoRecords returns the demo data set used by the in-memory store when
// no external database is configured. Timestamps are relative to now.
// Health values sit inside each status band so both modes show the same tiers.
func DemoRecords(now time.Time, mode Mode) []Record {
	day := 24 * time.Hour
	rows := []struct {
		id, street, location string
		status               Status
		health               int
		cars                 int64
		age                  time.Duration
	}{
		{"1", "Main Street", "Between 1st and 2nd Avenue, near the intersection", StatusGood, 9200, 18234, 2 * day},
		{"2", "Oak Avenue", "In front of City Park entrance", StatusDamaged, 5100, 40211, 5 * day},
		{"3", "Elm Street", "Near the school zone, 200 meters from crosswalk", StatusCritical, 1800, 65902, 1 * day},
		{"4", "Park Boulevard", "Adjacent to the shopping center parking lot", StatusGood, 8700, 12077, 7 * day},
		{"5", "Cedar Lane", "Between Maple Drive and Pine Street", StatusDamaged, 4350, 30518, 3 * day},
		{"6", "River Road", "Near the bridge approach, west side", StatusGood, 9900, 2410, 10 * day},
		{"7", "Hill Street", "At the bottom of the hill, residential area", StatusCritical, 900, 71288, 4 * time.Hour},
		{"8", "Sunset Drive", "Near the community center", StatusGood, 7600, 22960, 1 * time.Hour},
	}
	out := make([]Record, 0, len(rows))
	for _, r := range rows {
		c := HealthCondition(r.health)
		if mode == ModeStatus {
			c = StatusCondition(r.status)
		}
		out = append(out, Record{
			ID:            r.id,
			StreetName:    r.street,
			ExactLocation: r.location,
			Condition:     c,
			CarCount:      r.cars,
			LastUpdated:   now.Add(-r.age),
		})
	}
	return out
}

package provider

import "time"

// DefaultRetentionDays bounds history reads on the stateless variant.
const DefaultRetentionDays = 7

// RetentionPolicy computes the read cutoff for the stateless variant.
// The local database is that variant's only history source; bounding
// reads keeps early sync gaps from resurfacing stale windows as if they
// were complete. Strictly a read filter, rows are never pruned by it.
type RetentionPolicy struct {
	Days int
	// now is swappable in tests
	now func() time.Time
}

func NewRetentionPolicy(days int) RetentionPolicy {
	if days <= 0 {
		days = DefaultRetentionDays
	}
	return RetentionPolicy{Days: days, now: time.Now}
}

// Cutoff returns the earliest instant included in read operations.
func (p RetentionPolicy) Cutoff() time.Time {
	now := p.now
	if now == nil {
		now = time.Now
	}
	return now().Add(-time.Duration(p.Days) * 24 * time.Hour)
}

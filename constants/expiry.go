package constants

// ExpiryStatus buckets a record by how close its expiry date is.
type ExpiryStatus string

const (
	ExpiryExpired   ExpiryStatus = "EXPIRED"
	ExpirySoon      ExpiryStatus = "EXPIRING_SOON"
	ExpiryThisMonth ExpiryStatus = "EXPIRING_THIS_MONTH"
	ExpirySafe      ExpiryStatus = "SAFE"
	ExpiryUnknown   ExpiryStatus = "UNKNOWN" // record has no expiry date
)

// ExpiryBucket maps days-until-expiry to a status. soonDays is the
// configurable boundary for EXPIRING_SOON (default 7); the month boundary
// is fixed at 30.
func ExpiryBucket(days int, soonDays int) ExpiryStatus {
	switch {
	case days < 0:
		return ExpiryExpired
	case days <= soonDays:
		return ExpirySoon
	case days <= 30:
		return ExpiryThisMonth
	default:
		return ExpirySafe
	}
}

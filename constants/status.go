package constants

// ScanStatus is the canonical status for rows in scans.
type ScanStatus string

// Stable values (store these exact strings in DB).
const (
	ScanStatusQueued  ScanStatus = "QUEUED"  // accepted, waiting for a worker
	ScanStatusRunning ScanStatus = "RUNNING" // in progress
	ScanStatusDone    ScanStatus = "DONE"    // records extracted and persisted
	ScanStatusFailed  ScanStatus = "FAILED"  // terminal failure
)

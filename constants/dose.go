package constants

// DoseStatus marks a reminder dose event.
type DoseStatus string

// Stable values (store these exact strings in DB).
const (
	DoseTaken  DoseStatus = "TAKEN"
	DoseMissed DoseStatus = "MISSED"
)

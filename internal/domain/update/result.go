package update

// Status is the coarse outcome of Apply.
type Status int

const (
	// StatusNoUpdate means nothing newer was available.
	StatusNoUpdate Status = iota
	// StatusUpdated means the new binary is published.
	StatusUpdated
	// StatusFailed means the attempt ended without publishing.
	StatusFailed
)

// String implements fmt.Stringer.
func (s Status) String() string {
	switch s {
	case StatusNoUpdate:
		return "no_update"
	case StatusUpdated:
		return "updated"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is the typed outcome of one update attempt.
type Result struct {
	// Status is the coarse outcome.
	Status Status
	// App is the application identifier.
	App string
	// From is the version before the attempt, possibly empty.
	From string
	// To is the candidate version, empty for StatusNoUpdate.
	To string
	// TransactionID correlates log lines of one attempt.
	TransactionID string
	// Err is the reason of a failure. For StatusUpdated it may carry
	// ErrRelaunchFailed.
	Err error
}

// Updated reports whether the new binary was published.
func (r Result) Updated() bool {
	return r.Status == StatusUpdated
}

package cache

// LoadError is the single failure kind of a preload cycle. Message is the
// human-readable text published in the Error state; Err keeps the cause.
type LoadError struct {
	Stage   string
	Message string
	Err     error
}

func (e *LoadError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *LoadError) Unwrap() error { return e.Err }

package session

// ErrorLog accumulates every failure a session reports, oldest first. The
// session returns each error to its caller as well; the log exists so a
// caller can inspect everything that went wrong across several calls.
type ErrorLog struct {
	entries []error
}

func (l *ErrorLog) add(err error) {
	if err != nil {
		l.entries = append(l.entries, err)
	}
}

// Len returns the number of recorded errors.
func (l *ErrorLog) Len() int {
	return len(l.entries)
}

// Since returns the errors recorded after the first n.
func (l *ErrorLog) Since(n int) []error {
	if n >= len(l.entries) {
		return nil
	}
	return append([]error(nil), l.entries[n:]...)
}

// Messages returns the recorded errors as strings.
func (l *ErrorLog) Messages() []string {
	out := make([]string, len(l.entries))
	for i, err := range l.entries {
		out[i] = err.Error()
	}
	return out
}

// Last returns the most recent error, or nil.
func (l *ErrorLog) Last() error {
	if len(l.entries) == 0 {
		return nil
	}
	return l.entries[len(l.entries)-1]
}

// Clear drops every recorded error.
func (l *ErrorLog) Clear() {
	l.entries = nil
}

package store

import "time"

// SetSessionClock replaces the clock of the memory session store
func SetSessionClock(st SessionStore, now func() time.Time) {
	st.(*memorySessions).now = now
}

package session

import "time"

// Session is the decoded form of a primary session hash.
type Session struct {
	UserID string
	Token  string

	// LoginTime is the Unix time (seconds) of creation or of the last
	// activity refresh, whichever is later.
	LoginTime int64

	// TTL is the remaining lifetime reported by Redis at read time.
	// Zero or negative means Redis reported no expiry.
	TTL time.Duration
}

// LoginAt returns LoginTime as a time.Time in the local zone.
func (s *Session) LoginAt() time.Time {
	return time.Unix(s.LoginTime, 0)
}

package goSession

import (
	"time"

	"github.com/MrEthical07/goSession/session"
)

// loginTimeLayout matches the YYYY-MM-DD HH:MM:SS form used in log messages.
const loginTimeLayout = time.DateTime

// SessionInfo is the read model returned by session operations.
type SessionInfo struct {
	UserID    string
	Token     string
	LoginTime time.Time

	// TTL is the remaining lifetime at read time. For a freshly created or
	// refreshed session it equals the configured TTL.
	TTL time.Duration

	// Created is true only on the CreateSession call that stored the session.
	Created bool
}

// LoginTimeString renders LoginTime as YYYY-MM-DD HH:MM:SS in local time.
func (s *SessionInfo) LoginTimeString() string {
	if s == nil {
		return ""
	}
	return s.LoginTime.Local().Format(loginTimeLayout)
}

func toSessionInfo(sess *session.Session, created bool) *SessionInfo {
	if sess == nil {
		return nil
	}
	return &SessionInfo{
		UserID:    sess.UserID,
		Token:     sess.Token,
		LoginTime: sess.LoginAt(),
		TTL:       sess.TTL,
		Created:   created,
	}
}

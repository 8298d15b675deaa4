package session

import (
	"errors"
	"fmt"
	"strconv"
)

const (
	fieldToken     = "session_token"
	fieldLoginTime = "login_time"
)

// ErrSessionCorrupt is returned when a session hash is missing required fields
// or carries a login_time that is not a Unix timestamp.
var ErrSessionCorrupt = errors.New("session corrupt")

// Encode renders a session as the flat field/value list accepted by HSET.
func Encode(s *Session) ([]interface{}, error) {
	if s == nil {
		return nil, errors.New("nil session")
	}
	if s.Token == "" {
		return nil, errors.New("session token is empty")
	}
	return []interface{}{
		fieldToken, s.Token,
		fieldLoginTime, strconv.FormatInt(s.LoginTime, 10),
	}, nil
}

// Decode builds a session from the result of HGETALL.
//
// A hash without session_token still decodes; callers treat the empty token
// as "no secondary index to clean up".
func Decode(userID string, fields map[string]string) (*Session, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: empty hash", ErrSessionCorrupt)
	}

	sess := &Session{
		UserID: userID,
		Token:  fields[fieldToken],
	}

	raw, ok := fields[fieldLoginTime]
	if !ok {
		return sess, nil
	}
	loginTime, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: login_time %q", ErrSessionCorrupt, raw)
	}
	sess.LoginTime = loginTime

	return sess, nil
}

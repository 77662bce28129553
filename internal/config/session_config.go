package config

import "time"

type SessionConfig interface {
	GetMaxSessionAge() time.Duration
	GetFailedAuthCookieMaxAge() time.Duration
}

type Session struct{}

var _ SessionConfig = Session{}

func (Session) GetMaxSessionAge() time.Duration {
	return time.Duration(GetEnvInt("SESSION_MAX_AGE", 86400)) * time.Second
}

// GetFailedAuthCookieMaxAge bounds how long the original URL survives the login round trip.
func (Session) GetFailedAuthCookieMaxAge() time.Duration {
	return 10 * time.Minute
}

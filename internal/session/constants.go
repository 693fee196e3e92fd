// Package session keeps per-browser inspector state in memory: the
// append-only report log and an interactively entered API key.
package session

import "time"

const (
	// CookieName is the name of the cookie that stores the session ID.
	CookieName = "sitecheck_session"

	// CookiePath ensures the cookie is sent with all requests.
	CookiePath = "/"

	// DefaultTTL is how long an idle session is kept.
	DefaultTTL = 12 * time.Hour

	// DefaultSweepInterval is how often the janitor looks for idle sessions.
	DefaultSweepInterval = 10 * time.Minute
)

package auth

import "time"

// Session is the authoritative server-side record of one login. Its presence
// in the cache is what makes a token valid; there is no separate revocation
// list.
type Session struct {
	ID           string                 `json:"id"`
	UserID       string                 `json:"userId"`
	Role         string                 `json:"role"`
	Email        string                 `json:"email"`
	FirstName    string                 `json:"firstName"`
	LastName     string                 `json:"lastName"`
	CreatedAt    time.Time              `json:"createdAt"`
	LastActivity time.Time              `json:"lastActivity"`
	RememberMe   bool                   `json:"rememberMe"`
	Data         map[string]interface{} `json:"data,omitempty"`
}

// User is the authenticated principal a session is created for. The outer
// application resolves credentials; the registry only records the result.
type User struct {
	ID        string
	Role      string
	Email     string
	FirstName string
	LastName  string
}

// CreateOptions tune session creation.
type CreateOptions struct {
	// TTL is the cache lifetime of the session; zero uses the registry default.
	TTL time.Duration
	// RememberMe widens the logical inactivity window from 24h to 7 days.
	RememberMe bool
	// AdditionalData is merged into the session's free-form data bag.
	AdditionalData map[string]interface{}
}

// AuthContext is the result of resolving a token: the session record acting
// as the request's user identity, plus the session ID the token named.
type AuthContext struct {
	User      *Session
	SessionID string
	Token     string
}

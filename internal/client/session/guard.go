package session

import "net/url"

const (
	SignInPath        = "/signin"
	DefaultAfterLogin = "/app"
)

type Outcome int

const (
	// Render the protected view.
	Render Outcome = iota
	// Wait while a session check is in flight.
	Wait
	// Redirect to the sign-in entry point.
	Redirect
)

type Decision struct {
	Outcome Outcome
	// Location is the redirect target, set only for Redirect.
	Location string
	// From is the originally requested location.
	From string
}

// Guard decides what a protected view at requested should do in state s.
func Guard(s State, requested string) Decision {
	switch {
	case s.IsAuthenticated():
		return Decision{Outcome: Render, From: requested}
	case s.IsLoading():
		return Decision{Outcome: Wait, From: requested}
	}

	loc := SignInPath
	if requested != "" {
		loc += "?" + url.Values{"from": {requested}}.Encode()
	}

	return Decision{Outcome: Redirect, Location: loc, From: requested}
}

// PostLoginTarget is where to go after signing in: the location the guard
// turned the user away from, or DefaultAfterLogin. Only same-site paths are
// honoured.
func PostLoginTarget(d Decision) string {
	if !isLocalPath(d.From) || d.From == SignInPath {
		return DefaultAfterLogin
	}

	return d.From
}

// FromLocation recovers the from parameter of a sign-in location produced
// by Guard.
func FromLocation(location string) string {
	u, err := url.Parse(location)
	if err != nil {
		return ""
	}

	return u.Query().Get("from")
}

func isLocalPath(p string) bool {
	if len(p) == 0 || p[0] != '/' {
		return false
	}

	// "//host" and "/\host" are protocol-relative in browsers
	if len(p) > 1 && (p[1] == '/' || p[1] == '\\') {
		return false
	}

	return true
}

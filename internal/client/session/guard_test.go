package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGuard(t *testing.T) {
	d := Guard(authed(), "/app/settings")
	assert.Equal(t, Render, d.Outcome)
	assert.Empty(t, d.Location)

	d = Guard(State{Status: StatusLoading}, "/app/settings")
	assert.Equal(t, Wait, d.Outcome)

	for _, s := range []State{{Status: StatusAnonymous}, {Status: StatusError, Error: "x"}} {
		d = Guard(s, "/app/settings?tab=profile")
		assert.Equal(t, Redirect, d.Outcome)
		assert.Equal(t, "/signin?from=%2Fapp%2Fsettings%3Ftab%3Dprofile", d.Location)
		assert.Equal(t, "/app/settings?tab=profile", FromLocation(d.Location))
		assert.Equal(t, "/app/settings?tab=profile", PostLoginTarget(d))
	}

	d = Guard(State{Status: StatusAnonymous}, "")
	assert.Equal(t, SignInPath, d.Location)
	assert.Equal(t, DefaultAfterLogin, PostLoginTarget(d))
}

func TestPostLoginTarget_OnlyLocalPaths(t *testing.T) {
	cases := map[string]string{
		"/app/x":             "/app/x",
		"":                   DefaultAfterLogin,
		"/signin":            DefaultAfterLogin,
		"https://evil.test/": DefaultAfterLogin,
		"//evil.test":        DefaultAfterLogin,
		`/\evil.test`:        DefaultAfterLogin,
		"relative":           DefaultAfterLogin,
	}

	for from, want := range cases {
		assert.Equal(t, want, PostLoginTarget(Decision{Outcome: Redirect, From: from}), from)
	}
}

// Package session holds the client's view of who is signed in. All state
// changes go through Reduce.
package session

import "github.com/geocoder89/authgate/internal/client"

type Status string

const (
	StatusAnonymous     Status = "anonymous"
	StatusLoading       Status = "loading"
	StatusAuthenticated Status = "authenticated"
	StatusError         Status = "error"
)

type State struct {
	User   *client.User
	Token  string
	Status Status
	Error  string
}

func (s State) IsAuthenticated() bool { return s.Status == StatusAuthenticated }

func (s State) IsLoading() bool { return s.Status == StatusLoading }

// Action is one of Start, Success, Failure, Logout or Dismiss.
type Action interface {
	isAction()
}

// Start marks an operation in flight.
type Start struct{}

type Success struct {
	User  client.User
	Token string
}

type Failure struct {
	Message string
	// ClearToken drops the held token too, e.g. when it was just rejected.
	ClearToken bool
}

type Logout struct{}

// Dismiss acknowledges an error and returns to anonymous.
type Dismiss struct{}

func (Start) isAction()   {}
func (Success) isAction() {}
func (Failure) isAction() {}
func (Logout) isAction()  {}
func (Dismiss) isAction() {}

// Reduce returns the state after applying a to s. It does not mutate s.
// Pairs with no defined transition return s unchanged.
func Reduce(s State, a Action) State {
	switch a := a.(type) {
	case Start:
		s.Status = StatusLoading
		s.Error = ""
		return s

	case Success:
		if s.Status != StatusLoading {
			return s
		}
		u := a.User
		return State{User: &u, Token: a.Token, Status: StatusAuthenticated}

	case Failure:
		if s.Status != StatusLoading {
			return s
		}
		next := State{Token: s.Token, Status: StatusError, Error: a.Message}
		if a.ClearToken {
			next.Token = ""
		}
		return next

	case Logout:
		return State{Status: StatusAnonymous}

	case Dismiss:
		if s.Status != StatusError {
			return s
		}
		return State{Token: s.Token, Status: StatusAnonymous}
	}

	return s
}

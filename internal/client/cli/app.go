// Package cli implements the authctl commands on top of the session store.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/mail"
	"os"
	"strings"

	"github.com/geocoder89/authgate/internal/client"
	"github.com/geocoder89/authgate/internal/client/session"
	"github.com/geocoder89/authgate/internal/security"
	"golang.org/x/term"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

var (
	ErrUsage        = errors.New("usage")
	ErrInvalidInput = errors.New("invalid input")
	ErrNotSignedIn  = errors.New("not signed in")
)

const profileView = "/profile"

type App struct {
	store *session.Store
	in    *bufio.Reader
	out   io.Writer
	// fd of the terminal to read passwords from; -1 reads them as plain lines
	ttyFd int
}

type Option func(*App)

// WithTerminal reads passwords from fd without echo.
func WithTerminal(fd int) Option {
	return func(a *App) { a.ttyFd = fd }
}

func New(store *session.Store, in io.Reader, out io.Writer, opts ...Option) *App {
	a := &App{
		store: store,
		in:    bufio.NewReader(in),
		out:   out,
		ttyFd: -1,
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// StdinTerminal returns WithTerminal for stdin when it is a terminal.
func StdinTerminal() []Option {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil
	}
	return []Option{WithTerminal(fd)}
}

func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		a.usage()
		return ErrUsage
	}

	switch args[0] {
	case "signup":
		return a.signUp(ctx)
	case "signin", "login":
		return a.signIn(ctx)
	case "profile":
		return a.profile(ctx)
	case "signout", "logout":
		return a.signOut(ctx)
	case "status":
		return a.status(ctx)
	case "help", "-h", "--help":
		a.usage()
		return nil
	default:
		fmt.Fprintf(a.out, "unknown command %q\n", args[0])
		a.usage()
		return ErrUsage
	}
}

func (a *App) usage() {
	fmt.Fprintln(a.out, "Usage: authctl [flags] <command>")
	fmt.Fprintln(a.out)
	fmt.Fprintln(a.out, "Commands:")
	fmt.Fprintln(a.out, "  signup    create an account and sign in")
	fmt.Fprintln(a.out, "  signin    sign in with email and password")
	fmt.Fprintln(a.out, "  profile   show the signed-in user")
	fmt.Fprintln(a.out, "  signout   end the session")
	fmt.Fprintln(a.out, "  status    show the session state")
}

func (a *App) signUp(ctx context.Context) error {
	name, err := a.prompt("Name")
	if err != nil {
		return err
	}
	email, err := a.prompt("Email")
	if err != nil {
		return err
	}
	password, err := a.password()
	if err != nil {
		return err
	}

	if problem := checkSignUp(name, email, password); problem != "" {
		fmt.Fprintln(a.out, problem)
		return ErrInvalidInput
	}

	err = a.store.SignUp(ctx, client.SignUpRequest{Name: name, Email: email, Password: password})
	if err != nil {
		return a.failed(err)
	}

	a.welcome()
	return nil
}

func (a *App) signIn(ctx context.Context) error {
	email, err := a.prompt("Email")
	if err != nil {
		return err
	}
	password, err := a.password()
	if err != nil {
		return err
	}

	if email == "" || password == "" {
		fmt.Fprintln(a.out, "Email and password are required")
		return ErrInvalidInput
	}

	if err := a.store.SignIn(ctx, client.SignInRequest{Email: email, Password: password}); err != nil {
		return a.failed(err)
	}

	a.welcome()
	return nil
}

func (a *App) profile(ctx context.Context) error {
	if err := a.resume(ctx); err != nil {
		return err
	}

	st := a.store.State()
	d := session.Guard(st, profileView)

	switch d.Outcome {
	case session.Redirect:
		if st.Error != "" {
			fmt.Fprintln(a.out, st.Error)
		}
		fmt.Fprintln(a.out, "Not signed in. Run `authctl signin` first.")
		return ErrNotSignedIn
	case session.Wait:
		// Bootstrap has returned, so the store cannot still be loading.
		return errors.New("session still loading")
	}

	fmt.Fprintf(a.out, "ID:    %s\n", st.User.ID)
	fmt.Fprintf(a.out, "Name:  %s\n", st.User.Name)
	fmt.Fprintf(a.out, "Email: %s\n", st.User.Email)
	return nil
}

func (a *App) signOut(ctx context.Context) error {
	err := a.store.SignOut(ctx)

	var apiErr *client.APIError
	switch {
	case err == nil:
	case errors.As(err, &apiErr), errors.Is(err, client.ErrNoResponse):
		// the local session is gone either way
		fmt.Fprintf(a.out, "Server did not confirm sign-out: %s\n", client.Message(err))
	default:
		return err
	}

	fmt.Fprintln(a.out, "Signed out.")
	return nil
}

func (a *App) status(ctx context.Context) error {
	if err := a.resume(ctx); err != nil {
		return err
	}

	st := a.store.State()
	switch {
	case st.IsAuthenticated():
		fmt.Fprintf(a.out, "Signed in as %s <%s>\n", st.User.Name, st.User.Email)
	case st.Error != "":
		fmt.Fprintf(a.out, "Signed out: %s\n", st.Error)
	default:
		fmt.Fprintln(a.out, "Signed out.")
	}

	return nil
}

// resume bootstraps the persisted session. A token the server rejects is
// not an error here; it leaves the store in the error state.
func (a *App) resume(ctx context.Context) error {
	err := a.store.Bootstrap(ctx)
	if err != nil && a.store.State().Status != session.StatusError {
		return err
	}
	return nil
}

func (a *App) welcome() {
	st := a.store.State()
	fmt.Fprintf(a.out, "Welcome, %s!\n", st.User.Name)
}

func (a *App) failed(err error) error {
	msg := a.store.State().Error
	if msg == "" {
		msg = client.Message(err)
	}

	fmt.Fprintln(a.out, msg)
	a.store.ClearError()

	return err
}

func (a *App) prompt(label string) (string, error) {
	fmt.Fprintf(a.out, "%s: ", label)
	return a.readLine()
}

func (a *App) password() (string, error) {
	fmt.Fprint(a.out, "Password: ")

	if a.ttyFd < 0 {
		return a.readLine()
	}

	pw, err := readPassword(a.ttyFd)
	fmt.Fprintln(a.out)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}

	return string(pw), nil
}

func (a *App) readLine() (string, error) {
	line, err := a.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && len(line) > 0 {
			return strings.TrimSpace(line), nil
		}
		return "", err
	}

	return strings.TrimSpace(line), nil
}

func checkSignUp(name, email, password string) string {
	if len(name) < 3 {
		return "Name must be at least 3 characters"
	}

	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return "Enter a valid email address"
	}

	return security.PasswordProblem(password)
}

package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dmitrijs2005/notematic/internal/client/client"
	"github.com/dmitrijs2005/notematic/internal/client/config"
	"github.com/dmitrijs2005/notematic/internal/common"
)

// AuthAPI is the server surface the CLI uses.
type AuthAPI interface {
	Register(ctx context.Context, username, email string, password []byte) (*client.Tokens, error)
	Login(ctx context.Context, username string, password []byte) (*client.Tokens, error)
	Refresh(ctx context.Context, refreshToken string) (*client.Tokens, error)
	Me(ctx context.Context, accessToken string) (string, error)
}

// SessionStore persists tokens between runs.
type SessionStore interface {
	Load() (*client.Session, error)
	Save(*client.Session) error
	Clear() error
}

type App struct {
	api      AuthAPI
	sessions SessionStore
	reader   *bufio.Reader
	out      io.Writer
}

func NewApp(c *config.Config) *App {
	return &App{
		api:      client.NewHTTPClient(c.ServerURL, c.RequestTimeout),
		sessions: client.NewSessionStore(c.SessionFile),
		reader:   bufio.NewReader(os.Stdin),
		out:      os.Stdout,
	}
}

var errUnknownCommand = errors.New("unknown command")

// valueFlags are the flags that take a separate value on the command line.
var valueFlags = map[string]bool{"-a": true, "-t": true, "-f": true, "-c": true, "-config": true, "--config": true}

// CommandFromArgs returns the first positional argument, skipping flags and
// their values. "" means no command was given.
func CommandFromArgs(args []string) string {
	for i := 0; i < len(args); i++ {
		a := args[i]
		if strings.HasPrefix(a, "-") {
			if valueFlags[a] && !strings.Contains(a, "=") {
				i++
			}
			continue
		}
		return a
	}
	return ""
}

// Run executes cmd, or starts the interactive prompt when cmd is empty.
// It returns the process exit code.
func (a *App) Run(ctx context.Context, cmd string) int {
	if cmd == "" {
		a.Root(ctx)
		return 0
	}
	if err := a.Exec(ctx, cmd); err != nil {
		fmt.Fprintln(a.out, "Error:", err)
		return 1
	}
	return 0
}

// Exec runs a single command.
func (a *App) Exec(ctx context.Context, cmd string) error {
	switch cmd {
	case "register":
		return a.register(ctx)
	case "login":
		return a.login(ctx)
	case "refresh":
		return a.refresh(ctx)
	case "whoami":
		return a.whoami(ctx)
	case "logout":
		return a.logout()
	case "help":
		a.help()
		return nil
	default:
		return fmt.Errorf("%w: %s", errUnknownCommand, cmd)
	}
}

func (a *App) help() {
	fmt.Fprintln(a.out, "Available commands: register, login, refresh, whoami, logout, help, exit")
}

// Root runs the interactive prompt until EOF or exit.
func (a *App) Root(ctx context.Context) {
	fmt.Fprintln(a.out, "Welcome to notematic CLI (type 'help' for commands)")

	for {
		fmt.Fprint(a.out, "notematic> ")
		line, err := a.reader.ReadString('\n')
		parts := strings.Fields(line)
		if len(parts) > 0 {
			switch parts[0] {
			case "exit", "quit":
				fmt.Fprintln(a.out, "Bye!")
				return
			default:
				if cerr := a.Exec(ctx, parts[0]); cerr != nil {
					fmt.Fprintln(a.out, "Error:", cerr)
				}
			}
		}
		if err != nil {
			fmt.Fprintln(a.out)
			return
		}
	}
}

func (a *App) register(ctx context.Context) error {
	username, err := GetSimpleText(a.reader, "Enter user name", a.out)
	if err != nil {
		return err
	}
	email, err := GetSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}
	password, err := GetPassword(a.out, "Enter password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	confirm, err := GetPassword(a.out, "Repeat password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(confirm)

	if string(password) != string(confirm) {
		return errors.New("passwords do not match")
	}

	tokens, err := a.api.Register(ctx, username, email, password)
	if err != nil {
		if errors.Is(err, client.ErrConflict) {
			return fmt.Errorf("user name %q is already taken", username)
		}
		return err
	}
	if err := a.saveTokens(username, tokens); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Registered and logged in as", username)
	return nil
}

func (a *App) login(ctx context.Context) error {
	username, err := GetSimpleText(a.reader, "Enter user name", a.out)
	if err != nil {
		return err
	}
	password, err := GetPassword(a.out, "Enter password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	tokens, err := a.api.Login(ctx, username, password)
	if err != nil {
		if errors.Is(err, client.ErrUnauthorized) {
			return errors.New("invalid user name or password")
		}
		return err
	}
	if err := a.saveTokens(username, tokens); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Logged in as", username)
	return nil
}

func (a *App) refresh(ctx context.Context) error {
	sess, err := a.sessions.Load()
	if err != nil {
		return err
	}
	if err := a.refreshSession(ctx, sess); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Tokens refreshed")
	return nil
}

func (a *App) refreshSession(ctx context.Context, sess *client.Session) error {
	tokens, err := a.api.Refresh(ctx, sess.RefreshToken)
	if err != nil {
		if errors.Is(err, client.ErrUnauthorized) {
			_ = a.sessions.Clear()
			return fmt.Errorf("session expired, please log in again: %w", err)
		}
		return err
	}
	return a.saveTokens(sess.Username, tokens)
}

func (a *App) whoami(ctx context.Context) error {
	sess, err := a.sessions.Load()
	if err != nil {
		return err
	}

	userID, err := a.api.Me(ctx, sess.AccessToken)
	if errors.Is(err, client.ErrUnauthorized) {
		if err := a.refreshSession(ctx, sess); err != nil {
			return err
		}
		if sess, err = a.sessions.Load(); err != nil {
			return err
		}
		userID, err = a.api.Me(ctx, sess.AccessToken)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "%s (id %s)\n", sess.Username, userID)
	return nil
}

func (a *App) logout() error {
	if err := a.sessions.Clear(); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Logged out")
	return nil
}

func (a *App) saveTokens(username string, t *client.Tokens) error {
	return a.sessions.Save(&client.Session{
		Username:     username,
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
	})
}

// Package cli implements panelctl: one-shot commands from the command line
// and an interactive loop when no command is given.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/boleyla/panel/internal/client/client"
	"github.com/boleyla/panel/internal/client/config"
	"golang.org/x/term"
)

// isTerminal is a test seam for term.IsTerminal.
var isTerminal = term.IsTerminal

type App struct {
	config *config.Config
	dial   func(token string) (client.Client, error)
	client client.Client
	token  string
	out    io.Writer
	reader *bufio.Reader
}

func NewApp(c *config.Config) *App {
	return &App{
		config: c,
		dial: func(token string) (client.Client, error) {
			return client.NewAdminClient(c.ServerEndpointAddr, token)
		},
		out:    os.Stdout,
		reader: bufio.NewReader(os.Stdin),
	}
}

// Run executes args as a single command, or starts the interactive loop
// when args is empty.
func (a *App) Run(ctx context.Context, args []string) error {
	defer a.Close()

	if len(args) == 0 {
		fmt.Fprintln(a.out, "Boleyla panel CLI (type 'help' for commands)")
		runREPL(ctx, a, bufio.NewScanner(a.reader))
		return nil
	}
	return a.Exec(ctx, args)
}

func (a *App) Close() {
	if a.client != nil {
		_ = a.client.Close()
		a.client = nil
	}
}

// connect dials on first use and again whenever the token changes. Without
// a configured token an interactive session is asked for one unless the
// command needs none.
func (a *App) connect(needToken bool) (client.Client, error) {
	token := a.config.AccessToken
	if token == "" && needToken && isTerminal(int(os.Stdin.Fd())) {
		b, err := GetSecret(a.out, "Enter access token: ")
		if err != nil {
			return nil, err
		}
		token = string(b)
		a.config.AccessToken = token
	}

	if a.client != nil && a.token == token {
		return a.client, nil
	}
	a.Close()

	c, err := a.dial(token)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", a.config.ServerEndpointAddr, err)
	}
	a.client, a.token = c, token
	return c, nil
}

// call runs fn against the connected client under the per-call timeout.
func (a *App) call(ctx context.Context, fn func(ctx context.Context, c client.Client) error) error {
	return a.callWith(ctx, true, fn)
}

func (a *App) callWith(ctx context.Context, needToken bool, fn func(ctx context.Context, c client.Client) error) error {
	c, err := a.connect(needToken)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()

	err = fn(ctx, c)
	if errors.Is(err, client.ErrUnauthorized) && a.config.AccessToken == "" {
		return fmt.Errorf("%w: no access token, pass -t or set PANELCTL_TOKEN", err)
	}
	return err
}

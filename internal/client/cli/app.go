package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/sessionkeeper/internal/client/client"
	"github.com/dmitrijs2005/sessionkeeper/internal/client/config"
	"github.com/dmitrijs2005/sessionkeeper/internal/shared"
)

// SessionClient is the server API the commands drive.
type SessionClient interface {
	Register(ctx context.Context, userName, email, displayName string, password []byte) (*client.Session, error)
	Login(ctx context.Context, email string, password []byte) (*client.Session, error)
	Refresh(ctx context.Context) (*client.Session, error)
	CurrentUser(ctx context.Context) (*client.Session, error)
	Verify(ctx context.Context, token string) (*shared.VerifyTokenResponse, error)
	Logout(ctx context.Context) (int64, error)
	Session() *client.Session
}

type App struct {
	config *config.Config
	api    SessionClient
	reader *bufio.Reader
	out    io.Writer
}

func NewApp(c *config.Config) *App {
	return &App{
		config: c,
		api:    client.NewHTTPClient(c.ServerURL, c.RequestTimeout),
		reader: bufio.NewReader(os.Stdin),
		out:    os.Stdout,
	}
}

func (a *App) isLoggedIn() bool {
	return a.api.Session() != nil
}

func (a *App) status() string {
	if s := a.api.Session(); s != nil {
		return s.UserName
	}
	return "anonymous"
}

// Run reads commands until exit or EOF.
func (a *App) Run(ctx context.Context) {
	fmt.Fprintf(a.out, "sessionkeeper CLI, server %s (type 'help' for commands)\n", a.config.ServerURL)
	runREPL(ctx, a, a.status, bufio.NewScanner(a.reader))
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/sessionkeeper/internal/client/client"
	"github.com/dmitrijs2005/sessionkeeper/internal/common"
)

// Indirections for tests.
var (
	getSimpleText = GetSimpleText
	getPassword   = GetPassword
)

func (a *App) printSession(s *client.Session) {
	fmt.Fprintf(a.out, "user: %s <%s> (id %s)\n", s.UserName, s.Email, s.UserID)
	fmt.Fprintf(a.out, "access token expires at %s\n", s.ExpiresAt.Local().Format(time.RFC1123))
}

func (a *App) report(err error) error {
	switch {
	case errors.Is(err, client.ErrNotLoggedIn):
		fmt.Fprintln(a.out, "Not logged in")
	case errors.Is(err, client.ErrUnavailable):
		fmt.Fprintln(a.out, "Server unavailable")
	default:
		fmt.Fprintln(a.out, "Error:", err)
	}
	return err
}

func (a *App) Register(ctx context.Context) error {
	userName, err := getSimpleText(a.reader, "Enter user name", a.out)
	if err != nil {
		return err
	}
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}
	displayName, err := getSimpleText(a.reader, "Enter display name (optional)", a.out)
	if err != nil {
		return err
	}
	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	s, err := a.api.Register(ctx, userName, email, displayName, password)
	if err != nil {
		return a.report(err)
	}
	fmt.Fprintln(a.out, "Registered and logged in")
	a.printSession(s)
	return nil
}

func (a *App) Login(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}
	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	s, err := a.api.Login(ctx, email, password)
	if err != nil {
		return a.report(err)
	}
	fmt.Fprintln(a.out, "Login successful")
	a.printSession(s)
	return nil
}

func (a *App) WhoAmI(ctx context.Context) error {
	s, err := a.api.CurrentUser(ctx)
	if err != nil {
		return a.report(err)
	}
	a.printSession(s)
	return nil
}

func (a *App) Refresh(ctx context.Context) error {
	s, err := a.api.Refresh(ctx)
	if err != nil {
		return a.report(err)
	}
	fmt.Fprintln(a.out, "Access token refreshed")
	a.printSession(s)
	return nil
}

func (a *App) Verify(ctx context.Context, token string) error {
	resp, err := a.api.Verify(ctx, token)
	if err != nil {
		return a.report(err)
	}
	fmt.Fprintf(a.out, "valid token for %s, expires at %s\n", resp.UserName, time.Unix(resp.ExpiresAt, 0).Local().Format(time.RFC1123))
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	n, err := a.api.Logout(ctx)
	if err != nil {
		return a.report(err)
	}
	fmt.Fprintf(a.out, "Logged out, %d refresh token(s) revoked\n", n)
	return nil
}

package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/julianstephens/habitual/internal/identity"
	"github.com/julianstephens/habitual/internal/keyring"
)

type LoginCmd struct {
	User  string `arg:"" optional:"" help:"User id to sign in as."`
	Token string `help:"Signed HS256 token; its subject becomes the user id."`
}

func (c *LoginCmd) Validate() error {
	if (c.User == "") == (c.Token == "") {
		return errors.New("provide either a user id or --token")
	}
	return nil
}

func (c *LoginCmd) Run(ctx *Context) error {
	user := c.User
	if c.Token != "" {
		sub, err := identity.VerifyToken(ctx.Config.Auth.JWTSecret, c.Token, ctx.Clock.Now())
		if err != nil {
			return err
		}
		user = sub
	}

	if err := keyring.SetCurrentUser(user); err != nil {
		return err
	}
	ctx.printf("✓ Signed in as %s\n", user)
	return nil
}

type LogoutCmd struct{}

func (c *LogoutCmd) Run(ctx *Context) error {
	if err := keyring.ClearCurrentUser(); err != nil {
		return err
	}
	ctx.println("✓ Signed out")
	return nil
}

type WhoamiCmd struct{}

func (c *WhoamiCmd) Run(ctx *Context) error {
	st, err := ctx.Identity().Current(context.Background())
	if err != nil {
		return fmt.Errorf("failed to resolve identity: %w", err)
	}
	if st.Status != identity.SignedIn {
		ctx.println("Not signed in.")
		return nil
	}
	ctx.println(st.UserID)
	return nil
}

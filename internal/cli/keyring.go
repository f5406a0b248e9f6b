package cli

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/julianstephens/habitual/internal/keyring"
	"github.com/julianstephens/habitual/internal/storage/postgres"
)

type KeyringCmd struct {
	Set    KeyringSetCmd    `cmd:"" help:"Store a PostgreSQL connection string in the OS keyring."`
	Get    KeyringGetCmd    `cmd:"" help:"Show the stored connection string (password masked)."`
	Delete KeyringDeleteCmd `cmd:"" help:"Remove the stored connection string."`
}

type KeyringSetCmd struct {
	ConnectionString string `arg:"" help:"PostgreSQL connection string."`
}

func (cmd *KeyringSetCmd) Run(ctx *Context) error {
	if _, err := postgres.ValidateConnString(cmd.ConnectionString); err != nil {
		if !errors.Is(err, postgres.ErrEmbeddedCredentials) {
			return fmt.Errorf("invalid connection string: %w", err)
		}
		// the keyring is an acceptable home for a password
		ctx.println("⚠️  Connection string contains a password; it will be stored in the encrypted OS keyring.")
	}

	if err := keyring.SetConnectionString(cmd.ConnectionString); err != nil {
		return err
	}
	ctx.println("✓ Connection string stored in OS keyring")
	return nil
}

type KeyringGetCmd struct{}

func (cmd *KeyringGetCmd) Run(ctx *Context) error {
	connStr, err := keyring.GetConnectionString()
	if errors.Is(err, keyring.ErrNotFound) {
		return errors.New("no connection string found in keyring. Use 'habitual keyring set' to store one")
	}
	if err != nil {
		return err
	}
	ctx.println(maskPassword(connStr))
	return nil
}

type KeyringDeleteCmd struct{}

func (cmd *KeyringDeleteCmd) Run(ctx *Context) error {
	if err := keyring.DeleteConnectionString(); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return errors.New("no connection string found in keyring")
		}
		return err
	}
	ctx.println("✓ Connection string removed from OS keyring")
	return nil
}

// maskPassword hides the password of a URL or key=value DSN.
func maskPassword(connStr string) string {
	if strings.HasPrefix(connStr, "postgres://") || strings.HasPrefix(connStr, "postgresql://") {
		u, err := url.Parse(connStr)
		if err != nil {
			return "(unparseable connection string)"
		}
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), "xxxxx")
		}
		return u.String()
	}

	parts := strings.Fields(connStr)
	for i, p := range parts {
		if strings.HasPrefix(strings.ToLower(p), "password=") {
			parts[i] = "password=xxxxx"
		}
	}
	return strings.Join(parts, " ")
}

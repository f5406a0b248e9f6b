package cli

import (
	"context"
	"errors"

	"github.com/julianstephens/habitual/internal/config"
	"github.com/julianstephens/habitual/internal/constants"
)

type InitCmd struct {
	Force bool `help:"Overwrite an existing config file."`
}

func (c *InitCmd) Run(ctx *Context) error {
	path := ctx.ConfigPath
	if path == "" {
		path = config.DefaultPath()
	}

	err := config.WriteDefault(path, c.Force)
	switch {
	case errors.Is(err, config.ErrExists):
		ctx.printf("Using existing config: %s\n", path)
	case err != nil:
		return err
	default:
		ctx.printf("✓ Wrote config: %s\n", path)
	}

	if _, err := ctx.Store(context.Background()); err != nil {
		return err
	}
	switch ctx.Config.Storage.Driver {
	case constants.DriverSQLite:
		ctx.printf("✓ Initialized habitual storage at: %s\n", ctx.Config.Storage.Path)
	default:
		ctx.printf("✓ Initialized %s storage\n", ctx.Config.Storage.Driver)
	}
	ctx.println("Next: run 'habitual login <name>' and 'habitual habit add <title>'.")
	return nil
}

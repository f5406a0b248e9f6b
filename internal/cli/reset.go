package cli

import (
	"context"
)

type ResetCmd struct {
	Yes bool `short:"y" help:"Skip the confirmation prompt."`
}

// Run deletes every habit and log of the signed-in user.
func (c *ResetCmd) Run(ctx *Context) error {
	bg := context.Background()
	repo, err := ctx.Habits(bg)
	if err != nil {
		return err
	}

	if !c.Yes {
		ok, err := ctx.confirm("Delete all habits and completion history for " + repo.Owner() + "?")
		if err != nil {
			return err
		}
		if !ok {
			ctx.println("Reset cancelled.")
			return nil
		}
	}

	n, err := repo.Reset(bg)
	if err != nil {
		return err
	}
	ctx.printf("Deleted %d habits and their history.\n", n)
	return nil
}

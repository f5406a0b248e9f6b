package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/julianstephens/habitual/internal/constants"
	"github.com/julianstephens/habitual/internal/keyring"
	"github.com/julianstephens/habitual/internal/storage"
)

// schemaVersioned is implemented by the SQL backends.
type schemaVersioned interface {
	Versions(ctx context.Context) (current, target int64, err error)
}

type DoctorCmd struct{}

type check struct {
	name       string
	run        func(ctx *Context, bg context.Context) error
	warning    bool
	needsStore bool
}

func (cmd *DoctorCmd) Run(ctx *Context) error {
	bg := context.Background()
	ctx.println("Running diagnostics...")
	ctx.println()

	checks := []check{
		{name: "Database reachable", run: checkStoreReachable},
		{name: "Schema version", run: checkSchemaVersion, needsStore: true},
		{name: "Owner data", run: checkOwnerData, warning: true, needsStore: true},
		{name: "Backups present", run: checkBackupsPresent, warning: true},
		{name: "Clock/timezone", run: checkClockTimezone},
		{name: "Keyring", run: checkKeyring, warning: true},
	}

	hasError := false
	storeOK := true
	for i, c := range checks {
		if c.needsStore && !storeOK {
			ctx.printf("⊘ %s: SKIPPED (database not reachable)\n", c.name)
			continue
		}
		err := c.run(ctx, bg)
		switch {
		case err == nil:
			ctx.printf("✓ %s: OK\n", c.name)
		case c.warning:
			ctx.printf("⚠ %s: WARNING\n", c.name)
			ctx.printf("   %v\n", err)
		default:
			ctx.printf("❌ %s: FAIL\n", c.name)
			ctx.printf("   Error: %v\n", err)
			hasError = true
			if i == 0 {
				storeOK = false
			}
		}
	}

	ctx.println()
	if hasError {
		ctx.println("Diagnostics completed with errors.")
		return fmt.Errorf("one or more health checks failed")
	}
	ctx.println("All diagnostics passed!")
	return nil
}

func checkStoreReachable(ctx *Context, bg context.Context) error {
	s, err := ctx.Store(bg)
	if err != nil {
		return err
	}
	// any collection will do, an empty result still proves a round trip
	_, err = s.Query(bg, constants.CollectionHabits, storage.Eq(constants.FieldOwner, ""))
	return err
}

func checkSchemaVersion(ctx *Context, bg context.Context) error {
	s, err := ctx.Store(bg)
	if err != nil {
		return err
	}
	v, ok := s.(schemaVersioned)
	if !ok {
		return nil
	}
	current, target, err := v.Versions(bg)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	switch {
	case current > target:
		return fmt.Errorf("database schema version (%d) is newer than supported version (%d)", current, target)
	case current < target:
		return fmt.Errorf("migrations incomplete: current version %d, latest version %d", current, target)
	}
	return nil
}

// checkOwnerData looks for duplicate logs that slipped past a backend
// without a unique index.
func checkOwnerData(ctx *Context, bg context.Context) error {
	rec, err := ctx.Reconciler(bg)
	if err != nil {
		return err
	}
	history, err := rec.History(bg)
	if err != nil {
		return err
	}
	seen := make(map[string]bool, len(history))
	for _, l := range history {
		key := l.HabitID + "/" + l.Date
		if seen[key] {
			return fmt.Errorf("duplicate completion log for habit %s on %s", l.HabitID, l.Date)
		}
		seen[key] = true
	}
	return nil
}

func checkBackupsPresent(ctx *Context, _ context.Context) error {
	mgr, err := ctx.backupManager()
	if err != nil {
		return err
	}
	backups, err := mgr.List()
	if err != nil {
		return fmt.Errorf("failed to list backups: %w", err)
	}
	if len(backups) == 0 {
		return fmt.Errorf("no backups found - consider creating one with 'habitual backup create'")
	}
	return nil
}

func checkClockTimezone(ctx *Context, _ context.Context) error {
	now := ctx.Clock.Now()
	if now.Year() < 2020 || now.Year() > 2100 {
		return fmt.Errorf("system time appears incorrect: %s", now.Format(time.RFC3339))
	}
	loc, err := ctx.Location()
	if err != nil {
		return err
	}
	if loc == time.UTC {
		ctx.println("   Note: timezone is UTC")
	}
	return nil
}

func checkKeyring(ctx *Context, _ context.Context) error {
	if ctx.User != "" || ctx.Token != "" {
		return nil
	}
	if !keyring.IsAvailable() {
		return fmt.Errorf("system keyring unavailable; pass --user or --token")
	}
	return nil
}

package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jonboulle/clockwork"

	"github.com/julianstephens/habitual/internal/backup"
	"github.com/julianstephens/habitual/internal/config"
	"github.com/julianstephens/habitual/internal/constants"
	apperrors "github.com/julianstephens/habitual/internal/errors"
	"github.com/julianstephens/habitual/internal/habits"
	"github.com/julianstephens/habitual/internal/identity"
	"github.com/julianstephens/habitual/internal/keyring"
	"github.com/julianstephens/habitual/internal/logger"
	"github.com/julianstephens/habitual/internal/models"
	"github.com/julianstephens/habitual/internal/reconcile"
	"github.com/julianstephens/habitual/internal/session"
	"github.com/julianstephens/habitual/internal/storage"
	"github.com/julianstephens/habitual/internal/storage/memory"
	"github.com/julianstephens/habitual/internal/storage/postgres"
	"github.com/julianstephens/habitual/internal/storage/sqlite"
	"github.com/julianstephens/habitual/internal/utils"
)

// Context is shared by every command. The store is opened on first use.
type Context struct {
	ConfigPath string
	Config     *config.Config
	User       string
	Token      string
	Clock      clockwork.Clock
	Out        io.Writer
	In         io.Reader
	Log        *log.Logger

	store storage.Store
}

func NewContext(configPath string, cfg *config.Config) *Context {
	return &Context{
		ConfigPath: configPath,
		Config:     cfg,
		Clock:      clockwork.NewRealClock(),
		Out:        os.Stdout,
		In:         os.Stdin,
		Log:        logger.Get(),
	}
}

func (c *Context) printf(format string, args ...any) {
	fmt.Fprintf(c.Out, format, args...)
}

func (c *Context) println(args ...any) {
	fmt.Fprintln(c.Out, args...)
}

// Store opens the configured backend.
func (c *Context) Store(ctx context.Context) (storage.Store, error) {
	if c.store != nil {
		return c.store, nil
	}

	var (
		s   storage.Store
		err error
	)
	switch c.Config.Storage.Driver {
	case constants.DriverSQLite:
		s, err = sqlite.Open(ctx, c.Config.Storage.Path, sqlite.Options{
			PollInterval: c.Config.Storage.PollInterval,
			Logger:       c.Log,
		})
	case constants.DriverPostgres:
		var dsn string
		dsn, err = c.connectionString()
		if err == nil {
			s, err = postgres.Open(ctx, dsn, postgres.Options{Logger: c.Log})
		}
	case constants.DriverMemory:
		s = memory.New(memory.WithLogger(c.Log))
	default:
		err = fmt.Errorf("unknown storage driver %q", c.Config.Storage.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrStoreUnavailable, err)
	}

	c.store = s
	return s, nil
}

// connectionString prefers the config/env DSN, which must be password-free,
// and falls back to the keyring.
func (c *Context) connectionString() (string, error) {
	if dsn := c.Config.Storage.DSN; dsn != "" {
		if _, err := postgres.ValidateConnString(dsn); err != nil {
			if errors.Is(err, postgres.ErrEmbeddedCredentials) {
				return "", fmt.Errorf("%w; store it with 'habitual keyring set' or use PGPASSWORD/.pgpass", err)
			}
			return "", err
		}
		return dsn, nil
	}

	dsn, err := keyring.GetConnectionString()
	if errors.Is(err, keyring.ErrNotFound) {
		return "", fmt.Errorf("no PostgreSQL connection configured: set storage.dsn, %s, or run 'habitual keyring set'", constants.EnvStorageDSN)
	}
	return dsn, err
}

func (c *Context) Close() error {
	if c.store == nil {
		return nil
	}
	err := c.store.Close()
	c.store = nil
	return err
}

func (c *Context) Location() (*time.Location, error) {
	return c.Config.Location()
}

// Today is the local date key and its midnight.
func (c *Context) Today() (string, time.Time, error) {
	loc, err := c.Location()
	if err != nil {
		return "", time.Time{}, err
	}
	key := utils.DateKey(c.Clock.Now(), loc)
	date, err := utils.ParseDateInLocation(key, loc)
	return key, date, err
}

// Identity picks the provider: --user, then --token, then the keyring.
func (c *Context) Identity() identity.Provider {
	switch {
	case c.User != "":
		return identity.Static{UserID: c.User}
	case c.Token != "":
		return &identity.Token{
			Secret:   c.Config.Auth.JWTSecret,
			Raw:      c.Token,
			Clock:    c.Clock,
			Interval: c.Config.Auth.PollInterval,
			Logger:   c.Log,
		}
	}
	return identity.NewKeyring(c.Clock, c.Config.Auth.PollInterval, c.Log)
}

// Owner resolves the signed-in user or fails with ErrNoOwner.
func (c *Context) Owner(ctx context.Context) (string, error) {
	st, err := c.Identity().Current(ctx)
	if err != nil {
		return "", err
	}
	if st.Status != identity.SignedIn {
		return "", fmt.Errorf("%w: run 'habitual login <user>' or pass --user", apperrors.ErrNoOwner)
	}
	return st.UserID, nil
}

func (c *Context) Habits(ctx context.Context) (*habits.Repository, error) {
	owner, err := c.Owner(ctx)
	if err != nil {
		return nil, err
	}
	s, err := c.Store(ctx)
	if err != nil {
		return nil, err
	}
	return habits.NewRepository(s, owner, c.Log)
}

func (c *Context) Reconciler(ctx context.Context) (*reconcile.Reconciler, error) {
	owner, err := c.Owner(ctx)
	if err != nil {
		return nil, err
	}
	s, err := c.Store(ctx)
	if err != nil {
		return nil, err
	}
	return reconcile.New(s, owner, c.Log, reconcile.WithPruneOrphans(c.Config.Reconcile.PruneOrphans))
}

// SessionConfig is the template for trackers; Owner is left empty.
func (c *Context) SessionConfig(ctx context.Context) (session.Config, error) {
	s, err := c.Store(ctx)
	if err != nil {
		return session.Config{}, err
	}
	loc, err := c.Location()
	if err != nil {
		return session.Config{}, err
	}
	return session.Config{
		Store:        s,
		Location:     loc,
		Clock:        c.Clock,
		Logger:       c.Log,
		PruneOrphans: c.Config.Reconcile.PruneOrphans,
	}, nil
}

// PerformAutomaticBackup snapshots the SQLite file and only logs failures.
func (c *Context) PerformAutomaticBackup(ctx context.Context) {
	if c.Config.Storage.Driver != constants.DriverSQLite {
		return
	}
	if _, err := os.Stat(c.Config.Storage.Path); err != nil {
		return
	}
	mgr := backup.NewManager(c.Config.Storage.Path, c.Clock, c.Log)
	if _, err := mgr.Create(ctx); err != nil {
		logger.Warn("Automatic backup failed", "error", err)
	}
}

// resolveHabit finds a habit by id, or by case-insensitive title.
func resolveHabit(ctx context.Context, repo *habits.Repository, ref string) (models.Habit, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return models.Habit{}, apperrors.NewValidationError("habit", "id or title required")
	}
	if h, err := repo.Get(ctx, ref); err == nil {
		return h, nil
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		return models.Habit{}, err
	}

	all, err := repo.List(ctx)
	if err != nil {
		return models.Habit{}, err
	}
	var matches []models.Habit
	for _, h := range all {
		if strings.EqualFold(h.Title, ref) {
			matches = append(matches, h)
		}
	}
	switch len(matches) {
	case 0:
		return models.Habit{}, fmt.Errorf("%w: no habit matches %q", apperrors.ErrNotFound, ref)
	case 1:
		return matches[0], nil
	}
	return models.Habit{}, apperrors.NewValidationError("habit", fmt.Sprintf("%q matches %d habits, use the id", ref, len(matches)))
}

// confirm asks a yes/no question on In. EOF counts as no.
func (c *Context) confirm(prompt string) (bool, error) {
	c.printf("%s [y/N]: ", prompt)
	response, err := bufio.NewReader(c.In).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes", nil
}

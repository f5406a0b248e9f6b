package main

import (
	"errors"
	"io/fs"

	"github.com/alecthomas/kong"

	"github.com/julianstephens/habitual/internal/cli"
	"github.com/julianstephens/habitual/internal/config"
	"github.com/julianstephens/habitual/internal/constants"
	apperrors "github.com/julianstephens/habitual/internal/errors"
	"github.com/julianstephens/habitual/internal/logger"
)

var CLI struct {
	Version kong.VersionFlag
	Config  string `help:"Config file path." type:"path" env:"HABITUAL_CONFIG"`
	User    string `help:"Act as this user instead of the signed-in one." env:"HABITUAL_USER"`
	Token   string `help:"Signed identity token; its subject becomes the user." env:"HABITUAL_TOKEN"`
	Verbose bool   `short:"v" help:"Log at debug level to stderr."`

	Init     cli.InitCmd     `cmd:"" help:"Write a default config and initialize storage."`
	Tui      cli.TuiCmd      `cmd:"" help:"Launch the interactive TUI." default:"1"`
	Watch    cli.WatchCmd    `cmd:"" help:"Print today's checklist whenever it changes."`
	Today    cli.TodayCmd    `cmd:"" help:"Show today's habits and completion rate."`
	Toggle   cli.ToggleCmd   `cmd:"" help:"Flip today's completion of a habit."`
	Progress cli.ProgressCmd `cmd:"" help:"Show the completion heat map."`
	Habit    cli.HabitCmd    `cmd:"" help:"Manage habits."`
	Reset    cli.ResetCmd    `cmd:"" help:"Delete all habits and history of the signed-in user."`
	Login    cli.LoginCmd    `cmd:"" help:"Sign in as a user."`
	Logout   cli.LogoutCmd   `cmd:"" help:"Sign out."`
	Whoami   cli.WhoamiCmd   `cmd:"" help:"Show the signed-in user."`
	Backup   cli.BackupCmd   `cmd:"" help:"Manage database backups."`
	Keyring  cli.KeyringCmd  `cmd:"" help:"Manage the PostgreSQL connection string in the OS keyring."`
	Doctor   cli.DoctorCmd   `cmd:"" help:"Run health checks."`
	Debug    cli.DebugCmd    `cmd:"" help:"Debugging helpers."`
}

func main() {
	kctx := kong.Parse(&CLI,
		kong.Name(constants.AppName),
		kong.Description("Daily habit tracker"),
		kong.UsageOnError(),
		kong.Vars{"version": constants.Version},
	)

	cfg, err := config.Load(CLI.Config)
	if err != nil && kctx.Command() == "init" && errors.Is(err, fs.ErrNotExist) {
		cfg, err = config.FromEnv()
	}
	if err != nil {
		apperrors.Fatal(err)
	}

	if err := logger.Init(logger.Config{
		Debug:     CLI.Verbose || cfg.Log.Debug,
		Dir:       cfg.Log.Dir,
		ConfigDir: config.Dir(CLI.Config),
	}); err != nil {
		apperrors.Fatal(err)
	}

	appCtx := cli.NewContext(CLI.Config, cfg)
	appCtx.User = CLI.User
	appCtx.Token = CLI.Token

	err = kctx.Run(appCtx)
	if cerr := appCtx.Close(); err == nil && cerr != nil {
		logger.Warn("Failed to close store", "error", cerr)
	}
	apperrors.Fatal(err)
}

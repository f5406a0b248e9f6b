package constants

import "time"

// SessionState represents the current screen of the TUI application
type SessionState int

const (
	AppName            = "habitual"
	DefaultKeyringUser = "database-connection"
	CurrentUserKey     = "current-user"
	DefaultConfigDir   = "~/.config/habitual"
	DefaultConfigFile  = "config.yaml"
	DefaultDBFile      = "habitual.db"
	Version            = "v0.1.0"

	// Environment variables read on top of the config file
	EnvConfigPath   = "HABITUAL_CONFIG"
	EnvStorageDSN   = "HABITUAL_DB_CONNECTION"
	EnvStorageKind  = "HABITUAL_STORAGE_DRIVER"
	EnvTimezone     = "HABITUAL_TIMEZONE"
	EnvJWTSecret    = "HABITUAL_JWT_SECRET"
	EnvDebugLogging = "HABITUAL_DEBUG"

	// Storage drivers
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"

	DefaultPollInterval = 2 * time.Second

	// Backups
	MaxBackups       = 14
	BackupDirName    = "backups"
	BackupFilePrefix = "habitual-"
	BackupFileSuffix = ".db"

	LockfileName = "session.lock"
)

// Session States
const (
	StateToday SessionState = iota
	StateHabits
	StateProgress
	StateAddHabit
	StateEditHabit
	StateConfirmDelete
)

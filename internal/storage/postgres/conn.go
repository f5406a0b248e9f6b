package postgres

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	pq "github.com/lib/pq"

	"github.com/julianstephens/habitual/internal/constants"
)

var (
	ErrInvalidConnectionString = errors.New("invalid PostgreSQL connection string")
	ErrEmbeddedCredentials     = errors.New("connection string must not contain a password")
)

// withSearchPath pins search_path to the application schema unless the
// connection string already sets one.
func withSearchPath(connStr string) (string, error) {
	if isURL(connStr) {
		u, err := url.Parse(connStr)
		if err != nil {
			return connStr, fmt.Errorf("%w: %v", ErrInvalidConnectionString, err)
		}
		q := u.Query()
		if q.Get("search_path") == "" {
			q.Set("search_path", constants.AppName)
			u.RawQuery = q.Encode()
		}
		return u.String(), nil
	}
	if !hasParam(connStr, "search_path") {
		return strings.TrimSpace(connStr) + " search_path=" + constants.AppName, nil
	}
	return connStr, nil
}

func isURL(connStr string) bool {
	return strings.HasPrefix(connStr, "postgres://") || strings.HasPrefix(connStr, "postgresql://")
}

// hasParam reports whether a DSN-style connection string sets key
// (case-insensitive). Values are never matched.
func hasParam(connStr, key string) bool {
	for _, part := range strings.Fields(connStr) {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) == 2 && strings.EqualFold(strings.TrimSpace(kv[0]), key) {
			return true
		}
	}
	return false
}

// hasSSLMode checks both URL and DSN forms for an sslmode key.
func hasSSLMode(connStr string) bool {
	if u, err := url.Parse(connStr); err == nil && u.Scheme != "" {
		for key := range u.Query() {
			if strings.EqualFold(key, "sslmode") {
				return true
			}
		}
	}
	return hasParam(connStr, "sslmode")
}

// ValidateConnString checks that connStr parses as a PostgreSQL URI or DSN
// and carries no password. Passwords belong in the keyring, PGPASSWORD or
// ~/.pgpass.
func ValidateConnString(connStr string) (bool, error) {
	if strings.TrimSpace(connStr) == "" {
		return false, fmt.Errorf("%w: connection string cannot be empty", ErrInvalidConnectionString)
	}

	if _, err := pq.NewConnector(connStr); err != nil {
		return false, fmt.Errorf("%w: invalid connection string format: %v", ErrInvalidConnectionString, err)
	}

	if isURL(connStr) {
		u, err := url.Parse(connStr)
		if err != nil {
			return false, fmt.Errorf("%w: failed to parse connection URL: %v", ErrInvalidConnectionString, err)
		}
		if _, isSet := u.User.Password(); isSet {
			return false, ErrEmbeddedCredentials
		}
		if u.Host == "" && u.User == nil && (u.Path == "" || u.Path == "/") {
			return false, fmt.Errorf("%w: connection URL is incomplete", ErrInvalidConnectionString)
		}
		return true, nil
	}

	if hasParam(connStr, "password") {
		return false, ErrEmbeddedCredentials
	}
	return true, nil
}

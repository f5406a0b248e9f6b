package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"

	"github.com/julianstephens/habitual/internal/logger"
)

var (
	ErrNoSecret     = errors.New("token login is disabled: no jwt secret configured")
	ErrInvalidToken = errors.New("invalid token")
)

// VerifyToken checks an HS256 token against secret and returns its subject.
func VerifyToken(secret, token string, now time.Time) (string, error) {
	if secret == "" {
		return "", ErrNoSecret
	}
	if strings.TrimSpace(token) == "" {
		return "", fmt.Errorf("%w: token is empty", ErrInvalidToken)
	}

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || strings.TrimSpace(claims.Subject) == "" {
		return "", fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims.Subject, nil
}

// IssueToken signs an HS256 token for subject. A zero ttl means no expiry.
func IssueToken(secret, subject string, now time.Time, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", ErrNoSecret
	}
	claims := jwt.RegisteredClaims{
		Subject:  subject,
		IssuedAt: jwt.NewNumericDate(now),
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Token derives the owner from a signed token. The token is re-verified on
// every check so expiry signs the user out.
type Token struct {
	Secret   string
	Raw      string
	Clock    clockwork.Clock
	Interval time.Duration
	Logger   *log.Logger
}

func (t *Token) clock() clockwork.Clock {
	if t.Clock == nil {
		return clockwork.NewRealClock()
	}
	return t.Clock
}

func (t *Token) Current(context.Context) (State, error) {
	sub, err := VerifyToken(t.Secret, t.Raw, t.clock().Now())
	if errors.Is(err, ErrInvalidToken) {
		logger.OrDefault(t.Logger).Debug("Token rejected", "error", err)
		return State{Status: NoUser}, nil
	}
	if err != nil {
		return State{Status: Loading}, err
	}
	return signedIn(sub), nil
}

func (t *Token) Watch(ctx context.Context) <-chan State {
	return poll(ctx, t.clock(), t.Interval, logger.OrDefault(t.Logger), t.Current)
}

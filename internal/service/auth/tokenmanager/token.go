package tokenmanager

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nkiryanov/vidtube/internal/apperrors"
	"github.com/nkiryanov/vidtube/internal/models"
)

const (
	defaultAccessTokenTTL  = 15 * time.Minute
	defaultSigningMethod   = "HS256"
	defaultRefreshTokenTTL = 10 * 24 * time.Hour
)

// Claims carried by access token
// Enough to render the user without hitting the store
type AccessClaims struct {
	jwt.RegisteredClaims
	UserID   uuid.UUID `json:"id"`
	Username string    `json:"username"`
	Email    string    `json:"email"`
	Fullname string    `json:"fullname"`
}

type refreshClaims struct {
	jwt.RegisteredClaims
	UserID uuid.UUID `json:"id"`
}

// Token manager with sensible default
type Config struct {
	// Secret keys to sign access and refresh tokens
	// Both required and must differ
	AccessSecret  string
	RefreshSecret string

	// JWT MAC (Message Authentication Code) algorithm
	// If not set than default is used
	Alg string

	// Access and refresh token lifetimes
	// If not set than default is used
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type TokenManager struct {
	accessKey  []byte
	refreshKey []byte

	// JWT MAC (Message Authentication Code) algorithm
	alg jwt.SigningMethod

	// Access and refresh token lifetimes
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func New(cfg Config) (*TokenManager, error) {
	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
		return nil, errors.New("access and refresh secrets must not be empty")
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return nil, errors.New("access and refresh secrets must differ")
	}

	if cfg.Alg == "" {
		cfg.Alg = defaultSigningMethod
	}
	alg := jwt.GetSigningMethod(cfg.Alg)
	if _, ok := alg.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unsupported signing method %q", cfg.Alg)
	}

	setDefaultDuration := func(field *time.Duration, def time.Duration) {
		if *field == 0 {
			*field = def
		}
	}
	setDefaultDuration(&cfg.AccessTTL, defaultAccessTokenTTL)
	setDefaultDuration(&cfg.RefreshTTL, defaultRefreshTokenTTL)

	return &TokenManager{
		accessKey:  []byte(cfg.AccessSecret),
		refreshKey: []byte(cfg.RefreshSecret),
		alg:        alg,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
	}, nil
}

func (m *TokenManager) AccessTTL() time.Duration  { return m.accessTTL }
func (m *TokenManager) RefreshTTL() time.Duration { return m.refreshTTL }

func (m *TokenManager) registered(now time.Time, ttl time.Duration) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
}

func (m *TokenManager) IssueAccess(user models.User) (models.IssuedToken, error) {
	now := time.Now().Truncate(time.Second)
	claims := AccessClaims{
		RegisteredClaims: m.registered(now, m.accessTTL),
		UserID:           user.ID,
		Username:         user.Username,
		Email:            user.Email,
		Fullname:         user.Fullname,
	}

	value, err := jwt.NewWithClaims(m.alg, claims).SignedString(m.accessKey)
	if err != nil {
		return models.IssuedToken{}, fmt.Errorf("error while signing access token. Err: %w", err)
	}

	return models.IssuedToken{Value: value, ExpiresAt: claims.ExpiresAt.Time}, nil
}

func (m *TokenManager) IssueRefresh(userID uuid.UUID) (models.IssuedToken, error) {
	now := time.Now().Truncate(time.Second)
	claims := refreshClaims{
		RegisteredClaims: m.registered(now, m.refreshTTL),
		UserID:           userID,
	}

	value, err := jwt.NewWithClaims(m.alg, claims).SignedString(m.refreshKey)
	if err != nil {
		return models.IssuedToken{}, fmt.Errorf("error while signing refresh token. Err: %w", err)
	}

	return models.IssuedToken{Value: value, ExpiresAt: claims.ExpiresAt.Time}, nil
}

func (m *TokenManager) IssuePair(user models.User) (models.TokenPair, error) {
	access, err := m.IssueAccess(user)
	if err != nil {
		return models.TokenPair{}, err
	}

	refresh, err := m.IssueRefresh(user.ID)
	if err != nil {
		return models.TokenPair{}, err
	}

	return models.TokenPair{Access: access, Refresh: refresh}, nil
}

// Parse and validate access token
func (m *TokenManager) ParseAccess(token string) (AccessClaims, error) {
	claims := AccessClaims{}
	if err := m.parse(token, &claims, m.accessKey); err != nil {
		return AccessClaims{}, err
	}
	if claims.UserID == uuid.Nil {
		return AccessClaims{}, fmt.Errorf("%w: no user id", apperrors.ErrTokenInvalid)
	}
	return claims, nil
}

// Parse and validate refresh token, return user id it was issued for
// Whether the token is still the current one is up to the caller
func (m *TokenManager) ParseRefresh(token string) (uuid.UUID, error) {
	claims := refreshClaims{}
	if err := m.parse(token, &claims, m.refreshKey); err != nil {
		return uuid.Nil, err
	}
	if claims.UserID == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%w: no user id", apperrors.ErrTokenInvalid)
	}
	return claims.UserID, nil
}

func (m *TokenManager) parse(token string, claims jwt.Claims, key []byte) error {
	_, err := jwt.ParseWithClaims(
		token,
		claims,
		func(t *jwt.Token) (any, error) {
			return key, nil
		},
		jwt.WithValidMethods([]string{m.alg.Alg()}),
		jwt.WithExpirationRequired(),
	)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %w", apperrors.ErrTokenExpired, err)
	default:
		return fmt.Errorf("%w: %w", apperrors.ErrTokenInvalid, err)
	}
}

// Package auth handles Google OAuth login, session tokens, and per-user
// identities with fresh access tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"mailpilot/internal/model"
	"mailpilot/pkg/config"
	"mailpilot/pkg/util"
)

const (
	stateSubject = "oauth_state"
	stateTTL     = 10 * time.Minute
)

var (
	ErrInvalidState = errors.New("invalid oauth state")
	ErrNoTokens     = errors.New("user has not connected a mailbox")
)

// Scopes requested at login.
var Scopes = []string{gmail.GmailReadonlyScope, calendar.CalendarScope}

// UserStore persists users and their tokens.
type UserStore interface {
	Upsert(ctx context.Context, u *model.User) (*model.User, error)
	GetByID(ctx context.Context, id int64) (*model.User, error)
	UpdateTokens(ctx context.Context, userID int64, accessToken, refreshToken string, expiry *time.Time) error
}

// OAuthProvider is the OAuth2 client.
type OAuthProvider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	TokenSource(ctx context.Context, t *oauth2.Token) oauth2.TokenSource
}

// ProfileFunc returns the mailbox address the token belongs to.
type ProfileFunc func(ctx context.Context, tok *oauth2.Token) (string, error)

type googleProvider struct{ cfg *oauth2.Config }

// NewGoogleProvider builds the Google OAuth2 client from config.
func NewGoogleProvider(cfg config.GoogleConfig) OAuthProvider {
	return googleProvider{cfg: &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Scopes:       Scopes,
		Endpoint:     google.Endpoint,
	}}
}

func (g googleProvider) AuthCodeURL(state string) string {
	return g.cfg.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.ApprovalForce,
		oauth2.SetAuthURLParam("include_granted_scopes", "true"),
	)
}

func (g googleProvider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	return g.cfg.Exchange(ctx, code)
}

func (g googleProvider) TokenSource(ctx context.Context, t *oauth2.Token) oauth2.TokenSource {
	return g.cfg.TokenSource(ctx, t)
}

// GmailProfile reads the address from the Gmail profile endpoint.
func GmailProfile(ctx context.Context, tok *oauth2.Token) (string, error) {
	svc, err := gmail.NewService(ctx, option.WithTokenSource(oauth2.StaticTokenSource(tok)))
	if err != nil {
		return "", err
	}
	p, err := svc.Users.GetProfile("me").Context(ctx).Do()
	if err != nil {
		return "", err
	}
	return p.EmailAddress, nil
}

// Session is the outcome of a completed login.
type Session struct {
	User  *model.User `json:"user"`
	Token string      `json:"token"`
}

type Service struct {
	users    UserStore
	provider OAuthProvider
	profile  ProfileFunc
	secret   string
	ttl      time.Duration
	logger   *zap.Logger
}

func NewService(users UserStore, provider OAuthProvider, profile ProfileFunc, jwtCfg config.JWTConfig, logger *zap.Logger) *Service {
	ttl := time.Duration(jwtCfg.TTLHours) * time.Hour
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Service{
		users:    users,
		provider: provider,
		profile:  profile,
		secret:   jwtCfg.Secret,
		ttl:      ttl,
		logger:   logger,
	}
}

// LoginURL returns the consent URL with a signed, short-lived state.
func (s *Service) LoginURL() (string, error) {
	state, err := s.signState(time.Now())
	if err != nil {
		return "", fmt.Errorf("sign state: %w", err)
	}
	return s.provider.AuthCodeURL(state), nil
}

// Callback exchanges the authorization code, stores the user with its
// tokens, and issues a session token.
func (s *Service) Callback(ctx context.Context, code, state string) (*Session, error) {
	if !s.verifyState(state) {
		return nil, ErrInvalidState
	}

	tok, err := s.provider.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}
	email, err := s.profile(ctx, tok)
	if err != nil {
		return nil, fmt.Errorf("fetch profile: %w", err)
	}

	u := &model.User{
		Email:        email,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
	}
	if !tok.Expiry.IsZero() {
		u.TokenExpiry = &tok.Expiry
	}
	saved, err := s.users.Upsert(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("save user: %w", err)
	}

	jwtToken, err := util.GenerateJWT(saved.ID, saved.Email, s.secret, s.ttl)
	if err != nil {
		return nil, err
	}
	s.logger.Info("user connected", zap.Int64("user_id", saved.ID), zap.String("email", saved.Email))
	return &Session{User: saved, Token: jwtToken}, nil
}

func (s *Service) signState(now time.Time) (string, error) {
	if s.secret == "" {
		return "", errors.New("jwt secret is empty")
	}
	claims := jwt.RegisteredClaims{
		Subject:   stateSubject,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(stateTTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.secret))
}

func (s *Service) verifyState(state string) bool {
	claims := &jwt.RegisteredClaims{}
	tok, err := jwt.ParseWithClaims(state, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(s.secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithSubject(stateSubject))
	return err == nil && tok.Valid
}

// ParseToken validates a session token.
func (s *Service) ParseToken(token string) (*util.Claims, error) {
	return util.ParseJWT(token, s.secret)
}

// Identity loads a user and refreshes the access token when it has expired.
// A refreshed token is persisted before it is returned.
func (s *Service) Identity(ctx context.Context, userID int64) (model.Identity, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return model.Identity{}, err
	}
	if !u.HasTokens() {
		return model.Identity{}, ErrNoTokens
	}

	current := &oauth2.Token{AccessToken: u.AccessToken, RefreshToken: u.RefreshToken}
	if u.TokenExpiry != nil {
		current.Expiry = *u.TokenExpiry
	}

	fresh, err := s.provider.TokenSource(ctx, current).Token()
	if err != nil {
		return model.Identity{}, fmt.Errorf("refresh token for user %d: %w", userID, err)
	}

	if fresh.AccessToken != current.AccessToken {
		var expiry *time.Time
		if !fresh.Expiry.IsZero() {
			expiry = &fresh.Expiry
		}
		if err := s.users.UpdateTokens(ctx, u.ID, fresh.AccessToken, fresh.RefreshToken, expiry); err != nil {
			return model.Identity{}, fmt.Errorf("persist refreshed token: %w", err)
		}
		s.logger.Info("access token refreshed", zap.Int64("user_id", u.ID))
	}

	refresh := fresh.RefreshToken
	if refresh == "" {
		refresh = u.RefreshToken
	}
	return model.Identity{
		UserID:       u.ID,
		Email:        u.Email,
		AccessToken:  fresh.AccessToken,
		RefreshToken: refresh,
		Expiry:       fresh.Expiry,
	}, nil
}

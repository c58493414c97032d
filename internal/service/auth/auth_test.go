package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"mailpilot/internal/model"
	"mailpilot/pkg/config"
)

type fakeUsers struct {
	byID    map[int64]*model.User
	nextID  int64
	updates []string
}

func newFakeUsers() *fakeUsers { return &fakeUsers{byID: map[int64]*model.User{}, nextID: 1} }

func (f *fakeUsers) Upsert(_ context.Context, u *model.User) (*model.User, error) {
	for _, existing := range f.byID {
		if existing.Email == u.Email {
			existing.AccessToken = u.AccessToken
			return existing, nil
		}
	}
	cp := *u
	cp.ID = f.nextID
	f.nextID++
	f.byID[cp.ID] = &cp
	return &cp, nil
}

func (f *fakeUsers) GetByID(_ context.Context, id int64) (*model.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return nil, errors.New("not found")
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) UpdateTokens(_ context.Context, id int64, access, _ string, _ *time.Time) error {
	f.updates = append(f.updates, access)
	f.byID[id].AccessToken = access
	return nil
}

type fakeProvider struct {
	lastState string
	exchanged *oauth2.Token
	refreshed *oauth2.Token
}

func (p *fakeProvider) AuthCodeURL(state string) string {
	p.lastState = state
	return "https://accounts.example/auth?state=" + state
}

func (p *fakeProvider) Exchange(_ context.Context, code string) (*oauth2.Token, error) {
	if code != "good-code" {
		return nil, errors.New("invalid_grant")
	}
	return p.exchanged, nil
}

func (p *fakeProvider) TokenSource(_ context.Context, t *oauth2.Token) oauth2.TokenSource {
	if p.refreshed != nil {
		return oauth2.StaticTokenSource(p.refreshed)
	}
	return oauth2.StaticTokenSource(t)
}

func staticProfile(context.Context, *oauth2.Token) (string, error) { return "me@example.com", nil }

func newService(users *fakeUsers, p *fakeProvider) *Service {
	return NewService(users, p, staticProfile, config.JWTConfig{Secret: "s3cret", TTLHours: 1}, zap.NewNop())
}

func TestLoginAndCallback(t *testing.T) {
	users := newFakeUsers()
	p := &fakeProvider{exchanged: &oauth2.Token{AccessToken: "at", RefreshToken: "rt", Expiry: time.Now().Add(time.Hour)}}
	svc := newService(users, p)

	url, err := svc.LoginURL()
	require.NoError(t, err)
	assert.Contains(t, url, p.lastState)

	sess, err := svc.Callback(context.Background(), "good-code", p.lastState)
	require.NoError(t, err)
	assert.Equal(t, "me@example.com", sess.User.Email)
	assert.Equal(t, "rt", users.byID[sess.User.ID].RefreshToken)

	claims, err := svc.ParseToken(sess.Token)
	require.NoError(t, err)
	assert.Equal(t, sess.User.ID, claims.UserID)
}

func TestCallback_RejectsBadState(t *testing.T) {
	svc := newService(newFakeUsers(), &fakeProvider{})

	_, err := svc.Callback(context.Background(), "good-code", "forged")
	assert.ErrorIs(t, err, ErrInvalidState)

	other := NewService(newFakeUsers(), &fakeProvider{}, staticProfile, config.JWTConfig{Secret: "different"}, zap.NewNop())
	p := &fakeProvider{}
	_, err = NewService(newFakeUsers(), p, staticProfile, config.JWTConfig{Secret: "s3cret"}, zap.NewNop()).LoginURL()
	require.NoError(t, err)
	_, err = other.Callback(context.Background(), "good-code", p.lastState)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestCallback_ExchangeFailure(t *testing.T) {
	p := &fakeProvider{}
	svc := newService(newFakeUsers(), p)
	_, err := svc.LoginURL()
	require.NoError(t, err)

	_, err = svc.Callback(context.Background(), "bad-code", p.lastState)
	assert.ErrorContains(t, err, "invalid_grant")
}

func TestIdentity(t *testing.T) {
	users := newFakeUsers()
	expiry := time.Now().Add(time.Hour)
	users.byID[1] = &model.User{ID: 1, Email: "me@example.com", AccessToken: "at-1", RefreshToken: "rt", TokenExpiry: &expiry}
	users.byID[2] = &model.User{ID: 2, Email: "nobody@example.com"}

	t.Run("valid token is returned as is", func(t *testing.T) {
		svc := newService(users, &fakeProvider{})
		id, err := svc.Identity(context.Background(), 1)
		require.NoError(t, err)
		assert.Equal(t, "at-1", id.AccessToken)
		assert.Equal(t, "rt", id.RefreshToken)
		assert.Empty(t, users.updates)
	})

	t.Run("refreshed token is persisted", func(t *testing.T) {
		svc := newService(users, &fakeProvider{refreshed: &oauth2.Token{AccessToken: "at-2", Expiry: time.Now().Add(time.Hour)}})
		id, err := svc.Identity(context.Background(), 1)
		require.NoError(t, err)
		assert.Equal(t, "at-2", id.AccessToken)
		assert.Equal(t, "rt", id.RefreshToken)
		assert.Equal(t, []string{"at-2"}, users.updates)
	})

	t.Run("user without tokens", func(t *testing.T) {
		svc := newService(users, &fakeProvider{})
		_, err := svc.Identity(context.Background(), 2)
		assert.ErrorIs(t, err, ErrNoTokens)
	})
}

package auth

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/langchou/ordergazer/internal/api/tesla"
	"github.com/langchou/ordergazer/internal/models"
)

// fakeStore 内存凭据存储
type fakeStore struct {
	cred     *models.Credential
	getErr   error
	replaces int
}

func (f *fakeStore) Get(ctx context.Context) (*models.Credential, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	if f.cred == nil {
		return nil, nil
	}
	c := *f.cred
	return &c, nil
}

func (f *fakeStore) Replace(ctx context.Context, cred *models.Credential) error {
	c := *cred
	f.cred = &c
	f.replaces++
	return nil
}

func (f *fakeStore) Clear(ctx context.Context) error {
	f.cred = nil
	return nil
}

// fakeExchanger 可编程的令牌端点
type fakeExchanger struct {
	exchangeResp *tesla.TokenResponse
	exchangeErr  error
	refreshResp  *tesla.TokenResponse
	refreshErr   error
	refreshes    int
}

func (f *fakeExchanger) BeginAuthorization() string {
	return "https://auth.tesla.com/oauth2/v3/authorize?client_id=ownerapi"
}

func (f *fakeExchanger) ExchangeCode(ctx context.Context, code string) (*tesla.TokenResponse, error) {
	return f.exchangeResp, f.exchangeErr
}

func (f *fakeExchanger) Refresh(ctx context.Context, refreshToken string) (*tesla.TokenResponse, error) {
	f.refreshes++
	return f.refreshResp, f.refreshErr
}

func newTestStore(store CredentialStore, exchanger TokenExchanger, now time.Time) *TokenStore {
	s := NewTokenStore(zap.NewNop(), store, exchanger, 30*time.Second)
	s.now = func() time.Time { return now }
	return s
}

func TestExchangePersistsCredential(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	store := &fakeStore{}
	exchanger := &fakeExchanger{
		exchangeResp: &tesla.TokenResponse{AccessToken: "at", RefreshToken: "rt", ExpiresIn: 28800},
	}
	s := newTestStore(store, exchanger, now)

	cred, err := s.Exchange(context.Background(), "https://auth.tesla.com/void/callback?code=abc")
	require.NoError(t, err)
	assert.Equal(t, "at", cred.AccessToken)
	assert.Equal(t, "rt", cred.RefreshToken)
	assert.Equal(t, now.Add(8*time.Hour), cred.ExpiresAt)
	assert.Equal(t, 1, store.replaces)
}

func TestExchangeInvalidRedirectURL(t *testing.T) {
	store := &fakeStore{}
	s := newTestStore(store, &fakeExchanger{}, time.Now())

	_, err := s.Exchange(context.Background(), "https://auth.tesla.com/void/callback?state=only")
	assert.ErrorIs(t, err, tesla.ErrInvalidAuthorization)
	assert.Equal(t, 0, store.replaces)
}

func TestGetValidNoCredential(t *testing.T) {
	s := newTestStore(&fakeStore{}, &fakeExchanger{}, time.Now())

	_, err := s.GetValid(context.Background())
	assert.ErrorIs(t, err, tesla.ErrReauthRequired)
}

func TestGetValidNoSpuriousRefresh(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	store := &fakeStore{cred: &models.Credential{
		AccessToken:  "at",
		RefreshToken: "rt",
		ExpiresAt:    now.Add(time.Hour),
	}}
	exchanger := &fakeExchanger{}
	s := newTestStore(store, exchanger, now)

	first, err := s.GetValid(context.Background())
	require.NoError(t, err)
	second, err := s.GetValid(context.Background())
	require.NoError(t, err)

	// 未到期时两次取用返回同一凭据，不触发刷新
	assert.Equal(t, first, second)
	assert.Equal(t, 0, exchanger.refreshes)
	assert.Equal(t, 0, store.replaces)
}

func TestGetValidRefreshesExpired(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	store := &fakeStore{cred: &models.Credential{
		AccessToken:  "at-old",
		RefreshToken: "rt-old",
		ExpiresAt:    now.Add(-time.Minute),
	}}
	exchanger := &fakeExchanger{
		refreshResp: &tesla.TokenResponse{AccessToken: "at-new", RefreshToken: "rt-new", ExpiresIn: 28800},
	}
	s := newTestStore(store, exchanger, now)

	cred, err := s.GetValid(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "at-new", cred.AccessToken)
	assert.Equal(t, "rt-new", cred.RefreshToken)
	assert.Equal(t, 1, exchanger.refreshes)
	// 刷新结果落盘
	assert.Equal(t, "at-new", store.cred.AccessToken)
}

func TestGetValidRefreshesWithinMargin(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	// 还有 10 秒才真正过期，但已进入 30 秒提前量
	store := &fakeStore{cred: &models.Credential{
		AccessToken:  "at-old",
		RefreshToken: "rt",
		ExpiresAt:    now.Add(10 * time.Second),
	}}
	exchanger := &fakeExchanger{
		refreshResp: &tesla.TokenResponse{AccessToken: "at-new", ExpiresIn: 28800},
	}
	s := newTestStore(store, exchanger, now)

	_, err := s.GetValid(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, exchanger.refreshes)
}

func TestGetValidKeepsRefreshTokenWhenNotRotated(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	store := &fakeStore{cred: &models.Credential{
		AccessToken:  "at-old",
		RefreshToken: "rt-keep",
		ExpiresAt:    now.Add(-time.Minute),
	}}
	exchanger := &fakeExchanger{
		refreshResp: &tesla.TokenResponse{AccessToken: "at-new", ExpiresIn: 28800},
	}
	s := newTestStore(store, exchanger, now)

	cred, err := s.GetValid(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "rt-keep", cred.RefreshToken)
}

func TestGetValidRefreshRejected(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	store := &fakeStore{cred: &models.Credential{
		AccessToken:  "at",
		RefreshToken: "rt-revoked",
		ExpiresAt:    now.Add(-time.Minute),
	}}
	exchanger := &fakeExchanger{
		refreshErr: fmt.Errorf("%w: refresh token rejected", tesla.ErrReauthRequired),
	}
	s := newTestStore(store, exchanger, now)

	_, err := s.GetValid(context.Background())
	assert.ErrorIs(t, err, tesla.ErrReauthRequired)
	assert.Equal(t, 0, store.replaces)
}

func TestGetValidRereadsPersistedCredential(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	store := &fakeStore{cred: &models.Credential{
		AccessToken:  "at-old",
		RefreshToken: "rt",
		ExpiresAt:    now.Add(-time.Minute),
	}}
	exchanger := &fakeExchanger{
		refreshResp: &tesla.TokenResponse{AccessToken: "at-new", ExpiresIn: 28800},
	}
	s := newTestStore(store, exchanger, now)

	// 另一个入口完成了交互式重新认证：以最新落盘的凭据为准，不再刷新
	store.cred = &models.Credential{
		AccessToken:  "at-fresh",
		RefreshToken: "rt-fresh",
		ExpiresAt:    now.Add(8 * time.Hour),
	}

	cred, err := s.GetValid(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "at-fresh", cred.AccessToken)
	assert.Equal(t, 0, exchanger.refreshes)
}

func TestClearIsIdempotent(t *testing.T) {
	store := &fakeStore{cred: &models.Credential{AccessToken: "at"}}
	s := newTestStore(store, &fakeExchanger{}, time.Now())

	require.NoError(t, s.Clear(context.Background()))
	require.NoError(t, s.Clear(context.Background()))

	cred, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, cred)
}

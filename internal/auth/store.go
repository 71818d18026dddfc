// Package auth 管理凭据生命周期：换取、惰性刷新、持久化、注销
package auth

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/langchou/ordergazer/internal/api/tesla"
	"github.com/langchou/ordergazer/internal/models"
)

// CredentialStore 凭据持久化端口，由 repository.CredentialRepository 实现
type CredentialStore interface {
	Get(ctx context.Context) (*models.Credential, error)
	Replace(ctx context.Context, cred *models.Credential) error
	Clear(ctx context.Context) error
}

// TokenExchanger 令牌端点交互，由 tesla.Client 实现
type TokenExchanger interface {
	BeginAuthorization() string
	ExchangeCode(ctx context.Context, code string) (*tesla.TokenResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*tesla.TokenResponse, error)
}

// TokenStore 凭据生命周期管理
// 刷新是惰性的：没有后台调度，每次取用前按需检查
type TokenStore struct {
	logger    *zap.Logger
	store     CredentialStore
	exchanger TokenExchanger
	margin    time.Duration

	now func() time.Time
}

// NewTokenStore 创建 TokenStore
// margin 为过期提前量：到期前 margin 内即视为过期，避免调用途中真正过期
func NewTokenStore(logger *zap.Logger, store CredentialStore, exchanger TokenExchanger, margin time.Duration) *TokenStore {
	return &TokenStore{
		logger:    logger,
		store:     store,
		exchanger: exchanger,
		margin:    margin,
		now:       time.Now,
	}
}

// Load 读取持久化凭据，不存在时返回 (nil, nil)
func (s *TokenStore) Load(ctx context.Context) (*models.Credential, error) {
	return s.store.Get(ctx)
}

// BeginAuthorization 生成交互式登录 URL
func (s *TokenStore) BeginAuthorization() string {
	return s.exchanger.BeginAuthorization()
}

// Exchange 用用户粘贴的跳转 URL 完成授权码换取并持久化凭据
func (s *TokenStore) Exchange(ctx context.Context, redirectURL string) (*models.Credential, error) {
	code, err := tesla.ExtractCode(redirectURL)
	if err != nil {
		return nil, err
	}

	token, err := s.exchanger.ExchangeCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}

	cred := s.credentialFrom(token, nil)
	if err := s.store.Replace(ctx, cred); err != nil {
		return nil, err
	}

	s.logger.Info("Credential obtained via interactive login",
		zap.Time("expires_at", cred.ExpiresAt))
	return cred, nil
}

// GetValid 返回此刻保证未过期的凭据，需要时先做一次刷新
// 决定是否刷新前总是重读持久化凭据：另一个入口刚完成的交互式
// 重新认证以最新落盘的为准（存储层 last-write-wins）
func (s *TokenStore) GetValid(ctx context.Context) (*models.Credential, error) {
	cred, err := s.store.Get(ctx)
	if err != nil {
		return nil, err
	}
	if cred == nil {
		return nil, fmt.Errorf("%w: no credential stored", tesla.ErrReauthRequired)
	}

	if !cred.ExpiredAt(s.now(), s.margin) {
		return cred, nil
	}

	s.logger.Info("Access token expired, refreshing")
	token, err := s.exchanger.Refresh(ctx, cred.RefreshToken)
	if err != nil {
		// 刷新被拒（ErrReauthRequired）或瞬时故障（ErrTransient）原样上抛，
		// 这里只透明处理「过期需刷新」这一种情况
		return nil, fmt.Errorf("refresh credential: %w", err)
	}

	refreshed := s.credentialFrom(token, cred)
	if err := s.store.Replace(ctx, refreshed); err != nil {
		return nil, err
	}
	return refreshed, nil
}

// Clear 注销：删除持久化凭据，幂等
func (s *TokenStore) Clear(ctx context.Context) error {
	return s.store.Clear(ctx)
}

// credentialFrom 由令牌端点响应构造凭据
// expires_at 按收到时刻 + expires_in 计算；刷新响应未携带
// refresh_token 时沿用旧值（Tesla 只在部分情况下轮换）
func (s *TokenStore) credentialFrom(token *tesla.TokenResponse, prev *models.Credential) *models.Credential {
	cred := &models.Credential{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    s.now().Add(time.Duration(token.ExpiresIn) * time.Second),
	}
	if prev != nil {
		cred.CreatedAt = prev.CreatedAt
		if cred.RefreshToken == "" {
			cred.RefreshToken = prev.RefreshToken
		}
	}
	return cred
}

package avatar

import (
	"context"
	"fmt"
	"time"

	"github.com/hitoshi/authgate/internal/model"
	"github.com/hitoshi/authgate/internal/repository"
)

// Service はアバターの遅延取得とキャッシュを提供する。
// キャッシュはauth_user行に保存し、TTL内はフェッチを行わない。
// すべての処理はリクエストスコープで完結し、バックグラウンドジョブは持たない。
type Service struct {
	users    repository.UserRepository
	fetcher  FetcherService
	cacheTTL time.Duration
}

// NewService はServiceを生成する。
func NewService(users repository.UserRepository, fetcher FetcherService, cacheTTL time.Duration) *Service {
	return &Service{
		users:    users,
		fetcher:  fetcher,
		cacheTTL: cacheTTL,
	}
}

// GetAvatar はユーザーのアバター画像を返す。
// キャッシュがTTL内であればそのまま返し、そうでなければprofile_imageの
// URLからフェッチしてキャッシュを更新する。フェッチに失敗した場合は
// 古いキャッシュがあればそれを返し、なければnilを返す。
func (s *Service) GetAvatar(ctx context.Context, userID string) (*model.Avatar, error) {
	cached, err := s.users.FindAvatar(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cached avatar: %w", err)
	}
	if cached != nil && time.Since(cached.FetchedAt) < s.cacheTTL {
		return cached, nil
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, nil
	}

	data, mimeType := s.fetcher.Fetch(ctx, user.ProfileImage)
	if data == nil {
		// フェッチ失敗: 古いキャッシュがあればフォールバック
		return cached, nil
	}

	fetchedAt := time.Now()
	if err := s.users.UpdateAvatar(ctx, userID, data, mimeType, fetchedAt); err != nil {
		return nil, fmt.Errorf("failed to cache avatar: %w", err)
	}

	return &model.Avatar{
		Data:      data,
		MimeType:  mimeType,
		FetchedAt: fetchedAt,
	}, nil
}

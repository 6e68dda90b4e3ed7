package avatar

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/authgate/internal/model"
	"github.com/hitoshi/authgate/internal/repository"
)

type mockUserRepo struct {
	findByIDFn     func(ctx context.Context, id string) (*model.User, error)
	findAvatarFn   func(ctx context.Context, userID string) (*model.Avatar, error)
	updateAvatarFn func(ctx context.Context, userID string, data []byte, mimeType string, fetchedAt time.Time) error
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockUserRepo) SyncByGoogleID(ctx context.Context, googleID, email, profileImage string) (*model.User, error) {
	return nil, nil
}

func (m *mockUserRepo) Create(ctx context.Context, user *model.User) error {
	return nil
}

func (m *mockUserRepo) FindAvatar(ctx context.Context, userID string) (*model.Avatar, error) {
	if m.findAvatarFn != nil {
		return m.findAvatarFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockUserRepo) UpdateAvatar(ctx context.Context, userID string, data []byte, mimeType string, fetchedAt time.Time) error {
	if m.updateAvatarFn != nil {
		return m.updateAvatarFn(ctx, userID, data, mimeType, fetchedAt)
	}
	return nil
}

var _ repository.UserRepository = (*mockUserRepo)(nil)

type mockFetcher struct {
	fetchFn func(ctx context.Context, imageURL string) ([]byte, string)
}

func (m *mockFetcher) Fetch(ctx context.Context, imageURL string) ([]byte, string) {
	if m.fetchFn != nil {
		return m.fetchFn(ctx, imageURL)
	}
	return nil, ""
}

var _ FetcherService = (*mockFetcher)(nil)

func TestService_GetAvatar_FreshCache_SkipsFetch(t *testing.T) {
	cached := &model.Avatar{
		Data:      []byte{1, 2, 3},
		MimeType:  "image/png",
		FetchedAt: time.Now().Add(-time.Hour),
	}
	users := &mockUserRepo{
		findAvatarFn: func(ctx context.Context, userID string) (*model.Avatar, error) {
			return cached, nil
		},
	}
	fetchCalled := false
	fetcher := &mockFetcher{
		fetchFn: func(ctx context.Context, imageURL string) ([]byte, string) {
			fetchCalled = true
			return nil, ""
		},
	}

	svc := NewService(users, fetcher, 24*time.Hour)

	got, err := svc.GetAvatar(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("GetAvatar() error = %v", err)
	}
	if !bytes.Equal(got.Data, cached.Data) {
		t.Errorf("data = %v, want cached data", got.Data)
	}
	if fetchCalled {
		t.Error("fetch must not run while cache is fresh")
	}
}

func TestService_GetAvatar_StaleCache_RefetchesAndUpdates(t *testing.T) {
	stale := &model.Avatar{
		Data:      []byte{1},
		MimeType:  "image/png",
		FetchedAt: time.Now().Add(-48 * time.Hour),
	}
	var updatedData []byte
	users := &mockUserRepo{
		findAvatarFn: func(ctx context.Context, userID string) (*model.Avatar, error) {
			return stale, nil
		},
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			return &model.User{ID: id, ProfileImage: "https://example.com/p.jpg"}, nil
		},
		updateAvatarFn: func(ctx context.Context, userID string, data []byte, mimeType string, fetchedAt time.Time) error {
			updatedData = data
			return nil
		},
	}
	fetcher := &mockFetcher{
		fetchFn: func(ctx context.Context, imageURL string) ([]byte, string) {
			return []byte{9, 9}, "image/jpeg"
		},
	}

	svc := NewService(users, fetcher, 24*time.Hour)

	got, err := svc.GetAvatar(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("GetAvatar() error = %v", err)
	}
	if !bytes.Equal(got.Data, []byte{9, 9}) {
		t.Errorf("data = %v, want freshly fetched data", got.Data)
	}
	if got.MimeType != "image/jpeg" {
		t.Errorf("mimeType = %q, want image/jpeg", got.MimeType)
	}
	if !bytes.Equal(updatedData, []byte{9, 9}) {
		t.Error("cache should be updated with fetched data")
	}
}

func TestService_GetAvatar_FetchFails_FallsBackToStaleCache(t *testing.T) {
	stale := &model.Avatar{
		Data:      []byte{1},
		MimeType:  "image/png",
		FetchedAt: time.Now().Add(-48 * time.Hour),
	}
	users := &mockUserRepo{
		findAvatarFn: func(ctx context.Context, userID string) (*model.Avatar, error) {
			return stale, nil
		},
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			return &model.User{ID: id, ProfileImage: "https://example.com/p.jpg"}, nil
		},
	}
	fetcher := &mockFetcher{} // 常にフェッチ失敗

	svc := NewService(users, fetcher, 24*time.Hour)

	got, err := svc.GetAvatar(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("GetAvatar() error = %v", err)
	}
	if got == nil || !bytes.Equal(got.Data, stale.Data) {
		t.Error("should fall back to stale cache when fetch fails")
	}
}

func TestService_GetAvatar_NoCacheNoFetch_ReturnsNil(t *testing.T) {
	users := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			return &model.User{ID: id, ProfileImage: "https://example.com/p.jpg"}, nil
		},
	}
	svc := NewService(users, &mockFetcher{}, 24*time.Hour)

	got, err := svc.GetAvatar(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("GetAvatar() error = %v", err)
	}
	if got != nil {
		t.Errorf("avatar = %+v, want nil", got)
	}
}

func TestService_GetAvatar_UnknownUser_ReturnsNil(t *testing.T) {
	svc := NewService(&mockUserRepo{}, &mockFetcher{}, 24*time.Hour)

	got, err := svc.GetAvatar(context.Background(), "unknown")
	if err != nil {
		t.Fatalf("GetAvatar() error = %v", err)
	}
	if got != nil {
		t.Errorf("avatar = %+v, want nil", got)
	}
}

func TestService_GetAvatar_RepoError(t *testing.T) {
	users := &mockUserRepo{
		findAvatarFn: func(ctx context.Context, userID string) (*model.Avatar, error) {
			return nil, errors.New("db error")
		},
	}
	svc := NewService(users, &mockFetcher{}, 24*time.Hour)

	if _, err := svc.GetAvatar(context.Background(), "user-1"); err == nil {
		t.Error("expected error when repository fails")
	}
}

package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/authgate/internal/model"
	"github.com/hitoshi/authgate/internal/repository"
)

// --- モック定義 ---

type mockOAuthProvider struct {
	getLoginURLFn  func(state, codeChallenge string) string
	exchangeCodeFn func(ctx context.Context, code, codeVerifier string) (*OAuthUserInfo, error)
}

func (m *mockOAuthProvider) GetLoginURL(state, codeChallenge string) string {
	if m.getLoginURLFn != nil {
		return m.getLoginURLFn(state, codeChallenge)
	}
	return ""
}

func (m *mockOAuthProvider) ExchangeCode(ctx context.Context, code, codeVerifier string) (*OAuthUserInfo, error) {
	if m.exchangeCodeFn != nil {
		return m.exchangeCodeFn(ctx, code, codeVerifier)
	}
	return nil, nil
}

type mockUserRepo struct {
	findByIDFn       func(ctx context.Context, id string) (*model.User, error)
	syncByGoogleIDFn func(ctx context.Context, googleID, email, profileImage string) (*model.User, error)
	createFn         func(ctx context.Context, user *model.User) error
	findAvatarFn     func(ctx context.Context, userID string) (*model.Avatar, error)
	updateAvatarFn   func(ctx context.Context, userID string, data []byte, mimeType string, fetchedAt time.Time) error
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockUserRepo) SyncByGoogleID(ctx context.Context, googleID, email, profileImage string) (*model.User, error) {
	if m.syncByGoogleIDFn != nil {
		return m.syncByGoogleIDFn(ctx, googleID, email, profileImage)
	}
	return nil, nil
}

func (m *mockUserRepo) Create(ctx context.Context, user *model.User) error {
	if m.createFn != nil {
		return m.createFn(ctx, user)
	}
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

type mockSessionRepo struct {
	createFn         func(ctx context.Context, session *model.Session) error
	findByIDFn       func(ctx context.Context, id string) (*model.Session, error)
	deleteByIDFn     func(ctx context.Context, id string) error
	deleteByUserIDFn func(ctx context.Context, userID string) error
}

func (m *mockSessionRepo) Create(ctx context.Context, session *model.Session) error {
	if m.createFn != nil {
		return m.createFn(ctx, session)
	}
	return nil
}

func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockSessionRepo) DeleteByID(ctx context.Context, id string) error {
	if m.deleteByIDFn != nil {
		return m.deleteByIDFn(ctx, id)
	}
	return nil
}

func (m *mockSessionRepo) DeleteByUserID(ctx context.Context, userID string) error {
	if m.deleteByUserIDFn != nil {
		return m.deleteByUserIDFn(ctx, userID)
	}
	return nil
}

type passthroughSanitizer struct{}

func (passthroughSanitizer) Sanitize(raw string) string {
	return strings.TrimSpace(raw)
}

// compile-time interface checks
var (
	_ OAuthProvider                = (*mockOAuthProvider)(nil)
	_ repository.UserRepository    = (*mockUserRepo)(nil)
	_ repository.SessionRepository = (*mockSessionRepo)(nil)
)

func newTestService(oauth *mockOAuthProvider, users *mockUserRepo, sessions *mockSessionRepo) *Service {
	return NewService(oauth, users, sessions, passthroughSanitizer{}, ServiceConfig{SessionMaxAge: 86400})
}

// --- テスト ---

func TestService_HandleCallback_ExistingUser_CreatesSession(t *testing.T) {
	oauth := &mockOAuthProvider{
		exchangeCodeFn: func(ctx context.Context, code, codeVerifier string) (*OAuthUserInfo, error) {
			return &OAuthUserInfo{
				ProviderUserID: "g-123",
				Email:          "new@b.com",
				ProfileImage:   "https://example.com/new.jpg",
				Provider:       "google",
			}, nil
		},
	}

	var syncedEmail, syncedImage string
	users := &mockUserRepo{
		syncByGoogleIDFn: func(ctx context.Context, googleID, email, profileImage string) (*model.User, error) {
			syncedEmail = email
			syncedImage = profileImage
			return &model.User{ID: "user-1", GoogleID: googleID, Email: email}, nil
		},
	}

	var createdSession *model.Session
	sessions := &mockSessionRepo{
		createFn: func(ctx context.Context, session *model.Session) error {
			createdSession = session
			return nil
		},
	}

	svc := newTestService(oauth, users, sessions)

	session, pending, err := svc.HandleCallback(context.Background(), "code", "verifier")
	if err != nil {
		t.Fatalf("HandleCallback() error = %v", err)
	}
	if pending != nil {
		t.Error("pending should be nil for existing user")
	}
	if session == nil {
		t.Fatal("session should not be nil for existing user")
	}
	if session.UserID != "user-1" {
		t.Errorf("session.UserID = %q, want user-1", session.UserID)
	}
	if createdSession == nil {
		t.Fatal("session should be persisted")
	}
	if syncedEmail != "new@b.com" || syncedImage != "https://example.com/new.jpg" {
		t.Errorf("sync called with email=%q image=%q", syncedEmail, syncedImage)
	}
}

func TestService_HandleCallback_NewUser_ReturnsPendingWithoutInsert(t *testing.T) {
	oauth := &mockOAuthProvider{
		exchangeCodeFn: func(ctx context.Context, code, codeVerifier string) (*OAuthUserInfo, error) {
			return &OAuthUserInfo{
				ProviderUserID: "g-999",
				Email:          "first@b.com",
				ProfileImage:   "https://example.com/p.jpg",
			}, nil
		},
	}

	createCalled := false
	users := &mockUserRepo{
		syncByGoogleIDFn: func(ctx context.Context, googleID, email, profileImage string) (*model.User, error) {
			return nil, nil // 未登録
		},
		createFn: func(ctx context.Context, user *model.User) error {
			createCalled = true
			return nil
		},
	}

	sessionCreated := false
	sessions := &mockSessionRepo{
		createFn: func(ctx context.Context, session *model.Session) error {
			sessionCreated = true
			return nil
		},
	}

	svc := newTestService(oauth, users, sessions)

	session, pending, err := svc.HandleCallback(context.Background(), "code", "verifier")
	if err != nil {
		t.Fatalf("HandleCallback() error = %v", err)
	}
	if session != nil {
		t.Error("session should be nil for new user")
	}
	if pending == nil {
		t.Fatal("pending should not be nil for new user")
	}
	if pending.UserID == "" {
		t.Error("pending.UserID should be a generated candidate id")
	}
	if pending.GoogleID != "g-999" || pending.Email != "first@b.com" {
		t.Errorf("pending = %+v", pending)
	}
	// アカウント行もセッションも書き込まれないこと
	if createCalled {
		t.Error("user row must not be created before profile completion")
	}
	if sessionCreated {
		t.Error("session must not be created before profile completion")
	}
}

func TestService_HandleCallback_ExchangeError(t *testing.T) {
	oauth := &mockOAuthProvider{
		exchangeCodeFn: func(ctx context.Context, code, codeVerifier string) (*OAuthUserInfo, error) {
			return nil, errors.New("exchange failed")
		},
	}
	svc := newTestService(oauth, &mockUserRepo{}, &mockSessionRepo{})

	_, _, err := svc.HandleCallback(context.Background(), "code", "verifier")
	if err == nil {
		t.Fatal("expected error when exchange fails")
	}
}

func TestService_CompleteSignup_CreatesUserAndSession(t *testing.T) {
	var createdUser *model.User
	users := &mockUserRepo{
		createFn: func(ctx context.Context, user *model.User) error {
			createdUser = user
			return nil
		},
	}
	var createdSession *model.Session
	sessions := &mockSessionRepo{
		createFn: func(ctx context.Context, session *model.Session) error {
			createdSession = session
			return nil
		},
	}
	svc := newTestService(&mockOAuthProvider{}, users, sessions)

	pending := model.PendingSignup{
		UserID:       "cand-1",
		Email:        "a@b.com",
		GoogleID:     "g-123",
		ProfileImage: "https://example.com/p.jpg",
	}

	session, err := svc.CompleteSignup(context.Background(), pending, "alice")
	if err != nil {
		t.Fatalf("CompleteSignup() error = %v", err)
	}

	if createdUser == nil {
		t.Fatal("user should be created")
	}
	if createdUser.ID != "cand-1" || createdUser.Nickname != "alice" || createdUser.GoogleID != "g-123" {
		t.Errorf("created user = %+v", createdUser)
	}
	if session == nil || createdSession == nil {
		t.Fatal("session should be created and persisted")
	}
	if session.UserID != "cand-1" {
		t.Errorf("session.UserID = %q, want cand-1", session.UserID)
	}
}

func TestService_CompleteSignup_InvalidNickname(t *testing.T) {
	tests := []struct {
		name     string
		nickname string
	}{
		{"empty", ""},
		{"whitespace only", "   "},
		{"too long", strings.Repeat("あ", 51)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			createCalled := false
			users := &mockUserRepo{
				createFn: func(ctx context.Context, user *model.User) error {
					createCalled = true
					return nil
				},
			}
			svc := newTestService(&mockOAuthProvider{}, users, &mockSessionRepo{})

			_, err := svc.CompleteSignup(context.Background(), model.PendingSignup{UserID: "u"}, tt.nickname)
			if err == nil {
				t.Fatal("expected error for invalid nickname")
			}

			var apiErr *model.APIError
			if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeInvalidNickname {
				t.Errorf("error = %v, want INVALID_NICKNAME", err)
			}
			if createCalled {
				t.Error("user must not be created for invalid nickname")
			}
		})
	}
}

func TestService_CompleteSignup_MaxLengthNickname(t *testing.T) {
	users := &mockUserRepo{}
	svc := newTestService(&mockOAuthProvider{}, users, &mockSessionRepo{})

	// 50文字ちょうどは有効（文字数はルーン単位）
	_, err := svc.CompleteSignup(context.Background(), model.PendingSignup{UserID: "u"}, strings.Repeat("あ", 50))
	if err != nil {
		t.Errorf("50-rune nickname should be accepted: %v", err)
	}
}

func TestService_CompleteSignup_DuplicateGoogleID(t *testing.T) {
	users := &mockUserRepo{
		createFn: func(ctx context.Context, user *model.User) error {
			return repository.ErrDuplicateGoogleID
		},
	}
	sessionCreated := false
	sessions := &mockSessionRepo{
		createFn: func(ctx context.Context, session *model.Session) error {
			sessionCreated = true
			return nil
		},
	}
	svc := newTestService(&mockOAuthProvider{}, users, sessions)

	_, err := svc.CompleteSignup(context.Background(), model.PendingSignup{UserID: "u", GoogleID: "g-dup"}, "alice")
	if err == nil {
		t.Fatal("expected error for duplicate google_id")
	}

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeDuplicateAccount {
		t.Errorf("error = %v, want DUPLICATE_ACCOUNT", err)
	}
	if sessionCreated {
		t.Error("session must not be created on duplicate signup")
	}
}

func TestService_GetCurrentUser(t *testing.T) {
	sessions := &mockSessionRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
			if id != "sess-1" {
				return nil, nil
			}
			return &model.Session{ID: "sess-1", UserID: "user-1", ExpiresAt: time.Now().Add(time.Hour)}, nil
		},
	}
	users := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			if id != "user-1" {
				return nil, nil
			}
			return &model.User{ID: "user-1", Nickname: "alice"}, nil
		},
	}
	svc := newTestService(&mockOAuthProvider{}, users, sessions)

	user, err := svc.GetCurrentUser(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("GetCurrentUser() error = %v", err)
	}
	if user.Nickname != "alice" {
		t.Errorf("Nickname = %q, want alice", user.Nickname)
	}

	// 無効なセッション
	if _, err := svc.GetCurrentUser(context.Background(), "unknown"); err == nil {
		t.Error("expected error for unknown session")
	}

	// 空のセッションID
	if _, err := svc.GetCurrentUser(context.Background(), ""); err == nil {
		t.Error("expected error for empty session ID")
	}
}

func TestService_Logout(t *testing.T) {
	var deletedID string
	sessions := &mockSessionRepo{
		deleteByIDFn: func(ctx context.Context, id string) error {
			deletedID = id
			return nil
		},
	}
	svc := newTestService(&mockOAuthProvider{}, &mockUserRepo{}, sessions)

	if err := svc.Logout(context.Background(), "sess-1"); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if deletedID != "sess-1" {
		t.Errorf("deleted session = %q, want sess-1", deletedID)
	}

	if err := svc.Logout(context.Background(), ""); err == nil {
		t.Error("expected error for empty session ID")
	}
}

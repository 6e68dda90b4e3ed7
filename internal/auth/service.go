// Package auth はOAuth認証フロー、セッション管理、サインアップ完了を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hitoshi/authgate/internal/model"
	"github.com/hitoshi/authgate/internal/repository"
)

// maxNicknameLength はサニタイズ後のニックネームの最大文字数。
const maxNicknameLength = 50

// OAuthUserInfo はOAuthプロバイダーから取得したユーザー情報を表す。
type OAuthUserInfo struct {
	ProviderUserID string
	Email          string
	Name           string
	ProfileImage   string
	Provider       string // 現状は"google"のみ
}

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
// 将来的に複数IdP（Google, GitHub等）に対応するための抽象化。
type OAuthProvider interface {
	// GetLoginURL はstateとPKCE code_challengeを埋め込んだOAuth認証URLを生成する。
	GetLoginURL(state, codeChallenge string) string
	// ExchangeCode は認可コードをトークンに交換し、ユーザー情報を取得する。
	ExchangeCode(ctx context.Context, code, codeVerifier string) (*OAuthUserInfo, error)
}

// NicknameSanitizer はユーザー入力のニックネームからHTMLを除去するインターフェース。
type NicknameSanitizer interface {
	Sanitize(raw string) string
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	oauth       OAuthProvider
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	sanitizer   NicknameSanitizer
	config      ServiceConfig
}

// NewService はServiceを生成する。
func NewService(
	oauth OAuthProvider,
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	sanitizer NicknameSanitizer,
	config ServiceConfig,
) *Service {
	return &Service{
		oauth:       oauth,
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		sanitizer:   sanitizer,
		config:      config,
	}
}

// GetLoginURL はOAuth認証URLを生成する。
func (s *Service) GetLoginURL(state, codeChallenge string) string {
	return s.oauth.GetLoginURL(state, codeChallenge)
}

// HandleCallback はOAuthコールバックを処理する。
// 登録済みユーザーの場合はemail/profile_imageを同期してセッションを発行し、
// セッションを返す（PendingSignupはnil）。
// 未登録ユーザーの場合はauth_userへの書き込みを行わず、候補ユーザーIDを
// 採番したPendingSignupを返す（セッションはnil）。行の作成はニックネーム入力後の
// CompleteSignupまで遅延する。
func (s *Service) HandleCallback(ctx context.Context, code, codeVerifier string) (*model.Session, *model.PendingSignup, error) {
	// 1. 認可コードをトークンに交換し、ユーザー情報を取得
	userInfo, err := s.oauth.ExchangeCode(ctx, code, codeVerifier)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to exchange oauth code: %w", err)
	}

	// 2. google_idで既存ユーザーを検索し、存在すればemail/profile_imageを同期
	user, err := s.userRepo.SyncByGoogleID(ctx, userInfo.ProviderUserID, userInfo.Email, userInfo.ProfileImage)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to sync user: %w", err)
	}

	if user == nil {
		// 3a. 新規ユーザー: 候補IDを採番してプロフィール入力へ誘導する
		pending := &model.PendingSignup{
			UserID:       uuid.New().String(),
			Email:        userInfo.Email,
			GoogleID:     userInfo.ProviderUserID,
			ProfileImage: userInfo.ProfileImage,
		}
		slog.Info("first-time oauth subject, deferring account creation",
			slog.String("candidate_user_id", pending.UserID),
		)
		return nil, pending, nil
	}

	// 3b. 既存ユーザー: セッションを発行
	session, err := s.createSession(ctx, user.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create session: %w", err)
	}

	slog.Info("existing user logged in", slog.String("user_id", user.ID))
	return session, nil, nil
}

// CompleteSignup はニックネーム入力後のアカウント作成を実行する。
// ニックネームはサニタイズ後に1〜50文字であることを検証する。
// google_idが既に登録済みの場合（フォーム再送信・複数タブ）は
// DUPLICATE_ACCOUNTエラーを返し、セッションは発行しない。
func (s *Service) CompleteSignup(ctx context.Context, pending model.PendingSignup, nickname string) (*model.Session, error) {
	clean := nickname
	if s.sanitizer != nil {
		clean = s.sanitizer.Sanitize(nickname)
	}
	if clean == "" || utf8.RuneCountInString(clean) > maxNicknameLength {
		return nil, model.NewInvalidNicknameError()
	}

	now := time.Now()
	user := &model.User{
		ID:           pending.UserID,
		Email:        pending.Email,
		Nickname:     clean,
		GoogleID:     pending.GoogleID,
		ProfileImage: pending.ProfileImage,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateGoogleID) {
			slog.Warn("duplicate signup submission",
				slog.String("user_id", pending.UserID),
			)
			return nil, model.NewDuplicateAccountError()
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	session, err := s.createSession(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	slog.Info("new user created",
		slog.String("user_id", user.ID),
		slog.String("nickname", clean),
	)
	return session, nil
}

// Logout はセッションを破棄する。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user logged out", slog.String("session_id", sessionID))
	return nil
}

// GetCurrentUser はセッションから現在のユーザーを取得する。
// セッションが無効・期限切れの場合はエラーを返す。
func (s *Service) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session ID is required")
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, fmt.Errorf("session not found or expired")
	}

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("user not found")
	}

	return user, nil
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, userID string) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	session := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		ExpiresAt: time.Now().Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: time.Now(),
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

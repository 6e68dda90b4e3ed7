// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/hitoshi/authgate/internal/auth"
	"github.com/hitoshi/authgate/internal/metrics"
	"github.com/hitoshi/authgate/internal/model"
)

const (
	sessionCookieName  = "session_id"
	oauthStateCookie   = "google_oauth_state"
	codeVerifierCookie = "code_verifier"

	// OAuthトランザクションCookieの有効期間（10分）
	oauthCookieMaxAge = 600
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	GetLoginURL(state, codeChallenge string) string
	HandleCallback(ctx context.Context, code, codeVerifier string) (*model.Session, *model.PendingSignup, error)
	Logout(ctx context.Context, sessionID string) error
	GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error)
}

// SignupSignerInterface はサインアップパラメータの署名生成インターフェース。
type SignupSignerInterface interface {
	Sign(p model.PendingSignup) string
	Verify(p model.PendingSignup, sig string) bool
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	BaseURL       string
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

// AuthHandler はOAuth認証関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	signer  SignupSignerInterface
	metrics metrics.AuthRecorder
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, signer SignupSignerInterface, recorder metrics.AuthRecorder, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		signer:  signer,
		metrics: recorder,
		config:  config,
	}
}

// Login はGoogle OAuthフローを開始する。
// stateとPKCE code_verifierをリクエストごとに新規生成し、
// 短命のHTTP Only Cookieに保存してからプロバイダーにリダイレクトする。
// サーバー側には保留中のトランザクションの記録を持たない（Cookieが記録そのもの）。
// GET /login/google
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	state, err := auth.GenerateState()
	if err != nil {
		slog.Error("failed to generate oauth state", slog.String("error", err.Error()))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	verifier, err := auth.GenerateCodeVerifier()
	if err != nil {
		slog.Error("failed to generate code verifier", slog.String("error", err.Error()))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	// stateをCookieに保存（CSRF対策）
	http.SetCookie(w, h.oauthTxCookie(oauthStateCookie, state, oauthCookieMaxAge))
	// code_verifierをCookieに保存（PKCE）
	http.SetCookie(w, h.oauthTxCookie(codeVerifierCookie, verifier, oauthCookieMaxAge))

	if h.metrics != nil {
		h.metrics.RecordLoginStarted()
	}

	loginURL := h.service.GetLoginURL(state, auth.CodeChallengeS256(verifier))
	http.Redirect(w, r, loginURL, http.StatusFound)
}

// Callback はOAuthコールバックを処理する。
// code/stateクエリパラメータと2つのトランザクションCookieがすべて揃い、
// stateが一致しない限り、トークン交換やDBアクセスは一切行わない。
// GET /auth/google/callback?code=xxx&state=yyy
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	// 1. トランザクションの検証（CSRF対策）
	// code、state、storedState、codeVerifierのいずれかが欠けるか
	// state不一致の場合は400で即時終了する。リトライはない。
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")

	stateCookie, stateErr := r.Cookie(oauthStateCookie)
	verifierCookie, verifierErr := r.Cookie(codeVerifierCookie)

	if code == "" || state == "" ||
		stateErr != nil || stateCookie.Value == "" ||
		verifierErr != nil || verifierCookie.Value == "" ||
		stateCookie.Value != state {
		slog.Warn("oauth callback validation failed",
			slog.Bool("has_code", code != ""),
			slog.Bool("has_state", state != ""),
			slog.Bool("has_state_cookie", stateErr == nil),
			slog.Bool("has_verifier_cookie", verifierErr == nil),
		)
		if h.metrics != nil {
			h.metrics.RecordCallback(metrics.CallbackOutcomeInvalidState)
		}
		http.Error(w, "invalid oauth callback", http.StatusBadRequest)
		return
	}

	// 2. トランザクションCookieを削除（使い捨て）
	http.SetCookie(w, h.oauthTxCookie(oauthStateCookie, "", -1))
	http.SetCookie(w, h.oauthTxCookie(codeVerifierCookie, "", -1))

	// 3. 認証処理
	session, pending, err := h.service.HandleCallback(r.Context(), code, verifierCookie.Value)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidGrant) {
			// 認可コードの再利用・期限切れは400
			slog.Warn("oauth code exchange rejected", slog.String("error", err.Error()))
			if h.metrics != nil {
				h.metrics.RecordCallback(metrics.CallbackOutcomeInvalidGrant)
			}
			http.Error(w, "invalid oauth callback", http.StatusBadRequest)
			return
		}
		slog.Error("oauth callback failed", slog.String("error", err.Error()))
		if h.metrics != nil {
			h.metrics.RecordCallback(metrics.CallbackOutcomeError)
		}
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}

	// 4a. 未登録ユーザー: プロフィール入力ページへ誘導
	// 候補情報は署名付きクエリパラメータで運ぶ（サーバー側保存なし）
	if pending != nil {
		params := url.Values{}
		params.Set("userId", pending.UserID)
		params.Set("email", pending.Email)
		params.Set("googleId", pending.GoogleID)
		params.Set("profileImage", pending.ProfileImage)
		params.Set("sig", h.signer.Sign(*pending))

		if h.metrics != nil {
			h.metrics.RecordCallback(metrics.CallbackOutcomeSignupPending)
		}
		http.Redirect(w, r, h.config.BaseURL+"/complete-profile?"+params.Encode(), http.StatusFound)
		return
	}

	// 4b. 既存ユーザー: セッションCookieを設定してランディングページへ
	http.SetCookie(w, h.sessionCookie(session.ID, h.config.SessionMaxAge))

	if h.metrics != nil {
		h.metrics.RecordCallback(metrics.CallbackOutcomeLogin)
	}
	http.Redirect(w, r, h.config.BaseURL, http.StatusFound)
}

// Logout はセッションを破棄する。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(sessionCookieName)
	if err == nil && cookie.Value != "" {
		if logoutErr := h.service.Logout(r.Context(), cookie.Value); logoutErr != nil {
			slog.Error("failed to logout", slog.String("error", logoutErr.Error()))
			// ログアウト失敗してもCookieはクリアする
		}
	}

	http.SetCookie(w, h.sessionCookie("", -1))
	http.Redirect(w, r, h.config.BaseURL, http.StatusFound)
}

// Me は現在のログインユーザー情報を返す。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	user, err := h.service.GetCurrentUser(r.Context(), cookie.Value)
	if err != nil {
		slog.Warn("failed to get current user", slog.String("error", err.Error()))
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":       user.ID,
		"email":    user.Email,
		"nickname": user.Nickname,
	})
}

// oauthTxCookie はOAuthトランザクション用の短命Cookieを組み立てる。
func (h *AuthHandler) oauthTxCookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}

// sessionCookie はセッションCookieを組み立てる。
func (h *AuthHandler) sessionCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     sessionCookieName,
		Value:    value,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}

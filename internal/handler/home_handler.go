package handler

import (
	"net/http"

	"github.com/hitoshi/authgate/internal/metrics"
)

// HomeHandler はランディングページのセッションガード。
// 保護ページのロードごとにセッションCookieを検証し、
// 未認証の訪問者をログインページに誘導する。
type HomeHandler struct {
	service AuthServiceInterface
	metrics metrics.AuthRecorder
	config  AuthHandlerConfig
}

// NewHomeHandler はHomeHandlerを生成する。
func NewHomeHandler(service AuthServiceInterface, recorder metrics.AuthRecorder, config AuthHandlerConfig) *HomeHandler {
	return &HomeHandler{
		service: service,
		metrics: recorder,
		config:  config,
	}
}

// Home はセッションを検証し、ページに渡すユーザーコンテキストを返す。
// Cookieがない場合はログインページへリダイレクトする。
// セッションが無効・期限切れの場合はCookieをクリアしてからリダイレクトする。
// GET /
func (h *HomeHandler) Home(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		http.Redirect(w, r, h.config.BaseURL+"/login", http.StatusFound)
		return
	}

	user, err := h.service.GetCurrentUser(r.Context(), cookie.Value)
	if err != nil {
		// 無効なCookieはクリアしてからリダイレクト
		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookieName,
			Value:    "",
			Path:     "/",
			Domain:   h.config.CookieDomain,
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   h.config.CookieSecure,
			SameSite: http.SameSiteLaxMode,
		})
		if h.metrics != nil {
			h.metrics.RecordSessionValidation(false)
		}
		http.Redirect(w, r, h.config.BaseURL+"/login", http.StatusFound)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordSessionValidation(true)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"nickname":   user.Nickname,
		"user_id":    user.ID,
		"session_id": cookie.Value,
	})
}

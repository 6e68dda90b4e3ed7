package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/authgate/internal/metrics"
	"github.com/hitoshi/authgate/internal/model"
)

// SignupServiceInterface はプロフィール完了ハンドラーが必要とするサービスインターフェース。
type SignupServiceInterface interface {
	CompleteSignup(ctx context.Context, pending model.PendingSignup, nickname string) (*model.Session, error)
}

// ProfileHandler はサインアップ完了（ニックネーム入力）のHTTPハンドラー。
type ProfileHandler struct {
	service SignupServiceInterface
	signer  SignupSignerInterface
	metrics metrics.AuthRecorder
	config  AuthHandlerConfig
}

// NewProfileHandler はProfileHandlerを生成する。
func NewProfileHandler(service SignupServiceInterface, signer SignupSignerInterface, recorder metrics.AuthRecorder, config AuthHandlerConfig) *ProfileHandler {
	return &ProfileHandler{
		service: service,
		signer:  signer,
		metrics: recorder,
		config:  config,
	}
}

// CompleteProfile はニックネーム入力フォームの送信を処理し、アカウントを作成する。
// いずれかのフィールドが欠落・空の場合は400で終了し、DBには書き込まない。
// 署名が一致しない場合（パラメータ改ざん）も400で終了する。
// 成功時はセッションCookieを設定してランディングページにリダイレクトする。
// POST /complete-profile
func (h *ProfileHandler) CompleteProfile(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("form"))
		return
	}

	// 1. 必須フィールドの検証
	nickname := r.PostFormValue("nickname")
	pending := model.PendingSignup{
		UserID:       r.PostFormValue("userId"),
		Email:        r.PostFormValue("email"),
		GoogleID:     r.PostFormValue("googleId"),
		ProfileImage: r.PostFormValue("profileImage"),
	}
	sig := r.PostFormValue("sig")

	for _, f := range []struct {
		name  string
		value string
	}{
		{"nickname", nickname},
		{"userId", pending.UserID},
		{"email", pending.Email},
		{"googleId", pending.GoogleID},
		{"profileImage", pending.ProfileImage},
		{"sig", sig},
	} {
		if f.value == "" {
			if h.metrics != nil {
				h.metrics.RecordSignupRejected("missing_field")
			}
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError(f.name))
			return
		}
	}

	// 2. 署名の検証
	// コールバックが発行した値から改ざんされていないことを確認する
	if !h.signer.Verify(pending, sig) {
		slog.Warn("signup parameter signature mismatch",
			slog.String("user_id", pending.UserID),
		)
		if h.metrics != nil {
			h.metrics.RecordSignupRejected("invalid_signature")
		}
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidSignatureError())
		return
	}

	// 3. アカウント作成とセッション発行
	session, err := h.service.CompleteSignup(r.Context(), pending, nickname)
	if err != nil {
		if h.metrics != nil {
			h.metrics.RecordSignupRejected(rejectionReason(err))
		}
		handleServiceError(w, err)
		return
	}

	// 4. セッションCookieを設定してリダイレクト
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    session.ID,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   h.config.SessionMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	if h.metrics != nil {
		h.metrics.RecordSignupCompleted()
	}
	http.Redirect(w, r, h.config.BaseURL, http.StatusFound)
}

// rejectionReason はサインアップ拒否エラーをメトリクスのreasonラベルに変換する。
func rejectionReason(err error) string {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case model.ErrCodeInvalidNickname:
			return "invalid_nickname"
		case model.ErrCodeDuplicateAccount:
			return "duplicate_account"
		}
	}
	return "error"
}

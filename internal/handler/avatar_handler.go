package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/hitoshi/authgate/internal/middleware"
	"github.com/hitoshi/authgate/internal/model"
)

// AvatarServiceInterface はアバターハンドラーが必要とするサービスインターフェース。
type AvatarServiceInterface interface {
	GetAvatar(ctx context.Context, userID string) (*model.Avatar, error)
}

// AvatarHandler はプロフィール画像配信のHTTPハンドラー。
type AvatarHandler struct {
	service AvatarServiceInterface
}

// NewAvatarHandler はAvatarHandlerを生成する。
func NewAvatarHandler(service AvatarServiceInterface) *AvatarHandler {
	return &AvatarHandler{
		service: service,
	}
}

// GetMyAvatar は認証済みユーザーのアバター画像を返す。
// 画像はサーバーサイドでキャッシュされ、TTL切れの場合のみ再取得する。
// GET /api/users/me/avatar
func (h *AvatarHandler) GetMyAvatar(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	avatar, err := h.service.GetAvatar(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if avatar == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewAvatarUnavailableError())
		return
	}

	w.Header().Set("Content-Type", avatar.MimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(avatar.Data)))
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	w.Write(avatar.Data)
}

// Package avatar はプロフィール画像のサーバーサイド取得とキャッシュを提供する。
package avatar

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// FetcherService はアバター画像取得のインターフェース。
type FetcherService interface {
	// Fetch は指定URLからアバター画像を取得する。
	// 取得失敗時はnilデータと空MIMEを返す（エラーは返さない）。
	Fetch(ctx context.Context, imageURL string) (data []byte, mimeType string)
}

// SSRFValidator はフェッチ前のURL検証に必要なインターフェース。
// security.AvatarGuardServiceの部分集合として定義する。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration) *http.Client
}

// Fetcher はアバター画像取得機能の実装。
type Fetcher struct {
	guard   SSRFValidator
	timeout time.Duration
	maxSize int64
	client  *http.Client
}

// NewFetcher はFetcherの新しいインスタンスを生成する。
func NewFetcher(guard SSRFValidator, timeout time.Duration, maxSize int64) *Fetcher {
	f := &Fetcher{
		guard:   guard,
		timeout: timeout,
		maxSize: maxSize,
	}
	if guard != nil {
		f.client = guard.NewSafeClient(timeout)
	} else {
		f.client = &http.Client{Timeout: timeout}
	}
	return f
}

// Fetch は指定URLからアバター画像を取得する。
// 取得失敗（SSRFブロック、HTTPエラー、サイズ超過、画像以外のContent-Type）は
// すべてnilデータとして扱い、呼び出し側でキャッシュ済みの古い画像に
// フォールバックできるようにする。
func (f *Fetcher) Fetch(ctx context.Context, imageURL string) ([]byte, string) {
	if imageURL == "" {
		return nil, ""
	}

	// SSRF検証
	if f.guard != nil {
		if err := f.guard.ValidateURL(imageURL); err != nil {
			slog.Warn("アバター取得: SSRFブロック", "url", imageURL, "error", err)
			return nil, ""
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		slog.Warn("アバター取得: リクエスト作成失敗", "url", imageURL, "error", err)
		return nil, ""
	}
	req.Header.Set("User-Agent", "Authgate/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		slog.Warn("アバター取得: HTTPリクエスト失敗", "url", imageURL, "error", err)
		return nil, ""
	}
	defer resp.Body.Close()

	// 2xx以外は取得失敗として扱う
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Warn("アバター取得: HTTPステータス異常", "url", imageURL, "status", resp.StatusCode)
		return nil, ""
	}

	// レスポンスボディを読み込み（最大maxSize）
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxSize+1))
	if err != nil {
		slog.Warn("アバター取得: レスポンス読み取り失敗", "url", imageURL, "error", err)
		return nil, ""
	}

	// サイズ超過チェック
	if int64(len(body)) > f.maxSize {
		slog.Warn("アバター取得: サイズ超過", "url", imageURL, "size", len(body))
		return nil, ""
	}

	// 画像でない場合はnilを返す
	mimeType := extractMimeType(resp.Header.Get("Content-Type"))
	if !isImageMime(mimeType) {
		slog.Warn("アバター取得: 画像以外のContent-Type", "url", imageURL, "contentType", mimeType)
		return nil, ""
	}

	return body, mimeType
}

// extractMimeType はContent-Typeヘッダーからメディアタイプ部分を取り出す。
func extractMimeType(contentType string) string {
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = contentType[:i]
	}
	return strings.ToLower(strings.TrimSpace(contentType))
}

// isImageMime はMIMEタイプが画像かどうかを判定する。
func isImageMime(mimeType string) bool {
	return strings.HasPrefix(mimeType, "image/")
}

// compile-time interface check
var _ FetcherService = (*Fetcher)(nil)

// Package security はアプリケーションのセキュリティ機能を提供する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// NicknameSanitizerService はユーザー入力ニックネームのサニタイズ機能の
// インターフェースを定義する。アカウント作成前に使用される。
type NicknameSanitizerService interface {
	// Sanitize はニックネームからすべてのHTMLタグを除去し、
	// 前後の空白を取り除いた文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// nicknameSanitizer はNicknameSanitizerServiceの実装。
// bluemondayのStrictPolicy（全タグ除去）を保持し、スレッドセーフに動作する。
type nicknameSanitizer struct {
	policy *bluemonday.Policy
}

// NewNicknameSanitizer はNicknameSanitizerServiceの新しいインスタンスを生成する。
// ニックネームは表示専用のプレーンテキストとして扱うため、許可タグは一切ない。
func NewNicknameSanitizer() *nicknameSanitizer {
	return &nicknameSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize はニックネームからすべてのHTMLタグを除去する。
// bluemondayはエスケープ済みエンティティを返すため、プレーンテキストに戻してから
// 前後の空白を取り除く。
func (s *nicknameSanitizer) Sanitize(raw string) string {
	cleaned := s.policy.Sanitize(raw)
	cleaned = html.UnescapeString(cleaned)
	return strings.TrimSpace(cleaned)
}

// compile-time interface check
var _ NicknameSanitizerService = (*nicknameSanitizer)(nil)

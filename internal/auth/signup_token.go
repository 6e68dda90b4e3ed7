package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"github.com/hitoshi/authgate/internal/model"
)

// SignupSigner はサインアップ途中の状態（PendingSignup）に対する
// HMAC-SHA256署名の生成と検証を提供する。
// コールバックがクエリパラメータとしてクライアントに渡した値が、
// プロフィール入力フォームから改ざんされずに戻ってきたことを保証する。
type SignupSigner struct {
	secret []byte
}

// NewSignupSigner はSignupSignerを生成する。secretにはSESSION_SECRETを渡す。
func NewSignupSigner(secret string) *SignupSigner {
	return &SignupSigner{secret: []byte(secret)}
}

// Sign はPendingSignupの全フィールドに対する署名を16進文字列で返す。
// フィールド間はNULバイトで区切り、連結による衝突を防ぐ。
func (s *SignupSigner) Sign(p model.PendingSignup) string {
	mac := hmac.New(sha256.New, s.secret)
	for i, field := range []string{p.UserID, p.Email, p.GoogleID, p.ProfileImage} {
		if i > 0 {
			mac.Write([]byte{0})
		}
		mac.Write([]byte(field))
	}
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify は署名がPendingSignupの内容と一致するかを定数時間で検証する。
func (s *SignupSigner) Verify(p model.PendingSignup, sig string) bool {
	expected := s.Sign(p)
	return hmac.Equal([]byte(expected), []byte(sig))
}

// Package model はドメインモデルを定義する。
package model

import "time"

// User は認証済みユーザーの永続的なアイデンティティを表す。
// IDはローカルで生成される不透明な識別子で、一度割り当てたら変更しない。
// GoogleIDはプロバイダーが発行するsubject識別子で、最大1ユーザーに対応する。
type User struct {
	ID           string
	Email        string
	Nickname     string
	GoogleID     string
	ProfileImage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Avatar はサーバー側にキャッシュしたプロフィール画像を表す。
type Avatar struct {
	Data      []byte
	MimeType  string
	FetchedAt time.Time
}

// Session はユーザーのログインセッションを表す。
// クライアントにはHTTP Only Cookieの不透明な値としてのみ渡す。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// PendingSignup は初回OAuthログイン後、ニックネーム入力までの間だけ存在する
// サインアップ途中の状態を表す。サーバー側には保存せず、HMAC署名付きの
// クエリパラメータとしてクライアントを往復する。
type PendingSignup struct {
	UserID       string
	Email        string
	GoogleID     string
	ProfileImage string
}

// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/authgate/internal/model"
)

// ErrDuplicateGoogleID は同一google_idの行が既に存在する場合に返される。
// auth_userテーブルのUNIQUE制約違反を検出した場合のみ返す。
var ErrDuplicateGoogleID = errors.New("google_id already registered")

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// SyncByGoogleID はgoogle_idでユーザーを検索し、存在する場合は
	// emailとprofile_imageを最新の値で更新する。検索と更新は同一トランザクションで
	// 行い、見つからない場合は何も書き込まずにnilを返す。
	SyncByGoogleID(ctx context.Context, googleID, email, profileImage string) (*model.User, error)

	// Create はユーザーを1トランザクションで作成する。
	// google_idのUNIQUE制約違反の場合はErrDuplicateGoogleIDを返す。
	Create(ctx context.Context, user *model.User) error

	// FindAvatar はキャッシュ済みアバターを取得する。未キャッシュの場合はnilを返す。
	FindAvatar(ctx context.Context, userID string) (*model.Avatar, error)

	// UpdateAvatar はアバターキャッシュを更新する。
	UpdateAvatar(ctx context.Context, userID string, data []byte, mimeType string, fetchedAt time.Time) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

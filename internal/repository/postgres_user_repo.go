package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/authgate/internal/model"
)

// uniqueViolation はPostgreSQLのUNIQUE制約違反のSQLSTATEコード。
const uniqueViolation = "23505"

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	user := &model.User{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, email, nickname, google_id, profile_image, created_at, updated_at
		 FROM auth_user WHERE id = $1`,
		id,
	).Scan(&user.ID, &user.Email, &user.Nickname, &user.GoogleID, &user.ProfileImage, &user.CreatedAt, &user.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}

	return user, nil
}

// SyncByGoogleID はgoogle_idでユーザーを検索し、存在する場合はemailと
// profile_imageをプロバイダーから取得した最新の値で更新する。
// 検索と更新は同一トランザクションで行う。見つからない場合は何も書き込まず、
// 空のトランザクションをコミットしてnilを返す。
func (r *PostgresUserRepo) SyncByGoogleID(ctx context.Context, googleID, email, profileImage string) (*model.User, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	user := &model.User{}
	err = tx.QueryRowContext(ctx,
		`SELECT id, email, nickname, google_id, profile_image, created_at, updated_at
		 FROM auth_user WHERE google_id = $1 FOR UPDATE`,
		googleID,
	).Scan(&user.ID, &user.Email, &user.Nickname, &user.GoogleID, &user.ProfileImage, &user.CreatedAt, &user.UpdatedAt)

	if err == sql.ErrNoRows {
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("failed to commit transaction: %w", err)
		}
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by google_id: %w", err)
	}

	// プロバイダー側で変更されている可能性があるため毎回更新する
	now := time.Now()
	_, err = tx.ExecContext(ctx,
		`UPDATE auth_user SET email = $1, profile_image = $2, updated_at = $3 WHERE id = $4`,
		email, profileImage, now, user.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update user profile: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	user.Email = email
	user.ProfileImage = profileImage
	user.UpdatedAt = now
	return user, nil
}

// Create はユーザーを1トランザクションで作成する。
// google_idのUNIQUE制約違反の場合はErrDuplicateGoogleIDを返す。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO auth_user (id, email, nickname, google_id, profile_image, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		user.ID, user.Email, user.Nickname, user.GoogleID, user.ProfileImage, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return fmt.Errorf("failed to insert user: %w", ErrDuplicateGoogleID)
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// FindAvatar はキャッシュ済みアバターを取得する。未キャッシュの場合はnilを返す。
func (r *PostgresUserRepo) FindAvatar(ctx context.Context, userID string) (*model.Avatar, error) {
	var data []byte
	var mimeType sql.NullString
	var fetchedAt sql.NullTime

	err := r.db.QueryRowContext(ctx,
		`SELECT avatar_data, avatar_mime, avatar_fetched_at FROM auth_user WHERE id = $1`,
		userID,
	).Scan(&data, &mimeType, &fetchedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find avatar: %w", err)
	}

	if len(data) == 0 || !fetchedAt.Valid {
		return nil, nil
	}

	return &model.Avatar{
		Data:      data,
		MimeType:  mimeType.String,
		FetchedAt: fetchedAt.Time,
	}, nil
}

// UpdateAvatar はアバターキャッシュを更新する。
func (r *PostgresUserRepo) UpdateAvatar(ctx context.Context, userID string, data []byte, mimeType string, fetchedAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE auth_user SET avatar_data = $1, avatar_mime = $2, avatar_fetched_at = $3 WHERE id = $4`,
		data, mimeType, fetchedAt, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to update avatar: %w", err)
	}
	return nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)

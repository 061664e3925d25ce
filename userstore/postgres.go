package userstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/sensorgate"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

const uniqueViolation = "23505"

// PoolConfig bounds the database/sql pool.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// Open connects to Postgres through the pgx driver and pings it.
func Open(ctx context.Context, dsn string, pool PoolConfig) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if pool.MaxOpenConns > 0 {
		db.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		db.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}
	if pool.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(pool.ConnMaxIdleTime)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// Postgres stores accounts in the users table.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) Create(ctx context.Context, u *sensorgate.User) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO users (id, user_name, password_hash, nick_name, gender, email, phone, avatar, user_role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, u.ID, u.UserName, u.PasswordHash, u.NickName, u.Gender, u.Email, u.Phone, u.Avatar, u.Role, u.CreatedAt.UTC(), u.UpdatedAt.UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return sensorgate.ErrUsernameTaken
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (p *Postgres) FindByName(ctx context.Context, userName string) (*sensorgate.User, bool, error) {
	var u sensorgate.User
	err := p.db.QueryRowContext(ctx, `
		SELECT id, user_name, password_hash, nick_name, gender, email, phone, avatar, user_role, created_at, updated_at
		FROM users
		WHERE user_name = $1
	`, userName).Scan(&u.ID, &u.UserName, &u.PasswordHash, &u.NickName, &u.Gender, &u.Email, &u.Phone, &u.Avatar, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("query user by name: %w", err)
	}
	return &u, true, nil
}

func (p *Postgres) CountByName(ctx context.Context, userName string) (int, error) {
	var n int
	if err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE user_name = $1`, userName).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users by name: %w", err)
	}
	return n, nil
}

func (p *Postgres) UpdatePasswordHash(ctx context.Context, userID, hash string) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1
	`, userID, hash, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update password hash: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update password hash: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("update password hash: user %s not found", userID)
	}
	return nil
}

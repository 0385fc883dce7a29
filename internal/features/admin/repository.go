// Package admin — repository.go хранит сессии и попытки входа.
// В PostgreSQL это таблицы admin_sessions и admin_login_attempts,
// для redis/memory бэкендов используется MemoryStore.
package admin

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store — хранилище сессий администраторов.
// GetActiveSession возвращает nil без ошибки, если активной сессии нет.
type Store interface {
	CreateSession(ctx context.Context, session *AdminSession) error
	GetActiveSession(ctx context.Context, userID int64) (*AdminSession, error)
	DeactivateSession(ctx context.Context, userID int64) error
	UpdateActivity(ctx context.Context, userID int64) error
	LogAttempt(ctx context.Context, userID int64, success bool) error
	GetRecentAttempts(ctx context.Context, userID int64, period time.Duration) (int, error)
}

// Repository работает с админ-таблицами PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// CreateSession создаёт новую сессию администратора.
// Предыдущие сессии пользователя закрываются в той же транзакции.
func (r *Repository) CreateSession(ctx context.Context, session *AdminSession) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка создания сессии: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`UPDATE admin_sessions SET is_active = FALSE WHERE user_id = $1 AND is_active = TRUE`,
		session.UserID,
	); err != nil {
		return fmt.Errorf("ошибка закрытия старых сессий: %w", err)
	}

	query := `
		INSERT INTO admin_sessions (user_id, session_token, expires_at, is_active)
		VALUES ($1, $2, $3, TRUE)
	`
	if _, err := tx.Exec(ctx, query, session.UserID, session.SessionToken, session.ExpiresAt); err != nil {
		return fmt.Errorf("ошибка создания сессии: %w", err)
	}
	return tx.Commit(ctx)
}

// GetActiveSession возвращает активную сессию пользователя.
func (r *Repository) GetActiveSession(ctx context.Context, userID int64) (*AdminSession, error) {
	query := `
		SELECT id, user_id, session_token, authenticated_at, expires_at, last_activity, is_active
		FROM admin_sessions
		WHERE user_id = $1 AND is_active = TRUE AND expires_at > NOW()
		ORDER BY authenticated_at DESC
		LIMIT 1
	`
	var s AdminSession
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&s.ID, &s.UserID, &s.SessionToken, &s.AuthenticatedAt,
		&s.ExpiresAt, &s.LastActivity, &s.IsActive,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения сессии: %w", err)
	}
	return &s, nil
}

// DeactivateSession деактивирует сессию.
func (r *Repository) DeactivateSession(ctx context.Context, userID int64) error {
	query := `UPDATE admin_sessions SET is_active = FALSE WHERE user_id = $1`
	_, err := r.db.Exec(ctx, query, userID)
	return err
}

// UpdateActivity обновляет время последней активности.
func (r *Repository) UpdateActivity(ctx context.Context, userID int64) error {
	query := `UPDATE admin_sessions SET last_activity = NOW() WHERE user_id = $1 AND is_active = TRUE`
	_, err := r.db.Exec(ctx, query, userID)
	return err
}

// LogAttempt записывает попытку входа.
func (r *Repository) LogAttempt(ctx context.Context, userID int64, success bool) error {
	query := `INSERT INTO admin_login_attempts (user_id, success) VALUES ($1, $2)`
	_, err := r.db.Exec(ctx, query, userID, success)
	return err
}

// GetRecentAttempts возвращает количество неудачных попыток за указанный период.
func (r *Repository) GetRecentAttempts(ctx context.Context, userID int64, period time.Duration) (int, error) {
	since := time.Now().Add(-period)
	query := `
		SELECT COUNT(*) FROM admin_login_attempts
		WHERE user_id = $1 AND success = FALSE AND attempt_time >= $2
	`
	var count int
	err := r.db.QueryRow(ctx, query, userID, since).Scan(&count)
	return count, err
}

// MemoryStore — Store в памяти процесса. Сессии теряются при перезапуске,
// что для redis/memory бэкендов означает повторный /login.
type MemoryStore struct {
	mu       sync.Mutex
	now      func() time.Time
	nextID   int64
	sessions map[int64]*AdminSession
	attempts []LoginAttempt
}

// NewMemoryStore создаёт хранилище в памяти. now == nil — time.Now.
func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{now: now, sessions: make(map[int64]*AdminSession)}
}

func (m *MemoryStore) CreateSession(_ context.Context, session *AdminSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	now := m.now()
	stored := *session
	stored.ID = m.nextID
	stored.AuthenticatedAt = now
	stored.LastActivity = now
	stored.IsActive = true
	m.sessions[session.UserID] = &stored
	return nil
}

func (m *MemoryStore) GetActiveSession(_ context.Context, userID int64) (*AdminSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[userID]
	if !ok || !s.IsActive || !s.ExpiresAt.After(m.now()) {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (m *MemoryStore) DeactivateSession(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[userID]; ok {
		s.IsActive = false
	}
	return nil
}

func (m *MemoryStore) UpdateActivity(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[userID]; ok && s.IsActive {
		s.LastActivity = m.now()
	}
	return nil
}

func (m *MemoryStore) LogAttempt(_ context.Context, userID int64, success bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts = append(m.attempts, LoginAttempt{
		ID:          int64(len(m.attempts) + 1),
		UserID:      userID,
		AttemptTime: m.now(),
		Success:     success,
	})
	return nil
}

func (m *MemoryStore) GetRecentAttempts(_ context.Context, userID int64, period time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	since := m.now().Add(-period)
	count := 0
	for _, a := range m.attempts {
		if a.UserID == userID && !a.Success && !a.AttemptTime.Before(since) {
			count++
		}
	}
	return count, nil
}

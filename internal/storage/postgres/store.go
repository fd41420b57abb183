package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const (
	pingTimeout = 5 * time.Second

	// Пул рассчитан на фоновых воркеров (outbox, idempotency cleanup),
	// которые держат соединения подолгу вдобавок к HTTP-обработчикам.
	poolMaxOpenConns    = 25
	poolMaxIdleConns    = 25
	poolConnMaxLifetime = 30 * time.Minute
	poolConnMaxIdleTime = 5 * time.Minute
)

// Store владеет пулом соединений к PostgreSQL. Репозитории заказов, корзины,
// outbox и идемпотентности создаются поверх одного Store.
type Store struct {
	db *sql.DB
}

// Open создаёт пул соединений через pgx stdlib-драйвер и сразу проверяет,
// что база отвечает.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}
	db.SetMaxOpenConns(poolMaxOpenConns)
	db.SetMaxIdleConns(poolMaxIdleConns)
	db.SetConnMaxLifetime(poolConnMaxLifetime)
	db.SetConnMaxIdleTime(poolConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Store{db: db}, nil
}

// DB отдаёт сырое *sql.DB для мигратора и репозиториев.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Ping проверяет живость базы, используется health-чекером хранилища.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("postgres store is not initialized")
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return s.db.PingContext(pingCtx)
}

// Close закрывает пул соединений.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Account is a registered user
type Account struct {
	ID           uint64
	Login        string
	PasswordHash []byte
	PasswordSalt []byte
}

// LoginExists reports whether an account uses login
func (s *DB) LoginExists(ctx context.Context, login string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, s.rebind("SELECT COUNT(*) FROM accounts WHERE login = ?"), login).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to look up login: %w", err)
	}
	return n > 0, nil
}

// CreateAccount inserts an account and returns its id. A login already in
// use yields ErrLoginTaken.
func (s *DB) CreateAccount(ctx context.Context, login string, hash, salt []byte) (uint64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		s.rebind("INSERT INTO accounts (login, passwordHash, passwordSalt) VALUES (?, ?, ?) RETURNING id"),
		login, hash, salt,
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrLoginTaken
		}
		return 0, fmt.Errorf("failed to create account: %w", err)
	}

	s.log.Infof("Created account %d", id)
	return uint64(id), nil
}

// AccountByLogin returns the account registered under login
func (s *DB) AccountByLogin(ctx context.Context, login string) (*Account, error) {
	var (
		acc Account
		id  int64
	)
	err := s.db.QueryRowContext(ctx,
		s.rebind("SELECT id, login, passwordHash, passwordSalt FROM accounts WHERE login = ?"),
		login,
	).Scan(&id, &acc.Login, &acc.PasswordHash, &acc.PasswordSalt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	acc.ID = uint64(id)
	return &acc, nil
}

// AccountLogin returns the login of an account id
func (s *DB) AccountLogin(ctx context.Context, id uint64) (string, error) {
	var login string
	err := s.db.QueryRowContext(ctx, s.rebind("SELECT login FROM accounts WHERE id = ?"), int64(id)).Scan(&login)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get login: %w", err)
	}
	return login, nil
}

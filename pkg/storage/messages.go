package storage

import (
	"context"
	"fmt"
)

// StoredMessage is one row of privateMessages
type StoredMessage struct {
	ID       uint64
	Sender   uint64
	Receiver uint64
	Text     string
}

// SaveMessage stores a message and returns its id
func (s *DB) SaveMessage(ctx context.Context, sender, receiver uint64, text string) (uint64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		s.rebind("INSERT INTO privateMessages (sender, receiver, text) VALUES (?, ?, ?) RETURNING id"),
		int64(sender), int64(receiver), text,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to save message: %w", err)
	}
	return uint64(id), nil
}

// MessagesFor returns every message sent or received by an account,
// ordered by id
func (s *DB) MessagesFor(ctx context.Context, accountID uint64) ([]StoredMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		s.rebind("SELECT id, sender, receiver, text FROM privateMessages WHERE sender = ? OR receiver = ? ORDER BY id"),
		int64(accountID), int64(accountID),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var msgs []StoredMessage
	for rows.Next() {
		var id, sender, receiver int64
		var m StoredMessage
		if err := rows.Scan(&id, &sender, &receiver, &m.Text); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		m.ID = uint64(id)
		m.Sender = uint64(sender)
		m.Receiver = uint64(receiver)
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read messages: %w", err)
	}

	return msgs, nil
}

// Counterpart returns the other party of a message relative to accountID
func (m StoredMessage) Counterpart(accountID uint64) uint64 {
	if m.Sender == accountID {
		return m.Receiver
	}
	return m.Sender
}

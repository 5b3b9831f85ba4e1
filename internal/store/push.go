package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/overhill/internal/model"
)

type PushStore struct {
	db *sql.DB
}

func NewPushStore(db *sql.DB) *PushStore {
	return &PushStore{db: db}
}

func scanPushSubscription(scanner interface{ Scan(...any) error }) (*model.PushSubscription, error) {
	var ps model.PushSubscription
	err := scanner.Scan(&ps.ID, &ps.UserID, &ps.Endpoint, &ps.P256dhKey, &ps.AuthKey, &ps.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &ps, nil
}

const pushCols = `id, user_id, endpoint, p256dh_key, auth_key, created_at`

// Create registers a push subscription, replacing any previous row for the
// same endpoint (re-subscribes rotate keys).
func (s *PushStore) Create(userID int64, endpoint, p256dh, authKey string) (*model.PushSubscription, error) {
	_, err := s.db.Exec(
		`INSERT INTO push_subscriptions (user_id, endpoint, p256dh_key, auth_key) VALUES (?, ?, ?, ?)
		 ON CONFLICT(endpoint) DO UPDATE SET user_id = excluded.user_id,
		   p256dh_key = excluded.p256dh_key, auth_key = excluded.auth_key`,
		userID, endpoint, p256dh, authKey,
	)
	if err != nil {
		return nil, fmt.Errorf("insert push subscription: %w", err)
	}
	row := s.db.QueryRow(`SELECT `+pushCols+` FROM push_subscriptions WHERE endpoint = ?`, endpoint)
	return scanPushSubscription(row)
}

func (s *PushStore) ListByUser(userID int64) ([]model.PushSubscription, error) {
	rows, err := s.db.Query(
		`SELECT `+pushCols+` FROM push_subscriptions WHERE user_id = ? ORDER BY created_at ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list push subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []model.PushSubscription
	for rows.Next() {
		ps, err := scanPushSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan push subscription: %w", err)
		}
		subs = append(subs, *ps)
	}
	return subs, rows.Err()
}

func (s *PushStore) DeleteByEndpoint(endpoint string) error {
	_, err := s.db.Exec(`DELETE FROM push_subscriptions WHERE endpoint = ?`, endpoint)
	if err != nil {
		return fmt.Errorf("delete push subscription: %w", err)
	}
	return nil
}

package store

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/rajkowski/cms-platform-sub001/internal/model"
)

// SaveUser inserts or replaces a user. A missing id is assigned.
func (s *Store) SaveUser(ctx context.Context, u *model.User) error {
	if u == nil {
		return errors.New("nil user")
	}
	u.Username = strings.ToLower(strings.TrimSpace(u.Username))
	if u.Username == "" {
		return errors.New("missing username")
	}
	u.Email = strings.TrimSpace(u.Email)
	if strings.TrimSpace(u.ID) == "" {
		u.ID = newID("usr")
	}
	now := nowUTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	raw, err := json.Marshal(u)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO users(id, username, email, json, updated_at_unixms) VALUES(?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET username=excluded.username, email=excluded.email, json=excluded.json, updated_at_unixms=excluded.updated_at_unixms`,
		u.ID, u.Username, strings.ToLower(u.Email), string(raw), now.UnixMilli())
	return err
}

func (s *Store) FindUserByID(ctx context.Context, id string) (*model.User, error) {
	id = strings.TrimSpace(id)
	u, err := readJSONRow[model.User](ctx, s.db, "user", id, `SELECT json FROM users WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) FindUserByUsername(ctx context.Context, username string) (*model.User, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	u, err := readJSONRow[model.User](ctx, s.db, "user", username, `SELECT json FROM users WHERE username = ?`, username)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]model.User, error) {
	xs, err := readJSONRows[model.User](ctx, s.db, `SELECT json FROM users ORDER BY username`)
	if err != nil {
		return nil, err
	}
	if xs == nil {
		xs = []model.User{}
	}
	return xs, nil
}

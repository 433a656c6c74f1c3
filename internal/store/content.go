package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"github.com/rajkowski/cms-platform-sub001/internal/model"
)

const DefaultListLimit = 50

// SaveCollection inserts or replaces a collection. UniqueID defaults to a slug of Name.
func (s *Store) SaveCollection(ctx context.Context, c *model.Collection) error {
	if c == nil {
		return errors.New("nil collection")
	}
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return errors.New("missing collection name")
	}
	if strings.TrimSpace(c.UniqueID) == "" {
		c.UniqueID = Slug(c.Name)
	}
	if strings.TrimSpace(c.ID) == "" {
		c.ID = newID("col")
	}
	now := nowUTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	raw, err := json.Marshal(c)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO collections(id, unique_id, json, updated_at_unixms) VALUES(?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET unique_id=excluded.unique_id, json=excluded.json, updated_at_unixms=excluded.updated_at_unixms`,
		c.ID, c.UniqueID, string(raw), now.UnixMilli())
	return err
}

// FindCollection looks a collection up by unique id, falling back to id.
func (s *Store) FindCollection(ctx context.Context, key string) (*model.Collection, error) {
	key = strings.TrimSpace(key)
	c, err := readJSONRow[model.Collection](ctx, s.db, "collection", key,
		`SELECT json FROM collections WHERE unique_id = ? OR id = ? LIMIT 1`, key, key)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) ListCollections(ctx context.Context) ([]model.Collection, error) {
	xs, err := readJSONRows[model.Collection](ctx, s.db, `SELECT json FROM collections ORDER BY unique_id`)
	if err != nil {
		return nil, err
	}
	if xs == nil {
		xs = []model.Collection{}
	}
	return xs, nil
}

// SaveItem inserts or replaces an item. It keeps the stored like count.
func (s *Store) SaveItem(ctx context.Context, it *model.Item) error {
	if it == nil {
		return errors.New("nil item")
	}
	it.Name = strings.TrimSpace(it.Name)
	if it.Name == "" {
		return errors.New("missing item name")
	}
	it.CollectionID = strings.TrimSpace(it.CollectionID)
	if it.CollectionID == "" {
		return errors.New("missing collection id")
	}
	if strings.TrimSpace(it.UniqueID) == "" {
		it.UniqueID = Slug(it.Name)
	}
	if strings.TrimSpace(it.ID) == "" {
		it.ID = newID("itm")
	}
	now := nowUTC()
	if it.CreatedAt.IsZero() {
		it.CreatedAt = now
	}
	it.UpdatedAt = now
	raw, err := json.Marshal(it)
	if err != nil {
		return err
	}
	search := strings.ToLower(it.Name + "\n" + it.Summary + "\n" + it.Body)
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO items(id, collection_id, unique_id, name, search_text, likes, json, created_at_unixms, updated_at_unixms)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET collection_id=excluded.collection_id, unique_id=excluded.unique_id, name=excluded.name,
		   search_text=excluded.search_text, json=excluded.json, updated_at_unixms=excluded.updated_at_unixms`,
		it.ID, it.CollectionID, it.UniqueID, it.Name, search, it.Likes, string(raw), it.CreatedAt.UnixMilli(), now.UnixMilli())
	return err
}

// ListItems returns items of a collection whose text contains query (case-insensitive), by name.
func (s *Store) ListItems(ctx context.Context, collectionID, query string, limit int) ([]model.Item, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	q := `SELECT json, likes FROM items WHERE collection_id = ?`
	args := []any{strings.TrimSpace(collectionID)}
	if query = strings.ToLower(strings.TrimSpace(query)); query != "" {
		q += ` AND instr(search_text, ?) > 0`
		args = append(args, query)
	}
	q += ` ORDER BY name COLLATE NOCASE, id LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Item{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// FindItem looks an item up inside a collection by unique id, falling back to id.
func (s *Store) FindItem(ctx context.Context, collectionID, key string) (*model.Item, error) {
	key = strings.TrimSpace(key)
	row := s.db.QueryRowContext(ctx,
		`SELECT json, likes FROM items WHERE collection_id = ? AND (unique_id = ? OR id = ?) LIMIT 1`,
		strings.TrimSpace(collectionID), key, key)
	it, err := scanItem(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NotFoundError{Kind: "item", ID: key}
		}
		return nil, err
	}
	return &it, nil
}

func (s *Store) FindItemByID(ctx context.Context, id string) (*model.Item, error) {
	id = strings.TrimSpace(id)
	it, err := scanItem(s.db.QueryRowContext(ctx, `SELECT json, likes FROM items WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NotFoundError{Kind: "item", ID: id}
		}
		return nil, err
	}
	return &it, nil
}

func (s *Store) DeleteItem(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	res, err := s.db.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return NotFoundError{Kind: "item", ID: id}
	}
	return nil
}

// LikeItem increments an item's like count and returns the new total.
func (s *Store) LikeItem(ctx context.Context, id string) (int, error) {
	id = strings.TrimSpace(id)
	var likes int
	err := s.db.QueryRowContext(ctx,
		`UPDATE items SET likes = likes + 1 WHERE id = ? RETURNING likes`, id).Scan(&likes)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, NotFoundError{Kind: "item", ID: id}
	}
	return likes, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanItem decodes (json, likes); the likes column is authoritative.
func scanItem(r rowScanner) (model.Item, error) {
	var (
		js    string
		likes int
		it    model.Item
	)
	if err := r.Scan(&js, &likes); err != nil {
		return it, err
	}
	if err := json.Unmarshal([]byte(js), &it); err != nil {
		return it, err
	}
	it.Likes = likes
	return it, nil
}

// Collection implements prefs.Entities.
func (s *Store) Collection(ctx context.Context, key string) (any, error) {
	c, err := s.FindCollection(ctx, key)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Item implements prefs.Entities.
func (s *Store) Item(ctx context.Context, collectionKey, itemKey string) (any, error) {
	c, err := s.FindCollection(ctx, collectionKey)
	if err != nil {
		return nil, err
	}
	it, err := s.FindItem(ctx, c.ID, itemKey)
	if err != nil {
		return nil, err
	}
	return it, nil
}

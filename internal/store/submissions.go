package store

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/rajkowski/cms-platform-sub001/internal/model"
)

func (s *Store) SaveSubmission(ctx context.Context, f *model.FormSubmission) error {
	if f == nil {
		return errors.New("nil submission")
	}
	f.Form = strings.TrimSpace(f.Form)
	if f.Form == "" {
		return errors.New("missing form name")
	}
	if strings.TrimSpace(f.ID) == "" {
		f.ID = newID("sub")
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = nowUTC()
	}
	if f.Fields == nil {
		f.Fields = map[string]string{}
	}
	raw, err := json.Marshal(f)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO submissions(id, form, json, created_at_unixms) VALUES(?, ?, ?, ?)`,
		f.ID, f.Form, string(raw), f.CreatedAt.UnixMilli())
	return err
}

// ListSubmissions returns a form's submissions, newest first. An empty form lists all.
func (s *Store) ListSubmissions(ctx context.Context, form string) ([]model.FormSubmission, error) {
	form = strings.TrimSpace(form)
	q := `SELECT json FROM submissions`
	var args []any
	if form != "" {
		q += ` WHERE form = ?`
		args = append(args, form)
	}
	q += ` ORDER BY created_at_unixms DESC, id DESC`
	xs, err := readJSONRows[model.FormSubmission](ctx, s.db, q, args...)
	if err != nil {
		return nil, err
	}
	if xs == nil {
		xs = []model.FormSubmission{}
	}
	return xs, nil
}

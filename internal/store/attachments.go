package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"github.com/rajkowski/cms-platform-sub001/internal/model"
)

const DefaultAttachmentMaxBytes int64 = 10 * 1024 * 1024 // 10MB

func guessMimeType(filename string) string {
	ext := strings.ToLower(filepath.Ext(strings.TrimSpace(filename)))
	if ext == "" {
		return ""
	}
	return mime.TypeByExtension(ext)
}

// SaveAttachment stores a file for an item.
func (s *Store) SaveAttachment(ctx context.Context, a *model.Attachment) error {
	if a == nil {
		return errors.New("nil attachment")
	}
	a.ItemID = strings.TrimSpace(a.ItemID)
	if a.ItemID == "" {
		return errors.New("missing item id")
	}
	a.FileName = filepath.Base(strings.TrimSpace(a.FileName))
	if a.FileName == "" || a.FileName == "." {
		return errors.New("missing file name")
	}
	if int64(len(a.Data)) > DefaultAttachmentMaxBytes {
		return fmt.Errorf("attachment too large: %d bytes (max %d)", len(a.Data), DefaultAttachmentMaxBytes)
	}
	if strings.TrimSpace(a.ContentType) == "" {
		a.ContentType = guessMimeType(a.FileName)
	}
	if a.ContentType == "" {
		a.ContentType = "application/octet-stream"
	}
	if strings.TrimSpace(a.ID) == "" {
		a.ID = newID("att")
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = nowUTC()
	}
	a.Size = int64(len(a.Data))
	raw, err := json.Marshal(a)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO attachments(id, item_id, data, json, created_at_unixms) VALUES(?, ?, ?, ?, ?)`,
		a.ID, a.ItemID, a.Data, string(raw), a.CreatedAt.UnixMilli())
	return err
}

// FindAttachment returns an attachment with its data.
func (s *Store) FindAttachment(ctx context.Context, id string) (*model.Attachment, error) {
	id = strings.TrimSpace(id)
	var (
		js   string
		data []byte
	)
	err := s.db.QueryRowContext(ctx, `SELECT json, data FROM attachments WHERE id = ?`, id).Scan(&js, &data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NotFoundError{Kind: "attachment", ID: id}
		}
		return nil, err
	}
	var a model.Attachment
	if err := json.Unmarshal([]byte(js), &a); err != nil {
		return nil, err
	}
	a.Data = data
	return &a, nil
}

// ListAttachments returns an item's attachments without their data.
func (s *Store) ListAttachments(ctx context.Context, itemID string) ([]model.Attachment, error) {
	xs, err := readJSONRows[model.Attachment](ctx, s.db,
		`SELECT json FROM attachments WHERE item_id = ? ORDER BY created_at_unixms, id`, strings.TrimSpace(itemID))
	if err != nil {
		return nil, err
	}
	if xs == nil {
		xs = []model.Attachment{}
	}
	return xs, nil
}

package model

import (
	"strings"
	"time"
)

// Platform is static product metadata exposed to preferences as ${platform.*}.
type Platform struct {
	Name    string `json:"name"`
	URL     string `json:"url"`
	Version string `json:"version"`
}

type User struct {
	ID        string   `json:"id"`
	Username  string   `json:"username"`
	FirstName string   `json:"firstName"`
	LastName  string   `json:"lastName"`
	Email     string   `json:"email"`
	RoleNames []string `json:"roles,omitempty"`
	GroupKeys []string `json:"groups,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

// FullName is the display name, falling back to the username.
func (u *User) FullName() string {
	if u == nil {
		return ""
	}
	n := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if n == "" {
		return u.Username
	}
	return n
}

type Collection struct {
	ID          string `json:"id"`
	UniqueID    string `json:"uniqueId"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

type Item struct {
	ID           string `json:"id"`
	CollectionID string `json:"collectionId"`
	UniqueID     string `json:"uniqueId"`

	Name    string `json:"name"`
	Summary string `json:"summary,omitempty"`
	Body    string `json:"body,omitempty"`
	URL     string `json:"url,omitempty"`
	Likes   int    `json:"likes"`

	CreatedBy string    `json:"createdBy,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Attachment is a file owned by an item. Data is not serialized.
type Attachment struct {
	ID          string `json:"id"`
	ItemID      string `json:"itemId"`
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
	Data        []byte `json:"-"`

	CreatedAt time.Time `json:"createdAt"`
}

// FormSubmission is a stored contact-style form post.
type FormSubmission struct {
	ID        string            `json:"id"`
	Form      string            `json:"form"`
	Fields    map[string]string `json:"fields"`
	UserID    string            `json:"userId,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}

func (u *User) Roles() []string {
	if u == nil {
		return nil
	}
	return u.RoleNames
}

func (u *User) Groups() []string {
	if u == nil {
		return nil
	}
	return u.GroupKeys
}

func (u *User) Authenticated() bool {
	return u != nil && strings.TrimSpace(u.ID) != ""
}

package session

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Session is one browser session.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu        sync.Mutex
	userID    string
	formToken string
	lastSeen  time.Time

	// Controller holds per-widget values that must survive one redirect.
	Controller *Controller
}

func newSession(now time.Time) (*Session, error) {
	tok, err := newFormToken()
	if err != nil {
		return nil, err
	}
	return &Session{
		ID:         ulid.Make().String(),
		CreatedAt:  now,
		formToken:  tok,
		lastSeen:   now,
		Controller: NewController(),
	}, nil
}

func (s *Session) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

// SetUser binds the session to a user (empty for anonymous).
// A new form token is issued whenever the user changes.
func (s *Session) SetUser(userID string) error {
	userID = strings.TrimSpace(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.userID == userID {
		return nil
	}
	tok, err := newFormToken()
	if err != nil {
		return err
	}
	s.userID = userID
	s.formToken = tok
	s.Controller.ClearAll()
	return nil
}

// FormToken is the token the next form submission must echo back.
func (s *Session) FormToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.formToken
}

// ConsumeToken reports whether tok is the current form token and, if so,
// replaces it. Each token admits one submission.
func (s *Session) ConsumeToken(tok string) bool {
	tok = strings.TrimSpace(tok)
	s.mu.Lock()
	defer s.mu.Unlock()
	if tok == "" || s.formToken == "" {
		return false
	}
	if subtle.ConstantTimeCompare([]byte(tok), []byte(s.formToken)) != 1 {
		return false
	}
	next, err := newFormToken()
	if err != nil {
		return false
	}
	s.formToken = next
	return true
}

func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func newFormToken() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Snapshot is the persisted form of a Session.
type Snapshot struct {
	ID         string                                `json:"id"`
	UserID     string                                `json:"userId,omitempty"`
	FormToken  string                                `json:"formToken"`
	CreatedAt  time.Time                             `json:"createdAt"`
	LastSeen   time.Time                             `json:"lastSeen"`
	Controller map[string]map[Slot]json.RawMessage `json:"controller,omitempty"`
}

func (s *Session) snapshot() (*Snapshot, error) {
	ctrl, err := s.Controller.snapshot()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return &Snapshot{
		ID:         s.ID,
		UserID:     s.userID,
		FormToken:  s.formToken,
		CreatedAt:  s.CreatedAt,
		LastSeen:   s.lastSeen,
		Controller: ctrl,
	}, nil
}

func fromSnapshot(sn *Snapshot) (*Session, error) {
	s := &Session{
		ID:         sn.ID,
		CreatedAt:  sn.CreatedAt,
		userID:     sn.UserID,
		formToken:  sn.FormToken,
		lastSeen:   sn.LastSeen,
		Controller: NewController(),
	}
	if err := s.Controller.restore(sn.Controller); err != nil {
		return nil, err
	}
	if s.formToken == "" {
		tok, err := newFormToken()
		if err != nil {
			return nil, err
		}
		s.formToken = tok
	}
	return s, nil
}

// Package websession is a server-side key/value session store behind an
// HttpOnly cookie. Rows live in the web_sessions table.
package websession

import (
	"crypto/rand"
	"encoding/base64"
)

// Session holds string values for one browser. It is owned by a single
// request and must not be shared across goroutines.
type Session struct {
	id     string
	values map[string]string

	isNew    bool
	dirty    bool
	oldID    string
	onChange func(*Session)
}

func newSession() (*Session, error) {
	id, err := newID()
	if err != nil {
		return nil, err
	}
	return &Session{id: id, values: map[string]string{}, isNew: true}, nil
}

func (s *Session) ID() string  { return s.id }
func (s *Session) IsNew() bool { return s.isNew }
func (s *Session) Len() int    { return len(s.values) }

func (s *Session) Get(key string) string {
	return s.values[key]
}

func (s *Session) Set(key, value string) {
	if cur, ok := s.values[key]; ok && cur == value {
		return
	}
	s.values[key] = value
	s.changed()
}

func (s *Session) Delete(key string) {
	if _, ok := s.values[key]; !ok {
		return
	}
	delete(s.values, key)
	s.changed()
}

// Clear removes every value. A cleared session is deleted from the store.
func (s *Session) Clear() {
	if len(s.values) == 0 {
		return
	}
	s.values = map[string]string{}
	s.changed()
}

// Renew moves the values to a fresh id. Call it when the privilege level
// changes, e.g. right after sign-in.
func (s *Session) Renew() error {
	id, err := newID()
	if err != nil {
		return err
	}
	if !s.isNew && s.oldID == "" {
		s.oldID = s.id
	}
	s.id = id
	s.isNew = true
	s.changed()
	return nil
}

func (s *Session) changed() {
	s.dirty = true
	if s.onChange != nil {
		s.onChange(s)
	}
}

func newID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

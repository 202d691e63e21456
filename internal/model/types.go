package model

import (
	"errors"
	"fmt"
	"time"
)

// Post is a single archived post.
type Post struct {
	ID             uint64      `json:"id,string" yaml:"id"`
	AuthorID       uint64      `json:"author_id,string" yaml:"author_id"`
	ConversationID uint64      `json:"conversation_id,string" yaml:"conversation_id"`
	Text           string      `json:"text" yaml:"text"`
	CreatedAt      time.Time   `json:"created_at" yaml:"created_at"`
	References     []Reference `json:"references,omitempty" yaml:"references,omitempty"`
}

// User is a post author. Users are deduplicated by ID; the handle is only a
// secondary lookup key and may change upstream.
type User struct {
	ID          uint64 `json:"id,string" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Handle      string `json:"handle" yaml:"handle"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Entry is a post paired with its resolved author.
// Author is nil when the author could not be archived.
type Entry struct {
	Post   Post  `json:"post"`
	Author *User `json:"author,omitempty"`
}

// Stats counts the records held by a store.
type Stats struct {
	Users         int `json:"users"`
	Posts         int `json:"posts"`
	Conversations int `json:"conversations"`
	References    int `json:"references"`
}

// Validate reports whether a post decoded from the origin has the shape the
// archive requires.
func (p Post) Validate() error {
	var errs []error
	if p.ID == 0 {
		errs = append(errs, errors.New("id is required"))
	}
	if p.AuthorID == 0 {
		errs = append(errs, errors.New("author_id is required"))
	}
	if p.ConversationID == 0 {
		errs = append(errs, errors.New("conversation_id is required"))
	}
	if p.CreatedAt.IsZero() {
		errs = append(errs, errors.New("created_at is required"))
	}
	for i, ref := range p.References {
		if !ref.Kind.Valid() {
			errs = append(errs, fmt.Errorf("references[%d]: unknown kind %q", i, ref.Kind))
		}
		if ref.ID == 0 {
			errs = append(errs, fmt.Errorf("references[%d]: id is required", i))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("post %d: %w", p.ID, errors.Join(errs...))
	}
	return nil
}

// Validate reports whether a user decoded from the origin is usable.
func (u User) Validate() error {
	if u.ID == 0 {
		return errors.New("user: id is required")
	}
	if u.Handle == "" {
		return fmt.Errorf("user %d: handle is required", u.ID)
	}
	return nil
}

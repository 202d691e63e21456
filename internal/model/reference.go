package model

import "fmt"

// ReferenceKind is the closed set of ways one post can point at another.
type ReferenceKind string

const (
	ReplyTo ReferenceKind = "replied_to"
	Retweet ReferenceKind = "retweeted"
	Quote   ReferenceKind = "quoted"
)

// ReferenceKinds lists every valid kind in a stable order.
var ReferenceKinds = []ReferenceKind{ReplyTo, Retweet, Quote}

// Valid reports whether k is one of the known kinds.
func (k ReferenceKind) Valid() bool {
	switch k {
	case ReplyTo, Retweet, Quote:
		return true
	}
	return false
}

// ParseReferenceKind converts the wire spelling of a kind.
func ParseReferenceKind(s string) (ReferenceKind, error) {
	k := ReferenceKind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown reference kind %q", s)
	}
	return k, nil
}

// MarshalText implements encoding.TextMarshaler.
func (k ReferenceKind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("unknown reference kind %q", string(k))
	}
	return []byte(k), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *ReferenceKind) UnmarshalText(b []byte) error {
	parsed, err := ParseReferenceKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Reference is an outgoing link carried on a post as returned by the origin.
type Reference struct {
	Kind ReferenceKind `json:"type" yaml:"type"`
	ID   uint64        `json:"id,string" yaml:"id"`
}

// Edge is a stored reference row: source post -> referenced post.
type Edge struct {
	SourceID uint64        `json:"source_id,string" yaml:"source_id"`
	Kind     ReferenceKind `json:"kind" yaml:"kind"`
	TargetID uint64        `json:"target_id,string" yaml:"target_id"`
}

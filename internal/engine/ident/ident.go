// Package ident implements qualified identifiers as used by the declaration
// chain and the persistent symbol table.
package ident

import (
	"strings"
)

// Separator is the canonical segment separator used by String and Key.
const Separator = "::"

// QualifiedIdentifier is an immutable, ordered sequence of name segments.
// The zero value is the empty identifier.
type QualifiedIdentifier struct {
	segments         []string
	explicitlyGlobal bool
}

// New builds an identifier from already normalized segments. Empty segments
// are dropped.
func New(segments ...string) QualifiedIdentifier {
	out := make([]string, 0, len(segments))
	for _, seg := range segments {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		out = append(out, seg)
	}
	return QualifiedIdentifier{segments: out}
}

// Parse builds an identifier from source syntax such as `\Foo\Bar\baz` or
// `Foo::bar`. A leading separator marks the identifier explicitly global.
// Every segment except the last is lower-cased; namespaces and classes are
// case-insensitive while the last segment may be a case-sensitive constant.
func Parse(s string) QualifiedIdentifier {
	s = strings.TrimSpace(s)
	if s == "" {
		return QualifiedIdentifier{}
	}
	s = strings.ReplaceAll(s, Separator, "\\")
	global := strings.HasPrefix(s, "\\")

	parts := strings.Split(s, "\\")
	segments := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		segments = append(segments, part)
	}
	for i := 0; i < len(segments)-1; i++ {
		segments[i] = strings.ToLower(segments[i])
	}
	return QualifiedIdentifier{segments: segments, explicitlyGlobal: global && len(segments) > 0}
}

// Segments returns a copy of the segments.
func (q QualifiedIdentifier) Segments() []string {
	out := make([]string, len(q.segments))
	copy(out, q.segments)
	return out
}

func (q QualifiedIdentifier) Count() int {
	return len(q.segments)
}

func (q QualifiedIdentifier) IsEmpty() bool {
	return len(q.segments) == 0
}

func (q QualifiedIdentifier) ExplicitlyGlobal() bool {
	return q.explicitlyGlobal
}

// At returns the segment at index i, or "" when out of range.
func (q QualifiedIdentifier) At(i int) string {
	if i < 0 || i >= len(q.segments) {
		return ""
	}
	return q.segments[i]
}

// Last returns the final segment, or "" for the empty identifier.
func (q QualifiedIdentifier) Last() string {
	return q.At(len(q.segments) - 1)
}

// Push returns a new identifier with segment appended.
func (q QualifiedIdentifier) Push(segment string) QualifiedIdentifier {
	segment = strings.TrimSpace(segment)
	if segment == "" {
		return q
	}
	out := make([]string, len(q.segments), len(q.segments)+1)
	copy(out, q.segments)
	return QualifiedIdentifier{segments: append(out, segment), explicitlyGlobal: q.explicitlyGlobal}
}

// Append returns q followed by all segments of other. The global flag of q is
// kept.
func (q QualifiedIdentifier) Append(other QualifiedIdentifier) QualifiedIdentifier {
	if other.IsEmpty() {
		return q
	}
	out := make([]string, 0, len(q.segments)+len(other.segments))
	out = append(out, q.segments...)
	out = append(out, other.segments...)
	return QualifiedIdentifier{segments: out, explicitlyGlobal: q.explicitlyGlobal}
}

// Parent drops the last segment.
func (q QualifiedIdentifier) Parent() QualifiedIdentifier {
	if len(q.segments) <= 1 {
		return QualifiedIdentifier{explicitlyGlobal: q.explicitlyGlobal}
	}
	out := make([]string, len(q.segments)-1)
	copy(out, q.segments)
	return QualifiedIdentifier{segments: out, explicitlyGlobal: q.explicitlyGlobal}
}

func (q QualifiedIdentifier) WithGlobal(global bool) QualifiedIdentifier {
	q.segments = q.Segments()
	q.explicitlyGlobal = global
	return q
}

// Lower returns the identifier with every segment lower-cased, which is the
// identity used for classes, functions and namespaces.
func (q QualifiedIdentifier) Lower() QualifiedIdentifier {
	out := make([]string, len(q.segments))
	for i, seg := range q.segments {
		out[i] = strings.ToLower(seg)
	}
	return QualifiedIdentifier{segments: out, explicitlyGlobal: q.explicitlyGlobal}
}

// Equal reports whether both segment sequences and global flags match.
func (q QualifiedIdentifier) Equal(other QualifiedIdentifier) bool {
	if q.explicitlyGlobal != other.explicitlyGlobal {
		return false
	}
	return q.SameSegments(other)
}

// SameSegments compares segments only, ignoring the global flag.
func (q QualifiedIdentifier) SameSegments(other QualifiedIdentifier) bool {
	if len(q.segments) != len(other.segments) {
		return false
	}
	for i := range q.segments {
		if q.segments[i] != other.segments[i] {
			return false
		}
	}
	return true
}

// HasPrefix reports whether q starts with every segment of prefix.
func (q QualifiedIdentifier) HasPrefix(prefix QualifiedIdentifier) bool {
	if len(prefix.segments) > len(q.segments) {
		return false
	}
	for i := range prefix.segments {
		if q.segments[i] != prefix.segments[i] {
			return false
		}
	}
	return true
}

// Key is the symbol table key. Indexed declarations are always stored fully
// qualified, so the global flag does not take part in it.
func (q QualifiedIdentifier) Key() string {
	return strings.Join(q.segments, Separator)
}

func (q QualifiedIdentifier) String() string {
	if q.explicitlyGlobal {
		return Separator + q.Key()
	}
	return q.Key()
}

// FromKey rebuilds an identifier from Key output.
func FromKey(key string) QualifiedIdentifier {
	if key == "" {
		return QualifiedIdentifier{}
	}
	return New(strings.Split(key, Separator)...)
}

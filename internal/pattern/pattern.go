// Package pattern parses masked byte signatures and scans memory for them.
package pattern

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrNotFound means a scan completed without a match.
	ErrNotFound = errors.New("pattern not found")
	// ErrSyntax means a signature could not be parsed.
	ErrSyntax = errors.New("invalid signature")
)

// Token is a single pattern element: a concrete byte or a wildcard.
type Token struct {
	Value byte
	Any   bool
}

// Pattern is an ordered sequence of byte-or-wildcard tokens.
type Pattern []Token

// Parse converts an IDA style signature such as "48 8B ?? ?? C3" into a
// Pattern. "?" and "??" are both accepted as wildcards.
func Parse(sig string) (Pattern, error) {
	fields := strings.Fields(sig)
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: empty signature", ErrSyntax)
	}
	p := make(Pattern, 0, len(fields))
	for _, f := range fields {
		if f == "?" || f == "??" {
			p = append(p, Token{Any: true})
			continue
		}
		if len(f) != 2 {
			return nil, fmt.Errorf("%w: token %q", ErrSyntax, f)
		}
		v, err := strconv.ParseUint(f, 16, 8)
		if err != nil {
			return nil, fmt.Errorf("%w: token %q", ErrSyntax, f)
		}
		p = append(p, Token{Value: byte(v)})
	}
	return p, nil
}

// MustParse is like Parse but panics on malformed input. It is meant for
// signatures that are compile-time constants.
func MustParse(sig string) Pattern {
	p, err := Parse(sig)
	if err != nil {
		panic(err)
	}
	return p
}

// FromBytes builds a pattern without wildcards.
func FromBytes(b []byte) Pattern {
	p := make(Pattern, len(b))
	for i, v := range b {
		p[i] = Token{Value: v}
	}
	return p
}

// String renders the pattern in canonical "AA ?? BB" form.
func (p Pattern) String() string {
	var sb strings.Builder
	for i, t := range p {
		if i > 0 {
			sb.WriteByte(' ')
		}
		if t.Any {
			sb.WriteString("??")
			continue
		}
		fmt.Fprintf(&sb, "%02X", t.Value)
	}
	return sb.String()
}

// Match reports whether p matches the beginning of b.
func (p Pattern) Match(b []byte) bool {
	if len(b) < len(p) {
		return false
	}
	for j, t := range p {
		if !t.Any && b[j] != t.Value {
			return false
		}
	}
	return true
}

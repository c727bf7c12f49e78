package domain

import (
	"fmt"
	"strings"
)

// TokenKind identifies which of the five representations of a market's
// underlying value a balance is held in. The ordinal doubles as an index
// into a market's token table, so the order here is load-bearing.
type TokenKind uint8

const (
	KindUnderlying TokenKind = iota
	KindSY
	KindPT
	KindYT
	KindLP

	numTokenKinds
)

// NumTokenKinds is the size of a per-market token table.
const NumTokenKinds = int(numTokenKinds)

var kindNames = [numTokenKinds]string{
	KindUnderlying: "underlying",
	KindSY:         "sy",
	KindPT:         "pt",
	KindYT:         "yt",
	KindLP:         "lp",
}

// Valid reports whether k is one of the five defined token kinds.
func (k TokenKind) Valid() bool {
	return k < numTokenKinds
}

// String returns the lowercase wire name of the token kind.
func (k TokenKind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("tokenkind(%d)", uint8(k))
	}
	return kindNames[k]
}

// ParseTokenKind converts a wire name back into a TokenKind. Matching is
// case-insensitive since the names arrive in URL paths and request bodies.
func ParseTokenKind(s string) (TokenKind, error) {
	s = strings.ToLower(s)
	for k, name := range kindNames {
		if s == name {
			return TokenKind(k), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidKind, s)
}

// MarshalText implements encoding.TextMarshaler so kinds serialize as their
// wire names in JSON payloads and events.
func (k TokenKind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidKind, uint8(k))
	}
	return []byte(kindNames[k]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *TokenKind) UnmarshalText(text []byte) error {
	parsed, err := ParseTokenKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

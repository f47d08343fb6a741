// Package zone holds the Cloudflare zone identifier value type.
package zone

import (
	"encoding/hex"
	"errors"
	"fmt"
)

// Size is the number of bytes in a zone identifier.
const Size = 16

var ErrMalformedLength = errors.New("hex string must be 32 characters long")

// InvalidHexDigitError reports the first byte pair that is not valid hex.
// Position is the index of the decoded byte, not of the character.
type InvalidHexDigitError struct {
	Position int
	Value    string
}

func (e *InvalidHexDigitError) Error() string {
	return fmt.Sprintf("invalid hex byte at position %d: %s", e.Position, e.Value)
}

// ID is a 16 byte Cloudflare zone identifier. Its text form is 32 lowercase
// hex characters.
type ID [Size]byte

func Parse(s string) (ID, error) {
	var id ID
	if len(s) != 2*Size {
		return id, ErrMalformedLength
	}
	for i := 0; i < Size; i++ {
		pair := s[2*i : 2*i+2]
		if _, err := hex.Decode(id[i:i+1], []byte(pair)); err != nil {
			return ID{}, &InvalidHexDigitError{Position: i, Value: pair}
		}
	}
	return id, nil
}

// MustParse is like Parse but panics on malformed input.
func MustParse(s string) ID {
	id, err := Parse(s)
	if err != nil {
		panic(fmt.Sprintf("zone: parse %q: %v", s, err))
	}
	return id
}

func (id ID) String() string {
	return hex.EncodeToString(id[:])
}

func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *ID) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

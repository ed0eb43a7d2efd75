package hannou

import (
	"fmt"
	"reflect"

	"github.com/google/uuid"
)

// Owner is a retain token. Any comparable value works; pointers to the
// retaining structure are the common case. Two retains by equal owners are
// the same retain.
type Owner any

// checkOwner rejects owners that cannot be used as a map key.
func checkOwner(owner Owner) error {
	t := reflect.TypeOf(owner)
	if t == nil || !t.Comparable() {
		return fmt.Errorf("%w: %T", ErrInvalidOwner, owner)
	}
	return nil
}

// Token is a generated Owner for callers without a natural identity.
type Token uuid.UUID

// NewToken returns a fresh random Token.
func NewToken() Token {
	return Token(uuid.New())
}

func (t Token) String() string {
	return uuid.UUID(t).String()
}

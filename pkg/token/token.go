package token

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Credential is the identity material recovered from a decrypted
// security token: who is asking, and the secret that proves it.
// The secret is never logged.
type Credential struct {
	Username string `cbor:"username"`
	Secret   []byte `cbor:"secret"`
}

// ErrMalformed indicates token bytes that do not decode to exactly a
// {username, secret} pair.
var ErrMalformed = errors.New("malformed credential payload")

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("token: cbor encode mode: %v", err))
	}
	// Strict decoding: unknown fields and duplicate keys are errors, and
	// cbor.Unmarshal already rejects trailing bytes.
	decMode, err = cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyEnforcedAPF,
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
		IndefLength:       cbor.IndefLengthForbidden,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("token: cbor decode mode: %v", err))
	}
}

// Marshal encodes a credential into its canonical wire form.
func Marshal(c Credential) ([]byte, error) {
	if c.Username == "" {
		return nil, fmt.Errorf("%w: empty username", ErrMalformed)
	}
	if c.Secret == nil {
		c.Secret = []byte{}
	}
	return encMode.Marshal(c)
}

// Unmarshal decodes credential bytes, enforcing the two-field schema.
// Any deviation - unknown field, duplicate key, missing field, trailing
// data - fails with ErrMalformed; a partial credential is never returned.
func Unmarshal(data []byte) (Credential, error) {
	var c Credential
	if err := decMode.Unmarshal(data, &c); err != nil {
		return Credential{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if c.Username == "" {
		return Credential{}, fmt.Errorf("%w: empty username", ErrMalformed)
	}
	if c.Secret == nil {
		return Credential{}, fmt.Errorf("%w: missing secret", ErrMalformed)
	}
	return c, nil
}

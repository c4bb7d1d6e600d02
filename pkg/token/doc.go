// Package token defines the credential carried by a security token
// header: its value type, its strict CBOR wire encoding, and the
// symmetric cipher capability used to protect it in transit.
//
// The wire format is deliberately schema-bound. Decoding materializes
// exactly two fields, username and secret, and rejects unknown fields,
// duplicate keys, truncated input, and trailing bytes. Nothing else is
// ever deserialized from decrypted token bytes.
package token

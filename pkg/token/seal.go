package token

import "encoding/base64"

// Seal encodes a credential and encrypts it, producing the raw bytes a
// producer places in the security token header.
func Seal(c Credential, cipher Cipher, passphrase []byte) ([]byte, error) {
	plain, err := Marshal(c)
	if err != nil {
		return nil, err
	}
	return cipher.Encrypt(plain, passphrase)
}

// SealBase64 is Seal followed by standard base64 encoding, for transports
// that carry the token as text.
func SealBase64(c Credential, cipher Cipher, passphrase []byte) (string, error) {
	sealed, err := Seal(c, cipher, passphrase)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Unseal decrypts and decodes a sealed credential. It is the inverse of
// Seal for a matching passphrase.
func Unseal(sealed []byte, cipher Cipher, passphrase []byte) (Credential, error) {
	plain, err := cipher.Decrypt(sealed, passphrase)
	if err != nil {
		return Credential{}, err
	}
	return Unmarshal(plain)
}

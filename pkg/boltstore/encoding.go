package boltstore

import (
	"bytes"
	"encoding/gob"
)

func init() {
	gob.Register(Account{})
}

// encodeAccount serializes an Account to bytes using gob.
func encodeAccount(a *Account) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(a); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeAccount deserializes bytes back into an Account.
func decodeAccount(data []byte) (*Account, error) {
	var a Account
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&a); err != nil {
		return nil, err
	}
	return &a, nil
}

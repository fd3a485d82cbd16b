// Package ident implements the identifier scheme shared by sets, cards and
// files: 12 raw bytes rendered as 24 lowercase hex characters.
package ident

import (
	"encoding/hex"

	"github.com/rs/xid"
)

// Length is the number of characters in a well-formed identifier.
const Length = 24

// New returns a fresh identifier. xid's 12-byte layout (timestamp, machine,
// pid, counter) keeps identifiers roughly ordered by creation time.
func New() string {
	return hex.EncodeToString(xid.New().Bytes())
}

// Valid reports whether s is structurally an identifier. Lookups with an
// invalid id are treated as absent without touching the store.
func Valid(s string) bool {
	if len(s) != Length {
		return false
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return false
	}
	_, err = xid.FromBytes(raw)
	return err == nil
}

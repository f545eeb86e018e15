package crypto

import (
	"crypto/rand"
	"io"

	"golang.org/x/crypto/argon2"

	"github.com/CasualX/pak-rs/pkg/core/record"
	"github.com/CasualX/pak-rs/pkg/pakerr"
)

// saltSize is the size in bytes of the salt stored alongside an
// Argon2id-derived key.
const saltSize = 32

// argon2Time, argon2Memory and argon2Threads are the Argon2id cost
// parameters used to turn a passphrase into a 128-bit archive Key. They are
// deliberately conservative: archive keys are derived rarely (once per
// open), unlike the per-block cipher operations above which run on every
// section.
const (
	argon2Time    = 1
	argon2Memory  = 64 * 1024
	argon2Threads = 4
)

// DeriveKeyFromPassphrase derives a 128-bit archive Key and a fresh random
// salt from a passphrase, using Argon2id. The salt must be stored alongside
// the archive (it is not secret) so that the same key can be reproduced by
// DeriveKeyWithSalt.
func DeriveKeyFromPassphrase(passphrase string) (Key, [saltSize]byte, error) {
	var salt [saltSize]byte
	if _, err := io.ReadFull(rand.Reader, salt[:]); err != nil {
		return Key{}, salt, pakerr.FatalEntropyf("crypto.DeriveKeyFromPassphrase", err, "failed to generate salt")
	}
	return DeriveKeyWithSalt(passphrase, salt), salt, nil
}

// DeriveKeyWithSalt reproduces a Key from a passphrase and a previously
// generated salt, using the same Argon2id parameters as
// DeriveKeyFromPassphrase.
func DeriveKeyWithSalt(passphrase string, salt [saltSize]byte) Key {
	raw := argon2.IDKey([]byte(passphrase), salt[:], argon2Time, argon2Memory, argon2Threads, 16)
	return Key(record.BlockFromBytes(raw))
}

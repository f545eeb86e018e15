// Package crypto implements the authenticated encryption used to protect
// every section of a PAK archive.
//
// Security Considerations:
//   - The cipher is SPECK128/128: a 128-bit block, 128-bit key, 32-round
//     Feistel cipher. It is not configurable and not optional.
//   - The mode of operation is CTR for confidentiality, with a CBC-MAC
//     computed over the resulting ciphertext for authenticity. This is a
//     bring-your-own-AEAD construction: https://eprint.iacr.org/2019/712.pdf
//   - Every section is encrypted with a freshly drawn random nonce, which
//     deterministically derives four independent subkeys/nonces (the
//     keystream round keys, the MAC round keys, a keystream base nonce,
//     and a MAC initial value) so that no state is reused across
//     sections even though all sections share one master Key.
//   - Decrypting a section that fails its MAC check must never hand
//     plaintext to the caller: DecryptSection always authenticates before
//     returning success.
package crypto

import (
	"crypto/rand"

	"github.com/CasualX/pak-rs/pkg/core/record"
	"github.com/CasualX/pak-rs/pkg/core/speck"
	"github.com/CasualX/pak-rs/pkg/pakerr"
)

// Key is the 128-bit master key shared by every section of an archive.
type Key [2]uint64

// Expand computes the round-key schedule for key.
func Expand(key Key) *speck.RoundKeys {
	rk := speck.Expand([2]uint64(key))
	return &rk
}

// Encrypt encrypts a single block under rk.
func Encrypt(pt record.Block, rk *speck.RoundKeys) record.Block {
	return record.Block(speck.Encrypt([2]uint64(pt), rk))
}

// Decrypt decrypts a single block under rk.
func Decrypt(ct record.Block, rk *speck.RoundKeys) record.Block {
	return record.Block(speck.Decrypt([2]uint64(ct), rk))
}

func xor(a, b record.Block) record.Block {
	return record.Block{a[0] ^ b[0], a[1] ^ b[1]}
}

func counter(nonce record.Block, i uint64) record.Block {
	return record.Block{nonce[0], nonce[1] + i}
}

// randomBlock draws a fresh cryptographically secure nonce.
//
// A failure here means the host's entropy source is unavailable. That is
// not a condition any caller can sensibly recover from, so it is reported
// as a FatalEntropy error for the caller to treat as fatal rather than
// retried as a normal IoError.
func randomBlock() (record.Block, error) {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return record.Block{}, pakerr.FatalEntropyf("crypto.randomBlock", err, "random unavailable")
	}
	return record.BlockFromBytes(buf[:]), nil
}

// EncryptSection encrypts blocks in place under key, drawing a fresh random
// nonce and filling in section.Nonce and section.Mac. section.Offset and
// section.Size are neither read nor checked (a directory section's Size
// counts descriptors, not blocks).
func EncryptSection(blocks []record.Block, section *record.Section, key Key) error {
	nonce, err := randomBlock()
	if err != nil {
		return err
	}
	section.Nonce = nonce

	rk := Expand(key)
	rke := Expand(Key(Encrypt(counter(section.Nonce, 0), rk)))
	rkm := Expand(Key(Encrypt(counter(section.Nonce, 1), rk)))
	ne := Encrypt(counter(section.Nonce, 2), rk)
	nm := Encrypt(counter(section.Nonce, 3), rk)

	mac := nm
	for i := range blocks {
		pt := blocks[i]
		ct := xor(Encrypt(counter(ne, uint64(i)), rke), pt)
		mac = Encrypt(xor(mac, ct), rkm)
		blocks[i] = ct
	}
	section.Mac = mac
	return nil
}

// DecryptSection decrypts blocks in place under key and section's stored
// nonce, returning false if the computed MAC does not match section.Mac.
// Every block is decrypted before the MAC is compared, so blocks hold the
// unauthenticated plaintext even when it returns false.
func DecryptSection(blocks []record.Block, section record.Section, key Key) bool {
	rk := Expand(key)
	rke := Expand(Key(Encrypt(counter(section.Nonce, 0), rk)))
	rkm := Expand(Key(Encrypt(counter(section.Nonce, 1), rk)))
	ne := Encrypt(counter(section.Nonce, 2), rk)
	nm := Encrypt(counter(section.Nonce, 3), rk)

	mac := nm
	for i := range blocks {
		ct := blocks[i]
		pt := xor(Encrypt(counter(ne, uint64(i)), rke), ct)
		mac = Encrypt(xor(mac, ct), rkm)
		blocks[i] = pt
	}

	// Constant-time comparison: XOR both halves together and OR the
	// results, rather than branching on each half in turn.
	return section.Mac[0]^mac[0]|section.Mac[1]^mac[1] == 0
}

// EncryptHeader stamps header.Info with the format version and encrypts it
// in place, filling header.Nonce and header.Mac.
func EncryptHeader(header *record.Header, key Key) error {
	header.Info.Version = record.Version()
	section := record.Section{}
	blocks := header.Info.Blocks()
	if err := EncryptSection(blocks, &section, key); err != nil {
		return err
	}
	header.Info = record.InfoHeaderFromBlocks(blocks)
	header.Nonce = section.Nonce
	header.Mac = section.Mac
	return nil
}

// DecryptHeader decrypts header.Info in place using header.Nonce and
// header.Mac, and reports whether both the MAC and the format version
// check out.
func DecryptHeader(header *record.Header, key Key) bool {
	section := record.HeaderSection
	section.Nonce = header.Nonce
	section.Mac = header.Mac

	blocks := header.Info.Blocks()
	ok := DecryptSection(blocks, section, key)
	header.Info = record.InfoHeaderFromBlocks(blocks)
	return ok && header.Info.Version == record.Version()
}

// Package speck implements the Speck128/128 block cipher: 128-bit blocks,
// 128-bit keys, 32 rounds.
//
// Reference: https://nsacyber.github.io/simon-speck/implementations/ImplementationGuide1.1.pdf
package speck

import "math/bits"

// Rounds is the number of Feistel rounds used by Speck128/128.
const Rounds = 32

// RoundKeys holds the expanded per-round keys produced by Expand.
type RoundKeys [Rounds]uint64

// Expand computes the round-key schedule for a 128-bit key.
//
// The recurrence follows the Speck key schedule: at each step the running
// pair (b, a) is updated as (b, a) <- (ror(b,8)+a^i, rol(a,3)^b'), emitting
// a before the update.
func Expand(key [2]uint64) RoundKeys {
	b, a := key[0], key[1]
	var rk RoundKeys
	for i := 0; i < Rounds; i++ {
		rk[i] = a
		b = bits.RotateLeft64(b, -8) + a
		b ^= uint64(i)
		a = bits.RotateLeft64(a, 3) ^ b
	}
	return rk
}

// Encrypt encrypts a single 128-bit plaintext block under the given round keys.
func Encrypt(pt [2]uint64, rk *RoundKeys) [2]uint64 {
	y, x := pt[0], pt[1]
	for i := 0; i < Rounds; i++ {
		y = bits.RotateLeft64(y, -8) + x
		y ^= rk[i]
		x = bits.RotateLeft64(x, 3) ^ y
	}
	return [2]uint64{y, x}
}

// Decrypt decrypts a single 128-bit ciphertext block under the given round keys.
func Decrypt(ct [2]uint64, rk *RoundKeys) [2]uint64 {
	y, x := ct[0], ct[1]
	for i := Rounds - 1; i >= 0; i-- {
		x ^= y
		x = bits.RotateLeft64(x, -3)
		y ^= rk[i]
		y -= x
		y = bits.RotateLeft64(y, 8)
	}
	return [2]uint64{y, x}
}

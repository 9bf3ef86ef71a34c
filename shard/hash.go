package shard

import (
	"path/filepath"
	"strings"
)

const (
	// Seed is the multiplier folding each byte of the name.
	Seed = 137
	// Alphabet is the fan out of every level, A to Z.
	Alphabet = 26
	// MaxLevels is the deepest tree the hash can address.
	MaxLevels = 6

	modulus = Alphabet * Alphabet * Alphabet * Alphabet * Alphabet * Alphabet
)

// FilenameHash is a sequence of letters, one per level.
type FilenameHash string

// Hash derives length letters from the base name of name.
func Hash(name string, length int) FilenameHash {
	base := filepath.Base(name)

	var h uint64
	for i := 0; i < len(base); i++ {
		h = (h*Seed + uint64(base[i])) % modulus
	}

	out := make([]byte, length)
	for i := range out {
		out[i] = byte('A' + h%Alphabet)
		h /= Alphabet
	}
	return FilenameHash(out)
}

// Letter is the directory name used at the given depth.
func (h FilenameHash) Letter(depth int) string {
	return string(h[depth])
}

// Path places name inside a tree of the given depth.
func Path(root, name string, levels int) string {
	base := filepath.Base(name)
	h := Hash(base, levels)
	parts := make([]string, 0, levels+2)
	parts = append(parts, root)
	for i := 0; i < levels; i++ {
		parts = append(parts, h.Letter(i))
	}
	return filepath.Join(append(parts, base)...)
}

func isShardName(name string) bool {
	return len(name) == 1 && name[0] >= 'A' && name[0] <= 'Z'
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

func letters() []string {
	out := make([]string, Alphabet)
	for i := range out {
		out[i] = string(rune('A' + i))
	}
	return out
}

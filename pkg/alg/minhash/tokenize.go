package minhash

import (
	"encoding/binary"
	"errors"
	"strings"

	"github.com/Sumatoshi-tech/textfang/pkg/alg/seahash"
)

const (
	// Seeds of the seeded SeaHash used by the vectorizer token path.
	vectorizerSeedA = 1
	vectorizerSeedB = 1000
	vectorizerSeedC = 200
	vectorizerSeedD = 89

	// vectorizerBuckets is the modulus applied to vectorizer token hashes,
	// matching a 2^20-feature hashing vectorizer.
	vectorizerBuckets = 1 << 20

	// vectorizerTokenSize is the encoded byte width of a vectorizer token index.
	vectorizerTokenSize = 4
)

// ErrUnknownTokenization is returned when parsing an unrecognized tokenizer name.
var ErrUnknownTokenization = errors.New("minhash: unknown tokenization")

// Tokenization selects how document text is turned into the token stream
// fed to the hasher.
type Tokenization int

const (
	// TokenizationWhitespace lowercases the text and splits on whitespace runs.
	TokenizationWhitespace Tokenization = iota

	// TokenizationVectorizer lowercases, splits on whitespace and replaces
	// each token by its seeded SeaHash reduced modulo 2^20. This reproduces
	// a hashing-vectorizer fingerprint bit for bit.
	TokenizationVectorizer

	// TokenizationChar takes non-overlapping character windows from the raw
	// text, without lowercasing.
	TokenizationChar
)

// String returns the CLI name of the tokenization.
func (t Tokenization) String() string {
	switch t {
	case TokenizationWhitespace:
		return "whitespace"
	case TokenizationVectorizer:
		return "vectorizer"
	case TokenizationChar:
		return "char"
	}

	return "unknown"
}

// ParseTokenization resolves a CLI name to a Tokenization.
func ParseTokenization(name string) (Tokenization, error) {
	switch name {
	case "whitespace":
		return TokenizationWhitespace, nil
	case "vectorizer":
		return TokenizationVectorizer, nil
	case "char":
		return TokenizationChar, nil
	}

	return 0, ErrUnknownTokenization
}

// tokenize feeds every token of text to emit, according to the hasher's
// tokenization mode.
func (h *Hasher) tokenize(text string, emit func(token []byte)) {
	switch h.tokenization {
	case TokenizationWhitespace:
		for _, token := range strings.Fields(strings.ToLower(text)) {
			emit([]byte(token))
		}
	case TokenizationVectorizer:
		var buf [vectorizerTokenSize]byte

		for _, token := range strings.Fields(strings.ToLower(text)) {
			hash := seahash.HashSeeded([]byte(token),
				vectorizerSeedA, vectorizerSeedB, vectorizerSeedC, vectorizerSeedD)
			binary.LittleEndian.PutUint32(buf[:], uint32(hash%vectorizerBuckets))
			emit(buf[:])
		}
	case TokenizationChar:
		shingle(text, h.windowSize, emit)
	}
}

// shingle emits non-overlapping rune windows of length size from text.
// A trailing window shorter than size is dropped; text shorter than one
// window produces no tokens.
func shingle(text string, size int, emit func(token []byte)) {
	if size <= 0 {
		return
	}

	runes := []rune(text)
	for i := 0; i+size <= len(runes); i += size {
		emit([]byte(string(runes[i : i+size])))
	}
}

// Package shortcode generates random short codes for links.
package shortcode

import (
	"errors"
	"fmt"
	"unicode/utf8"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	// DefaultAlphabet is the base62 alphabet.
	DefaultAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
	// DefaultLength gives 62^7 (about 3.5e12) possible codes.
	DefaultLength = 7
)

var (
	ErrInvalidLength   = errors.New("code length must be positive")
	ErrInvalidAlphabet = errors.New("alphabet must contain between 2 and 255 distinct symbols")
)

// Generator produces codes of a fixed length drawn from a fixed alphabet.
// Randomness comes from crypto/rand, so a Generator is safe for concurrent use.
type Generator struct {
	alphabet string
	length   int
}

// New creates a Generator. An empty alphabet means DefaultAlphabet.
func New(alphabet string, length int) (*Generator, error) {
	const op = "shortcode.New"

	if alphabet == "" {
		alphabet = DefaultAlphabet
	}

	if length < 1 {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidLength)
	}

	if err := checkAlphabet(alphabet); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Generator{
		alphabet: alphabet,
		length:   length,
	}, nil
}

// Generate returns a new random code.
func (g *Generator) Generate() (string, error) {
	const op = "shortcode.Generator.Generate"

	code, err := gonanoid.Generate(g.alphabet, g.length)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return code, nil
}

// Length returns the length of generated codes.
func (g *Generator) Length() int {
	return g.length
}

// Alphabet returns the symbols codes are drawn from.
func (g *Generator) Alphabet() string {
	return g.alphabet
}

func checkAlphabet(alphabet string) error {
	n := utf8.RuneCountInString(alphabet)
	if n < 2 || n > 255 {
		return ErrInvalidAlphabet
	}

	seen := make(map[rune]struct{}, n)
	for _, r := range alphabet {
		if _, ok := seen[r]; ok {
			return ErrInvalidAlphabet
		}
		seen[r] = struct{}{}
	}

	return nil
}

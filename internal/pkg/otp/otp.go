package otp

import (
	"crypto/rand"
	"errors"
	"io"
	"math/big"
	"strconv"
)

// ErrInvalidDigits indicates an unsupported code length.
var ErrInvalidDigits = errors.New("otp: digits must be between 4 and 10")

// Generator produces one-time passcodes.
type Generator interface {
	// Generate returns a fresh numeric code.
	Generate() (string, error)
}

// Numeric generates codes uniformly in [10^(digits-1), 10^digits - 1], so a
// code never starts with zero and always has exactly digits characters.
type Numeric struct {
	min    *big.Int
	span   *big.Int
	random io.Reader
}

// NewNumeric constructs a Numeric generator for the given code length.
func NewNumeric(digits int) (*Numeric, error) {
	return newNumeric(digits, rand.Reader)
}

func newNumeric(digits int, random io.Reader) (*Numeric, error) {
	if digits < 4 || digits > 10 {
		return nil, ErrInvalidDigits
	}

	lo := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits-1)), nil)
	hi := new(big.Int).Mul(lo, big.NewInt(10))

	return &Numeric{
		min:    lo,
		span:   new(big.Int).Sub(hi, lo),
		random: random,
	}, nil
}

// Generate returns a random code.
func (n *Numeric) Generate() (string, error) {
	v, err := rand.Int(n.random, n.span)
	if err != nil {
		return "", err
	}

	return strconv.FormatInt(v.Add(v, n.min).Int64(), 10), nil
}

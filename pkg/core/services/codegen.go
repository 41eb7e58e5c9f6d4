package services

import (
	"crypto/rand"
	"errors"
	"math/big"
)

const (
	DefaultCodeLength = 6
	charset           = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// RandomCodeGenerator draws fixed-length codes from an alphanumeric alphabet
type RandomCodeGenerator struct {
	length int
}

func NewRandomCodeGenerator(length int) (*RandomCodeGenerator, error) {
	if length < 4 || length > 16 {
		return nil, errors.New("code length must be between 4 and 16")
	}
	return &RandomCodeGenerator{length: length}, nil
}

func (g *RandomCodeGenerator) Generate() (string, error) {
	b := make([]byte, g.length)
	max := big.NewInt(int64(len(charset)))
	for i := range b {
		num, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = charset[num.Int64()]
	}
	return string(b), nil
}

package escalation

import (
	"crypto/rand"
	"math/big"
	"strconv"
)

const (
	codeMin = 100000
	codeMax = 999999
)

// CodeGenerator returns a validation code.
type CodeGenerator func() (string, error)

var codeSpan = big.NewInt(codeMax - codeMin + 1)

// GenerateCode returns a 6-digit code drawn uniformly from 100000–999999 using crypto/rand.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpan)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(n.Int64()+codeMin, 10), nil
}

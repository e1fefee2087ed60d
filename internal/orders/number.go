package orders

import (
	"fmt"
	"math/rand/v2"
	"regexp"
)

const (
	// NumberPrefix starts every human-readable order number.
	NumberPrefix = "FF-"

	numberMin = 100000
	numberMax = 999999
)

var numberPattern = regexp.MustCompile(`^FF-\d{6}$`)

// RandomNumberGenerator draws order numbers uniformly from FF-100000..FF-999999.
type RandomNumberGenerator struct{}

func (RandomNumberGenerator) Next() string {
	return FormatNumber(numberMin + rand.IntN(numberMax-numberMin+1))
}

// FormatNumber renders n with the order number prefix.
func FormatNumber(n int) string {
	return fmt.Sprintf("%s%06d", NumberPrefix, n)
}

// ValidNumber reports whether s has the FF-###### shape.
func ValidNumber(s string) bool {
	return numberPattern.MatchString(s)
}

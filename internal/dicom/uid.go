package dicom

import (
	"math/big"

	"github.com/google/uuid"
)

// NewUID generates a unique identifier in the 2.25 UUID-derived root:
// the UUID's 128 bits rendered as a decimal integer.
func NewUID() string {
	id := uuid.New()
	value := new(big.Int).SetBytes(id[:])
	return "2.25." + value.String()
}

package ids

import (
	"crypto/rand"
	"encoding/hex"
)

const externalIDLength = 26

// NewExternalID returns a 26-char lowercase hex identifier. External ids are
// the only identifiers ever exposed outside the connector.
func NewExternalID() string {
	buf := make([]byte, externalIDLength/2+1)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms
		panic(err)
	}
	return hex.EncodeToString(buf)[:externalIDLength]
}

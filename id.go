package undertow

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

func newID(prefix string) string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("error generating id: %v", err))
	}
	return fmt.Sprintf("%s_%s", prefix, hex.EncodeToString(buf))
}

// NewWorkflowID creates a new workflow id
func NewWorkflowID() string {
	return newID("wf")
}

// NewSessionID creates a new session id
func NewSessionID() string {
	return newID("sess")
}

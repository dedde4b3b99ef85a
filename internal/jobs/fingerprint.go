package jobs

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/harishm17/study-buddy-sub001/internal/models"
)

const fieldSep = "\x1f"

// Fingerprint identifies a submission: the same user asking for the same job type with
// the same input gets the same key. A client supplied Idempotency-Key is mixed in, so
// two different client keys never collapse into one job.
func Fingerprint(userID string, jobType models.JobType, input any, clientKey string) (string, error) {
	canonical, err := canonicalJSON(input)
	if err != nil {
		return "", err
	}

	h := sha256.New()
	h.Write([]byte(userID))
	h.Write([]byte(fieldSep))
	h.Write([]byte(jobType))
	h.Write([]byte(fieldSep))
	h.Write(canonical)
	if clientKey != "" {
		h.Write([]byte(fieldSep))
		h.Write([]byte(clientKey))
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// canonicalJSON re-encodes v through generic maps, which encoding/json writes with
// sorted keys and no insignificant whitespace.
func canonicalJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode job input: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("decode job input: %w", err)
	}
	return json.Marshal(generic)
}

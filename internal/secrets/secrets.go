// File: internal/secrets/secrets.go
// Description: Client surface for the external secret store. Secrets are
// versioned string payloads; the orchestrator only ever reads and patches
// them, never deletes.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Well-known payload keys.
const (
	KeyPassword      = "password"
	KeyPasswordSet   = "password_set"
	KeyPasswordSetAt = "password_set_at"
)

var (
	// ErrNotFound indicates the secret does not exist in the store.
	ErrNotFound = errors.New("secret not found")
	// ErrAccessDenied indicates the caller lacks permission on the secret.
	ErrAccessDenied = errors.New("access to secret denied")
	// ErrMalformedPayload indicates the secret string is not a JSON object
	// of scalar values.
	ErrMalformedPayload = errors.New("malformed secret payload")
)

// Payload is the structured value stored under a secret identifier.
type Payload map[string]string

// Password returns the generated password carried by the payload, or "".
func (p Payload) Password() string { return p[KeyPassword] }

// Merge returns a copy of p with updates applied on top.
func (p Payload) Merge(updates Payload) Payload {
	merged := make(Payload, len(p)+len(updates))
	for k, v := range p {
		merged[k] = v
	}
	for k, v := range updates {
		merged[k] = v
	}
	return merged
}

// Store is the narrow secret-store capability the pipeline consumes.
// Updates are monotonic status flags written once per run, so Patch uses
// read-modify-write without optimistic locking.
type Store interface {
	// Get fetches and decodes the JSON object payload of a secret.
	Get(ctx context.Context, secretID string) (Payload, error)
	// GetString fetches the raw secret string without interpreting it.
	// Used for secrets that hold a bare value, like the mailbox password.
	GetString(ctx context.Context, secretID string) (string, error)
	// Patch merges updates into the existing payload.
	Patch(ctx context.Context, secretID string, updates Payload) error
}

// DecodePayload parses a secret string into a Payload. The payload must be a
// JSON object; scalar values are coerced to strings (upstream writers store
// password_set as a real boolean).
func DecodePayload(raw string) (Payload, error) {
	var generic map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &generic); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	payload := make(Payload, len(generic))
	for k, v := range generic {
		switch val := v.(type) {
		case string:
			payload[k] = val
		case bool:
			payload[k] = strconv.FormatBool(val)
		case float64:
			payload[k] = strconv.FormatFloat(val, 'f', -1, 64)
		case nil:
			payload[k] = ""
		default:
			return nil, fmt.Errorf("%w: key %q holds a non-scalar value", ErrMalformedPayload, k)
		}
	}
	return payload, nil
}

// EncodePayload serializes a Payload back to a secret string.
func EncodePayload(p Payload) (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("failed to encode secret payload: %w", err)
	}
	return string(data), nil
}

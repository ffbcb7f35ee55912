package secrets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePayload(t *testing.T) {
	t.Run("decodes string values", func(t *testing.T) {
		payload, err := DecodePayload(`{"password":"Xk9!aB2z","owner":"platform"}`)
		require.NoError(t, err)
		assert.Equal(t, "Xk9!aB2z", payload.Password())
		assert.Equal(t, "platform", payload["owner"])
	})

	t.Run("coerces scalar values to strings", func(t *testing.T) {
		payload, err := DecodePayload(`{"password":"pw","password_set":true,"attempts":3}`)
		require.NoError(t, err)
		assert.Equal(t, "true", payload[KeyPasswordSet])
		assert.Equal(t, "3", payload["attempts"])
	})

	t.Run("rejects non-JSON strings", func(t *testing.T) {
		_, err := DecodePayload("just-a-bare-password")
		assert.ErrorIs(t, err, ErrMalformedPayload)
	})

	t.Run("rejects JSON arrays", func(t *testing.T) {
		_, err := DecodePayload(`["password"]`)
		assert.ErrorIs(t, err, ErrMalformedPayload)
	})

	t.Run("rejects nested objects", func(t *testing.T) {
		_, err := DecodePayload(`{"password":{"value":"pw"}}`)
		assert.ErrorIs(t, err, ErrMalformedPayload)
	})
}

func TestPayloadMerge(t *testing.T) {
	base := Payload{KeyPassword: "pw", "owner": "platform"}
	merged := base.Merge(Payload{KeyPasswordSet: "true", "owner": "sre"})

	assert.Equal(t, "pw", merged.Password())
	assert.Equal(t, "true", merged[KeyPasswordSet])
	assert.Equal(t, "sre", merged["owner"])
	// The receiver is untouched.
	assert.Equal(t, "platform", base["owner"])
	assert.NotContains(t, base, KeyPasswordSet)
}

func TestEncodePayloadRoundTrip(t *testing.T) {
	in := Payload{KeyPassword: "pw", KeyPasswordSet: "true"}
	raw, err := EncodePayload(in)
	require.NoError(t, err)

	out, err := DecodePayload(raw)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

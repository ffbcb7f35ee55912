package secrets

import (
	"context"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeSecretsManagerAPI is a mutex-guarded in-memory Secrets Manager.
type fakeSecretsManagerAPI struct {
	mu       sync.Mutex
	values   map[string]string
	getCalls int
	getErr   error
	updated  map[string]string
}

func newFakeAPI(values map[string]string) *fakeSecretsManagerAPI {
	return &fakeSecretsManagerAPI{values: values, updated: make(map[string]string)}
}

func (f *fakeSecretsManagerAPI) GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	if f.getErr != nil {
		return nil, f.getErr
	}
	value, ok := f.values[aws.ToString(params.SecretId)]
	if !ok {
		return nil, &types.ResourceNotFoundException{}
	}
	return &secretsmanager.GetSecretValueOutput{SecretString: aws.String(value)}, nil
}

func (f *fakeSecretsManagerAPI) UpdateSecret(ctx context.Context, params *secretsmanager.UpdateSecretInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.UpdateSecretOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := aws.ToString(params.SecretId)
	if _, ok := f.values[id]; !ok {
		return nil, &types.ResourceNotFoundException{}
	}
	f.values[id] = aws.ToString(params.SecretString)
	f.updated[id] = aws.ToString(params.SecretString)
	return &secretsmanager.UpdateSecretOutput{}, nil
}

func TestManager_Get(t *testing.T) {
	api := newFakeAPI(map[string]string{
		"s1":          `{"password":"Xk9!aB2z"}`,
		"mailbox-pw":  "raw-imap-password",
		"broken-json": "not json at all",
	})
	m := NewManagerWithClient(api, zap.NewNop())
	ctx := context.Background()

	t.Run("returns decoded payload", func(t *testing.T) {
		payload, err := m.Get(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, "Xk9!aB2z", payload.Password())
	})

	t.Run("missing secret maps to ErrNotFound", func(t *testing.T) {
		_, err := m.Get(ctx, "ghost")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("raw strings are malformed as payloads", func(t *testing.T) {
		_, err := m.Get(ctx, "broken-json")
		assert.ErrorIs(t, err, ErrMalformedPayload)
	})

	t.Run("GetString returns raw secret", func(t *testing.T) {
		raw, err := m.GetString(ctx, "mailbox-pw")
		require.NoError(t, err)
		assert.Equal(t, "raw-imap-password", raw)
	})
}

func TestManager_Patch(t *testing.T) {
	api := newFakeAPI(map[string]string{"s1": `{"password":"pw"}`})
	m := NewManagerWithClient(api, zap.NewNop())

	err := m.Patch(context.Background(), "s1", Payload{
		KeyPasswordSet:   "true",
		KeyPasswordSetAt: "2026-08-26T10:00:00Z",
	})
	require.NoError(t, err)

	stored, err := DecodePayload(api.updated["s1"])
	require.NoError(t, err)
	assert.Equal(t, "pw", stored.Password())
	assert.Equal(t, "true", stored[KeyPasswordSet])
	assert.Equal(t, "2026-08-26T10:00:00Z", stored[KeyPasswordSetAt])
}

func TestCached(t *testing.T) {
	ctx := context.Background()

	t.Run("payload read once per run", func(t *testing.T) {
		api := newFakeAPI(map[string]string{"s1": `{"password":"pw"}`})
		cached := NewCached(NewManagerWithClient(api, zap.NewNop()))

		first, err := cached.Get(ctx, "s1")
		require.NoError(t, err)

		// Rotate the backing secret mid-run; the cached view must not move.
		api.mu.Lock()
		api.values["s1"] = `{"password":"rotated"}`
		api.mu.Unlock()

		second, err := cached.Get(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, first.Password(), second.Password())
		assert.Equal(t, 1, api.getCalls)
	})

	t.Run("raw string read once per run", func(t *testing.T) {
		api := newFakeAPI(map[string]string{"mailbox-pw": "imap-secret"})
		cached := NewCached(NewManagerWithClient(api, zap.NewNop()))

		for i := 0; i < 3; i++ {
			raw, err := cached.GetString(ctx, "mailbox-pw")
			require.NoError(t, err)
			assert.Equal(t, "imap-secret", raw)
		}
		assert.Equal(t, 1, api.getCalls)
	})

	t.Run("patch refreshes cached payload", func(t *testing.T) {
		api := newFakeAPI(map[string]string{"s1": `{"password":"pw"}`})
		cached := NewCached(NewManagerWithClient(api, zap.NewNop()))

		_, err := cached.Get(ctx, "s1")
		require.NoError(t, err)

		require.NoError(t, cached.Patch(ctx, "s1", Payload{KeyPasswordSet: "true"}))

		payload, err := cached.Get(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, "true", payload[KeyPasswordSet])
	})
}

package secrets

import (
	"context"
	"errors"
	"testing"

	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"github.com/stretchr/testify/require"
)

type stubClient struct {
	names  []string
	values map[string]string
}

func (s *stubClient) AccessSecretVersion(_ context.Context, req *secretmanagerpb.AccessSecretVersionRequest, _ ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	s.names = append(s.names, req.GetName())
	v, ok := s.values[req.GetName()]
	if !ok {
		return nil, errors.New("not found")
	}
	return &secretmanagerpb.AccessSecretVersionResponse{Payload: &secretmanagerpb.SecretPayload{Data: []byte(v)}}, nil
}

func (s *stubClient) Close() error { return nil }

func TestResolveSecretCachesValues(t *testing.T) {
	client := &stubClient{values: map[string]string{
		"projects/demo/secrets/session-key/versions/latest": "s3cret",
		"projects/other/secrets/redis/versions/3":           "pw",
	}}
	f, err := NewFetcher(context.Background(), "demo", WithClient(client))
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		v, err := f.ResolveSecret(context.Background(), "secret://session-key")
		require.NoError(t, err)
		require.Equal(t, "s3cret", v)
	}
	require.Len(t, client.names, 1)

	v, err := f.ResolveSecret(context.Background(), "secret://redis?version=3&project=other")
	require.NoError(t, err)
	require.Equal(t, "pw", v)
	require.NoError(t, f.Close())
}

func TestResolveSecretErrors(t *testing.T) {
	f, err := NewFetcher(context.Background(), "", WithClient(&stubClient{}))
	require.NoError(t, err)

	_, err = f.ResolveSecret(context.Background(), "secret://x")
	require.ErrorIs(t, err, ErrProjectMissing)

	_, err = f.ResolveSecret(context.Background(), "https://x")
	require.Error(t, err)

	_, err = f.ResolveSecret(context.Background(), "secret://missing?project=p")
	require.Error(t, err)
}

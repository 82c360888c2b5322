package tls

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/converge/internal/provider"
)

func TestSSHKey_ED25519(t *testing.T) {
	t.Parallel()
	res := New().Resources()["tls_ssh_key"]

	created, err := res.Create(context.Background(), &provider.CreateRequest{
		Address:    "tls_ssh_key.admin",
		Properties: res.Schema.ApplyDefaults(map[string]any{}),
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(created.ID, "SHA256:"))
	assert.Equal(t, created.ID, created.Attributes["fingerprint_sha256"])
	assert.True(t, strings.HasPrefix(created.Attributes["public_key_openssh"].(string), "ssh-ed25519 "))
	assert.Contains(t, created.Attributes["private_key_pem"], "PRIVATE KEY")
	assert.True(t, res.Schema.Sensitive("private_key_pem"))

	read, err := res.Read(context.Background(), &provider.ReadRequest{ID: created.ID, Attributes: created.Attributes})
	require.NoError(t, err)
	assert.Equal(t, created.Attributes, read.Attributes)

	require.NoError(t, res.Delete(context.Background(), &provider.DeleteRequest{ID: created.ID}))
}

func TestSSHKey_RSA(t *testing.T) {
	t.Parallel()
	res := New().Resources()["tls_ssh_key"]
	created, err := res.Create(context.Background(), &provider.CreateRequest{
		Properties: map[string]any{"algorithm": "rsa", "rsa_bits": 2048.0},
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(created.Attributes["public_key_openssh"].(string), "ssh-rsa "))
	assert.Equal(t, 2048.0, created.Attributes["rsa_bits"])
}

func TestSSHKey_ReadWithoutState(t *testing.T) {
	t.Parallel()
	_, err := New().Resources()["tls_ssh_key"].Read(context.Background(), &provider.ReadRequest{ID: "x"})
	assert.ErrorIs(t, err, provider.ErrNotFound)
}

func TestValidateKey(t *testing.T) {
	t.Parallel()
	assert.NoError(t, validateKey(map[string]any{"algorithm": "ed25519"}))
	assert.NoError(t, validateKey(map[string]any{"algorithm": "rsa", "rsa_bits": 4096.0}))
	assert.NoError(t, validateKey(map[string]any{"algorithm": "${var.algo}"}))
	assert.NoError(t, validateKey(map[string]any{}))
	assert.ErrorContains(t, validateKey(map[string]any{"algorithm": "dsa"}), "algorithm must be")
	assert.ErrorContains(t, validateKey(map[string]any{"algorithm": "rsa", "rsa_bits": 1024.0}), "at least 2048")
}

package keygen

import (
	"crypto"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"

	"golang.org/x/crypto/ssh"
)

// Supported algorithms.
const (
	AlgorithmED25519 = "ed25519"
	AlgorithmRSA     = "rsa"
)

// MinRSABits is the smallest RSA key size accepted.
const MinRSABits = 2048

// KeyPair holds a key pair in ready-to-use formats.
type KeyPair struct {
	// PrivateKey is the private key in PEM format.
	PrivateKey []byte
	// PublicKey is the public key in OpenSSH authorized_keys format.
	PublicKey []byte
	// Fingerprint is the SHA256 fingerprint of the public key.
	Fingerprint string
}

// Generate creates a key pair for the given algorithm. bits is only used for RSA.
func Generate(algorithm string, bits int) (*KeyPair, error) {
	switch algorithm {
	case AlgorithmED25519, "":
		return GenerateED25519KeyPair()
	case AlgorithmRSA:
		return GenerateRSAKeyPair(bits)
	default:
		return nil, fmt.Errorf("unsupported key algorithm %q", algorithm)
	}
}

// GenerateED25519KeyPair generates a new ed25519 key pair. The private key is
// encoded in the OpenSSH PEM format.
func GenerateED25519KeyPair() (*KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ed25519 key: %w", err)
	}

	block, err := ssh.MarshalPrivateKey(priv, "")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ed25519 private key: %w", err)
	}

	return newKeyPair(pub, pem.EncodeToMemory(block))
}

// GenerateRSAKeyPair generates a new RSA key pair with the specified bit size.
// Common bit sizes are 2048 (minimum accepted) and 4096 (high security).
func GenerateRSAKeyPair(bits int) (*KeyPair, error) {
	if bits < MinRSABits {
		return nil, fmt.Errorf("rsa key size %d is below the minimum of %d", bits, MinRSABits)
	}

	privateKey, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate RSA private key: %w", err)
	}

	if err := privateKey.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate RSA private key: %w", err)
	}

	privBlock := pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(privateKey),
	}

	return newKeyPair(&privateKey.PublicKey, pem.EncodeToMemory(&privBlock))
}

func newKeyPair(pub crypto.PublicKey, privPEM []byte) (*KeyPair, error) {
	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("failed to create SSH public key: %w", err)
	}

	return &KeyPair{
		PrivateKey:  privPEM,
		PublicKey:   ssh.MarshalAuthorizedKey(sshPub),
		Fingerprint: ssh.FingerprintSHA256(sshPub),
	}, nil
}

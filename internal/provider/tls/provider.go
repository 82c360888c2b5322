// Package tls implements the tls provider, which generates key material
// locally and keeps it only in state.
package tls

import (
	"context"
	"fmt"
	"strings"

	"github.com/imamik/converge/internal/expr"
	"github.com/imamik/converge/internal/provider"
	"github.com/imamik/converge/internal/util/keygen"
)

// Name is the provider name and resource type prefix.
const Name = "tls"

const defaultRSABits = 4096

// Provider generates SSH keys.
type Provider struct{}

// New returns a provider.
func New() *Provider { return &Provider{} }

// Factory returns a provider.Factory.
func Factory() provider.Factory {
	return func() provider.Provider { return New() }
}

// Name implements provider.Provider.
func (p *Provider) Name() string { return Name }

// Configure implements provider.Provider. The provider takes no settings.
func (p *Provider) Configure(context.Context, map[string]any) error { return nil }

// Resources implements provider.Provider.
func (p *Provider) Resources() map[string]*provider.Resource {
	return map[string]*provider.Resource{
		"tls_ssh_key": {
			Schema: &provider.Schema{Attributes: map[string]*provider.Attribute{
				"algorithm":          {Type: provider.TypeString, Optional: true, ForceNew: true, Default: keygen.AlgorithmED25519},
				"rsa_bits":           {Type: provider.TypeNumber, Optional: true, ForceNew: true, Default: float64(defaultRSABits)},
				"private_key_pem":    {Type: provider.TypeString, Computed: true, Sensitive: true},
				"public_key_openssh": {Type: provider.TypeString, Computed: true},
				"fingerprint_sha256": {Type: provider.TypeString, Computed: true},
				"id":                 {Type: provider.TypeString, Computed: true},
			}},
			Create:         createKey,
			Read:           readKey,
			Delete:         deleteKey,
			ValidateConfig: validateKey,
		},
	}
}

func validateKey(props map[string]any) error {
	algorithm, ok := props["algorithm"].(string)
	if !ok {
		return nil
	}
	switch algorithm {
	case keygen.AlgorithmED25519:
		return nil
	case keygen.AlgorithmRSA:
		if bits, ok := props["rsa_bits"].(float64); ok && bits < keygen.MinRSABits {
			return fmt.Errorf("rsa_bits must be at least %d, got %v", keygen.MinRSABits, bits)
		}
		return nil
	default:
		if tmpl, err := expr.ParseTemplate(algorithm); err == nil && !tmpl.IsLiteral() {
			return nil
		}
		return fmt.Errorf("algorithm must be %q or %q, got %q", keygen.AlgorithmED25519, keygen.AlgorithmRSA, algorithm)
	}
}

func createKey(_ context.Context, req *provider.CreateRequest) (*provider.Result, error) {
	if err := validateKey(req.Properties); err != nil {
		return nil, err
	}
	algorithm, _ := req.Properties["algorithm"].(string)
	bits := defaultRSABits
	if f, ok := req.Properties["rsa_bits"].(float64); ok {
		bits = int(f)
	}
	kp, err := keygen.Generate(algorithm, bits)
	if err != nil {
		return nil, err
	}
	if algorithm == "" {
		algorithm = keygen.AlgorithmED25519
	}
	return &provider.Result{ID: kp.Fingerprint, Attributes: map[string]any{
		"id":                 kp.Fingerprint,
		"algorithm":          algorithm,
		"rsa_bits":           float64(bits),
		"private_key_pem":    string(kp.PrivateKey),
		"public_key_openssh": strings.TrimSpace(string(kp.PublicKey)),
		"fingerprint_sha256": kp.Fingerprint,
	}}, nil
}

// readKey returns what state holds. The key exists nowhere else.
func readKey(_ context.Context, req *provider.ReadRequest) (*provider.Result, error) {
	if req.Attributes == nil {
		return nil, provider.ErrNotFound
	}
	return &provider.Result{ID: req.ID, Attributes: req.Attributes}, nil
}

func deleteKey(context.Context, *provider.DeleteRequest) error { return nil }

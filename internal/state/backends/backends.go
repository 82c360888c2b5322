// Package backends builds a state.Backend from a stack's backend block.
package backends

import (
	"context"
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/imamik/converge/internal/config"
	"github.com/imamik/converge/internal/state"
	etcdbackend "github.com/imamik/converge/internal/state/etcd"
	"github.com/imamik/converge/internal/state/local"
	s3backend "github.com/imamik/converge/internal/state/s3"
)

// New returns the backend declared by b (local when b is nil). Relative
// local paths resolve against dir.
func New(ctx context.Context, b *config.Backend, dir string) (state.Backend, error) {
	typ := config.DefaultBackend
	var raw map[string]any
	if b != nil {
		if b.Type != "" {
			typ = b.Type
		}
		raw = b.Config
	}

	switch typ {
	case "local":
		var cfg local.Config
		if err := decode(raw, &cfg); err != nil {
			return nil, fmt.Errorf("local backend: %w", err)
		}
		return local.New(cfg, dir), nil
	case "s3":
		var cfg s3backend.Config
		if err := decode(raw, &cfg); err != nil {
			return nil, fmt.Errorf("s3 backend: %w", err)
		}
		return s3backend.New(ctx, cfg)
	case "etcd":
		var cfg etcdbackend.Config
		if err := decode(raw, &cfg); err != nil {
			return nil, fmt.Errorf("etcd backend: %w", err)
		}
		return etcdbackend.New(cfg)
	default:
		return nil, fmt.Errorf("unknown backend type %q", typ)
	}
}

// decode maps a backend config block onto a typed struct, rejecting keys the
// backend does not know.
func decode(raw map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(raw)
}

package metadata

import (
	"bytes"
	_ "embed"
	"fmt"
	"sync"

	"github.com/wolfentensor/bittensor-substrate-interface/pkg/scale"
)

//go:embed bootstrap.yaml
var bootstrapYAML []byte

// Magic is the prefix of every encoded RuntimeMetadataPrefixed ("meta").
var Magic = [4]byte{'m', 'e', 't', 'a'}

// Root types of the supported metadata versions inside the bootstrap
// registry.
const (
	RootV14 scale.TypeID = "RuntimeMetadataV14"
	RootV15 scale.TypeID = "RuntimeMetadataV15"
)

var bootstrap = sync.OnceValues(func() (*scale.Registry, error) {
	p, err := scale.ParsePreset(bytes.NewReader(bootstrapYAML))
	if err != nil {
		return nil, err
	}
	b := scale.NewBuilder()
	if err := p.Apply(b); err != nil {
		return nil, fmt.Errorf("bootstrap registry: %w", err)
	}
	return b.Publish(), nil
})

// Bootstrap returns the registry describing the metadata format itself.
func Bootstrap() (*scale.Registry, error) {
	return bootstrap()
}

// rootType picks the bootstrap type for a metadata version.
func rootType(version uint8) (scale.TypeID, error) {
	switch version {
	case 14:
		return RootV14, nil
	case 15:
		return RootV15, nil
	}
	return "", fmt.Errorf("%w: unsupported metadata version %d", ErrMetadataDecode, version)
}

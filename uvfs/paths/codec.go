package paths

import (
	"encoding/json"
	"fmt"
)

// WireVersion is the current version of the serialized path schema.
const WireVersion = 1

// wirePath is the transport schema of a Path.
type wirePath struct {
	Version           int            `json:"version"`
	FileName          string         `json:"fileName"`
	URI               string         `json:"uri"`
	Attributes        map[string]any `json:"attributes,omitempty"`
	HasVersionSupport bool           `json:"hasVersionSupport"`
}

// Encode serializes p using the current wire schema.
func Encode(p *Path) ([]byte, error) {
	if p == nil {
		return nil, invalidArgument("path", "must not be nil")
	}
	return json.Marshal(wirePath{
		Version:           WireVersion,
		FileName:          p.fileName,
		URI:               p.uri,
		Attributes:        p.attributes,
		HasVersionSupport: p.hasVersionSupport,
	})
}

// Decode parses and validates a serialized path.
func Decode(data []byte) (*Path, error) {
	var w wirePath
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("failed to decode path: %w", err)
	}
	if w.Version != WireVersion {
		return nil, invalidArgument("version", fmt.Sprintf("unsupported path schema version %d", w.Version))
	}
	if _, ok := w.Attributes[VersionAttribute]; ok {
		return nil, invalidArgument("attributes."+VersionAttribute, "reserved key must not be serialized as an attribute")
	}
	if err := checkNotEmpty(w.FileName, w.URI); err != nil {
		return nil, err
	}

	p := &Path{
		fileName:          w.FileName,
		uri:               w.URI,
		attributes:        map[string]any{},
		hasVersionSupport: w.HasVersionSupport,
	}
	if len(w.Attributes) > 0 {
		p.attributes = w.Attributes
	}
	return p, nil
}

func (p *Path) MarshalJSON() ([]byte, error) {
	return Encode(p)
}

// UnmarshalJSON decodes into p. It exists for transport decoding only; a Path
// is not modified after it has been handed out.
func (p *Path) UnmarshalJSON(data []byte) error {
	decoded, err := Decode(data)
	if err != nil {
		return err
	}
	*p = *decoded
	return nil
}

package builder

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
)

// DecodeYAML decodes one record spec. Unknown fields are rejected.
func DecodeYAML(data []byte) (RecordSpec, error) {
	var spec RecordSpec
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&spec); err != nil {
		return RecordSpec{}, fmt.Errorf("decode record yaml: %w", err)
	}
	return spec, nil
}

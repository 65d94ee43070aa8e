package options

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// FromYAML parses an options document, a flat YAML mapping, keeping the
// document's key order.
func FromYAML(data []byte) (Options, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Options{}, fmt.Errorf("parse options: %w", err)
	}

	result := New()
	if len(doc.Content) == 0 {
		return result, nil
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return Options{}, fmt.Errorf("parse options: expected a mapping at line %d", root.Line)
	}

	for i := 0; i+1 < len(root.Content); i += 2 {
		keyNode, valueNode := root.Content[i], root.Content[i+1]

		var raw any
		if err := valueNode.Decode(&raw); err != nil {
			return Options{}, fmt.Errorf("decode option %s: %w", keyNode.Value, err)
		}

		v, err := normalize(keyNode.Value, raw)
		if err != nil {
			return Options{}, err
		}
		result.set(keyNode.Value, v)
	}
	return result, nil
}

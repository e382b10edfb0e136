package exposure

import (
	"bytes"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// yamlIndent is the indentation of the output file.
const yamlIndent = 2

// MarshalYAML renders the export as an insertion-ordered block mapping of
// entity ID to {name, aliases, expose, room?}.
func (e *Export) MarshalYAML() (interface{}, error) {
	root := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}

	for _, entry := range e.Entries {
		root.Content = append(root.Content, strNode(entry.EntityID), entityNode(entry.Entity))
	}
	return root, nil
}

func entityNode(ent ExportedEntity) *yaml.Node {
	aliases := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
	for _, a := range ent.Aliases {
		aliases.Content = append(aliases.Content, strNode(a))
	}
	if len(aliases.Content) == 0 {
		// An empty block sequence cannot be written; [] is the only form.
		aliases.Style = yaml.FlowStyle
	}

	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	node.Content = append(node.Content,
		strNode("name"), strNode(ent.Name),
		strNode("aliases"), aliases,
		strNode("expose"), &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: fmt.Sprint(ent.Expose)},
	)
	if ent.Room != "" {
		node.Content = append(node.Content, strNode("room"), strNode(ent.Room))
	}
	return node
}

func strNode(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
}

// Encode writes the export as YAML to w.
func (e *Export) Encode(w io.Writer) error {
	node, err := e.MarshalYAML()
	if err != nil {
		return err
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(yamlIndent)
	if err := enc.Encode(node); err != nil {
		return fmt.Errorf("encoding export: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encoding export: %w", err)
	}
	return nil
}

// YAML returns the encoded export.
func (e *Export) YAML() ([]byte, error) {
	var buf bytes.Buffer
	if err := e.Encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

package platform

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Keys of the assistant section in configuration.yaml.
const (
	keyExposeByDefault = "expose_by_default"
	keyExposedDomains  = "exposed_domains"
	tagInclude         = "!include"
)

// LoadAssistantConfig reads the assistant's global exposure rules from the
// platform's configuration.yaml.
//
// The file is walked as a YAML node tree, so platform-specific tags such as
// !secret elsewhere in the file are left alone. A section written as
// "!include file.yaml" is read relative to the configuration directory.
// Keys absent from the section default to expose_by_default=false and no
// exposed domains.
//
// Returns ErrAssistantConfigMissing when the file has no such section.
func LoadAssistantConfig(path, section string) (GlobalExposureConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return GlobalExposureConfig{}, fmt.Errorf("reading %s: %w", path, err)
	}

	node, err := findSection(data, section)
	if err != nil {
		return GlobalExposureConfig{}, err
	}

	if node.Tag == tagInclude {
		included, err := os.ReadFile(filepath.Join(filepath.Dir(path), node.Value))
		if err != nil {
			return GlobalExposureConfig{}, fmt.Errorf("reading included %s: %w", node.Value, err)
		}
		var doc yaml.Node
		if err := yaml.Unmarshal(included, &doc); err != nil {
			return GlobalExposureConfig{}, fmt.Errorf("parsing included %s: %w", node.Value, err)
		}
		node = documentRoot(&doc)
	}

	return parseSection(node)
}

// ParseAssistantConfig extracts the assistant's rules from configuration
// YAML held in memory. !include sections are not followed.
func ParseAssistantConfig(data []byte, section string) (GlobalExposureConfig, error) {
	node, err := findSection(data, section)
	if err != nil {
		return GlobalExposureConfig{}, err
	}
	if node.Tag == tagInclude {
		return GlobalExposureConfig{}, fmt.Errorf("section %s is an include of %s", section, node.Value)
	}
	return parseSection(node)
}

// findSection returns the value node of a top-level key.
func findSection(data []byte, section string) (*yaml.Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	value := mappingValue(documentRoot(&doc), section)
	if value == nil {
		return nil, fmt.Errorf("%w: %s", ErrAssistantConfigMissing, section)
	}
	return value, nil
}

// documentRoot unwraps a document node; nil for an empty document.
func documentRoot(doc *yaml.Node) *yaml.Node {
	if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		return doc.Content[0]
	}
	if doc.Kind == yaml.DocumentNode {
		return nil
	}
	return doc
}

// mappingValue looks up key in a mapping node.
func mappingValue(node *yaml.Node, key string) *yaml.Node {
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}

// parseSection decodes expose_by_default and exposed_domains. An empty
// section ("google_assistant:") yields the defaults.
func parseSection(node *yaml.Node) (GlobalExposureConfig, error) {
	var (
		exposeByDefault bool
		domains         []string
	)

	if v := mappingValue(node, keyExposeByDefault); v != nil {
		if err := v.Decode(&exposeByDefault); err != nil {
			return GlobalExposureConfig{}, fmt.Errorf("decoding %s: %w", keyExposeByDefault, err)
		}
	}
	if v := mappingValue(node, keyExposedDomains); v != nil {
		if err := v.Decode(&domains); err != nil {
			return GlobalExposureConfig{}, fmt.Errorf("decoding %s: %w", keyExposedDomains, err)
		}
	}

	return NewGlobalExposureConfig(exposeByDefault, domains), nil
}

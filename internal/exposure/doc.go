// Package exposure decides which entities are exposed to the voice
// assistant and how they are presented.
//
// Resolve is a pure function of a platform.Snapshot: it applies the
// inclusion rules to each assistant setting in order, resolves display
// names, aliases and rooms through the registries, and returns an Export
// that serialises to the exposed.yaml mapping. Identical snapshots always
// produce byte-identical YAML.
//
// Inclusion, first match wins:
//  1. permanently excluded entity: out
//  2. should_expose explicitly true: in
//  3. should_expose explicitly false: out
//  4. unset: in only when expose_by_default is on and the entity's domain
//     is one of exposed_domains
package exposure

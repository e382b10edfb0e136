// Package platform reads the home-automation platform's registries.
//
// The platform keeps its entity, device and area registries and the
// per-assistant exposure store as JSON documents in its .storage
// directory, and the assistant's global exposure rules in the
// google_assistant section of configuration.yaml. This package turns
// those files into an immutable Snapshot for the resolver, parses the
// platform's MQTT event stream, and watches the storage directory for
// registry writes.
//
// Nothing here writes to the platform's files.
package platform

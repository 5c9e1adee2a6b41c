// Package provider abstracts where configuration bytes come from.
package provider

import "context"

// Type identifies a provider implementation.
type Type string

const (
	TypeFile Type = "file"
)

// Provider loads raw configuration bytes and optionally watches for change.
type Provider interface {
	// Type identifies the provider.
	Type() Type

	// Load reads the current configuration bytes.
	Load(ctx context.Context) ([]byte, error)

	// Watch returns a channel receiving a value on each change, or nil when
	// watching is unsupported.
	Watch(ctx context.Context) (<-chan struct{}, error)

	// Close releases resources.
	Close() error
}

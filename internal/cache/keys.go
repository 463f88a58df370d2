// Package cache provides the Redis key naming scheme and expiry constants.
package cache

import (
	"strings"
	"time"
)

// Expiry durations for cached values.
const (
	ExpiryHour  = time.Hour
	ExpiryDay   = 24 * time.Hour
	ExpiryWeek  = 7 * 24 * time.Hour
	ExpiryMonth = 30 * 24 * time.Hour
)

// appName prefixes every key so multiple deployments can share one Redis.
var appName = "portal-api"

// SetAppName overrides the key prefix; called once from config at startup.
func SetAppName(name string) {
	if name != "" {
		appName = name
	}
}

// KeyBuilder assembles namespaced cache keys: app:resource:attr:attr.
type KeyBuilder struct {
	resource string
	attrs    []string
}

// Keys starts a builder for the resource.
func Keys(resource string) *KeyBuilder {
	return &KeyBuilder{resource: resource}
}

// Attr appends one attribute segment.
func (b *KeyBuilder) Attr(attr string) *KeyBuilder {
	b.attrs = append(b.attrs, attr)
	return b
}

// Build renders the final key.
func (b *KeyBuilder) Build() string {
	parts := append([]string{appName, b.resource}, b.attrs...)
	return strings.Join(parts, ":")
}

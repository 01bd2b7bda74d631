// Package types defines the shared types used throughout the storage layer.
package types

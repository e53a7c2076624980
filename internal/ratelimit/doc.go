// Package ratelimit implements fixed-window per-tenant rate limiting
// against a shared store, so every gateway replica sees the same counts.
package ratelimit

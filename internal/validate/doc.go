// Package validate authenticates inbound webhook calls: bearer parsing,
// constant-time credential verification, activation checks and quota
// enforcement, writing exactly one audit record per rejected attempt.
package validate

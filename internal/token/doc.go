// Package token manages webhook credentials: generation, hashing and the
// issue/regenerate/revoke lifecycle. Plaintext secrets leave the package
// exactly once, at issue time; only keyed salted hashes are stored.
package token

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package secrets keeps endpoint credentials out of config files.
package secrets

// Service is the keyring service graphscope stores its secrets under.
const Service = "graphscope"

// TokenKey is the key of the endpoint bearer token written by `graphscope init`.
const TokenKey = "endpoint-token"

// TokenURI is the config reference to the token stored under TokenKey.
func TokenURI() string {
	return keyringScheme + Service + "/" + TokenKey
}

// Store provides secure secret storage operations.
type Store interface {
	// Store saves a secret value under the given service and key.
	Store(service, key, value string) error

	// Retrieve fetches the secret value for the given service and key.
	// Returns CodeSecretNotFound (via sigilerr.HasCode) if the key does not exist.
	Retrieve(service, key string) (string, error)

	// Delete removes the secret for the given service and key.
	// Returns CodeSecretNotFound (via sigilerr.HasCode) if the key does not exist.
	Delete(service, key string) error

	// List returns all key names stored under the given service.
	List(service string) ([]string, error)
}

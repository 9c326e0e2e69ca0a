// Package integration provides integration tests for the tag cache API server.
// These tests run the complete server against a fake StackExchange upstream and
// exercise the listing, refresh and status endpoints across storage types.
package integration

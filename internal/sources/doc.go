// Package sources retrieves tag data from the Stack Exchange API.
//
// A TagSource returns one upstream page at a time. Looping over pages,
// deduplication and persistence belong to the sync engine; a source only
// builds the request, decodes the envelope and reports upstream failures.
package sources

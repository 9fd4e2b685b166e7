// Package core holds the health-data domain types and the read path: schema
// catalog, provider registry, authorization grants and the data router that
// sends each read either to local storage or to exactly one provider.
// Provider and storage adapters depend on this package, never the reverse.
package core

// Package providers groups the provider adapters the gateway can route reads
// to. Each subpackage implements core.ProviderAdapter for one domain; devkit
// holds fakes and conformance checks for adapter authors.
package providers

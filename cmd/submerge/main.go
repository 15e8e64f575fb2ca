// Package main provides the submerge CLI.
//
// submerge fetches proxy subscriptions, normalizes every node into one
// canonical shape and writes a single Clash-compatible YAML document.
//
// Usage:
//
//	submerge generate -i sources.txt -o output.yaml
//	submerge serve --listen 127.0.0.1:25500
//
// See --help for all available options.
package main

func main() {
	Execute()
}

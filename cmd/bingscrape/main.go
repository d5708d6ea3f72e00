// Package main provides the entry point for the bingscrape CLI.
//
// bingscrape fetches a Bing results page and prints the organic results.
//
// Usage:
//
//	bingscrape search <query>
//	bingscrape search --limit 5 --format json <query>
//
// See --help for all available options.
package main

func main() {
	Execute()
}

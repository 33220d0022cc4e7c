// Package artifact keeps a local copy of remote build artifacts such as
// flash files and EFT bundles.
//
// A download lands in <root>/<blake3(url)>/<basename>. The index file
// <root>/cache.jsonc maps every URL to its local path and MD5; it is plain
// JSON with a leading comment and may be edited by hand.
package artifact

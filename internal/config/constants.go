// Package config holds build-wide constants and the optional CLI
// configuration file.
package config

// Version is the current Melbi version.
var Version = "0.3.0"

// DefaultMaxParseDepth bounds expression nesting during parsing. Inputs
// like `(((...(1)...)))` beyond this depth are rejected instead of
// exhausting the stack.
const DefaultMaxParseDepth = 500

// DefaultMaxRecursionDepth bounds call nesting during evaluation.
const DefaultMaxRecursionDepth = 1000

// SourceFileExt is the canonical Melbi source file extension.
const SourceFileExt = ".melbi"

// SourceFileExtensions are all recognized source file extensions.
var SourceFileExtensions = []string{".melbi", ".mb"}

// HasSourceExt returns true if the path ends with a recognized extension.
func HasSourceExt(path string) bool {
	for _, ext := range SourceFileExtensions {
		if len(path) >= len(ext) && path[len(path)-len(ext):] == ext {
			return true
		}
	}
	return false
}

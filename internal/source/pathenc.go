package source

import "strings"

// Claude Code encodes a project's absolute path as a directory name by
// replacing every path separator with a dash: /Users/alice/app becomes
// -Users-alice-app. The encoding is lossy — a path component that itself
// contains a dash decodes to the wrong path (my-app -> my/app). The pair
// below is the single place that knowledge lives; callers treat it as a
// best-effort reversible encoding.

// DecodeProjectPath converts an encoded directory name back to an
// absolute filesystem path.
func DecodeProjectPath(encoded string) string {
	parts := strings.Split(encoded, "-")
	if len(parts) > 0 && parts[0] == "" {
		parts = parts[1:] // leading dash encodes the root separator
	}
	return "/" + strings.Join(parts, "/")
}

// EncodeProjectPath converts an absolute path to the encoded directory
// name form. Exact inverse of DecodeProjectPath only for paths whose
// components contain no dashes.
func EncodeProjectPath(path string) string {
	return strings.ReplaceAll(path, "/", "-")
}

package storage

import "strings"

// hostMarkers are the storage-host substrings recognized inside stored media
// references. Everything after the last occurrence of a marker is the object
// key, regardless of virtual-hosted or path-style addressing.
var hostMarkers = []string{
	".amazonaws.com/",
	".cloudfront.net/",
}

// ResolveMediaKey maps a stored media reference (bare key, signed URL or CDN
// URL) onto its canonical object-storage key. It returns "" for empty input.
//
// Resolution order, pinned by tests in resolver_test.go:
//  1. drop any query string (presign expiry/signature parameters carry no identity)
//  2. text after the last recognized storage-host marker is the key
//  3. other URLs (a scheme is present) keep only the final path segment
//  4. anything else is already a key and passes through, minus a leading slash
//
// The function is idempotent: resolving an already-resolved key returns it
// unchanged, because step 2..3 outputs never contain a marker or a scheme.
func ResolveMediaKey(ref string) string {
	s := strings.TrimSpace(ref)
	if s == "" {
		return ""
	}

	if i := strings.IndexByte(s, '?'); i >= 0 {
		s = s[:i]
	}

	for _, marker := range hostMarkers {
		if i := strings.LastIndex(s, marker); i >= 0 {
			return strings.TrimPrefix(s[i+len(marker):], "/")
		}
	}

	if strings.Contains(s, "://") {
		if i := strings.LastIndexByte(s, '/'); i >= 0 {
			return s[i+1:]
		}
		return ""
	}

	return strings.TrimPrefix(s, "/")
}

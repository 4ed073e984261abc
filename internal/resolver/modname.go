package resolver

import (
	"path/filepath"
	"strings"
)

// sourceExtensions are the extensions stripped during module naming.
// Naming is language-neutral so cross-language lookups compose.
var sourceExtensions = map[string]bool{
	".py":   true,
	".js":   true,
	".mjs":  true,
	".cjs":  true,
	".ts":   true,
	".tsx":  true,
	".jsx":  true,
	".rb":   true,
	".go":   true,
	".rs":   true,
	".java": true,
}

// initializerStems maps a source extension to the file stem that denotes
// that language's package initializer; such a file collapses to its
// parent directory's module. The stem is convention-bound: __init__.py
// names a Python package, index.js a JS directory module, mod.rs a Rust
// module. A stem outside its own convention (mod.py, index.rb) is an
// ordinary module name and must not collapse.
var initializerStems = map[string]string{
	".py":  "__init__",
	".js":  "index",
	".mjs": "index",
	".cjs": "index",
	".ts":  "index",
	".tsx": "index",
	".jsx": "index",
	".rs":  "mod",
}

// ModuleName maps a repo-relative file path to its canonical dotted
// module name. Pure function of the path: no file content is consulted.
//
//	backend/services/user_service.py -> backend.services.user_service
//	backend/services/__init__.py     -> backend.services
//	web/routes/index.js              -> web.routes
func ModuleName(path string) string {
	p := filepath.ToSlash(path)

	ext := strings.ToLower(filepath.Ext(p))
	if sourceExtensions[ext] {
		p = strings.TrimSuffix(p, filepath.Ext(p))
	}

	segments := strings.Split(p, "/")
	if stem := initializerStems[ext]; stem != "" && len(segments) > 1 && segments[len(segments)-1] == stem {
		segments = segments[:len(segments)-1]
	}

	return strings.Join(segments, ".")
}

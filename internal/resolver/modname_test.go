package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// Test Plan for module naming:
// - Path separators become dots, extensions are stripped
// - Package-initializer stems collapse to the parent directory, but only
//   under their own language's convention
// - Pure function of the path, language-neutral

func TestModuleName(t *testing.T) {
	t.Parallel()

	cases := []struct {
		path string
		want string
	}{
		{"backend/services/user_service.py", "backend.services.user_service"},
		{"backend/services/__init__.py", "backend.services"},
		{"web/routes/index.js", "web.routes"},
		{"src/mod.rs", "src"},
		{"main.py", "main"},
		{"index.js", "index"}, // no parent to collapse into
		{"lib/util.mjs", "lib.util"},
		{"docs/readme.txt", "docs.readme.txt"}, // unknown extension kept
		{"pkg/mod.py", "pkg.mod"},              // mod collapses only for Rust
		{"lib/index.py", "lib.index"},          // index collapses only for JS
		{"gui/__init__.js", "gui.__init__"},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, ModuleName(tc.path), "path %s", tc.path)
	}
}

func TestCanonicalName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, CanonicalName("get_user"), CanonicalName("getUser"))
	assert.Equal(t, CanonicalName("get_user"), CanonicalName("GetUser"))
	assert.Equal(t, "userservice2", CanonicalName("User-Service_2"))
	assert.NotEqual(t, CanonicalName("get_user"), CanonicalName("get_users"))
}

package resolver

import (
	"strings"

	"github.com/maypok86/otter"

	"codegraph/internal/graph"
)

const defaultCacheCapacity = 8192

// cachedTarget is a resolved import target plus the file that owns it, so
// entries can be dropped when that file changes.
type cachedTarget struct {
	id   graph.NodeID
	file string
}

// importCache is a bounded cache from normalized import expressions to
// previously resolved targets. A qualified expression caches one target;
// a wildcard expression caches the module's full target set. Derived
// data only: a miss just falls through to an index lookup.
type importCache struct {
	cache otter.Cache[string, []cachedTarget]
}

func newImportCache(capacity int) (*importCache, error) {
	if capacity <= 0 {
		capacity = defaultCacheCapacity
	}
	cache, err := otter.MustBuilder[string, []cachedTarget](capacity).Build()
	if err != nil {
		return nil, err
	}
	return &importCache{cache: cache}, nil
}

func (c *importCache) get(expr string) ([]cachedTarget, bool) {
	targets, ok := c.cache.Get(expr)
	if !ok || len(targets) == 0 {
		return nil, false
	}
	return targets, true
}

func (c *importCache) put(expr string, targets []cachedTarget) {
	if len(targets) == 0 {
		return
	}
	c.cache.Set(expr, targets)
}

// invalidateFile drops every entry with a target in the given file.
func (c *importCache) invalidateFile(file string) {
	c.cache.DeleteByFunc(func(_ string, targets []cachedTarget) bool {
		for _, t := range targets {
			if t.file == file {
				return true
			}
		}
		return false
	})
}

// invalidateModule drops every expression addressing the module: the
// bare name, its wildcard form, and its qualified symbols. Needed when a
// file starts or stops contributing to a module, which changes what the
// module's expressions resolve to without touching any cached target.
func (c *importCache) invalidateModule(module string) {
	prefix := module + "."
	c.cache.DeleteByFunc(func(expr string, _ []cachedTarget) bool {
		return expr == module || strings.HasPrefix(expr, prefix)
	})
}

func (c *importCache) close() {
	c.cache.Close()
}

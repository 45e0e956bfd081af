// Package packages implements the Package Installer: for each declared
// LaTeX package not already known to be available, invoke the system
// package tool to install it, caching the result per spec §3/§4.5. The
// installer never fails its caller's stage — a package that still
// breaks compilation is caught by the compilation stage's exit code.
package packages

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/texforge/texforge/internal/process"
	"github.com/texforge/texforge/pkg/logger"
)

// DefaultTTL is the cache entry lifetime named in spec §3.
const DefaultTTL = 5 * time.Minute

// DefaultMaxEntries bounds the cache size; the oldest entries are
// evicted first once exceeded.
const DefaultMaxEntries = 1000

// cacheValue pairs availability with its expiry.
type cacheValue struct {
	available bool
	expires   time.Time
	elem      *list.Element // position in the LRU-by-insertion eviction list
}

// Cache is a TTL'd, size-bounded map from package name to availability,
// protected by its own mutex independent of the Job Registry's.
type Cache struct {
	mu         sync.Mutex
	ttl        time.Duration
	maxEntries int
	entries    map[string]*cacheValue
	order      *list.List // front = oldest insertion
}

// NewCache creates a Cache with the given TTL and size bound (<=0 uses
// the package defaults).
func NewCache(ttl time.Duration, maxEntries int) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Cache{
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]*cacheValue),
		order:      list.New(),
	}
}

// Get returns the cached availability for name if present and unexpired.
func (c *Cache) Get(name string) (available, found bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.entries[name]
	if !ok {
		return false, false
	}
	if time.Now().After(v.expires) {
		c.removeLocked(name)
		return false, false
	}
	return v.available, true
}

// Set records availability for name, evicting the oldest entry first if
// the cache is at capacity.
func (c *Cache) Set(name string, available bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.entries[name]; ok {
		c.order.Remove(existing.elem)
		delete(c.entries, name)
	}

	for len(c.entries) >= c.maxEntries {
		oldest := c.order.Front()
		if oldest == nil {
			break
		}
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(string))
	}

	elem := c.order.PushBack(name)
	c.entries[name] = &cacheValue{available: available, expires: time.Now().Add(c.ttl), elem: elem}
}

func (c *Cache) removeLocked(name string) {
	if v, ok := c.entries[name]; ok {
		c.order.Remove(v.elem)
		delete(c.entries, name)
	}
}

// Installer queries and installs missing LaTeX packages.
type Installer struct {
	runner  *process.Runner
	binPath string
	cache   *Cache
	logger  *logger.Logger
}

// New creates an Installer invoking binPath (e.g. tlmgr) through runner.
func New(runner *process.Runner, binPath string, cache *Cache, log *logger.Logger) *Installer {
	return &Installer{
		runner:  runner,
		binPath: binPath,
		cache:   cache,
		logger:  log.WithField("component", "package-installer"),
	}
}

// Report summarizes one package's install attempt.
type Report struct {
	Name      string
	Installed bool
	FromCache bool
	Error     string
}

// EnsureAvailable attempts to install every declared package not
// already known-available, returning a per-package report. It never
// returns an error itself: failures are recorded per-package so the
// caller can surface them as stage diagnostics without failing the
// stage.
func (i *Installer) EnsureAvailable(ctx context.Context, declared []string) []Report {
	reports := make([]Report, 0, len(declared))
	for _, pkg := range declared {
		if available, found := i.cache.Get(pkg); found {
			reports = append(reports, Report{Name: pkg, Installed: available, FromCache: true})
			continue
		}
		reports = append(reports, i.install(ctx, pkg))
	}
	return reports
}

func (i *Installer) install(ctx context.Context, pkg string) Report {
	argv := []string{i.binPath, "install", pkg}
	allowList := map[string]bool{i.binPath: true}

	result, err := i.runner.Run(ctx, argv, nil, "", nil, 30*time.Second, allowList)
	if err != nil {
		i.logger.Warn("package installer precondition failure", "package", pkg, "error", err)
		i.cache.Set(pkg, false)
		return Report{Name: pkg, Installed: false, Error: err.Error()}
	}

	installed := result.ExitCode == 0
	i.cache.Set(pkg, installed)
	if !installed {
		i.logger.Info("package install failed, compilation stage will surface the real cause if needed",
			"package", pkg, "exit_code", result.ExitCode)
		return Report{Name: pkg, Installed: false, Error: string(result.Stderr)}
	}
	return Report{Name: pkg, Installed: true}
}

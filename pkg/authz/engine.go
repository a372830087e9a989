// Package authz evaluates which console surfaces a principal may see. It is
// the server-side producer of the authorized-menu set the access gates
// consume.
package authz

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"sort"
	"strings"
	"sync"

	//nolint:staticcheck // OPA v1 migration pending
	"github.com/open-policy-agent/opa/ast"
	//nolint:staticcheck // OPA v1 migration pending
	"github.com/open-policy-agent/opa/rego"

	"github.com/flowmatic/console/pkg/domain"
)

// Options control engine construction and runtime behaviour.
type Options struct {
	// Entrypoint is the policy decision path (e.g. "console/menus/decision").
	Entrypoint string
	// Module is the Rego source evaluated for menu decisions. Empty selects
	// the embedded default policy.
	Module string
	// ModuleName labels the module in parse errors.
	ModuleName string
	// Revision identifies the loaded policy version and participates in
	// decision cache keys so a policy swap never serves stale grants.
	Revision string
	// CacheMaxEntries bounds the decision cache size (LRU). Zero selects
	// the default size; negative disables caching entirely.
	CacheMaxEntries int
}

// Engine evaluates menu entitlement decisions using an embedded OPA
// instance.
type Engine struct {
	prepared rego.PreparedEvalQuery
	revision string
	cache    *decisionCache
}

const (
	defaultEntrypoint    = "console/menus/decision"
	defaultModuleName    = "console/menus.rego"
	defaultCacheCapacity = 1024
)

// NewEngine compiles the policy module and warms the entrypoint so syntax
// errors surface at startup rather than on the first request.
func NewEngine(ctx context.Context, opts Options) (*Engine, error) {
	entry := strings.TrimSpace(opts.Entrypoint)
	if entry == "" {
		entry = defaultEntrypoint
	}

	source := opts.Module
	if strings.TrimSpace(source) == "" {
		source = defaultPolicy
	}
	moduleName := opts.ModuleName
	if moduleName == "" {
		moduleName = defaultModuleName
	}

	maxEntries := opts.CacheMaxEntries
	switch {
	case maxEntries == 0:
		maxEntries = defaultCacheCapacity
	case maxEntries < 0:
		maxEntries = 0
	}

	var cache *decisionCache
	if maxEntries > 0 {
		cache = newDecisionCache(maxEntries)
	}

	module, err := ast.ParseModuleWithOpts(moduleName, source, ast.ParserOptions{RegoVersion: ast.RegoV1})
	if err != nil {
		return nil, fmt.Errorf("parse rego module %q: %w", moduleName, err)
	}

	query := "data." + strings.ReplaceAll(entry, "/", ".")
	prepared, err := rego.New(
		rego.Query(query),
		rego.ParsedModule(module),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile rego module: %w", err)
	}

	return &Engine{
		prepared: prepared,
		revision: opts.Revision,
		cache:    cache,
	}, nil
}

// MenuSet evaluates the policy for the principal and returns the set of
// surface names it may see. An empty principal is valid and resolves to
// whatever the policy grants to nobody in particular, normally nothing.
func (e *Engine) MenuSet(ctx context.Context, principal domain.Principal) (domain.MenuSet, error) {
	cacheKey, shouldCache := e.cacheKey(principal)
	if shouldCache {
		if cached, ok := e.cache.Get(cacheKey); ok {
			return cached.Clone(), nil
		}
	}

	payload := map[string]any{
		"principal": map[string]any{
			"subject": principal.Subject,
			"roles":   append([]string(nil), principal.Roles...),
		},
	}

	results, err := e.prepared.Eval(ctx, rego.EvalInput(payload))
	if err != nil {
		return domain.MenuSet{}, fmt.Errorf("menu decision: %w", err)
	}

	set, err := parseDecision(results)
	if err != nil {
		return domain.MenuSet{}, err
	}

	if shouldCache {
		e.cache.Add(cacheKey, set.Clone())
	}
	return set, nil
}

// FlushCache clears all cached decisions. Safe to call concurrently.
func (e *Engine) FlushCache() {
	if e.cache != nil {
		e.cache.Clear()
	}
}

// Revision returns the identifier of the loaded policy.
func (e *Engine) Revision() string {
	return e.revision
}

func parseDecision(results rego.ResultSet) (domain.MenuSet, error) {
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		// An undefined decision denies everything rather than failing the
		// request: absence of a grant is not an evaluation error.
		return domain.MenuSet{AuthorizedMenuItems: []string{}}, nil
	}

	payload, ok := results[0].Expressions[0].Value.(map[string]any)
	if !ok {
		return domain.MenuSet{}, fmt.Errorf("menu decision: unexpected result type %T", results[0].Expressions[0].Value)
	}

	raw, ok := payload["authorized_menu_items"]
	if !ok {
		return domain.MenuSet{}, errors.New("menu decision: missing authorized_menu_items")
	}

	seq, ok := raw.([]any)
	if !ok {
		return domain.MenuSet{}, fmt.Errorf("menu decision: authorized_menu_items must be a list, got %T", raw)
	}

	items := make([]string, 0, len(seq))
	for _, elem := range seq {
		name, ok := elem.(string)
		if !ok {
			return domain.MenuSet{}, fmt.Errorf("menu decision: non-string menu item %T", elem)
		}
		items = append(items, name)
	}
	return domain.MenuSet{AuthorizedMenuItems: items}, nil
}

// cacheKey generates a deterministic hash key for caching menu decisions.
func (e *Engine) cacheKey(principal domain.Principal) (string, bool) {
	if e.cache == nil {
		return "", false
	}

	subject := strings.TrimSpace(principal.Subject)
	if subject == "" {
		return "", false
	}

	roles := normalizeStringSlice(principal.Roles)

	h := sha256.New()
	writeCacheKeyField(h, e.revision)
	writeCacheKeyField(h, subject)
	writeCacheKeyField(h, strings.Join(roles, ","))

	return hex.EncodeToString(h.Sum(nil)), true
}

// writeCacheKeyField writes a field to the hash followed by a null delimiter
// for field separation.
func writeCacheKeyField(h hash.Hash, value string) {
	h.Write([]byte(value))
	h.Write([]byte{0})
}

// normalizeStringSlice creates a sorted copy of the input slice for
// consistent hashing.
func normalizeStringSlice(input []string) []string {
	if len(input) == 0 {
		return nil
	}
	normalized := append([]string(nil), input...)
	sort.Strings(normalized)
	return normalized
}

type decisionCache struct {
	mu      sync.Mutex
	max     int
	order   *list.List
	entries map[string]*list.Element
}

type cacheItem struct {
	key   string
	value domain.MenuSet
}

func newDecisionCache(capacity int) *decisionCache {
	return &decisionCache{
		max:     capacity,
		order:   list.New(),
		entries: make(map[string]*list.Element, capacity),
	}
}

func (c *decisionCache) Get(key string) (domain.MenuSet, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return domain.MenuSet{}, false
	}
	c.order.MoveToFront(elem)
	item := elem.Value.(cacheItem)
	return item.value, true
}

func (c *decisionCache) Add(key string, value domain.MenuSet) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		elem.Value = cacheItem{key: key, value: value}
		c.order.MoveToFront(elem)
		return
	}

	elem := c.order.PushFront(cacheItem{key: key, value: value})
	c.entries[key] = elem

	if c.order.Len() <= c.max {
		return
	}

	tail := c.order.Back()
	if tail != nil {
		c.order.Remove(tail)
		item := tail.Value.(cacheItem)
		delete(c.entries, item.key)
	}
}

func (c *decisionCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.order.Init()
	c.entries = make(map[string]*list.Element, c.max)
}

package observability

import "sync"

type observe struct {
	Kind    string
	Scope   string
	Source  string
	Method  string
	Route   string
	Status  int
	OK      bool
	CacheMs float64
	DbMs    float64
	Dur     float64
}

// Inmem keeps the last max observations and running cache counters. It is
// meant for tests and local runs.
type Inmem struct {
	mu     sync.Mutex
	last   []*observe
	max    int
	totals struct {
		cacheHits, cacheMiss, invalidations int
	}
}

func NewInmem(max int) *Inmem {
	return &Inmem{
		max: max,
	}
}

func (m *Inmem) push(v *observe) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last = append(m.last, v)
	if len(m.last) > m.max {
		m.last = m.last[len(m.last)-m.max:]
	}
}

func (m *Inmem) ObserveLookup(scope, source string, cacheMs, dbMs float64) {
	m.push(&observe{Kind: "lookup", Scope: scope, Source: source, CacheMs: cacheMs, DbMs: dbMs})
}

func (m *Inmem) ObserveHTTP(method, route string, status int, durMs float64) {
	m.push(&observe{Kind: "http", Method: method, Route: route, Status: status, Dur: durMs})
}

func (m *Inmem) ObserveKafka(processMs float64, ok bool) {
	m.push(&observe{Kind: "kafka", Dur: processMs, OK: ok})
}

func (m *Inmem) IncCacheHit(string) {
	m.mu.Lock()
	m.totals.cacheHits++
	m.mu.Unlock()
}

func (m *Inmem) IncCacheMiss(string) {
	m.mu.Lock()
	m.totals.cacheMiss++
	m.mu.Unlock()
}

func (m *Inmem) IncInvalidation(string) {
	m.mu.Lock()
	m.totals.invalidations++
	m.mu.Unlock()
}

// CacheCounters returns hits, misses and invalidations seen so far.
func (m *Inmem) CacheCounters() (hits, misses, invalidations int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.totals.cacheHits, m.totals.cacheMiss, m.totals.invalidations
}

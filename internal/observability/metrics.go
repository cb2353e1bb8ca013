package observability

// Metrics receives measurements from the service, HTTP and feed layers.
// scope is the cache prefix of the resource ("order", "transaction").
type Metrics interface {
	ObserveLookup(scope, source string, cacheMs, dbMs float64)
	ObserveHTTP(method, route string, status int, durMs float64)
	ObserveKafka(processMs float64, ok bool)
	IncCacheHit(scope string)
	IncCacheMiss(scope string)
	IncInvalidation(scope string)
}

type Noop struct{}

func NewNoop() Noop { return Noop{} }

func (Noop) ObserveLookup(string, string, float64, float64) {}
func (Noop) ObserveHTTP(string, string, int, float64)       {}
func (Noop) ObserveKafka(float64, bool)                     {}
func (Noop) IncCacheHit(string)                             {}
func (Noop) IncCacheMiss(string)                            {}
func (Noop) IncInvalidation(string)                         {}

var (
	_ Metrics = Noop{}
	_ Metrics = (*Inmem)(nil)
	_ Metrics = (*Prometheus)(nil)
)

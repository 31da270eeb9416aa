package idempotence

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"
)

// DefaultKeyHeader is the request header consulted by the default key
// extractor.
const DefaultKeyHeader = "Idempotency-Key"

const (
	cacheKeyPrefix   = "idemp-key-"
	completionMarker = "1"
)

// Configuration errors returned by New. They are permanent and surface at
// construction time, never at request time.
var (
	ErrNilCache   = errors.New("idempotence: cache must provide get and set operations")
	ErrInvalidTTL = errors.New("idempotence: ttl must be a positive duration")
)

// mutatingMethods lists the HTTP methods subject to idempotency control.
// Protection is only meaningful for methods with side effects; everything
// else passes straight through to the next handler.
var mutatingMethods = map[string]bool{
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
}

// Logger is the minimal contract used to report cache failures. Error
// must be side-effect only and must not panic.
type Logger interface {
	Error(v ...interface{})
}

type stderrLogger struct {
	l *log.Logger
}

func (s stderrLogger) Error(v ...interface{}) {
	s.l.Print(v...)
}

// Config configures a Middleware. It is read once by New and shared, read
// only, across all subsequent requests.
type Config struct {
	// Cache stores completion markers. Required.
	Cache Cache

	// TTL is how long a completion marker is retained, after which the
	// operation may run again. Required, must be positive.
	TTL time.Duration

	// KeyExtractor derives the raw idempotency key from a request. An
	// empty result means the request carries no key and is handled with
	// no caching behavior at all. Callers can combine several signals
	// here (service name, user identity, header) to avoid cross-tenant
	// collisions. Defaults to reading the Idempotency-Key header.
	KeyExtractor func(r *http.Request) string

	// Logger receives cache read and write failures. Defaults to a
	// logger writing to standard error.
	Logger Logger
}

// Middleware intercepts mutating requests and short-circuits duplicates
// whose idempotency key already completed within the TTL window.
type Middleware struct {
	cache     Cache
	ttl       time.Duration
	extractor func(r *http.Request) string
	logger    Logger
}

// New validates cfg and returns a ready to use Middleware, binding the
// default key extractor and logger where none were supplied.
func New(cfg Config) (*Middleware, error) {
	if cfg.Cache == nil {
		return nil, ErrNilCache
	}
	if cfg.TTL <= 0 {
		return nil, fmt.Errorf("%w, got %v", ErrInvalidTTL, cfg.TTL)
	}

	extractor := cfg.KeyExtractor
	if extractor == nil {
		extractor = func(r *http.Request) string {
			return r.Header.Get(DefaultKeyHeader)
		}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = stderrLogger{l: log.New(os.Stderr, "", log.LstdFlags)}
	}

	return &Middleware{
		cache:     cfg.Cache,
		ttl:       cfg.TTL,
		extractor: extractor,
		logger:    logger,
	}, nil
}

// Handler wraps next with idempotent request handling. On a cache hit the
// response is 304 Not Modified with an empty body and next is never
// invoked. On a miss next runs and, if it finishes with a 2xx status, a
// completion marker is stored under the derived key with the configured
// TTL.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		if !mutatingMethods[r.Method] {
			next.ServeHTTP(w, r)
			return
		}

		rawKey := m.extractor(r)
		if rawKey == "" {
			next.ServeHTTP(w, r)
			return
		}

		key := cacheKey(rawKey)

		value, ok, err := m.cache.Get(r.Context(), key)
		if err != nil {
			// Fail open: a malfunctioning cache degrades to no
			// idempotency protection, never to blocked traffic.
			m.logger.Error("idempotence: cache read error: ", err)
			ok = false
		}

		if ok && value != "" {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.WriteHeader(http.StatusNotModified)
			return
		}

		rec := newStatusRecorder(w)
		next.ServeHTTP(rec, r.WithContext(NewContext(r.Context(), rawKey)))

		// The response is complete here; only successful outcomes are
		// recorded so failed attempts stay retryable.
		if rec.status < 200 || rec.status >= 300 {
			return
		}
		if err := m.cache.Set(r.Context(), key, completionMarker, m.ttl); err != nil {
			m.logger.Error("idempotence: cache write error: ", err)
		}
	}

	return http.HandlerFunc(fn)
}

// cacheKey derives the cache key for a raw idempotency key. Hashing keeps
// the key length fixed and safe for any backend no matter what the client
// sent.
func cacheKey(raw string) string {
	return cacheKeyPrefix + hashKey(raw)
}

func hashKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

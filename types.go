package kurir

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/url"
	"time"
)

// CachePolicy controls whether a single request may be served from and
// stored into the memory cache. The zero value defers to the dispatcher's
// cache condition (GET requests by default).
type CachePolicy int

const (
	// CacheDefault applies the dispatcher's cache condition.
	CacheDefault CachePolicy = iota
	// CacheAlways forces cache participation regardless of method.
	CacheAlways
	// CacheNever bypasses the cache for this request only.
	CacheNever
)

// Request is an immutable description of one outbound call. It is both the
// unit of dispatch and the source of the cache fingerprint.
type Request struct {
	// Method defaults to GET when empty.
	Method string
	// URL is the absolute target URL.
	URL string
	// Params are merged into the URL query string before sending.
	Params url.Values
	// Header entries are applied to the outgoing request.
	Header http.Header
	// Body is the raw request payload, if any.
	Body []byte
	// TTL overrides the dispatcher's default cache TTL when positive.
	TTL time.Duration
	// Cache makes the caching decision explicit and local to the request.
	Cache CachePolicy
	// MaxWait bounds the acceptable rate-limit suspension. When positive
	// and the computed wait exceeds it, Dispatch fails fast with
	// ErrRateLimitWaitExceeded instead of blocking.
	MaxWait time.Duration
}

// Response is a fully buffered response payload. Cache hits return the same
// underlying body bytes; callers must not mutate Body.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

func (r Request) method() string {
	if r.Method == "" {
		return http.MethodGet
	}
	return r.Method
}

// fullURL merges Params into the URL's existing query string.
func (r Request) fullURL() (*url.URL, error) {
	u, err := url.Parse(r.URL)
	if err != nil {
		return nil, err
	}
	if len(r.Params) > 0 {
		q := u.Query()
		for k, vs := range r.Params {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u, nil
}

// Fingerprint derives the stable cache key for the request: method, URL and
// an order-independent serialization of the query parameters, truncated to a
// 16 character digest. Two logically identical requests collide to the same
// fingerprint regardless of parameter construction order.
func (r Request) Fingerprint() string {
	urlPart := r.URL
	params := r.Params
	if u, err := url.Parse(r.URL); err == nil && u.RawQuery != "" {
		// Fold query parameters embedded in the URL into the sorted set so
		// "?b=2&a=1" and Params{a: 1, b: 2} fingerprint identically.
		merged := u.Query()
		for k, vs := range r.Params {
			for _, v := range vs {
				merged.Add(k, v)
			}
		}
		u.RawQuery = ""
		urlPart = u.String()
		params = merged
	}

	key := r.method() + "|" + urlPart
	if len(params) > 0 {
		// url.Values.Encode sorts by key.
		key += "|params:" + params.Encode()
	}

	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:8])
}

// hostKey returns the partition key for pooling and rate limiting: the
// authority component of the request URL.
func hostKey(u *url.URL) string {
	if u == nil {
		return "unknown"
	}
	return u.Host
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// CacheCondition decides whether a request participates in caching when its
// policy is CacheDefault.
type CacheCondition func(Request) bool

// DefaultCacheCondition caches idempotent GET requests.
func DefaultCacheCondition(req Request) bool {
	return req.method() == http.MethodGet
}

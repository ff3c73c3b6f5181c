package auth

import (
	"context"
	"crypto"
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	sserr "github.com/StricklySoft/whisper-grc/pkg/errors"
)

// HTTPClient fetches discovery and key set documents. *http.Client
// satisfies it.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Clock returns the current time. Tests inject a fixed clock.
type Clock func() time.Time

const (
	// maxDocumentSize bounds discovery and JWKS response bodies.
	maxDocumentSize = 1 << 20

	discoveryPath = "/.well-known/openid-configuration"

	// minRSAModulusBits rejects weak RSA signing keys.
	minRSAModulusBits = 2048
)

// KeySource names where an issuer publishes its signing keys. When JWKSURL
// is empty the URL is discovered from the issuer's OpenID configuration.
type KeySource struct {
	Issuer  string
	JWKSURL string
}

func (s KeySource) cacheKey() string {
	if s.JWKSURL != "" {
		return s.JWKSURL
	}
	return s.Issuer
}

// SigningKey is one public key from a key set.
type SigningKey struct {
	// ID is the kid the key is published under.
	ID string
	// Algorithm is the key's declared alg, or "" if undeclared.
	Algorithm string
	// Key is an *rsa.PublicKey or *ecdsa.PublicKey.
	Key crypto.PublicKey
}

// KeySet is an immutable snapshot of an issuer's signing keys. A KeySet is
// never modified after construction; refreshes replace it.
type KeySet struct {
	keys       map[string]SigningKey
	algorithms map[string]struct{}
	fetchedAt  time.Time
	expiresAt  time.Time
}

// Key returns the key published under kid. Matching is exact.
func (ks *KeySet) Key(kid string) (SigningKey, bool) {
	k, ok := ks.keys[kid]
	return k, ok
}

// AllowsAlgorithm reports whether alg is usable with this key set. If no
// key declares an algorithm every algorithm is allowed; otherwise alg must
// be declared by at least one key.
func (ks *KeySet) AllowsAlgorithm(alg string) bool {
	if len(ks.algorithms) == 0 {
		return true
	}
	_, ok := ks.algorithms[alg]
	return ok
}

// Len returns the number of usable keys.
func (ks *KeySet) Len() int {
	return len(ks.keys)
}

// ExpiresAt returns the instant after which the set must be refetched.
func (ks *KeySet) ExpiresAt() time.Time {
	return ks.expiresAt
}

func (ks *KeySet) fresh(now time.Time) bool {
	return now.Before(ks.expiresAt)
}

// KeyProvider supplies verification keys for an issuer.
type KeyProvider interface {
	SigningKeys(ctx context.Context, src KeySource) (*KeySet, error)
}

// DocumentStore shares raw key set documents between service replicas so
// that a fleet fetches from the identity provider once per TTL. GetDocument
// returns (nil, nil) on a miss.
type DocumentStore interface {
	GetDocument(ctx context.Context, key string) ([]byte, error)
	PutDocument(ctx context.Context, key string, doc []byte, ttl time.Duration) error
}

// KeySetCacheConfig configures a KeySetCache. Zero values select defaults.
type KeySetCacheConfig struct {
	// TTL is how long a fetched key set is served. Defaults to 1h.
	TTL time.Duration

	// FetchTimeout bounds each discovery or key set request. Defaults to 5s.
	FetchTimeout time.Duration

	// HTTPClient defaults to a new http.Client.
	HTTPClient HTTPClient

	// Clock defaults to time.Now.
	Clock Clock

	// Store optionally shares documents between replicas.
	Store DocumentStore

	Logger  *slog.Logger
	Metrics *Metrics
}

// KeySetCache caches signing key sets per issuer. It is safe for concurrent
// use. Entries are replaced atomically; concurrent misses for the same
// issuer may each fetch, and the last completed fetch wins.
type KeySetCache struct {
	ttl     time.Duration
	timeout time.Duration
	client  HTTPClient
	now     Clock
	store   DocumentStore
	logger  *slog.Logger
	metrics *Metrics

	entries sync.Map // cache key -> *KeySet
}

var _ KeyProvider = (*KeySetCache)(nil)

// NewKeySetCache returns an empty cache.
func NewKeySetCache(cfg KeySetCacheConfig) *KeySetCache {
	c := &KeySetCache{
		ttl:     cfg.TTL,
		timeout: cfg.FetchTimeout,
		client:  cfg.HTTPClient,
		now:     cfg.Clock,
		store:   cfg.Store,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
	}
	if c.ttl <= 0 {
		c.ttl = DefaultJWKSCacheSeconds * time.Second
	}
	if c.timeout <= 0 {
		c.timeout = DefaultHTTPTimeoutSeconds * time.Second
	}
	if c.client == nil {
		c.client = &http.Client{}
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// SigningKeys returns the issuer's key set, fetching it when absent or
// expired. Fetch failures carry sserr.CodeKeyFetchFailed.
func (c *KeySetCache) SigningKeys(ctx context.Context, src KeySource) (*KeySet, error) {
	key := src.cacheKey()
	if key == "" {
		return nil, sserr.New(sserr.CodeKeyFetchFailed, "auth: key source has neither issuer nor JWKS URL")
	}

	now := c.now()
	if v, ok := c.entries.Load(key); ok {
		if ks := v.(*KeySet); ks.fresh(now) {
			c.metrics.keySet(keySetHit)
			return ks, nil
		}
	}

	if ks := c.loadShared(ctx, key, now); ks != nil {
		c.entries.Store(key, ks)
		c.metrics.keySet(keySetShared)
		return ks, nil
	}

	doc, err := c.fetch(ctx, src)
	if err == nil {
		var ks *KeySet
		if ks, err = parseKeySet(doc, now, c.ttl, c.logger); err == nil {
			c.entries.Store(key, ks)
			c.storeShared(ctx, key, doc, now)
			c.metrics.keySet(keySetFetched)
			c.logger.InfoContext(ctx, "signing keys refreshed",
				"issuer", src.Issuer, "keys", ks.Len(), "expires_at", ks.expiresAt)
			return ks, nil
		}
	}

	c.metrics.keySet(keySetFailed)
	c.logger.WarnContext(ctx, "signing key fetch failed",
		"issuer", src.Issuer, "jwks_url", src.JWKSURL, "error", err)
	return nil, err
}

func (c *KeySetCache) fetch(ctx context.Context, src KeySource) ([]byte, error) {
	jwksURL := src.JWKSURL
	if jwksURL == "" {
		body, err := c.get(ctx, strings.TrimRight(src.Issuer, "/")+discoveryPath)
		if err != nil {
			return nil, err
		}
		var discovery struct {
			JWKSURI string `json:"jwks_uri"`
		}
		if err := json.Unmarshal(body, &discovery); err != nil {
			return nil, sserr.Wrap(err, sserr.CodeKeyFetchFailed, "auth: malformed discovery document")
		}
		if discovery.JWKSURI == "" {
			return nil, sserr.New(sserr.CodeKeyFetchFailed, "auth: discovery document has no jwks_uri")
		}
		jwksURL = discovery.JWKSURI
	}
	return c.get(ctx, jwksURL)
}

// get performs one bounded GET and returns the body of a 200 response.
func (c *KeySetCache) get(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, sserr.Wrap(err, sserr.CodeKeyFetchFailed, "auth: invalid key endpoint URL")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, sserr.Wrapf(err, sserr.CodeKeyFetchFailed, "auth: request to %s failed", url)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, sserr.Newf(sserr.CodeKeyFetchFailed, "auth: %s returned status %d", url, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize+1))
	if err != nil {
		return nil, sserr.Wrapf(err, sserr.CodeKeyFetchFailed, "auth: reading %s failed", url)
	}
	if len(body) > maxDocumentSize {
		return nil, sserr.Newf(sserr.CodeKeyFetchFailed, "auth: %s response exceeds %d bytes", url, maxDocumentSize)
	}
	return body, nil
}

// sharedDocument is the envelope written to the DocumentStore. FetchedAt
// keeps expiry anchored to the original fetch.
type sharedDocument struct {
	FetchedAt time.Time       `json:"fetched_at"`
	JWKS      json.RawMessage `json:"jwks"`
}

func (c *KeySetCache) loadShared(ctx context.Context, key string, now time.Time) *KeySet {
	if c.store == nil {
		return nil
	}
	raw, err := c.store.GetDocument(ctx, key)
	if err != nil {
		c.logger.WarnContext(ctx, "shared key set read failed", "key", key, "error", err)
		return nil
	}
	if raw == nil {
		return nil
	}
	var env sharedDocument
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil
	}
	ks, err := parseKeySet(env.JWKS, env.FetchedAt, c.ttl, c.logger)
	if err != nil || !ks.fresh(now) {
		return nil
	}
	return ks
}

func (c *KeySetCache) storeShared(ctx context.Context, key string, doc []byte, now time.Time) {
	if c.store == nil {
		return
	}
	raw, err := json.Marshal(sharedDocument{FetchedAt: now, JWKS: doc})
	if err == nil {
		err = c.store.PutDocument(ctx, key, raw, c.ttl)
	}
	if err != nil {
		c.logger.WarnContext(ctx, "shared key set write failed", "key", key, "error", err)
	}
}

// jwk is the subset of RFC 7517 fields used for signature keys.
type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Alg string `json:"alg"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
	Crv string `json:"crv"`
	X   string `json:"x"`
	Y   string `json:"y"`
}

// parseKeySet decodes a JWKS document. Keys without a kid, keys not meant
// for signatures and keys that fail to decode are skipped.
func parseKeySet(doc []byte, fetchedAt time.Time, ttl time.Duration, logger *slog.Logger) (*KeySet, error) {
	var set struct {
		Keys []jwk `json:"keys"`
	}
	if err := json.Unmarshal(doc, &set); err != nil {
		return nil, sserr.Wrap(err, sserr.CodeKeyFetchFailed, "auth: malformed JWKS document")
	}
	if set.Keys == nil {
		return nil, sserr.New(sserr.CodeKeyFetchFailed, "auth: JWKS document has no keys member")
	}

	ks := &KeySet{
		keys:       make(map[string]SigningKey, len(set.Keys)),
		algorithms: make(map[string]struct{}),
		fetchedAt:  fetchedAt,
		expiresAt:  fetchedAt.Add(ttl),
	}
	for _, k := range set.Keys {
		if k.Kid == "" || (k.Use != "" && k.Use != "sig") {
			continue
		}
		if _, dup := ks.keys[k.Kid]; dup {
			logger.Warn("duplicate kid in key set, keeping first", "kid", k.Kid)
			continue
		}
		pub, err := k.publicKey()
		if err != nil {
			logger.Warn("skipping unusable signing key", "kid", k.Kid, "kty", k.Kty, "error", err)
			continue
		}
		ks.keys[k.Kid] = SigningKey{ID: k.Kid, Algorithm: k.Alg, Key: pub}
		if k.Alg != "" {
			ks.algorithms[k.Alg] = struct{}{}
		}
	}
	return ks, nil
}

func (k jwk) publicKey() (crypto.PublicKey, error) {
	switch k.Kty {
	case "RSA":
		return parseRSAPublicKey(k.N, k.E)
	case "EC":
		return parseECPublicKey(k.Crv, k.X, k.Y)
	default:
		return nil, fmt.Errorf("unsupported key type %q", k.Kty)
	}
}

func parseRSAPublicKey(nB64, eB64 string) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(nB64)
	if err != nil {
		return nil, fmt.Errorf("decode modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(eB64)
	if err != nil {
		return nil, fmt.Errorf("decode exponent: %w", err)
	}
	n := new(big.Int).SetBytes(nBytes)
	if n.BitLen() < minRSAModulusBits {
		return nil, fmt.Errorf("modulus is %d bits, need at least %d", n.BitLen(), minRSAModulusBits)
	}
	e := new(big.Int).SetBytes(eBytes)
	if !e.IsInt64() || e.Int64() < 3 || e.Int64() > 1<<31-1 {
		return nil, errors.New("exponent out of range")
	}
	return &rsa.PublicKey{N: n, E: int(e.Int64())}, nil
}

func parseECPublicKey(crv, xB64, yB64 string) (*ecdsa.PublicKey, error) {
	var (
		curve elliptic.Curve
		ecdhC ecdh.Curve
	)
	switch crv {
	case "P-256":
		curve, ecdhC = elliptic.P256(), ecdh.P256()
	case "P-384":
		curve, ecdhC = elliptic.P384(), ecdh.P384()
	case "P-521":
		curve, ecdhC = elliptic.P521(), ecdh.P521()
	default:
		return nil, fmt.Errorf("unsupported curve %q", crv)
	}

	size := (curve.Params().BitSize + 7) / 8
	x, err := base64.RawURLEncoding.DecodeString(xB64)
	if err != nil {
		return nil, fmt.Errorf("decode x: %w", err)
	}
	y, err := base64.RawURLEncoding.DecodeString(yB64)
	if err != nil {
		return nil, fmt.Errorf("decode y: %w", err)
	}
	if len(x) != size || len(y) != size {
		return nil, fmt.Errorf("coordinates must be %d bytes", size)
	}

	// Uncompressed SEC 1 encoding; NewPublicKey rejects points off the curve.
	point := make([]byte, 0, 1+2*size)
	point = append(point, 0x04)
	point = append(point, x...)
	point = append(point, y...)
	if _, err := ecdhC.NewPublicKey(point); err != nil {
		return nil, fmt.Errorf("invalid point: %w", err)
	}

	return &ecdsa.PublicKey{
		Curve: curve,
		X:     new(big.Int).SetBytes(x),
		Y:     new(big.Int).SetBytes(y),
	}, nil
}

package auth

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/StricklySoft/whisper-grc/internal/testutil/fixtures"
	sserr "github.com/StricklySoft/whisper-grc/pkg/errors"
	"github.com/StricklySoft/whisper-grc/pkg/models"
)

const (
	testAudience = fixtures.Audience
	testRSAKid   = "rsa-1"
	testECKid    = "ec-1"
)

var (
	testRSAKey = sync.OnceValue(func() *rsa.PrivateKey {
		k, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			panic(err)
		}
		return k
	})
	testECKey = sync.OnceValue(func() *ecdsa.PrivateKey {
		k, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		if err != nil {
			panic(err)
		}
		return k
	})
)

// testClock is a settable clock.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func b64(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

func rsaJWK(kid, alg string, pub *rsa.PublicKey) map[string]any {
	m := map[string]any{
		"kty": "RSA",
		"kid": kid,
		"use": "sig",
		"n":   b64(pub.N.Bytes()),
		"e":   b64(big.NewInt(int64(pub.E)).Bytes()),
	}
	if alg != "" {
		m["alg"] = alg
	}
	return m
}

func ecJWK(kid, alg string, pub *ecdsa.PublicKey) map[string]any {
	size := (pub.Curve.Params().BitSize + 7) / 8
	m := map[string]any{
		"kty": "EC",
		"kid": kid,
		"crv": pub.Curve.Params().Name,
		"x":   b64(pub.X.FillBytes(make([]byte, size))),
		"y":   b64(pub.Y.FillBytes(make([]byte, size))),
	}
	if alg != "" {
		m["alg"] = alg
	}
	return m
}

func defaultKeys() []map[string]any {
	return []map[string]any{
		rsaJWK(testRSAKid, "RS256", &testRSAKey().PublicKey),
		ecJWK(testECKid, "ES256", &testECKey().PublicKey),
	}
}

// testIssuer is an identity provider serving discovery and JWKS documents.
type testIssuer struct {
	*httptest.Server

	mu     sync.Mutex
	keys   []map[string]any
	status int

	discoveryHits atomic.Int32
	jwksHits      atomic.Int32
}

func newTestIssuer(t *testing.T) *testIssuer {
	t.Helper()
	iss := &testIssuer{keys: defaultKeys(), status: http.StatusOK}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		iss.discoveryHits.Add(1)
		WriteJSON(w, http.StatusOK, map[string]string{
			"issuer":   iss.URL,
			"jwks_uri": iss.URL + "/jwks",
		})
	})
	mux.HandleFunc("GET /jwks", func(w http.ResponseWriter, r *http.Request) {
		iss.jwksHits.Add(1)
		iss.mu.Lock()
		status, keys := iss.status, iss.keys
		iss.mu.Unlock()
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{"keys": keys})
	})
	iss.Server = httptest.NewServer(mux)
	t.Cleanup(iss.Close)
	return iss
}

func (i *testIssuer) setKeys(keys ...map[string]any) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.keys = append([]map[string]any{}, keys...)
}

func (i *testIssuer) setStatus(status int) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.status = status
}

func (i *testIssuer) hits() int {
	return int(i.discoveryHits.Load() + i.jwksHits.Load())
}

// claimsAt returns a valid claim set for iss at now.
func (i *testIssuer) claimsAt(now time.Time, sub, email string) jwt.MapClaims {
	c := jwt.MapClaims{
		"iss": i.URL,
		"aud": testAudience,
		"sub": sub,
		"iat": now.Unix(),
		"exp": now.Add(5 * time.Minute).Unix(),
	}
	if email != "" {
		c["email"] = email
	}
	return c
}

func signRS256(t *testing.T, kid string, claims jwt.MapClaims) string {
	t.Helper()
	return signWith(t, jwt.SigningMethodRS256, testRSAKey(), kid, claims)
}

func signWith(t *testing.T, method jwt.SigningMethod, key any, kid string, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(method, claims)
	if kid != "" {
		tok.Header["kid"] = kid
	}
	s, err := tok.SignedString(key)
	require.NoError(t, err)
	return s
}

func newTestVerifier(t *testing.T, iss *testIssuer, clock *testClock) *TokenVerifier {
	t.Helper()
	cache := NewKeySetCache(KeySetCacheConfig{
		HTTPClient: iss.Client(),
		Clock:      clock.Now,
	})
	v, err := NewTokenVerifier(VerifierConfig{
		Issuer:    iss.URL,
		Audience:  testAudience,
		ClockSkew: 60 * time.Second,
		Clock:     clock.Now,
	}, cache)
	require.NoError(t, err)
	return v
}

// fakeDirectory is an in-memory UserDirectory.
type fakeDirectory struct {
	mu       sync.Mutex
	accounts []*models.UserAccount
	err      error
	lookups  []string
}

func (d *fakeDirectory) add(orgID uuid.UUID, email string, role models.Role) *models.UserAccount {
	d.mu.Lock()
	defer d.mu.Unlock()
	a := &models.UserAccount{
		ID:             uuid.New(),
		OrganisationID: orgID,
		Email:          email,
		DisplayName:    email,
		Role:           role,
	}
	d.accounts = append(d.accounts, a)
	return a
}

func (d *fakeDirectory) FindUserByEmail(_ context.Context, orgID uuid.UUID, email string) (*models.UserAccount, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lookups = append(d.lookups, email)
	if d.err != nil {
		return nil, d.err
	}
	for _, a := range d.accounts {
		if a.OrganisationID == orgID && a.Email == email {
			return a, nil
		}
	}
	return nil, sserr.New(sserr.CodeNotFoundUser, "user not found")
}

func (d *fakeDirectory) GetUser(_ context.Context, id uuid.UUID) (*models.UserAccount, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	for _, a := range d.accounts {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, sserr.New(sserr.CodeNotFoundUser, "user not found")
}

// recordingAudit captures audit events.
type recordingAudit struct {
	mu     sync.Mutex
	events []models.AuditEvent
	err    error
}

func (r *recordingAudit) Record(_ context.Context, ev models.AuditEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.err
}

func (r *recordingAudit) recorded() []models.AuditEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.AuditEvent(nil), r.events...)
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

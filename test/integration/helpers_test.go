// Package integration provides integration tests for the appgate API.
//
// Tests run against real appgate HTTP servers, one backed by an in-memory
// session store and one verifying signed session tokens against a JWKS
// endpoint, all started in-process using net/http/httptest.
package integration

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/rhuss/appgate/pkg/api"
	"github.com/rhuss/appgate/pkg/auth"
	"github.com/rhuss/appgate/pkg/registry"
	"github.com/rhuss/appgate/pkg/session"
	sessionjwt "github.com/rhuss/appgate/pkg/session/jwt"
	"github.com/rhuss/appgate/pkg/storage/memory"
	transporthttp "github.com/rhuss/appgate/pkg/transport/http"
)

// Session tokens seeded into the store or scripted in the resolver.
const (
	aliceToken    = "r:alice"
	boundToken    = "r:bound"
	expiredToken  = "r:expired"
	notFoundToken = "r:not-found"
	failingToken  = "r:boom"
)

const jwksKID = "integration-key"

// testEnv holds the shared servers for all integration tests.
var testEnv *TestEnvironment

// TestEnvironment holds the appgate servers and the JWKS endpoint.
type TestEnvironment struct {
	Gateway    *httptest.Server
	JWTGateway *httptest.Server
	JWKS       *httptest.Server
	Store      *memory.Store

	signingKey *rsa.PrivateKey
}

// TestMain starts the servers before running tests.
func TestMain(m *testing.M) {
	testEnv = setupTestEnvironment()
	code := m.Run()
	testEnv.Teardown()
	os.Exit(code)
}

func testRegistry() *registry.Memory {
	return registry.NewMemory(
		registry.App{ID: "app1", Name: "Open", MasterKey: "master1"},
		registry.App{ID: "keyed", Name: "Keyed", MasterKey: "masterK", ClientKey: "X"},
		registry.App{ID: "web", Name: "Web", MasterKey: "masterW", JavaScriptKey: "js1", RESTAPIKey: "rest1"},
	)
}

// setupTestEnvironment creates a store-backed gateway and a JWT gateway
// wired to a local JWKS endpoint.
func setupTestEnvironment() *TestEnvironment {
	store := memory.New(100)
	ctx := context.Background()
	seeds := []session.Record{
		{Token: aliceToken, AppID: "app1", UserID: "u-alice", Username: "alice"},
		{Token: boundToken, AppID: "app1", UserID: "u-bob", Username: "bob", InstallationID: "device-1"},
		{Token: expiredToken, AppID: "app1", UserID: "u-carol", ExpiresAt: time.Now().Add(-time.Minute)},
	}
	for _, rec := range seeds {
		if err := store.Save(ctx, rec); err != nil {
			panic(fmt.Sprintf("seeding session %s: %v", rec.Token, err))
		}
	}

	resolver := scriptedResolver(session.NewResolver(store))
	gateway := httptest.NewServer(transporthttp.NewAdapter(testRegistry(), resolver, transporthttp.DefaultConfig()).Handler())

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		panic(fmt.Sprintf("generating signing key: %v", err))
	}
	jwks := startJWKSServer(&key.PublicKey)

	jwtResolver := sessionjwt.New(sessionjwt.Config{
		Issuer:   "https://issuer.test",
		Audience: "appgate",
		JWKSURL:  jwks.URL + "/.well-known/jwks.json",
	})
	jwtGateway := httptest.NewServer(transporthttp.NewAdapter(testRegistry(), jwtResolver, transporthttp.DefaultConfig()).Handler())

	return &TestEnvironment{
		Gateway:    gateway,
		JWTGateway: jwtGateway,
		JWKS:       jwks,
		Store:      store,
		signingKey: key,
	}
}

// scriptedResolver wraps next with tokens that fail in known ways.
func scriptedResolver(next *session.Resolver) auth.SessionResolver {
	return sessionResolver{next: next}
}

type sessionResolver struct {
	next *session.Resolver
}

func (s sessionResolver) AuthForSessionToken(ctx context.Context, req auth.SessionRequest) (*auth.Auth, error) {
	switch req.SessionToken {
	case notFoundToken:
		return nil, api.Domain(api.CodeObjectNotFound, "Object not found.")
	case failingToken:
		return nil, errors.New("session backend exploded: secret-detail")
	}
	return s.next.AuthForSessionToken(ctx, req)
}

// Revoke keeps /logout wired to the store.
func (s sessionResolver) Revoke(ctx context.Context, token string) error {
	return s.next.Revoke(ctx, token)
}

// startJWKSServer serves pub as a single-key JWKS.
func startJWKSServer(pub *rsa.PublicKey) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /.well-known/jwks.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"keys": []map[string]string{{
				"kty": "RSA",
				"kid": jwksKID,
				"use": "sig",
				"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
			}},
		})
	})
	return httptest.NewServer(mux)
}

// Teardown closes all servers.
func (env *TestEnvironment) Teardown() {
	env.Gateway.Close()
	env.JWTGateway.Close()
	env.JWKS.Close()
	env.Store.Close()
}

// BaseURL returns the mount URL of the store-backed gateway.
func (env *TestEnvironment) BaseURL() string {
	return env.Gateway.URL + "/parse"
}

// signToken issues a session token accepted by the JWT gateway, with
// claims layered over the defaults.
func (env *TestEnvironment) signToken(t *testing.T, claims jwtlib.MapClaims) string {
	t.Helper()
	all := jwtlib.MapClaims{
		"sub":      "u-jwt",
		"username": "jwt-user",
		"app_id":   "app1",
		"iss":      "https://issuer.test",
		"aud":      "appgate",
		"exp":      time.Now().Add(time.Hour).Unix(),
		"iat":      time.Now().Unix(),
	}
	for k, v := range claims {
		all[k] = v
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodRS256, all)
	token.Header["kid"] = jwksKID
	s, err := token.SignedString(env.signingKey)
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return s
}

// doRequest sends a request with the given headers and body.
func doRequest(t *testing.T, method, url string, body io.Reader, headers map[string]string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		t.Fatalf("creating request: %v", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, url, err)
	}
	return resp
}

// postJSON sends body as JSON without any credential headers.
func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshaling request: %v", err)
	}
	return doRequest(t, http.MethodPost, url, bytes.NewReader(data), map[string]string{"Content-Type": "application/json"})
}

// getURL sends a GET request with the given headers.
func getURL(t *testing.T, url string, headers map[string]string) *http.Response {
	t.Helper()
	return doRequest(t, http.MethodGet, url, nil, headers)
}

// readBody reads and closes the response body.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading response body: %v", err)
	}
	return string(data)
}

// decodeJSON decodes and closes the response body.
func decodeJSON(t *testing.T, resp *http.Response, target any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
}

// expectError checks the status and error code of a rejected request.
func expectError(t *testing.T, resp *http.Response, status int, code api.Code) api.ErrorResponse {
	t.Helper()
	if resp.StatusCode != status {
		t.Errorf("status = %d, want %d", resp.StatusCode, status)
	}
	var body api.ErrorResponse
	decodeJSON(t, resp, &body)
	if body.Code != code {
		t.Errorf("code = %d, want %d (body %+v)", body.Code, code, body)
	}
	return body
}

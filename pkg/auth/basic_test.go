package auth

import (
	"encoding/base64"
	"testing"
)

func basicHeader(prefix, payload string) string {
	return prefix + base64.StdEncoding.EncodeToString([]byte(payload))
}

func TestParseBasicAuth(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   basicAuth
	}{
		{"master key", basicHeader("Basic ", "app1:secret"), basicAuth{appID: "app1", masterKey: "secret"}},
		{"javascript key", basicHeader("Basic ", "app1:javascript-key=js"), basicAuth{appID: "app1", javaScriptKey: "js"}},
		{"lowercase prefix", basicHeader("basic ", "app1:secret"), basicAuth{appID: "app1", masterKey: "secret"}},
		{"uppercase prefix", basicHeader("BASIC ", "app1:secret"), basicAuth{appID: "app1", masterKey: "secret"}},
		{"too many parts", basicHeader("Basic ", "app1:a:b"), basicAuth{}},
		{"one part", basicHeader("Basic ", "app1"), basicAuth{}},
		{"bearer", "Bearer token", basicAuth{}},
		{"bad base64", "Basic !!!", basicAuth{}},
		{"short", "Bas", basicAuth{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseBasicAuth(tt.header); got != tt.want {
				t.Errorf("parseBasicAuth(%q) = %+v, want %+v", tt.header, got, tt.want)
			}
		})
	}
}

func TestBasicAuthSource_Precedence(t *testing.T) {
	headers := Credentials{AppID: "header-app", MasterKey: "header-master", JavaScriptKey: "header-js"}

	src, ok := BasicAuthSource(basicHeader("Basic ", "basic-app:basic-master"))
	if !ok {
		t.Fatal("expected a source")
	}
	got := Merge(headers, src)

	if got.AppID != "basic-app" {
		t.Errorf("AppID = %q, want basic-app (basic always wins)", got.AppID)
	}
	if got.MasterKey != "header-master" {
		t.Errorf("MasterKey = %q, want header-master (header wins when present)", got.MasterKey)
	}

	got = Merge(Credentials{AppID: "header-app"}, src)
	if got.MasterKey != "basic-master" {
		t.Errorf("MasterKey = %q, want basic-master (fills the gap)", got.MasterKey)
	}
}

func TestBasicAuthSource_MalformedClearsAppID(t *testing.T) {
	src, ok := BasicAuthSource("Bearer abc")
	if !ok {
		t.Fatal("expected a source for a non-empty Authorization header")
	}
	got := Merge(Credentials{AppID: "header-app"}, src)
	if got.AppID != "" {
		t.Errorf("AppID = %q, want empty", got.AppID)
	}
}

func TestBasicAuthSource_Absent(t *testing.T) {
	if _, ok := BasicAuthSource(""); ok {
		t.Error("expected no source without an Authorization header")
	}
}

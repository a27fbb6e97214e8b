package auth

import (
	"encoding/base64"
	"strings"
)

const (
	basicPrefix         = "basic "
	javaScriptKeyPrefix = "javascript-key="
)

// basicAuth is the identity carried by an Authorization: Basic header.
type basicAuth struct {
	appID         string
	masterKey     string
	javaScriptKey string
}

// parseBasicAuth decodes "Basic base64(appId:key)". A key prefixed with
// javascript-key= is a JavaScript key, anything else a master key. Headers
// that are not Basic, or whose payload does not split into exactly two
// parts, yield a zero tuple.
func parseBasicAuth(header string) basicAuth {
	if len(header) < len(basicPrefix) || !strings.EqualFold(header[:len(basicPrefix)], basicPrefix) {
		return basicAuth{}
	}

	decoded, err := base64.StdEncoding.DecodeString(header[len(basicPrefix):])
	if err != nil {
		return basicAuth{}
	}

	parts := strings.Split(string(decoded), ":")
	if len(parts) != 2 {
		return basicAuth{}
	}

	ba := basicAuth{appID: parts[0]}
	if key, ok := strings.CutPrefix(parts[1], javaScriptKeyPrefix); ok {
		ba.javaScriptKey = key
	} else {
		ba.masterKey = parts[1]
	}
	return ba
}

// BasicAuthSource returns the Basic auth source, or false when the request
// has no Authorization header. The app id always replaces the header value,
// even when the header could not be decoded; the keys only fill gaps.
func BasicAuthSource(authorization string) (Source, bool) {
	if authorization == "" {
		return Source{}, false
	}
	ba := parseBasicAuth(authorization)
	return Source{
		Name: "basic",
		Assignments: []Assignment{
			{FieldAppID, ba.appID, Replace},
			{FieldMasterKey, ba.masterKey, Fill},
			{FieldJavaScriptKey, ba.javaScriptKey, Fill},
		},
	}, true
}

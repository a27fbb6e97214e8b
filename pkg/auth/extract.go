package auth

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/rhuss/appgate/pkg/api"
	"github.com/rhuss/appgate/pkg/registry"
	"github.com/rhuss/appgate/pkg/transport"
)

// Body fields used by SDKs that cannot set headers.
const (
	BodyApplicationID    = "_ApplicationId"
	BodyJavaScriptKey    = "_JavaScriptKey"
	BodyClientVersion    = "_ClientVersion"
	BodyInstallationID   = "_InstallationId"
	BodySessionToken     = "_SessionToken"
	BodyMasterKey        = "_MasterKey"
	BodyContentType      = "_ContentType"
	BodyRevocableSession = "_RevocableSession"
	BodyNoBody           = "_noBody"

	// bodyFilePayload holds the base64 file content of a JSON-wrapped upload.
	bodyFilePayload = "base64"
)

var bodyOverrideFields = []string{
	BodyApplicationID,
	BodyJavaScriptKey,
	BodyClientVersion,
	BodyInstallationID,
	BodySessionToken,
	BodyMasterKey,
	BodyContentType,
}

// LoginPath is the route, relative to the mount, on which an ambient
// session token is ignored.
const LoginPath = "/login"

// Extraction is the outcome of Extract.
type Extraction struct {
	Credentials Credentials
	App         *registry.App

	// Body is the sanitized body for downstream handlers. BodyChanged
	// reports whether it differs from the input.
	Body        transport.Body
	BodyChanged bool

	// ContentType, when set, replaces the request Content-Type header.
	ContentType string
}

// Extract gathers the credentials of a request. Sources apply in order:
// headers, then Basic auth, then (only if no registered app is named so
// far) body override fields. path is the request path relative to the
// mount. Inputs are never modified; the sanitized body is returned.
//
// The error is api.Unauthorized when no application can be identified.
func Extract(h http.Header, body transport.Body, reg registry.Registry, path string) (Extraction, error) {
	creds := Merge(Credentials{}, HeaderSource(h))
	if src, ok := BasicAuthSource(h.Get("Authorization")); ok {
		creds = Merge(creds, src)
	}

	ex := Extraction{Body: body}
	if body.Has(BodyNoBody) {
		ex.Body = body.Without(BodyNoBody)
		ex.BodyChanged = true
	}

	app, ok := lookup(reg, creds.AppID)
	fileViaJSON := false
	if !ok {
		if ex.Body.IsRaw() {
			var obj map[string]any
			if err := json.Unmarshal(ex.Body.Raw, &obj); err != nil || obj == nil {
				return Extraction{}, api.Unauthorized()
			}
			ex.Body = transport.Body{Object: obj}
			ex.BodyChanged = true
			fileViaJSON = true
		}
		if ex.Body.Has(BodyRevocableSession) {
			ex.Body = ex.Body.Without(BodyRevocableSession)
			ex.BodyChanged = true
		}

		bodyApp, found := lookup(reg, ex.Body.String(BodyApplicationID))
		if !found {
			return Extraction{}, api.Unauthorized()
		}
		if creds.MasterKey != "" && !keyEqual(creds.MasterKey, bodyApp.MasterKey) {
			return Extraction{}, api.Unauthorized()
		}
		if mk := ex.Body.String(BodyMasterKey); mk != "" && !keyEqual(mk, bodyApp.MasterKey) {
			return Extraction{}, api.Unauthorized()
		}

		creds = Merge(creds, bodySource(ex.Body))
		ex.ContentType = ex.Body.String(BodyContentType)
		ex.Body = ex.Body.Without(bodyOverrideFields...)
		ex.BodyChanged = true
		app = bodyApp
	}

	if creds.ClientVersion != "" {
		creds.ClientSDK = ParseClientSDK(creds.ClientVersion)
	}

	if fileViaJSON {
		payload, err := base64.StdEncoding.DecodeString(ex.Body.String(bodyFilePayload))
		if err != nil {
			return Extraction{}, api.Domain(api.CodeFileSaveError, "invalid base64 file payload")
		}
		ex.Body = transport.Body{Raw: payload}
	}

	if path == LoginPath {
		creds.SessionToken = ""
	}

	ex.Credentials = creds
	ex.App = app
	return ex, nil
}

// bodySource reads the override fields of an object body.
func bodySource(b transport.Body) Source {
	return Source{
		Name: "body",
		Assignments: []Assignment{
			{FieldAppID, b.String(BodyApplicationID), Replace},
			{FieldJavaScriptKey, b.String(BodyJavaScriptKey), Replace},
			{FieldClientVersion, b.String(BodyClientVersion), Prefer},
			{FieldInstallationID, b.String(BodyInstallationID), Prefer},
			{FieldSessionToken, b.String(BodySessionToken), Prefer},
			{FieldMasterKey, b.String(BodyMasterKey), Prefer},
		},
	}
}

func lookup(reg registry.Registry, appID string) (*registry.App, bool) {
	if appID == "" {
		return nil, false
	}
	return reg.App(appID)
}

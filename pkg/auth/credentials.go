package auth

import "net/http"

// Request headers carrying credentials. Lookups go through http.Header.Get,
// so matching is case-insensitive.
const (
	HeaderApplicationID  = "X-Parse-Application-Id"
	HeaderSessionToken   = "X-Parse-Session-Token"
	HeaderMasterKey      = "X-Parse-Master-Key"
	HeaderInstallationID = "X-Parse-Installation-Id"
	HeaderClientKey      = "X-Parse-Client-Key"
	HeaderJavaScriptKey  = "X-Parse-Javascript-Key"
	HeaderWindowsKey     = "X-Parse-Windows-Key"
	HeaderRESTAPIKey     = "X-Parse-REST-API-Key"
	HeaderClientVersion  = "X-Parse-Client-Version"
)

// Credentials are the candidate credentials of one request, merged from
// headers, Basic auth and body fields.
type Credentials struct {
	AppID          string
	SessionToken   string
	MasterKey      string
	InstallationID string
	ClientKey      string
	JavaScriptKey  string
	DotNetKey      string
	RESTAPIKey     string
	ClientVersion  string

	// ClientSDK is derived from ClientVersion; nil when absent or unparseable.
	ClientSDK *ClientSDK
}

// Field names one credential slot.
type Field int

const (
	FieldAppID Field = iota
	FieldSessionToken
	FieldMasterKey
	FieldInstallationID
	FieldClientKey
	FieldJavaScriptKey
	FieldDotNetKey
	FieldRESTAPIKey
	FieldClientVersion
)

var fieldNames = [...]string{
	FieldAppID:          "app_id",
	FieldSessionToken:   "session_token",
	FieldMasterKey:      "master_key",
	FieldInstallationID: "installation_id",
	FieldClientKey:      "client_key",
	FieldJavaScriptKey:  "javascript_key",
	FieldDotNetKey:      "dotnet_key",
	FieldRESTAPIKey:     "rest_api_key",
	FieldClientVersion:  "client_version",
}

func (f Field) String() string {
	if f >= 0 && int(f) < len(fieldNames) {
		return fieldNames[f]
	}
	return "unknown"
}

func (c *Credentials) slot(f Field) *string {
	switch f {
	case FieldAppID:
		return &c.AppID
	case FieldSessionToken:
		return &c.SessionToken
	case FieldMasterKey:
		return &c.MasterKey
	case FieldInstallationID:
		return &c.InstallationID
	case FieldClientKey:
		return &c.ClientKey
	case FieldJavaScriptKey:
		return &c.JavaScriptKey
	case FieldDotNetKey:
		return &c.DotNetKey
	case FieldRESTAPIKey:
		return &c.RESTAPIKey
	case FieldClientVersion:
		return &c.ClientVersion
	default:
		return nil
	}
}

// Get returns the value of field f.
func (c Credentials) Get(f Field) string {
	if p := c.slot(f); p != nil {
		return *p
	}
	return ""
}

// Policy decides how a source value combines with what earlier sources
// produced.
type Policy int

const (
	// Fill sets the field only if no earlier source set it.
	Fill Policy = iota
	// Prefer sets the field whenever the source value is non-empty.
	Prefer
	// Replace always sets the field, even to "".
	Replace
)

// Assignment is one field contributed by a source.
type Assignment struct {
	Field  Field
	Value  string
	Policy Policy
}

// Source is a named, ordered set of assignments.
type Source struct {
	Name        string
	Assignments []Assignment
}

// Merge applies sources in order onto base and returns the result. base is
// not modified.
func Merge(base Credentials, sources ...Source) Credentials {
	out := base
	for _, src := range sources {
		for _, a := range src.Assignments {
			p := out.slot(a.Field)
			if p == nil {
				continue
			}
			switch a.Policy {
			case Fill:
				if *p == "" {
					*p = a.Value
				}
			case Prefer:
				if a.Value != "" {
					*p = a.Value
				}
			case Replace:
				*p = a.Value
			}
		}
	}
	return out
}

// HeaderSource seeds every field from the request headers.
func HeaderSource(h http.Header) Source {
	return Source{
		Name: "header",
		Assignments: []Assignment{
			{FieldAppID, h.Get(HeaderApplicationID), Prefer},
			{FieldSessionToken, h.Get(HeaderSessionToken), Prefer},
			{FieldMasterKey, h.Get(HeaderMasterKey), Prefer},
			{FieldInstallationID, h.Get(HeaderInstallationID), Prefer},
			{FieldClientKey, h.Get(HeaderClientKey), Prefer},
			{FieldJavaScriptKey, h.Get(HeaderJavaScriptKey), Prefer},
			{FieldDotNetKey, h.Get(HeaderWindowsKey), Prefer},
			{FieldRESTAPIKey, h.Get(HeaderRESTAPIKey), Prefer},
			{FieldClientVersion, h.Get(HeaderClientVersion), Prefer},
		},
	}
}

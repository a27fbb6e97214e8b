package auth

import "github.com/rhuss/appgate/pkg/registry"

// Rejection reasons reported in metrics and logs.
const (
	ReasonUnknownApp        = "unknown_app"
	ReasonClientKeyMismatch = "client_key_mismatch"
	ReasonEmptySession      = "empty_session"
)

// Resolution is the outcome of Resolve.
type Resolution struct {
	Decision Decision
	Auth     *Auth  // populated only when Decision == Yes
	Reason   string // populated only when Decision == No
}

// Resolve decides the privilege level of creds against app.
//
// A master key equal to the app's yields master privileges; the session
// token is then ignored. Otherwise each client key the app configures is
// compared with the presented value. The request is rejected only when at
// least one key is configured and all configured keys mismatch, so apps
// without client keys accept any caller. A caller that passes without a
// session token gets a client Auth; with a token the resolver abstains.
func Resolve(creds Credentials, app *registry.App) Resolution {
	if keyEqual(creds.MasterKey, app.MasterKey) {
		return Resolution{Decision: Yes, Auth: NewMaster(app.ID, creds.InstallationID)}
	}

	pairs := [...]struct{ presented, configured string }{
		{creds.ClientKey, app.ClientKey},
		{creds.JavaScriptKey, app.JavaScriptKey},
		{creds.DotNetKey, app.DotNetKey},
		{creds.RESTAPIKey, app.RESTAPIKey},
	}

	configured, mismatched := 0, 0
	for _, p := range pairs {
		if p.configured == "" {
			continue
		}
		configured++
		if !keyEqual(p.presented, p.configured) {
			mismatched++
		}
	}
	if configured > 0 && mismatched == configured {
		return Resolution{Decision: No, Reason: ReasonClientKeyMismatch}
	}

	if creds.SessionToken == "" {
		return Resolution{Decision: Yes, Auth: NewClient(app.ID, creds.InstallationID)}
	}
	return Resolution{Decision: Abstain}
}

package http

import (
	"net/http"

	"github.com/rhuss/appgate/pkg/api"
	"github.com/rhuss/appgate/pkg/auth"
	"github.com/rhuss/appgate/pkg/transport"
)

// userResponse is the body of GET /users/me.
type userResponse struct {
	ObjectID     string `json:"objectId"`
	Username     string `json:"username,omitempty"`
	SessionToken string `json:"sessionToken"`
}

// sessionResponse is the body of GET /sessions/me.
type sessionResponse struct {
	SessionToken   string     `json:"sessionToken"`
	User           *auth.User `json:"user"`
	InstallationID string     `json:"installationId,omitempty"`
}

// userSession returns the request's user session or the invalid token error.
func userSession(r *http.Request) (*auth.Auth, error) {
	a := auth.FromContext(r.Context())
	if a == nil || a.Kind != auth.KindUserSession {
		return nil, api.Domain(api.CodeInvalidSessionToken, "invalid session token")
	}
	return a, nil
}

func (a *Adapter) handleUsersMe(w http.ResponseWriter, r *http.Request) error {
	s, err := userSession(r)
	if err != nil {
		return err
	}
	transport.WriteJSON(w, http.StatusOK, userResponse{
		ObjectID:     s.User.ID,
		Username:     s.User.Username,
		SessionToken: s.SessionToken,
	})
	return nil
}

func (a *Adapter) handleSessionsMe(w http.ResponseWriter, r *http.Request) error {
	s, err := userSession(r)
	if err != nil {
		return err
	}
	transport.WriteJSON(w, http.StatusOK, sessionResponse{
		SessionToken:   s.SessionToken,
		User:           s.User,
		InstallationID: s.InstallationID,
	})
	return nil
}

// handleLogin never issues sessions: user accounts and passwords live
// outside this server. The auth stage has already dropped any session
// token, so a caller reaching this point is a client or master.
func (a *Adapter) handleLogin(w http.ResponseWriter, r *http.Request) error {
	body := transport.BodyFromContext(r.Context())
	if body.String("username") == "" {
		return api.Domain(api.CodeUsernameMissing, "username is required")
	}
	return api.Domain(api.CodeObjectNotFound, "Invalid username/password.")
}

func (a *Adapter) handleLogout(w http.ResponseWriter, r *http.Request) error {
	s, err := userSession(r)
	if err != nil {
		return err
	}
	if a.revoker != nil {
		if err := a.revoker.Revoke(r.Context(), s.SessionToken); err != nil {
			return err
		}
	}
	transport.WriteJSON(w, http.StatusOK, struct{}{})
	return nil
}

// configResponse is the body of GET /config. Keys are masked.
type configResponse struct {
	AppID         string `json:"appId"`
	Name          string `json:"name,omitempty"`
	MountURL      string `json:"mountURL"`
	MasterKey     string `json:"masterKey"`
	ClientKey     string `json:"clientKey,omitempty"`
	JavaScriptKey string `json:"javascriptKey,omitempty"`
	DotNetKey     string `json:"dotNetKey,omitempty"`
	RESTAPIKey    string `json:"restAPIKey,omitempty"`
}

func (a *Adapter) handleConfig(w http.ResponseWriter, r *http.Request) {
	info := auth.RequestInfoFromContext(r.Context())
	app := info.Config.App
	transport.WriteJSON(w, http.StatusOK, configResponse{
		AppID:         info.Config.AppID,
		Name:          app.Name,
		MountURL:      info.Config.MountURL,
		MasterKey:     auth.Mask(app.MasterKey),
		ClientKey:     auth.Mask(app.ClientKey),
		JavaScriptKey: auth.Mask(app.JavaScriptKey),
		DotNetKey:     auth.Mask(app.DotNetKey),
		RESTAPIKey:    auth.Mask(app.RESTAPIKey),
	})
}

func (a *Adapter) handleServerInfo(w http.ResponseWriter, r *http.Request) error {
	if err := auth.RequireMaster(r.Context()); err != nil {
		return err
	}
	transport.WriteJSON(w, http.StatusOK, map[string]any{
		"version":   a.config.Version,
		"mountPath": a.config.MountPath,
		"features": map[string]bool{
			"sessions":          a.sessions != nil,
			"sessionRevocation": a.revoker != nil,
		},
	})
	return nil
}

// fileResponse is the body of POST /files/{name}.
type fileResponse struct {
	Name        string `json:"name"`
	Size        int    `json:"size"`
	ContentType string `json:"contentType,omitempty"`
}

// handleCreateFile acknowledges an upload. Storing file content is out of
// scope; the handler reports what the pipeline delivered.
func (a *Adapter) handleCreateFile(w http.ResponseWriter, r *http.Request) error {
	body := transport.BodyFromContext(r.Context())
	if !body.IsRaw() {
		return api.Domain(api.CodeFileSaveError, "file payload is required")
	}
	transport.WriteJSON(w, http.StatusCreated, fileResponse{
		Name:        r.PathValue("name"),
		Size:        len(body.Raw),
		ContentType: r.Header.Get("Content-Type"),
	})
	return nil
}

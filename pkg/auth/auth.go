package auth

import (
	"errors"
	"fmt"
)

// Decision represents the three possible outcomes of identity resolution.
type Decision int

const (
	// Yes means the credentials are sufficient. The Auth is attached and the
	// request continues.
	Yes Decision = iota

	// No means the credentials are present but invalid. The request is
	// rejected.
	No

	// Abstain means the resolver cannot decide alone: a session token has
	// to be exchanged first.
	Abstain
)

func (d Decision) String() string {
	switch d {
	case Yes:
		return "yes"
	case No:
		return "no"
	case Abstain:
		return "abstain"
	default:
		return fmt.Sprintf("decision(%d)", int(d))
	}
}

// Kind tags the variant of an Auth.
type Kind int

const (
	KindMaster Kind = iota
	KindUnauthenticatedClient
	KindUserSession
)

// String returns the metric label used for the kind.
func (k Kind) String() string {
	switch k {
	case KindMaster:
		return "master"
	case KindUnauthenticatedClient:
		return "client"
	case KindUserSession:
		return "user"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// User is the identity behind a session token.
type User struct {
	ID       string `json:"objectId"`
	Username string `json:"username,omitempty"`
}

// Auth is the authorization context of a request.
type Auth struct {
	Kind           Kind
	AppID          string
	InstallationID string

	// User and SessionToken are set for KindUserSession only.
	User         *User
	SessionToken string
}

// NewMaster returns an Auth with full privileges over appID.
func NewMaster(appID, installationID string) *Auth {
	return &Auth{Kind: KindMaster, AppID: appID, InstallationID: installationID}
}

// NewClient returns an app-scoped Auth with no user.
func NewClient(appID, installationID string) *Auth {
	return &Auth{Kind: KindUnauthenticatedClient, AppID: appID, InstallationID: installationID}
}

// NewUserSession returns an app-scoped Auth for a resolved session.
func NewUserSession(appID, installationID, sessionToken string, user User) *Auth {
	return &Auth{
		Kind:           KindUserSession,
		AppID:          appID,
		InstallationID: installationID,
		User:           &user,
		SessionToken:   sessionToken,
	}
}

// IsMaster reports whether a carries master privileges.
func (a *Auth) IsMaster() bool {
	return a != nil && a.Kind == KindMaster
}

// Valid checks that a is fully populated for its kind.
func (a *Auth) Valid() error {
	if a == nil {
		return errors.New("nil auth")
	}
	if a.AppID == "" {
		return errors.New("auth has no app id")
	}
	switch a.Kind {
	case KindMaster, KindUnauthenticatedClient:
		if a.User != nil {
			return fmt.Errorf("%s auth carries a user", a.Kind)
		}
	case KindUserSession:
		if a.User == nil || a.User.ID == "" {
			return errors.New("user session auth has no user id")
		}
	default:
		return fmt.Errorf("unknown auth kind %d", int(a.Kind))
	}
	return nil
}

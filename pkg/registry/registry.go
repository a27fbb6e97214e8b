// Package registry holds the configured application identities that the
// auth pipeline validates credentials against.
//
// Lookups are read-only and safe for concurrent use. Population is the job
// of a loader (static config, a watched YAML file, or a PostgreSQL table)
// that swaps complete snapshots into a [Memory] registry.
package registry

import (
	"errors"
	"fmt"
)

// App is the registered configuration of one application.
type App struct {
	ID            string `yaml:"app_id" json:"app_id"`
	Name          string `yaml:"name" json:"name,omitempty"`
	MasterKey     string `yaml:"master_key" json:"master_key"`
	ClientKey     string `yaml:"client_key" json:"client_key,omitempty"`
	JavaScriptKey string `yaml:"javascript_key" json:"javascript_key,omitempty"`
	DotNetKey     string `yaml:"dotnet_key" json:"dotnet_key,omitempty"`
	RESTAPIKey    string `yaml:"rest_api_key" json:"rest_api_key,omitempty"`
}

// Validate checks that the app can take part in credential checks.
func (a App) Validate() error {
	if a.ID == "" {
		return errors.New("app_id is required")
	}
	if a.MasterKey == "" {
		return fmt.Errorf("app %q: master_key is required", a.ID)
	}
	return nil
}

// Registry looks up applications by id.
type Registry interface {
	// App returns the registered app, or false if the id is unknown.
	App(appID string) (*App, bool)
}

// Func adapts a plain function to the Registry interface.
type Func func(appID string) (*App, bool)

// App implements Registry.
func (f Func) App(appID string) (*App, bool) {
	return f(appID)
}

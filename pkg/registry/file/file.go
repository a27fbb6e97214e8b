// Package file loads the app registry from a YAML file and reloads it
// when the file changes on disk.
//
// The file format is:
//
//	apps:
//	  - app_id: myapp
//	    master_key: secret
//	    javascript_key: js-key
package file

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/rhuss/appgate/pkg/debug"
	"github.com/rhuss/appgate/pkg/registry"
)

// document is the on-disk layout of an apps file.
type document struct {
	Apps []registry.App `yaml:"apps"`
}

// Loader reads apps from a YAML file. It implements registry.Loader.
type Loader struct {
	Path string
}

// Ensure Loader implements registry.Loader at compile time.
var _ registry.Loader = (*Loader)(nil)

// LoadApps reads and parses the apps file.
func (l *Loader) LoadApps(_ context.Context) ([]registry.App, error) {
	data, err := os.ReadFile(l.Path)
	if err != nil {
		return nil, err
	}
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", l.Path, err)
	}
	return doc.Apps, nil
}

// Watcher keeps a registry in sync with an apps file.
type Watcher struct {
	loader   *Loader
	target   *registry.Memory
	debounce time.Duration
	watcher  *fsnotify.Watcher
}

// NewWatcher loads path into target and prepares to watch it. The initial
// load must succeed; later reload failures keep the previous snapshot.
func NewWatcher(ctx context.Context, path string, target *registry.Memory) (*Watcher, error) {
	loader := &Loader{Path: path}
	if err := registry.Refresh(ctx, loader, target); err != nil {
		return nil, err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}

	// Watch the directory: editors and config-map mounts replace the file
	// via rename, which drops a watch placed on the file itself.
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watching %s: %w", filepath.Dir(path), err)
	}

	return &Watcher{
		loader:   loader,
		target:   target,
		debounce: 100 * time.Millisecond,
		watcher:  fw,
	}, nil
}

// Run processes file events until ctx is cancelled, then closes the watcher.
func (w *Watcher) Run(ctx context.Context) {
	defer w.watcher.Close()

	name := filepath.Clean(w.loader.Path)
	var pending <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != name {
				continue
			}
			debug.Log("registry", "apps file event", "path", name, "op", ev.Op.String())
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				pending = time.After(w.debounce)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("apps file watcher error", "path", name, "error", err)

		case <-pending:
			pending = nil
			if err := registry.Refresh(ctx, w.loader, w.target); err != nil {
				slog.Warn("apps file reload failed", "path", name, "error", err)
				continue
			}
			slog.Info("apps file reloaded", "path", name, "apps", w.target.Len())
		}
	}
}

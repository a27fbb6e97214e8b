package registry

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestMemory_Lookup(t *testing.T) {
	m := NewMemory(App{ID: "app1", MasterKey: "mk1", ClientKey: "ck1"})

	app, ok := m.App("app1")
	if !ok {
		t.Fatal("App(app1) not found")
	}
	if app.MasterKey != "mk1" || app.ClientKey != "ck1" {
		t.Errorf("App(app1) = %+v, want master mk1, client ck1", app)
	}

	if _, ok := m.App("missing"); ok {
		t.Error("App(missing) found, want not found")
	}
	if _, ok := m.App(""); ok {
		t.Error("App(\"\") found, want not found")
	}
}

func TestMemory_LookupReturnsCopy(t *testing.T) {
	m := NewMemory(App{ID: "app1", MasterKey: "mk1"})

	app, _ := m.App("app1")
	app.MasterKey = "tampered"

	again, _ := m.App("app1")
	if again.MasterKey != "mk1" {
		t.Errorf("registry state mutated through returned app: MasterKey = %q", again.MasterKey)
	}
}

func TestMemory_ReplaceValidation(t *testing.T) {
	tests := []struct {
		name    string
		apps    []App
		wantErr string
	}{
		{"missing id", []App{{MasterKey: "mk"}}, "app_id is required"},
		{"missing master key", []App{{ID: "a"}}, "master_key is required"},
		{"duplicate", []App{{ID: "a", MasterKey: "1"}, {ID: "a", MasterKey: "2"}}, "duplicate app_id"},
		{"valid", []App{{ID: "a", MasterKey: "1"}, {ID: "b", MasterKey: "2"}}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMemory(App{ID: "old", MasterKey: "old"})
			err := m.Replace(tt.apps)

			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Replace() unexpected error: %v", err)
				}
				if _, ok := m.App("old"); ok {
					t.Error("old snapshot still visible after successful Replace")
				}
				return
			}

			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Replace() error = %v, want containing %q", err, tt.wantErr)
			}
			if _, ok := m.App("old"); !ok {
				t.Error("previous snapshot lost after failed Replace")
			}
		})
	}
}

func TestApp_Validate(t *testing.T) {
	appOf := func(id, mk string) App { return App{ID: id, MasterKey: mk} }

	if err := appOf("a", "mk").Validate(); err != nil {
		t.Errorf("Validate() on returned value: %v", err)
	}
	if err := appOf("a", "").Validate(); err == nil || !strings.Contains(err.Error(), "master_key is required") {
		t.Errorf("Validate() error = %v, want master_key is required", err)
	}
}

func TestMemory_IDsSorted(t *testing.T) {
	m := NewMemory(
		App{ID: "zeta", MasterKey: "z"},
		App{ID: "alpha", MasterKey: "a"},
	)
	ids := m.IDs()
	if len(ids) != 2 || ids[0] != "alpha" || ids[1] != "zeta" {
		t.Errorf("IDs() = %v, want [alpha zeta]", ids)
	}
	if m.Len() != 2 {
		t.Errorf("Len() = %d, want 2", m.Len())
	}
}

func TestMemory_ConcurrentReaders(t *testing.T) {
	m := NewMemory(App{ID: "app1", MasterKey: "mk1"})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				if _, ok := m.App("app1"); !ok {
					t.Error("app1 disappeared during concurrent replace")
					return
				}
			}
		}()
	}
	for j := 0; j < 50; j++ {
		m.Replace([]App{{ID: "app1", MasterKey: "mk1"}})
	}
	wg.Wait()
}

type staticLoader struct {
	mu   sync.Mutex
	apps []App
	err  error
}

func (l *staticLoader) LoadApps(_ context.Context) ([]App, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.apps, l.err
}

func (l *staticLoader) set(apps []App, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.apps, l.err = apps, err
}

func TestRefresh(t *testing.T) {
	m := NewMemory()
	loader := &staticLoader{apps: []App{{ID: "app1", MasterKey: "mk1"}}}

	if err := Refresh(context.Background(), loader, m); err != nil {
		t.Fatalf("Refresh() error: %v", err)
	}
	if _, ok := m.App("app1"); !ok {
		t.Error("app1 not loaded")
	}

	loader.set(nil, errors.New("db down"))
	if err := Refresh(context.Background(), loader, m); err == nil {
		t.Error("Refresh() with failing loader: want error")
	}
	if _, ok := m.App("app1"); !ok {
		t.Error("failed refresh dropped existing snapshot")
	}
}

func TestRunRefresher(t *testing.T) {
	m := NewMemory()
	loader := &staticLoader{apps: []App{{ID: "app1", MasterKey: "mk1"}}}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		RunRefresher(ctx, loader, m, 5*time.Millisecond)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for m.Len() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	if _, ok := m.App("app1"); !ok {
		t.Error("refresher never loaded app1")
	}
}

func TestFunc(t *testing.T) {
	r := Func(func(id string) (*App, bool) {
		if id == "x" {
			return &App{ID: "x", MasterKey: "m"}, true
		}
		return nil, false
	})
	if _, ok := r.App("x"); !ok {
		t.Error("Func registry did not find x")
	}
}

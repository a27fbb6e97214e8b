package debug

import (
	"bytes"
	"log/slog"
	"slices"
	"strings"
	"testing"
)

func TestParseCategories(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  map[string]bool
	}{
		{"empty", "", map[string]bool{}},
		{"single", "auth", map[string]bool{"auth": true}},
		{"multiple", "auth,sessions", map[string]bool{"auth": true, "sessions": true}},
		{"all", "all", map[string]bool{"all": true}},
		{"with spaces", " auth , sessions ", map[string]bool{"auth": true, "sessions": true}},
		{"uppercase normalized", "AUTH,Sessions", map[string]bool{"auth": true, "sessions": true}},
		{"empty segments", "auth,,sessions", map[string]bool{"auth": true, "sessions": true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseCategories(tt.input)
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("got[%q] = %v, want %v", k, got[k], v)
				}
			}
			if len(got) != len(tt.want) {
				t.Errorf("len(got) = %d, want %d", len(got), len(tt.want))
			}
		})
	}
}

func TestEnabled(t *testing.T) {
	orig := categories
	defer func() { categories = orig }()

	categories = parseCategories("auth,registry")

	if !Enabled("auth") || !Enabled("registry") {
		t.Error("auth and registry should be enabled")
	}
	if Enabled("storage") {
		t.Error("storage should not be enabled")
	}
	if Enabled("all") {
		t.Error("all should not be enabled (not in categories)")
	}
}

func TestEnabled_All(t *testing.T) {
	orig := categories
	defer func() { categories = orig }()

	categories = parseCategories("all")

	for _, c := range []string{"auth", "sessions", "anything"} {
		if !Enabled(c) {
			t.Errorf("%s should be enabled via 'all'", c)
		}
	}
}

func TestInitEnvOverridesConfig(t *testing.T) {
	orig := categories
	defer func() { categories = orig }()

	t.Setenv(EnvCategories, "storage")
	Init("auth")
	if !Enabled("storage") || Enabled("auth") {
		t.Errorf("categories = %v, want env value", Categories())
	}

	t.Setenv(EnvCategories, "")
	Init("auth, sessions")
	if got := Categories(); !slices.Equal(got, []string{"auth", "sessions"}) {
		t.Errorf("Categories() = %v, want [auth sessions]", got)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"TRACE", LevelTrace},
		{"trace", LevelTrace},
		{"DEBUG", slog.LevelDebug},
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"WARNING", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"unknown", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("short", 10); got != "short" {
		t.Errorf("Truncate short = %q, want %q", got, "short")
	}
	if got := Truncate("this is a long string", 10); got != "this is a ..." {
		t.Errorf("Truncate long = %q, want %q", got, "this is a ...")
	}
}

func TestLogRespectsCategories(t *testing.T) {
	orig := categories
	prev := slog.Default()
	defer func() {
		categories = orig
		slog.SetDefault(prev)
	}()

	var buf bytes.Buffer
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: LevelTrace})))

	categories = parseCategories("")
	Log("auth", "hidden")
	Trace("auth", "hidden too")
	if buf.Len() != 0 {
		t.Fatalf("disabled category logged: %q", buf.String())
	}

	categories = parseCategories("auth")
	Log("auth", "shown", "app_id", "app1")
	Trace("auth", "traced")
	out := buf.String()
	for _, want := range []string{"shown", "debug=auth", "app_id=app1", "traced"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output %q missing %q", out, want)
		}
	}
	if !TraceIsEnabled("auth") || TraceIsEnabled("storage") {
		t.Error("TraceIsEnabled does not follow categories")
	}
}

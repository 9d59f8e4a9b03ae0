package overrides

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestParseKV(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantKey   string
		wantValue any
		wantErr   bool
	}{
		{name: "simple string", input: "course_id=12345abc", wantKey: "course_id", wantValue: "12345abc"},
		{name: "integer value", input: "seed=42", wantKey: "seed", wantValue: 42},
		{name: "float value", input: "points_possible=95.5", wantKey: "points_possible", wantValue: 95.5},
		{name: "boolean true", input: "show_hidden=true", wantKey: "show_hidden", wantValue: true},
		{name: "boolean false", input: "filtering=false", wantKey: "filtering", wantValue: false},
		{name: "null value", input: "seed=null", wantKey: "seed", wantValue: nil},
		{name: "empty value", input: "token=", wantKey: "token", wantValue: ""},
		{name: "value with equals sign", input: "equation=a=b+c", wantKey: "equation", wantValue: "a=b+c"},
		{name: "spaces around key and value", input: " key = value ", wantKey: "key", wantValue: "value"},
		{name: "negative integer", input: "seed=-10", wantKey: "seed", wantValue: -10},
		{name: "missing equals sign", input: "invalid", wantErr: true},
		{name: "empty key", input: "=value", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, value, err := ParseKV(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseKV() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if key != tt.wantKey {
				t.Errorf("ParseKV() key = %v, want %v", key, tt.wantKey)
			}
			if !reflect.DeepEqual(value, tt.wantValue) {
				t.Errorf("ParseKV() value = %v (type: %T), want %v (type: %T)",
					value, value, tt.wantValue, tt.wantValue)
			}
		})
	}
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.json")
	bad := filepath.Join(dir, "bad.json")
	_ = os.WriteFile(good, []byte(`{"seed": 42, "show_hidden": true}`), 0644)
	_ = os.WriteFile(bad, []byte(`{"seed": `), 0644)

	got, err := ParseFile(good)
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}
	want := map[string]any{"seed": float64(42), "show_hidden": true}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseFile() = %v, want %v", got, want)
	}

	if _, err := ParseFile(bad); err == nil {
		t.Error("expected error for malformed JSON")
	}
	if _, err := ParseFile(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestParseEnvWithPrefix(t *testing.T) {
	t.Setenv("OTTERBOX_TEST", `{"base": "value", "seed": 1}`)
	t.Setenv("OTTERBOX_TEST_SEED", "42")
	t.Setenv("OTTERBOX_TEST_SHOW_HIDDEN", "true")

	got := ParseEnvWithPrefix("OTTERBOX_TEST")
	want := map[string]any{"base": "value", "seed": 42, "show_hidden": true}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseEnvWithPrefix() = %v, want %v", got, want)
	}

	if got := ParseEnvWithPrefix("OTTERBOX_UNSET_PREFIX"); got != nil {
		t.Errorf("expected nil for unset prefix, got %v", got)
	}
}

func TestMergeSources(t *testing.T) {
	tests := []struct {
		name    string
		sources []any
		want    any
	}{
		{name: "no sources", sources: nil, want: nil},
		{
			name: "later overrides earlier",
			sources: []any{
				map[string]any{"seed": 1, "token": "a"},
				map[string]any{"seed": 2},
			},
			want: map[string]any{"seed": 2, "token": "a"},
		},
		{name: "non-object first wins", sources: []any{[]any{1, 2}}, want: []any{1, 2}},
		{
			name:    "non-object after object ignored",
			sources: []any{map[string]any{"a": 1}, "scalar"},
			want:    map[string]any{"a": 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MergeSources(tt.sources...); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("MergeSources() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBuildPrecedence(t *testing.T) {
	t.Setenv("OTTERBOX_PRECEDENCE", `{"env": "value", "override": "env"}`)

	dir := t.TempDir()
	file := filepath.Join(dir, "config.json")
	_ = os.WriteFile(file, []byte(`{"file": true, "override": "file"}`), 0644)

	got, err := BuildMap("OTTERBOX_PRECEDENCE", Sources{
		File: file,
		JSON: `{"json": 1, "override": "json"}`,
		KV:   []string{"override=kv"},
	})
	if err != nil {
		t.Fatalf("BuildMap() error = %v", err)
	}

	want := map[string]any{
		"env":      "value",
		"file":     true,
		"json":     float64(1),
		"override": "kv",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("BuildMap() = %v, want %v", got, want)
	}
}

func TestBuildMapRejectsNonObject(t *testing.T) {
	if _, err := BuildMap("OTTERBOX_NONE_SET", Sources{JSON: `[1, 2]`}); err == nil {
		t.Error("expected error for non-object JSON")
	}
	got, err := BuildMap("OTTERBOX_NONE_SET", Sources{})
	if err != nil || len(got) != 0 {
		t.Errorf("BuildMap() = %v, %v; want empty map", got, err)
	}
}

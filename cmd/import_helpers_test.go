package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/KaramelBytes/rowloom-cli/internal/csvtext"
	"github.com/KaramelBytes/rowloom-cli/internal/dataimport"
	"github.com/KaramelBytes/rowloom-cli/internal/logging"
	"github.com/KaramelBytes/rowloom-cli/internal/mapping"
)

func TestBuildOverridePrecedence(t *testing.T) {
	dir := t.TempDir()
	mp := filepath.Join(dir, "m.yaml")
	if err := os.WriteFile(mp, []byte("input: q\nmetadata: cost\ntypes:\n  cost: string\n"), 0o644); err != nil {
		t.Fatalf("write mapping: %v", err)
	}

	m, err := buildOverride(mp, map[mapping.Role]string{mapping.RoleMetadata: "tokens"}, []string{"tokens=number"})
	if err != nil {
		t.Fatalf("buildOverride: %v", err)
	}
	if m.Input != "q" || m.Metadata != "tokens" || m.ExpectedOutput != "" {
		t.Fatalf("unexpected mapping: %+v", m)
	}
	if m.TypeOf("tokens") != mapping.TypeNumber || m.TypeOf("cost") != mapping.TypeString {
		t.Fatalf("unexpected types: %v", m.Types)
	}

	none, err := buildOverride("", map[mapping.Role]string{mapping.RoleInput: ""}, nil)
	if err != nil || none != nil {
		t.Fatalf("expected nil override, got %+v, %v", none, err)
	}
}

func TestParseTypePairs(t *testing.T) {
	got, err := parseTypePairs([]string{"a=b=number", "x=text"})
	if err != nil {
		t.Fatalf("parseTypePairs: %v", err)
	}
	if got["a=b"] != mapping.TypeNumber || got["x"] != mapping.TypeString {
		t.Fatalf("unexpected pairs: %v", got)
	}
	for _, bad := range []string{"nocolumn", "=number", "a=bool"} {
		if _, err := parseTypePairs([]string{bad}); err == nil {
			t.Fatalf("%q: expected error", bad)
		}
	}
}

func TestItemsPayload(t *testing.T) {
	im := dataimport.NewImporter(nil, mapping.Options{}, 0)
	plan, err := im.Build(csvtext.Parse("question,answer,score\nq,a,1\n"), nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	v, err := itemsPayload(plan, "header")
	if err != nil {
		t.Fatalf("itemsPayload: %v", err)
	}
	rows := v.([]map[string]any)
	if rows[0]["score"] != float64(1) || rows[0]["question"] != "q" {
		t.Fatalf("unexpected header-keyed item: %v", rows[0])
	}
	if _, err := itemsPayload(plan, "columns"); err == nil {
		t.Fatalf("expected error for unknown layout")
	}
}

func TestRenderMappingMarksUnsetRoles(t *testing.T) {
	var buf bytes.Buffer
	renderMapping(&buf, mapping.Mapping{Input: "q"})
	out := buf.String()
	if !strings.Contains(out, "(unset)") || !strings.Contains(out, "q") {
		t.Fatalf("unexpected table:\n%s", out)
	}
}

func TestEffectiveConfigDefaults(t *testing.T) {
	saved := cfg
	t.Cleanup(func() { cfg = saved })
	cfg = nil

	c := effectiveConfig()
	if c.SampleRows != mapping.DefaultSampleRows {
		t.Fatalf("sample rows = %d, want %d", c.SampleRows, mapping.DefaultSampleRows)
	}
	if c.LogLevel != logging.DefaultLevel {
		t.Fatalf("log level = %q, want %q", c.LogLevel, logging.DefaultLevel)
	}
}

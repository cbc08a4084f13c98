package state

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/spf13/afero"
)

func TestStore_LoadMissing(t *testing.T) {
	s := NewStore(afero.NewMemMapFs(), "/p/.claude/.mcs-project")
	st, err := s.Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if len(st.ConfiguredPacks) != 0 || st.PackArtifacts == nil {
		t.Errorf("empty state = %+v", st)
	}
}

func TestStore_RoundTrip(t *testing.T) {
	fsys := afero.NewMemMapFs()
	s := NewStore(fsys, "/p/.claude/.mcs-project")

	st := New()
	st.SetPack("ios", &ArtifactRecord{
		MCPServers: []ServerRef{{Name: "xbuild", Scope: "local"}},
		Files:      []string{"hooks/hook.sh"},
	})
	st.SetPack("docs", nil)
	st.SetExcluded("ios", []string{"b", "a"})
	st.ResolvedValues["PROJECT"] = "App"

	if err := s.Save(st); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if !reflect.DeepEqual(got.ConfiguredPacks, []string{"docs", "ios"}) {
		t.Errorf("ConfiguredPacks = %v", got.ConfiguredPacks)
	}
	if !got.Record("ios").Equal(st.Record("ios")) {
		t.Errorf("ios record = %+v", got.Record("ios"))
	}
	if !reflect.DeepEqual(got.Excluded("ios"), []string{"a", "b"}) {
		t.Errorf("Excluded(ios) = %v", got.Excluded("ios"))
	}
	if got.ResolvedValues["PROJECT"] != "App" {
		t.Errorf("ResolvedValues = %v", got.ResolvedValues)
	}
}

func TestStore_JSONShape(t *testing.T) {
	fsys := afero.NewMemMapFs()
	s := NewStore(fsys, "/state.json")
	st := New()
	st.SetPack("ios", &ArtifactRecord{Files: []string{"hooks/hook.sh"}})
	if err := s.Save(st); err != nil {
		t.Fatal(err)
	}

	data, _ := afero.ReadFile(fsys, "/state.json")
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"configuredPacks", "packArtifacts", "excludedComponents", "resolvedValues"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("missing top-level key %q", key)
		}
	}
	if !strings.Contains(string(raw["packArtifacts"]), `"mcpServers": []`) {
		t.Errorf("empty kinds should serialize as arrays: %s", raw["packArtifacts"])
	}
}

func TestStore_LoadCorrupt(t *testing.T) {
	fsys := afero.NewMemMapFs()
	_ = afero.WriteFile(fsys, "/state.json", []byte("{not json"), 0644)
	if _, err := NewStore(fsys, "/state.json").Load(); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestStore_SaveFailure(t *testing.T) {
	fsys := afero.NewReadOnlyFs(afero.NewMemMapFs())
	err := NewStore(fsys, "/state.json").Save(New())
	var perr *PersistenceError
	if !errors.As(err, &perr) {
		t.Fatalf("error = %v, want *PersistenceError", err)
	}
}

func TestSyncState_Normalize(t *testing.T) {
	st := New()
	st.ConfiguredPacks = []string{"b"}
	st.PackArtifacts["orphan"] = &ArtifactRecord{Files: []string{"x"}}
	st.PackArtifacts["empty"] = &ArtifactRecord{}
	st.ExcludedComponents["gone"] = []string{"c"}

	st.Normalize()

	if !reflect.DeepEqual(st.ConfiguredPacks, []string{"b", "orphan"}) {
		t.Errorf("ConfiguredPacks = %v", st.ConfiguredPacks)
	}
	if _, ok := st.PackArtifacts["empty"]; ok {
		t.Error("empty unconfigured record should be dropped")
	}
	if st.PackArtifacts["b"] == nil {
		t.Error("configured pack should get a record")
	}
	if _, ok := st.ExcludedComponents["gone"]; ok {
		t.Error("exclusions of unconfigured packs should be dropped")
	}
}

func TestSyncState_RemovePack(t *testing.T) {
	st := New()
	st.SetPack("a", &ArtifactRecord{Files: []string{"f"}})
	st.SetPack("b", &ArtifactRecord{})
	st.RemovePack("a")
	if st.IsConfigured("a") {
		t.Error("a still configured after RemovePack")
	}
}

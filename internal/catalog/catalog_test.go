package catalog

import "testing"

func TestDefaultCatalog(t *testing.T) {
	cat := Default()
	mods := cat.Modules()
	if len(mods) == 0 {
		t.Fatal("default catalog is empty")
	}
	for _, id := range []string{"statistics", "dataframe", "ml_runtime", "browser", "scraper", "imaging", "crypto", "report", "file_analyzer", "compute"} {
		if _, ok := cat.Get(id); !ok {
			t.Errorf("default catalog missing module %q", id)
		}
	}
	for _, m := range mods {
		if len(m.Tags) == 0 {
			t.Errorf("module %q has no capability tags", m.ID)
		}
	}
}

func TestGet(t *testing.T) {
	cat := Default()
	m, ok := cat.Get("statistics")
	if !ok {
		t.Fatal("expected statistics module")
	}
	if m.ID != "statistics" {
		t.Errorf("wrong module returned: %q", m.ID)
	}
	if _, ok := cat.Get("no_such_module"); ok {
		t.Error("expected miss for unknown module")
	}
}

func TestLookup(t *testing.T) {
	cat := Default()

	t.Run("substring_matches_tag", func(t *testing.T) {
		mods := cat.Lookup("data")
		ids := moduleIDs(mods)
		if !contains(ids, "statistics") || !contains(ids, "dataframe") {
			t.Errorf("lookup(data) = %v, want statistics and dataframe", ids)
		}
	})

	t.Run("tag_matches_longer_query", func(t *testing.T) {
		// Bidirectional matching: the query may be broader than the tag.
		mods := cat.Lookup("ocr and layout extraction")
		if !contains(moduleIDs(mods), "imaging") {
			t.Errorf("expected imaging for ocr query, got %v", moduleIDs(mods))
		}
	})

	t.Run("case_insensitive", func(t *testing.T) {
		mods := cat.Lookup("Machine Learning")
		if !contains(moduleIDs(mods), "ml_runtime") {
			t.Errorf("expected ml_runtime, got %v", moduleIDs(mods))
		}
	})

	t.Run("empty_and_unknown", func(t *testing.T) {
		if mods := cat.Lookup(""); mods != nil {
			t.Errorf("empty tag should match nothing, got %v", moduleIDs(mods))
		}
		if mods := cat.Lookup("quantum-teleportation"); len(mods) != 0 {
			t.Errorf("unknown tag should match nothing, got %v", moduleIDs(mods))
		}
	})
}

func TestHas(t *testing.T) {
	cat := Default()
	if !cat.Has("web scraping") {
		t.Error("expected web scraping capability")
	}
	if cat.Has("quantum-teleportation") {
		t.Error("unexpected capability match")
	}
}

func TestModulesReturnsCopy(t *testing.T) {
	cat := Default()
	mods := cat.Modules()
	mods[0].ID = "mutated"
	if m := cat.Modules()[0]; m.ID == "mutated" {
		t.Error("Modules must return a copy")
	}
}

func moduleIDs(mods []Module) []string {
	out := make([]string, 0, len(mods))
	for _, m := range mods {
		out = append(out, m.ID)
	}
	return out
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

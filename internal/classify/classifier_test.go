package classify

import (
	"testing"
	"time"
)

func TestClassifyMachineLearning(t *testing.T) {
	c := New(nil)
	d := c.Classify("train a neural network classifier on the corpus", 0.5, nil)

	if !d.ShouldDelegate {
		t.Fatal("ML task should delegate")
	}
	if d.Reason != ReasonMachineLearning {
		t.Errorf("reason = %q, want machine_learning", d.Reason)
	}
	if len(d.Modules) == 0 || d.Modules[0] != "ml_runtime" {
		t.Errorf("expected ml_runtime first, got %v", d.Modules)
	}
	// base 120s scaled by (1 + 0.5).
	if d.EstimatedTime != 180*time.Second {
		t.Errorf("estimated time = %v, want 180s", d.EstimatedTime)
	}
	// Strong hits "neural" and "train" out of 4 indicators, plus floor.
	if got, want := d.Confidence, 2.0/4.0+0.3; !closeTo(got, want) {
		t.Errorf("confidence = %v, want %v", got, want)
	}
}

func TestClassifyFirstMatchWins(t *testing.T) {
	c := New(nil)
	// Text matches both data-analysis and web-scraping keywords; the
	// earlier category takes it.
	d := c.Classify("scrape the dataset from the portal", 0.2, nil)
	if d.Reason != ReasonDataAnalysis {
		t.Errorf("reason = %q, want data_analysis (declaration order)", d.Reason)
	}
}

func TestClassifyComplexityFallback(t *testing.T) {
	c := New(nil)

	t.Run("above_cutoff", func(t *testing.T) {
		d := c.Classify("churn the numbers", 0.9, nil)
		if !d.ShouldDelegate {
			t.Fatal("high-complexity task should delegate")
		}
		if d.Reason != ReasonHeavyComputation {
			t.Errorf("reason = %q, want heavy_computation", d.Reason)
		}
		if len(d.Modules) != 1 || d.Modules[0] != "compute" {
			t.Errorf("modules = %v, want [compute]", d.Modules)
		}
		// No strong indicator hits: confidence is the floor.
		if !closeTo(d.Confidence, 0.3) {
			t.Errorf("confidence = %v, want floor 0.3", d.Confidence)
		}
	})

	t.Run("at_cutoff_stays_local", func(t *testing.T) {
		d := c.Classify("churn the numbers", 0.8, nil)
		if d.ShouldDelegate {
			t.Error("complexity exactly at cutoff must not delegate")
		}
	})
}

func TestClassifyNoMatch(t *testing.T) {
	c := New(nil)
	d := c.Classify("rename a variable", 0.1, nil)
	if d.ShouldDelegate {
		t.Errorf("trivial task delegated: %+v", d)
	}
	if d.Reason != ReasonNone || d.Confidence != 0 {
		t.Errorf("expected zero decision, got %+v", d)
	}
}

func TestClassifyRequiredCapability(t *testing.T) {
	c := New(nil)

	t.Run("forces_delegation", func(t *testing.T) {
		d := c.Classify("look at this file", 0.1, []string{"ocr"})
		if !d.ShouldDelegate {
			t.Fatal("required capability must force delegation")
		}
		if d.Reason != ReasonCapabilityRequired {
			t.Errorf("reason = %q, want capability_required", d.Reason)
		}
		if !containsStr(d.Modules, "imaging") {
			t.Errorf("modules = %v, want imaging", d.Modules)
		}
		if !closeTo(d.Confidence, 0.3) {
			t.Errorf("confidence = %v, want floor 0.3", d.Confidence)
		}
	})

	t.Run("keeps_keyword_reason", func(t *testing.T) {
		d := c.Classify("scrape product listings", 0.2, []string{"pdf"})
		if d.Reason != ReasonWebScraping {
			t.Errorf("keyword reason overwritten: %q", d.Reason)
		}
		if !containsStr(d.Modules, "scraper") || !containsStr(d.Modules, "report") {
			t.Errorf("modules = %v, want scraper plus report", d.Modules)
		}
	})

	t.Run("unknown_tag_is_ignored", func(t *testing.T) {
		d := c.Classify("rename a variable", 0.1, []string{"quantum-teleportation"})
		if d.ShouldDelegate {
			t.Error("unsatisfiable capability must not delegate")
		}
	})

	t.Run("no_duplicate_modules", func(t *testing.T) {
		d := c.Classify("scrape product listings", 0.2, []string{"web scraping"})
		seen := map[string]int{}
		for _, m := range d.Modules {
			seen[m]++
		}
		for m, n := range seen {
			if n > 1 {
				t.Errorf("module %q listed %d times", m, n)
			}
		}
	})
}

func TestConfidenceCappedAtOne(t *testing.T) {
	c := New(nil)
	// All three strong crypto indicators present: ratio 1.0 plus the
	// floor must clamp to 1.0.
	d := c.Classify("encrypt the payload, hash it and attach a signature", 0.2, nil)
	if d.Reason != ReasonCryptography {
		t.Fatalf("reason = %q, want cryptography", d.Reason)
	}
	if d.Confidence != 1.0 {
		t.Errorf("confidence = %v, want capped 1.0", d.Confidence)
	}
}

func TestEstimateScalesWithComplexity(t *testing.T) {
	c := New(nil)
	low := c.Classify("scrape the page", 0.0, nil)
	high := c.Classify("scrape the page", 1.0, nil)
	if low.EstimatedTime != 60*time.Second {
		t.Errorf("zero-complexity estimate = %v, want base 60s", low.EstimatedTime)
	}
	if high.EstimatedTime != 120*time.Second {
		t.Errorf("full-complexity estimate = %v, want 120s", high.EstimatedTime)
	}
}

func closeTo(a, b float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < 1e-9
}

func containsStr(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// Package classify decides whether a unit of work should be offloaded
// to the delegate environment. The heuristic is keyword-driven with a
// complexity fallback; it is biased toward delegation over false
// negatives, which is why selected categories carry a confidence floor.
package classify

import (
	"strings"
	"time"

	"github.com/anvil/offbridge/internal/catalog"
)

// Reason names the category that triggered delegation.
type Reason string

const (
	ReasonNone               Reason = ""
	ReasonMachineLearning    Reason = "machine_learning"
	ReasonDataAnalysis       Reason = "data_analysis"
	ReasonWebScraping        Reason = "web_scraping"
	ReasonBrowserAutomation  Reason = "browser_automation"
	ReasonImageProcessing    Reason = "image_processing"
	ReasonCryptography       Reason = "cryptography"
	ReasonReportGeneration   Reason = "report_generation"
	ReasonHeavyComputation   Reason = "heavy_computation"
	ReasonCapabilityRequired Reason = "capability_required"
)

// confidenceFloor is added to the keyword-match ratio so any selected
// category yields at least 0.3 confidence, even with zero strong
// indicator hits.
const confidenceFloor = 0.3

// complexityCutoff routes unmatched but complex tasks to the generic
// heavy-computation category.
const complexityCutoff = 0.8

// category couples one reason with its keyword groups, recommended
// modules and base time estimate. Categories are evaluated in slice
// order; the first match wins.
type category struct {
	reason   Reason
	keywords []string // any hit selects the category
	strong   []string // strong indicators counted toward confidence
	modules  []string
	baseTime time.Duration
}

var categories = []category{
	{
		reason: ReasonMachineLearning,
		keywords: []string{
			"machine learning", "neural", "train a model", "train model",
			"classifier", "regression", "tensorflow", "pytorch", "inference",
		},
		strong:   []string{"machine learning", "neural", "train", "model"},
		modules:  []string{"ml_runtime", "statistics"},
		baseTime: 120 * time.Second,
	},
	{
		reason: ReasonDataAnalysis,
		keywords: []string{
			"statistics", "statistical", "analyze data", "dataset",
			"dataframe", "csv", "correlation", "aggregate",
		},
		strong:   []string{"statistics", "dataset", "dataframe"},
		modules:  []string{"statistics", "dataframe"},
		baseTime: 45 * time.Second,
	},
	{
		reason: ReasonWebScraping,
		keywords: []string{
			"scrape", "crawl", "spider", "extract from website", "parse html",
		},
		strong:   []string{"scrape", "crawl"},
		modules:  []string{"scraper", "browser"},
		baseTime: 60 * time.Second,
	},
	{
		reason: ReasonBrowserAutomation,
		keywords: []string{
			"browser", "navigate to", "screenshot", "click", "fill form",
			"selenium", "headless",
		},
		strong:   []string{"browser", "navigate", "screenshot"},
		modules:  []string{"browser"},
		baseTime: 90 * time.Second,
	},
	{
		reason: ReasonImageProcessing,
		keywords: []string{
			"image", "ocr", "thumbnail", "resize", "pixel", "photo",
		},
		strong:   []string{"image", "ocr"},
		modules:  []string{"imaging"},
		baseTime: 60 * time.Second,
	},
	{
		reason: ReasonCryptography,
		keywords: []string{
			"encrypt", "decrypt", "hash", "signature", "certificate",
			"cryptograph",
		},
		strong:   []string{"encrypt", "hash", "signature"},
		modules:  []string{"crypto"},
		baseTime: 30 * time.Second,
	},
	{
		reason: ReasonReportGeneration,
		keywords: []string{
			"generate report", "generate a report", "pdf", "audit report",
			"export document",
		},
		strong:   []string{"report", "pdf"},
		modules:  []string{"report", "dataframe"},
		baseTime: 60 * time.Second,
	},
	{
		reason: ReasonHeavyComputation,
		keywords: []string{
			"simulation", "monte carlo", "matrix", "numerical", "optimize",
			"large-scale computation", "compute-intensive",
		},
		strong:   []string{"simulation", "numerical", "matrix"},
		modules:  []string{"compute"},
		baseTime: 30 * time.Second,
	},
}

// heavyComputation is the fallback category for unmatched high-complexity
// tasks. It shares the generic 30s base time.
var heavyComputation = categories[len(categories)-1]

// Decision is the classifier's answer for one task.
type Decision struct {
	ShouldDelegate bool          `json:"should_delegate"`
	Reason         Reason        `json:"reason"`
	Modules        []string      `json:"modules,omitempty"`
	EstimatedTime  time.Duration `json:"estimated_time"`
	Confidence     float64       `json:"confidence"`
}

// Classifier scans task descriptions against the category table and the
// capability catalog. Stateless beyond the catalog reference.
type Classifier struct {
	catalog *catalog.Catalog
}

// New creates a classifier backed by the given catalog.
func New(cat *catalog.Catalog) *Classifier {
	if cat == nil {
		cat = catalog.Default()
	}
	return &Classifier{catalog: cat}
}

// Classify inspects the task text and complexity score and decides
// whether the work should be delegated. Required capability tags force
// delegation and append matching catalog modules regardless of the
// keyword result.
func (c *Classifier) Classify(taskText string, complexityScore float64, requiredTags []string) Decision {
	text := strings.ToLower(taskText)

	var d Decision
	matched := false
	var win category

	for _, cat := range categories {
		if containsAny(text, cat.keywords) {
			win = cat
			matched = true
			break
		}
	}

	if !matched && complexityScore > complexityCutoff {
		win = heavyComputation
		matched = true
	}

	if matched {
		d.ShouldDelegate = true
		d.Reason = win.reason
		d.Modules = append(d.Modules, win.modules...)
		d.EstimatedTime = scaleEstimate(win.baseTime, complexityScore)
		d.Confidence = confidence(text, win.strong)
	}

	// Required capability tags override a negative keyword result.
	for _, tag := range requiredTags {
		mods := c.catalog.Lookup(tag)
		if len(mods) == 0 {
			continue
		}
		d.ShouldDelegate = true
		for _, m := range mods {
			d.Modules = appendUnique(d.Modules, m.ID)
		}
		if d.Reason == ReasonNone {
			d.Reason = ReasonCapabilityRequired
			d.EstimatedTime = scaleEstimate(heavyComputation.baseTime, complexityScore)
			d.Confidence = confidenceFloor
		}
	}

	return d
}

// scaleEstimate applies the complexity multiplier to a category's base time.
func scaleEstimate(base time.Duration, complexity float64) time.Duration {
	return time.Duration(float64(base) * (1 + complexity))
}

// confidence counts strong indicator hits and adds the floor, capped at 1.
func confidence(text string, strong []string) float64 {
	if len(strong) == 0 {
		return confidenceFloor
	}
	matches := 0
	for _, kw := range strong {
		if strings.Contains(text, kw) {
			matches++
		}
	}
	conf := float64(matches)/float64(len(strong)) + confidenceFloor
	if conf > 1.0 {
		conf = 1.0
	}
	return conf
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}

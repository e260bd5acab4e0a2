package dataset_test

import (
	"testing"

	"github.com/go-drift/databind/pkg/dataset"
	"github.com/go-drift/databind/pkg/dom"
	"github.com/go-drift/databind/pkg/htmlhost"
)

const tree = `<html><body data-outside="body">
<div id="scene" data-scene="s" data-x="scene">
  <div id="group" class="group" data-group="g" data-x="group">
    <div id="wrap" data-wrap="w" data-x="wrap">
      <p id="own" data-x="1" data-magic-sets="parent"></p>
      <p id="all" data-magic-sets="parents"></p>
      <p id="closest" data-magic-sets="closest(.group)"></p>
      <p id="query" data-magic-sets="#theme, closest(.group)"></p>
      <p id="bad" data-magic-sets="closest(.group, , [[nope"></p>
      <p id="plain" data-y="own"></p>
    </div>
  </div>
</div>
<i id="theme" data-color="red" data-x="theme"></i>
</body></html>`

func setup(t *testing.T) (*htmlhost.Document, dataset.Aggregator) {
	t.Helper()
	doc, err := htmlhost.ParseString("doc", tree)
	if err != nil {
		t.Fatal(err)
	}
	scene := doc.ByID("scene")
	agg := dataset.Aggregator{
		Document: doc,
		Boundary: func(dom.Element) dom.Element { return scene },
	}
	return doc, agg
}

func TestParentMergeFirstWriteWins(t *testing.T) {
	doc, agg := setup(t)
	got := agg.Resolve(doc.ByID("own"))
	if got["x"] != "1" {
		t.Errorf("x = %q, want own value 1", got["x"])
	}
	if got["group"] != "g" {
		t.Errorf("parent merge should read the grandparent, got %v", got)
	}
	if _, ok := got["wrap"]; ok {
		t.Errorf("parent merge should skip the direct parent, got %v", got)
	}
}

func TestParentsStopsAtBoundary(t *testing.T) {
	doc, agg := setup(t)
	got := agg.Resolve(doc.ByID("all"))
	if got["x"] != "wrap" {
		t.Errorf("nearest ancestor should win, x = %q", got["x"])
	}
	for _, key := range []string{"wrap", "group", "scene"} {
		if _, ok := got[key]; !ok {
			t.Errorf("missing %q from ancestors: %v", key, got)
		}
	}
	if _, ok := got["outside"]; ok {
		t.Errorf("parents should stop at the boundary: %v", got)
	}
}

func TestClosestAndQuery(t *testing.T) {
	doc, agg := setup(t)
	got := agg.Resolve(doc.ByID("closest"))
	if got["group"] != "g" || got["x"] != "group" {
		t.Errorf("closest merge = %v", got)
	}

	got = agg.Resolve(doc.ByID("query"))
	if got["color"] != "red" {
		t.Errorf("query merge = %v", got)
	}
	if got["x"] != "theme" {
		t.Errorf("earlier set should win, x = %q", got["x"])
	}
}

func TestMalformedTokensIgnored(t *testing.T) {
	doc, agg := setup(t)
	got := agg.Resolve(doc.ByID("bad"))
	if _, ok := got["group"]; ok {
		t.Errorf("unterminated closest should be ignored: %v", got)
	}
	if got["magic-sets"] == "" {
		t.Errorf("own dataset should survive: %v", got)
	}
}

func TestNoDirective(t *testing.T) {
	doc, agg := setup(t)
	got := agg.Resolve(doc.ByID("plain"))
	if len(got) != 1 || got["y"] != "own" {
		t.Errorf("Resolve = %v, want own dataset only", got)
	}
}

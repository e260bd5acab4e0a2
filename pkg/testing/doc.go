// Package testing provides a harness for testing bindings against an HTML
// document without a real host.
//
// # Quick Start
//
// Create a tester from markup, set data, pump, and make assertions:
//
//	func TestTitle(t *testing.T) {
//	    tester := bindtest.NewTesterWithT(t, `<h1 id="title" data-magic-key="title"></h1>`)
//	    tester.Engine().SetData(map[string]any{"title": "Hello"})
//	    tester.Refresh()
//
//	    if got := tester.Find(bindtest.ByID("title")).First().Content(); got != "Hello" {
//	        t.Errorf("title = %q", got)
//	    }
//	}
//
// # Pumping
//
// Attribute edits are delivered to observers and coalesced refreshes run
// only when the tester pumps:
//
//	el.SetAttribute("data-magic-key", "subtitle")
//	tester.PumpAndSettle(10)
//
// # Recording Handlers
//
// [RecordingHandler] counts phase invocations per element, which makes
// unload and idempotence behavior easy to assert.
//
// # Snapshot Testing
//
// Capture and compare the bound elements of a document:
//
//	tester.CaptureSnapshot().MatchesFile(t, "testdata/page.snapshot.json")
//
// Update snapshots with:
//
//	DATABIND_UPDATE_SNAPSHOTS=1 go test ./...
//
// # Import Alias
//
// Since this package has the same name as the standard library testing
// package, import it with an alias:
//
//	import bindtest "github.com/go-drift/databind/pkg/testing"
package testing

package selective

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/stselect/stselect/pkg/client"
	"github.com/stselect/stselect/pkg/ignores"
	"github.com/stselect/stselect/pkg/models"
	"github.com/stselect/stselect/pkg/retry"
	"github.com/stselect/stselect/pkg/tree"
)

const testAPIKey = "session-key"

// fakeDaemon serves the REST endpoints a Session uses.
type fakeDaemon struct {
	mu      sync.Mutex
	version string
	ignores map[string][]string
	browse  map[string]string // prefix -> payload
	files   map[string]string // path -> payload
	events  string

	// onBrowse runs while a browse request is being served.
	onBrowse func()

	reportCalls int
	browseCalls int
	posts       int
}

func newFakeDaemon() *fakeDaemon {
	return &fakeDaemon{
		version: "v1.23.0",
		ignores: map[string][]string{},
		browse:  map[string]string{},
		files:   map[string]string{},
	}
}

func (d *fakeDaemon) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get(client.APIKeyHeader) != testAPIKey {
		http.Error(w, "CSRF Error", http.StatusForbidden)
		return
	}
	q := r.URL.Query()

	// events blocks without holding the lock.
	if r.URL.Path == "/rest/events" {
		d.mu.Lock()
		payload := d.events
		d.events = ""
		d.mu.Unlock()
		if payload == "" {
			<-r.Context().Done()
			return
		}
		io.WriteString(w, payload)
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	switch r.URL.Path {
	case "/rest/svc/report":
		d.reportCalls++
		json.NewEncoder(w).Encode(map[string]string{"version": d.version})
	case "/rest/db/ignores":
		folder := q.Get("folder")
		if r.Method == http.MethodPost {
			var body struct {
				Ignore []string `json:"ignore"`
			}
			json.NewDecoder(r.Body).Decode(&body)
			d.ignores[folder] = body.Ignore
			d.posts++
		}
		json.NewEncoder(w).Encode(map[string][]string{"ignore": d.ignores[folder]})
	case "/rest/db/browse":
		d.browseCalls++
		if d.onBrowse != nil {
			d.onBrowse()
		}
		payload, ok := d.browse[q.Get("prefix")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		io.WriteString(w, payload)
	case "/rest/db/file":
		payload, ok := d.files[q.Get("file")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		io.WriteString(w, payload)
	default:
		http.NotFound(w, r)
	}
}

func (d *fakeDaemon) ignoreList(folder string) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.ignores[folder]...)
}

func (d *fakeDaemon) calls() (report, browse, posts int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reportCalls, d.browseCalls, d.posts
}

func browseCalls(d *fakeDaemon) int {
	_, n, _ := d.calls()
	return n
}

func posts(d *fakeDaemon) int {
	_, _, n := d.calls()
	return n
}

func testSession(t *testing.T, d *fakeDaemon, apiKey string) *Session {
	t.Helper()
	ts := httptest.NewServer(d)
	t.Cleanup(ts.Close)

	u, _ := url.Parse(ts.URL)
	host, portStr, _ := net.SplitHostPort(u.Host)
	port, _ := strconv.Atoi(portStr)
	c := client.New(client.Config{
		Host:   host,
		Port:   port,
		APIKey: apiKey,
		RetryConfig: retry.Config{
			MaxAttempts: 2,
			InitialWait: time.Millisecond,
			MaxWait:     time.Millisecond,
		},
	})
	return New(c, Options{})
}

func managed(global []string, interior ...string) []string {
	lines := append([]string{}, global...)
	lines = append(lines, ignores.DefaultStart)
	lines = append(lines, interior...)
	return append(lines, "", ignores.DefaultFinish, ignores.IgnoreRest)
}

const rootList = `[
 {"name":"a","type":"FILE_INFO_TYPE_DIRECTORY","children":[
   {"name":"w.txt","type":"FILE_INFO_TYPE_FILE","size":2},
   {"name":"x.txt","type":"FILE_INFO_TYPE_FILE","size":3}]},
 {"name":"b","type":"FILE_INFO_TYPE_DIRECTORY","children":[
   {"name":"y.txt","type":"FILE_INFO_TYPE_FILE","size":5},
   {"name":"z.txt","type":"FILE_INFO_TYPE_FILE","size":7}]},
 {"name":"c.tmp","type":"FILE_INFO_TYPE_FILE","size":1}
]`

const aList = `[
 {"name":"w.txt","type":"FILE_INFO_TYPE_FILE","size":2},
 {"name":"x.txt","type":"FILE_INFO_TYPE_FILE","size":3}
]`

func docsDaemon() *fakeDaemon {
	d := newFakeDaemon()
	d.ignores["docs"] = managed([]string{"*.tmp"}, "!/a")
	d.browse[""] = rootList
	d.browse["a"] = aList
	return d
}

func states(nodes []*models.Node) map[string]models.SyncState {
	out := map[string]models.SyncState{}
	tree.Walk(nodes, "", func(p string, n *models.Node) bool {
		out[p] = n.SyncState
		return true
	})
	return out
}

func TestSession_Tree(t *testing.T) {
	d := docsDaemon()
	s := testSession(t, d, testAPIKey)
	ctx := context.Background()

	nodes, err := s.Tree(ctx, "docs", "", -1)
	if err != nil {
		t.Fatalf("Tree: %v", err)
	}

	want := map[string]models.SyncState{
		"a":       models.StateSyncing,
		"a/w.txt": models.StateSyncing,
		"a/x.txt": models.StateSyncing,
		"b":       models.StateIgnored,
		"b/y.txt": models.StateIgnored,
		"b/z.txt": models.StateIgnored,
		"c.tmp":   models.StateGlobalIgnore,
	}
	got := states(nodes)
	for p, st := range want {
		if got[p] != st {
			t.Errorf("%s: got %q, want %q", p, got[p], st)
		}
	}

	b := tree.Find(nodes, "b")
	if b == nil || b.Size == nil || *b.Size != 12 || !b.SizeComplete {
		t.Errorf("b size not aggregated: %+v", b)
	}

	// Cached browse and version.
	if _, err := s.Tree(ctx, "docs", "", -1); err != nil {
		t.Fatalf("Tree: %v", err)
	}
	report, browse, _ := d.calls()
	if browse != 1 {
		t.Errorf("browse called %d times, want 1", browse)
	}
	if report != 1 {
		t.Errorf("report called %d times, want 1", report)
	}
}

func TestSession_TreeInvalidatedDuringBrowse(t *testing.T) {
	d := docsDaemon()
	s := testSession(t, d, testAPIKey)
	ctx := context.Background()

	// An event for the folder lands while the first listing is in flight.
	d.mu.Lock()
	d.onBrowse = func() {
		d.onBrowse = nil
		s.Invalidate("docs")
	}
	d.mu.Unlock()
	if _, err := s.Tree(ctx, "docs", "", -1); err != nil {
		t.Fatalf("Tree: %v", err)
	}
	if _, err := s.Tree(ctx, "docs", "", -1); err != nil {
		t.Fatalf("Tree: %v", err)
	}
	if n := browseCalls(d); n != 2 {
		t.Errorf("browse called %d times, want 2", n)
	}

	if _, err := s.Tree(ctx, "docs", "", -1); err != nil {
		t.Fatalf("Tree: %v", err)
	}
	if n := browseCalls(d); n != 2 {
		t.Errorf("browse called %d times after a clean load, want 2", n)
	}
}

func TestSession_TreeDevVersionDetectsShape(t *testing.T) {
	d := newFakeDaemon()
	d.version = "unknown-dev"
	d.ignores["docs"] = managed(nil, "!/a")
	d.browse[""] = `{"a":{"x.txt":["2020-01-01T00:00:00Z",3]},"b.txt":["2020-01-01T00:00:00Z",4]}`
	s := testSession(t, d, testAPIKey)

	nodes, err := s.Tree(context.Background(), "docs", "", -1)
	if err != nil {
		t.Fatalf("Tree: %v", err)
	}
	if names := strings.Join(tree.Names(nodes), ","); names != "a,b.txt" {
		t.Errorf("names = %s", names)
	}
	if a := tree.Find(nodes, "a"); a == nil || a.SyncState != models.StateSyncing {
		t.Errorf("a = %+v", a)
	}
}

func TestSession_TreeMissingFolder(t *testing.T) {
	d := newFakeDaemon()
	s := testSession(t, d, testAPIKey)

	nodes, err := s.Tree(context.Background(), "nope", "", -1)
	if err != nil {
		t.Fatalf("Tree: %v", err)
	}
	if len(nodes) != 0 {
		t.Errorf("expected no nodes, got %d", len(nodes))
	}
}

func TestSession_SelectAndUnselect(t *testing.T) {
	d := docsDaemon()
	s := testSession(t, d, testAPIKey)
	ctx := context.Background()

	if _, err := s.Tree(ctx, "docs", "", -1); err != nil {
		t.Fatalf("Tree: %v", err)
	}

	c, err := s.Select(ctx, "docs", "b/y.txt")
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if !c.Changed() {
		t.Fatal("Select reported no change")
	}
	want := managed([]string{"*.tmp"}, "!/a", "!/b/y.txt", "/b/**", "!/b")
	if got := d.ignoreList("docs"); strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("ignores after select:\n got %q\nwant %q", got, want)
	}

	nodes, err := s.Tree(ctx, "docs", "", -1)
	if err != nil {
		t.Fatalf("Tree: %v", err)
	}
	got := states(nodes)
	if got["b"] != models.StatePartial || got["b/y.txt"] != models.StateSyncing || got["b/z.txt"] != models.StateIgnored {
		t.Errorf("states after select: %v", got)
	}
	if n := browseCalls(d); n != 2 {
		t.Errorf("browse cache not invalidated after write, calls = %d", n)
	}

	if _, err := s.Unselect(ctx, "docs", "a/x.txt"); err != nil {
		t.Fatalf("Unselect: %v", err)
	}
	sel, err := s.Selection(ctx, "docs")
	if err != nil {
		t.Fatalf("Selection: %v", err)
	}
	if sel.Mark("a") != ignores.Partial || sel.Mark("a/w.txt") != ignores.Full || sel.Mark("a/x.txt") != ignores.Unmarked {
		t.Errorf("unexpected selection after unselect: %q", sel.Lines())
	}
}

func TestSession_PreviewDoesNotWrite(t *testing.T) {
	d := docsDaemon()
	s := testSession(t, d, testAPIKey)

	c, err := s.Preview(context.Background(), "docs", Include("b"))
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if n := posts(d); n != 0 {
		t.Errorf("Preview posted %d times", n)
	}
	diff := c.Diff()
	if !strings.Contains(diff, "+!/b\n") || !strings.Contains(diff, " !/a\n") {
		t.Errorf("unexpected diff:\n%s", diff)
	}
}

func TestSession_UnchangedSkipsWrite(t *testing.T) {
	d := docsDaemon()
	s := testSession(t, d, testAPIKey)
	core, logs := observer.New(zapcore.DebugLevel)
	s.log = zap.New(core)

	c, err := s.Select(context.Background(), "docs", "a")
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if c.Changed() || posts(d) != 0 {
		t.Errorf("expected no write, changed=%v posts=%d", c.Changed(), posts(d))
	}

	entries := logs.FilterMessage("selection unchanged").AllUntimed()
	if len(entries) != 1 || entries[0].ContextMap()["folder"] != "docs" {
		t.Errorf("unchanged log entries = %+v", entries)
	}
}

func TestSession_SelectWithoutBlock(t *testing.T) {
	d := newFakeDaemon()
	d.ignores["raw"] = []string{"*.tmp"}
	s := testSession(t, d, testAPIKey)
	ctx := context.Background()

	_, err := s.Select(ctx, "raw", "a")
	if !errors.Is(err, ignores.ErrNoBlock) {
		t.Fatalf("expected ErrNoBlock, got %v", err)
	}

	changed, err := s.Enable(ctx, "raw")
	if err != nil || !changed {
		t.Fatalf("Enable: %v, %v", changed, err)
	}
	if _, _, ok := ignores.DefaultCodec().Find(d.ignoreList("raw")); !ok {
		t.Errorf("block not installed: %q", d.ignoreList("raw"))
	}
	if changed, _ := s.Enable(ctx, "raw"); changed {
		t.Error("second Enable changed the list")
	}
	if _, err := s.Select(ctx, "raw", "a"); err != nil {
		t.Errorf("Select after Enable: %v", err)
	}
}

func TestSession_FileState(t *testing.T) {
	d := docsDaemon()
	d.files["b/new.txt"] = `{"global":{},"local":{"name":"b/new.txt","size":2}}`
	d.files["a/x.txt"] = `{"global":{"name":"a/x.txt","size":3},"local":{"name":"a/x.txt","size":3}}`
	s := testSession(t, d, testAPIKey)
	ctx := context.Background()

	tests := []struct {
		path string
		want models.SyncState
	}{
		{"b/new.txt", models.StateNewLocal},
		{"a/x.txt", models.StateSyncing},
		{"missing.txt", models.StateUnknown},
	}
	for _, tt := range tests {
		got, err := s.FileState(ctx, "docs", tt.path)
		if err != nil {
			t.Fatalf("FileState(%s): %v", tt.path, err)
		}
		if got != tt.want {
			t.Errorf("FileState(%s) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestSession_FillSizes(t *testing.T) {
	d := newFakeDaemon()
	d.ignores["docs"] = managed(nil)
	d.browse[""] = `[{"name":"d","type":"FILE_INFO_TYPE_DIRECTORY","children":[
		{"name":"p.bin","type":"FILE_INFO_TYPE_FILE","size":4},
		{"name":"q.bin","type":"FILE_INFO_TYPE_FILE"}]}]`
	d.files["d/q.bin"] = `{"global":{"name":"d/q.bin","size":10},"local":{}}`
	s := testSession(t, d, testAPIKey)
	ctx := context.Background()

	nodes, err := s.Tree(ctx, "docs", "", -1)
	if err != nil {
		t.Fatalf("Tree: %v", err)
	}
	if nodes[0].SizeComplete {
		t.Fatal("size should be incomplete before FillSizes")
	}

	total, complete, err := s.FillSizes(ctx, "docs", "", nodes)
	if err != nil {
		t.Fatalf("FillSizes: %v", err)
	}
	if total != 14 || !complete {
		t.Errorf("FillSizes = %d, %v; want 14, true", total, complete)
	}
}

func TestSession_Watch(t *testing.T) {
	d := docsDaemon()
	d.events = `[{"id":1,"type":"LocalIndexUpdated","data":{"folder":"other"}},
		{"id":2,"type":"RemoteIndexUpdated","data":{"folder":"docs"}}]`
	s := testSession(t, d, testAPIKey)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := s.Tree(ctx, "docs", "", -1); err != nil {
		t.Fatalf("Tree: %v", err)
	}

	var seen []models.Event
	err := s.Watch(ctx, "docs", func(ev models.Event) {
		seen = append(seen, ev)
		cancel()
	})
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	if len(seen) != 1 || seen[0].ID != 2 {
		t.Fatalf("unexpected events: %+v", seen)
	}

	if _, err := s.Tree(context.Background(), "docs", "", -1); err != nil {
		t.Fatalf("Tree: %v", err)
	}
	if n := browseCalls(d); n != 2 {
		t.Errorf("watch did not invalidate the browse cache, calls = %d", n)
	}
}

func TestSession_WatchAuthError(t *testing.T) {
	d := docsDaemon()
	s := testSession(t, d, "wrong")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := s.Watch(ctx, "", nil)
	if !errors.Is(err, client.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

package harvester

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"cinodeharvest/internal/reconcile"
	"cinodeharvest/pkg/cache"
	"cinodeharvest/pkg/cinode"
	errs "cinodeharvest/pkg/errors"
	"cinodeharvest/pkg/logger"
	"cinodeharvest/pkg/retry"
	"cinodeharvest/pkg/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const companyRoot = "/companies/31"

type route struct {
	status      int
	disposition string
	body        string
}

// fakeCinode serves canned responses and records every request path
type fakeCinode struct {
	mu       sync.Mutex
	routes   map[string]route
	requests []string
	quotaAt  int

	// requests to hold block until release is closed
	hold    string
	holding chan struct{}
	release chan struct{}
}

func newFakeCinode() *fakeCinode {
	return &fakeCinode{
		quotaAt: -1,
		routes: map[string]route{
			"/customers": {body: `[{"id":1,"name":"Acme"},{"id":2,"name":"Empty Co"},{"id":3,"name":"Globex"}]`},
			"/customers/1": {body: `{"id":1,
				"projects":[{"id":10,"title":"Phase 1. Discovery and setup"}],
				"attachments":[{"id":"c1","title":"MSA","attachmentType":0},{"id":"c2","title":"Site","attachmentType":1}]}`},
			"/customers/2": {body: `{"id":2,"projects":[],"attachments":[]}`},
			"/customers/3": {body: `{"projects":[{"id":30,"title":"Portal"}],"attachments":[]}`},
			"/customers/1/attachments/c1": {disposition: `attachment; filename="msa.pdf";`, body: "msa"},
			"/customers/1/attachments/c2": {body: `{"href":"https://example.com"}`},
			"/projects": {body: `[{"id":10,"title":"Phase 1. Discovery and setup","customerId":1},
				{"id":30,"title":"Portal","customerId":3},
				{"id":40,"title":"Intranet. Internal tools","customerId":99}]`},
			"/projects/10":                {body: `{"attachments":[{"id":"p1","attachmentType":0},{"id":"p2","attachmentType":0}]}`},
			"/projects/10/attachments/p1": {disposition: `attachment; filename="report";`, body: "report"},
			"/projects/10/attachments/p2": {disposition: `attachment; filename="data.csv";`, body: "a,b"},
			"/projects/30":                {body: `{"attachments":[]}`},
			"/projects/99":                {body: `{"attachments":[{"id":"i1","attachmentType":0}]}`},
			"/projects/99/attachments/i1": {disposition: `attachment; filename="handbook.pdf";`, body: "handbook"},
			"/subcontractors": {body: `[{"id":5,"companyUserId":50,"firstName":"Ada","lastName":"Lovelace","attachments":[{"id":"s1"}]},
				{"id":6,"companyUserId":60,"firstName":"Idle","lastName":"Person","attachments":[]}]`},
			"/subcontractors/5/attachments/s1": {disposition: `attachment; filename="cv.pdf";`, body: "cv"},
		},
	}
}

func (f *fakeCinode) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, companyRoot)

	f.mu.Lock()
	f.requests = append(f.requests, path)
	rt, ok := f.routes[path]
	if ok && rt.status == http.StatusTooManyRequests && f.quotaAt < 0 {
		f.quotaAt = len(f.requests)
	}
	held := f.hold != "" && path == f.hold
	f.mu.Unlock()

	if held {
		select {
		case f.holding <- struct{}{}:
		default:
		}
		<-f.release
	}

	if !ok {
		http.NotFound(w, r)
		return
	}
	if rt.disposition != "" {
		w.Header().Set("Content-Disposition", rt.disposition)
	}
	if rt.status != 0 {
		w.WriteHeader(rt.status)
	}
	w.Write([]byte(rt.body))
}

func (f *fakeCinode) set(path string, rt route) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes[path] = rt
}

// holdRequests makes requests for path block until the returned release
// func is called. Release runs on cleanup as well.
func (f *fakeCinode) holdRequests(t *testing.T, path string) (<-chan struct{}, func()) {
	t.Helper()
	f.mu.Lock()
	f.hold = path
	f.holding = make(chan struct{}, 1)
	f.release = make(chan struct{})
	holding, release := f.holding, f.release
	f.mu.Unlock()

	var once sync.Once
	releaseFn := func() { once.Do(func() { close(release) }) }
	t.Cleanup(releaseFn)
	return holding, releaseFn
}

func (f *fakeCinode) requested(path string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.requests {
		if r == path {
			return true
		}
	}
	return false
}

func (f *fakeCinode) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeCinode) requestsAfterQuota() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.quotaAt < 0 {
		return 0
	}
	return len(f.requests) - f.quotaAt
}

type fixture struct {
	api       *fakeCinode
	client    *cinode.Client
	outputDir string
	cacheDir  string
	url       string
}

func setupFixture(t *testing.T) *fixture {
	t.Helper()

	api := newFakeCinode()
	server := httptest.NewServer(api)
	t.Cleanup(server.Close)

	dir := t.TempDir()
	return &fixture{
		api:       api,
		outputDir: filepath.Join(dir, "One Agency"),
		cacheDir:  filepath.Join(dir, "cache"),
		url:       server.URL,
	}
}

func (f *fixture) harvester(t *testing.T, concurrency int) *Harvester {
	t.Helper()
	log := logger.NewNopLogger()

	f.client = cinode.NewClient("tok", testClientOptions(log))
	store, err := cache.NewDiskStore(f.cacheDir)
	require.NoError(t, err)

	return New(f.client, cache.New(store, f.client, log), storage.NewWriter(".pdf", log), Options{
		Endpoints:   cinode.NewEndpoints(f.url, 31),
		OutputDir:   f.outputDir,
		Concurrency: concurrency,
		Logger:      log,
	})
}

func testClientOptions(log logger.Logger) cinode.Options {
	return cinode.Options{
		Logger: log,
		Retry: &retry.Config{
			MaxAttempts: 1,
			Backoff:     &retry.ConstantBackoff{Delay: time.Millisecond},
			RetryIf:     retry.DefaultRetryIf,
			Logger:      log,
		},
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestRunWritesOutputTree(t *testing.T) {
	f := setupFixture(t)

	stats, err := f.harvester(t, 0).Run(context.Background())
	require.NoError(t, err)

	acme := filepath.Join(f.outputDir, "Acme")
	assert.Equal(t, "msa", readFile(t, filepath.Join(acme, "msa.pdf")))
	assert.Equal(t, "report", readFile(t, filepath.Join(acme, "Phase 1", "report.pdf")))
	assert.Equal(t, "a,b", readFile(t, filepath.Join(acme, "Phase 1", "data.csv")))
	assert.Equal(t, 2, storage.CountFiles(acme))

	assert.Equal(t, "cv", readFile(t, filepath.Join(f.outputDir, "_Sub Contractors", "Ada Lovelace", "cv.pdf")))
	assert.Equal(t, "handbook", readFile(t, filepath.Join(f.outputDir, "_In House Projects", "Intranet", "handbook.pdf")))

	assert.NoDirExists(t, filepath.Join(f.outputDir, "Empty Co"))
	assert.NoDirExists(t, filepath.Join(f.outputDir, "Globex"))
	assert.NoDirExists(t, filepath.Join(f.outputDir, "_Sub Contractors", "Idle Person"))

	assert.Equal(t, int64(5), stats.FilesWritten.Load())
	assert.Equal(t, int64(1), stats.TextDumps.Load())
	assert.Equal(t, int64(3), stats.Customers.Load())
	assert.Equal(t, int64(1), stats.SubContractors.Load())
	assert.Equal(t, int64(1), stats.InHouseProjects.Load())
}

func TestRunLinkAttachmentDump(t *testing.T) {
	f := setupFixture(t)

	_, err := f.harvester(t, 2).Run(context.Background())
	require.NoError(t, err)

	acme := filepath.Join(f.outputDir, "Acme")
	entries, err := os.ReadDir(acme)
	require.NoError(t, err)

	var dump string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".txt") {
			dump = readFile(t, filepath.Join(acme, e.Name()))
		}
	}
	require.NotEmpty(t, dump)
	assert.True(t, strings.HasPrefix(dump, acme+"\n"))
	assert.Contains(t, dump, "/customers/1/attachments/c2")
	assert.Contains(t, dump, `{"href":"https://example.com"}`)
}

func TestSecondRunIsServedFromCacheAndDisk(t *testing.T) {
	f := setupFixture(t)

	_, err := f.harvester(t, 0).Run(context.Background())
	require.NoError(t, err)
	first := f.api.requestCount()

	stats, err := f.harvester(t, 0).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first, f.api.requestCount(), "second run should not touch the network")
	assert.Zero(t, stats.FilesWritten.Load())
	// Acme, Phase 1, Globex, Ada Lovelace, Intranet
	assert.Equal(t, int64(5), stats.SkippedDirs.Load())
}

func TestProjectDirectoryWithWrongCountIsRedownloaded(t *testing.T) {
	tests := []struct {
		name  string
		files []string
	}{
		{name: "fewer files", files: []string{"stale.pdf"}},
		{name: "more files", files: []string{"a.pdf", "b.pdf", "c.pdf"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupFixture(t)
			phase := filepath.Join(f.outputDir, "Acme", "Phase 1")
			require.NoError(t, os.MkdirAll(phase, 0755))
			for _, name := range tt.files {
				require.NoError(t, os.WriteFile(filepath.Join(phase, name), []byte("old"), 0644))
			}

			_, err := f.harvester(t, 1).Run(context.Background())
			require.NoError(t, err)

			assert.True(t, f.api.requested("/projects/10/attachments/p1"))
			assert.True(t, f.api.requested("/projects/10/attachments/p2"))
			assert.Equal(t, "report", readFile(t, filepath.Join(phase, "report.pdf")))
			assert.Equal(t, "a,b", readFile(t, filepath.Join(phase, "data.csv")))
			assert.Equal(t, len(tt.files)+2, storage.CountFiles(phase))
		})
	}
}

func TestCustomerClaimIsReportedBeforeDownloads(t *testing.T) {
	f := setupFixture(t)
	holding, release := f.api.holdRequests(t, "/customers/1/attachments/c1")
	h := f.harvester(t, 1)

	rec := reconcile.New(1, logger.NewNopLogger())
	producer := rec.Producer()

	done := make(chan error, 1)
	go func() {
		done <- h.harvestCustomer(context.Background(), cinode.Customer{ID: 1, Name: "Acme"}, producer)
	}()

	select {
	case <-holding:
	case <-time.After(5 * time.Second):
		t.Fatal("customer attachment download never started")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	remaining, err := rec.Drain(ctx, []cinode.ProjectDetailed{
		{ID: 10, CustomerID: 1},
		{ID: 40, CustomerID: 99},
	})
	require.NoError(t, err, "drain must finish while downloads are still in flight")
	require.Len(t, remaining, 1)
	assert.Equal(t, 40, remaining[0].ID)

	release()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("customer harvest did not finish after release")
	}
}

func TestQuotaOnAttachmentAbortsRun(t *testing.T) {
	f := setupFixture(t)
	f.api.set("/projects/10/attachments/p1", route{status: http.StatusTooManyRequests, body: errs.QuotaPhrase})

	h := f.harvester(t, 1)
	_, err := h.Run(context.Background())

	require.Error(t, err)
	assert.True(t, errs.IsQuota(err))
	assert.True(t, errs.IsQuota(f.client.Halted()))
	assert.Zero(t, f.api.requestsAfterQuota())
	assert.NoDirExists(t, filepath.Join(f.outputDir, "_In House Projects"))
}

func TestQuotaPhraseInJSONAbortsRun(t *testing.T) {
	f := setupFixture(t)
	f.api.set("/customers/3", route{body: errs.QuotaPhrase})

	_, err := f.harvester(t, 0).Run(context.Background())

	require.Error(t, err)
	assert.True(t, errs.IsQuota(err))
	assert.Error(t, f.client.Halted())
}

func TestUndecodableCustomerIsTreatedAsEmpty(t *testing.T) {
	f := setupFixture(t)
	f.api.set("/customers/3", route{body: "<html>gateway error</html>"})

	stats, err := f.harvester(t, 0).Run(context.Background())
	require.NoError(t, err)

	// project 30 is no longer claimed, so it lands in the in-house bucket
	assert.Equal(t, int64(2), stats.InHouseProjects.Load())
	assert.NoDirExists(t, filepath.Join(f.outputDir, "Globex"))
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	f := setupFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.harvester(t, 0).Run(ctx)
	require.Error(t, err)
	assert.NoDirExists(t, f.outputDir)
}

func TestTrimTitle(t *testing.T) {
	assert.Equal(t, "Phase 1", TrimTitle("Phase 1. Discovery and setup"))
	assert.Equal(t, "Portal", TrimTitle("Portal"))
	assert.Equal(t, "", TrimTitle(".hidden"))
}

func TestProjectDirName(t *testing.T) {
	assert.Equal(t, "Phase 1", ProjectDirName(cinode.ProjectRef{ID: 1, Title: "Phase 1. Discovery"}))
	assert.Equal(t, "42", ProjectDirName(cinode.ProjectRef{ID: 42, Title: ". no name"}))
	assert.Equal(t, "a_b", ProjectDirName(cinode.ProjectRef{ID: 2, Title: "a/b"}))
}

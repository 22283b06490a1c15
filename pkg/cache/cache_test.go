package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"cinodeharvest/pkg/cinode"
	"cinodeharvest/pkg/config"
	errs "cinodeharvest/pkg/errors"
	"cinodeharvest/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFetcher serves canned bodies and counts calls per path
type fakeFetcher struct {
	mu     sync.Mutex
	bodies map[string]string
	err    error
	calls  map[string]int
}

func newFakeFetcher(bodies map[string]string) *fakeFetcher {
	return &fakeFetcher{bodies: bodies, calls: make(map[string]int)}
}

func (f *fakeFetcher) FetchText(ctx context.Context, url string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[url]++
	if f.err != nil {
		return "", f.err
	}
	return f.bodies[url], nil
}

func (f *fakeFetcher) callCount(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

func newDiskCache(t *testing.T, fetcher Fetcher) (*Cache, *DiskStore, *logger.TestLogger) {
	t.Helper()
	store, err := NewDiskStore(filepath.Join(t.TempDir(), "cache"))
	require.NoError(t, err)
	tl := logger.NewTestLogger()
	return New(store, fetcher, tl), store, tl
}

const customersPath = "https://api.test/v0.1/companies/31/customers"

func TestKeyIsMD5OfPath(t *testing.T) {
	assert.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", Key(""))
	assert.Equal(t, Key(customersPath), Key(customersPath))
	assert.NotEqual(t, Key(customersPath), Key(customersPath+"/"))
}

func TestGetOrFetchIsIdempotent(t *testing.T) {
	body := `[{"id":1,"name":"Acme"},{"id":2,"name":"Globex"}]`
	fetcher := newFakeFetcher(map[string]string{customersPath: body})
	c, store, _ := newDiskCache(t, fetcher)
	ctx := context.Background()

	first, err := GetOrFetch[[]cinode.Customer](ctx, c, customersPath)
	require.NoError(t, err)
	second, err := GetOrFetch[[]cinode.Customer](ctx, c, customersPath)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, first, 2)
	assert.Equal(t, 1, fetcher.callCount(customersPath))

	raw, err := os.ReadFile(store.Path(Key(customersPath)))
	require.NoError(t, err)
	assert.Equal(t, body, string(raw))
}

func TestGetOrFetchDoesNotPoison(t *testing.T) {
	fetcher := newFakeFetcher(map[string]string{customersPath: "<html>Service unavailable</html>"})
	c, store, tl := newDiskCache(t, fetcher)
	ctx := context.Background()

	value, err := GetOrFetch[[]cinode.Customer](ctx, c, customersPath)
	require.NoError(t, err)
	assert.Empty(t, value)
	assert.NoFileExists(t, store.Path(Key(customersPath)))
	assert.True(t, tl.HasMessage("Response did not decode, treating it as empty"))

	fetcher.bodies[customersPath] = `[{"id":3,"name":"Initech"}]`
	value, err = GetOrFetch[[]cinode.Customer](ctx, c, customersPath)
	require.NoError(t, err)
	require.Len(t, value, 1)
	assert.Equal(t, "Initech", value[0].Name)
	assert.Equal(t, 2, fetcher.callCount(customersPath))
}

func TestGetOrFetchRejectsErrorObjects(t *testing.T) {
	customerPath := "https://api.test/v0.1/companies/31/customers/7"
	projectPath := "https://api.test/v0.1/companies/31/projects/70"
	fetcher := newFakeFetcher(map[string]string{
		customerPath: `{"message":"Unauthorized"}`,
		projectPath:  `{"message":"Unauthorized"}`,
	})
	c, store, _ := newDiskCache(t, fetcher)
	ctx := context.Background()

	detail, err := GetOrFetch[cinode.CustomerDetail](ctx, c, customerPath)
	require.NoError(t, err)
	assert.True(t, detail.Empty())
	assert.NoFileExists(t, store.Path(Key(customerPath)))

	listing, err := GetOrFetch[cinode.ProjectAttachments](ctx, c, projectPath)
	require.NoError(t, err)
	assert.Empty(t, listing.Attachments)
	assert.NoFileExists(t, store.Path(Key(projectPath)))

	fetcher.bodies[customerPath] = `{"id":7,"projects":[{"id":70,"title":"Rollout"}],"attachments":[]}`
	fetcher.bodies[projectPath] = `{"attachments":[{"id":"a","attachmentType":0}]}`

	detail, err = GetOrFetch[cinode.CustomerDetail](ctx, c, customerPath)
	require.NoError(t, err)
	require.Len(t, detail.Projects, 1)
	assert.Equal(t, 2, fetcher.callCount(customerPath))
	assert.FileExists(t, store.Path(Key(customerPath)))

	listing, err = GetOrFetch[cinode.ProjectAttachments](ctx, c, projectPath)
	require.NoError(t, err)
	assert.Len(t, listing.Attachments, 1)
	assert.Equal(t, 2, fetcher.callCount(projectPath))
}

func TestGetOrFetchNullIsNotCached(t *testing.T) {
	fetcher := newFakeFetcher(map[string]string{customersPath: " null\n"})
	c, store, _ := newDiskCache(t, fetcher)
	ctx := context.Background()

	value, err := GetOrFetch[[]cinode.Customer](ctx, c, customersPath)
	require.NoError(t, err)
	assert.Nil(t, value)
	assert.NoFileExists(t, store.Path(Key(customersPath)))

	fetcher.bodies[customersPath] = `[]`
	value, err = GetOrFetch[[]cinode.Customer](ctx, c, customersPath)
	require.NoError(t, err)
	assert.Empty(t, value)
	assert.FileExists(t, store.Path(Key(customersPath)))
	assert.Equal(t, 2, fetcher.callCount(customersPath))
}

func TestGetOrFetchEmptyBodyIsDefault(t *testing.T) {
	path := "https://api.test/v0.1/companies/31/customers/9"
	fetcher := newFakeFetcher(map[string]string{path: ""})
	c, store, _ := newDiskCache(t, fetcher)

	detail, err := GetOrFetch[cinode.CustomerDetail](context.Background(), c, path)
	require.NoError(t, err)
	assert.True(t, detail.Empty())
	assert.Nil(t, detail.ID)
	assert.NoFileExists(t, store.Path(Key(path)))
}

func TestGetOrFetchQuotaPhraseIsFatal(t *testing.T) {
	fetcher := newFakeFetcher(map[string]string{customersPath: "Too many requests for 24 hrs."})
	c, store, _ := newDiskCache(t, fetcher)

	_, err := GetOrFetch[[]cinode.Customer](context.Background(), c, customersPath)
	require.Error(t, err)
	assert.True(t, errs.IsQuota(err))
	assert.True(t, errs.IsFatal(err))
	assert.NoFileExists(t, store.Path(Key(customersPath)))
}

func TestGetOrFetchCorruptEntryIsFatal(t *testing.T) {
	fetcher := newFakeFetcher(nil)
	c, store, _ := newDiskCache(t, fetcher)
	require.NoError(t, os.WriteFile(store.Path(Key(customersPath)), []byte("{not json"), 0644))

	_, err := GetOrFetch[[]cinode.Customer](context.Background(), c, customersPath)
	require.Error(t, err)
	assert.Equal(t, errs.ErrorTypeCacheCorrupt, errs.TypeOf(err))
	assert.True(t, errs.IsFatal(err))
	assert.Zero(t, fetcher.callCount(customersPath))
}

func TestGetOrFetchPropagatesFetchError(t *testing.T) {
	fetcher := newFakeFetcher(nil)
	fetcher.err = errs.Wrap(errs.ErrorTypeNetwork, errors.New("reset"), "GET")
	c, _, _ := newDiskCache(t, fetcher)

	_, err := GetOrFetch[[]cinode.Customer](context.Background(), c, customersPath)
	assert.Equal(t, errs.ErrorTypeNetwork, errs.TypeOf(err))
}

func TestConcurrentFetchesOfSamePath(t *testing.T) {
	body := `{"attachments":[{"id":"a","title":"Spec","attachmentType":0}]}`
	path := "https://api.test/v0.1/companies/31/projects/4"
	fetcher := newFakeFetcher(map[string]string{path: body})
	c, store, _ := newDiskCache(t, fetcher)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pa, err := GetOrFetch[cinode.ProjectAttachments](context.Background(), c, path)
			assert.NoError(t, err)
			assert.Len(t, pa.Attachments, 1)
		}()
	}
	wg.Wait()

	raw, err := os.ReadFile(store.Path(Key(path)))
	require.NoError(t, err)
	assert.Equal(t, body, string(raw))
	assert.GreaterOrEqual(t, fetcher.callCount(path), 1)
}

func TestOpenStoreDisk(t *testing.T) {
	cfg := config.DefaultConfig().Cache
	cfg.Directory = filepath.Join(t.TempDir(), "nested", "cache")

	store, closeFn, err := OpenStore(context.Background(), cfg)
	require.NoError(t, err)
	defer closeFn()

	_, ok := store.(*DiskStore)
	assert.True(t, ok)
	assert.DirExists(t, cfg.Directory)

	_, _, err = OpenStore(context.Background(), config.CacheConfig{Backend: "memcached"})
	assert.Error(t, err)
}

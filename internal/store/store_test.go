package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Moaaz208/Mizo-Candle/internal/database"
	"github.com/Moaaz208/Mizo-Candle/internal/models"
	"github.com/Moaaz208/Mizo-Candle/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// brokenKV fails every call.
type brokenKV struct{}

func (brokenKV) Get(context.Context, string) ([]byte, error) { return nil, errors.New("disk on fire") }
func (brokenKV) Set(context.Context, string, []byte) error   { return errors.New("disk on fire") }

type recorded struct {
	operation, status string
}

func recordingStore(kv KV) (*Store, *[]recorded) {
	var (
		mu  sync.Mutex
		ops []recorded
	)
	st := New(kv, "nexus", WithRecorder(func(operation, status string, _ time.Duration) {
		mu.Lock()
		ops = append(ops, recorded{operation, status})
		mu.Unlock()
	}))
	return st, &ops
}

func TestDefaultsOnFirstRun(t *testing.T) {
	ctx := context.Background()
	st, ops := recordingStore(database.NewMemoryDB())

	assert.Equal(t, models.DefaultSiteConfig(), st.LoadSiteConfig(ctx))
	assert.Equal(t, models.DefaultProducts(), st.LoadProducts(ctx))
	assert.Empty(t, st.LoadVisitorLogs(ctx))
	assert.NotNil(t, st.LoadVisitorLogs(ctx))

	assert.Contains(t, *ops, recorded{"load_config", "default"})
}

func TestRoundTripAcrossBackends(t *testing.T) {
	mr, cleanup := testutil.SetupMiniRedis(t)
	t.Cleanup(cleanup)

	kvs := map[string]KV{
		"memory": database.NewMemoryDB(),
		"redis":  testutil.NewTestRedisDB(t, mr),
	}

	for name, kv := range kvs {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			st := New(kv, "nexus")

			cfg := testutil.TestSiteConfig(false)
			cfg.SiteName = "Nour"
			st.SaveSiteConfig(ctx, cfg)
			assert.Equal(t, cfg, st.LoadSiteConfig(ctx))

			products := []models.Product{testutil.TestProductWithID("a"), testutil.TestProductWithID("b")}
			st.SaveProducts(ctx, products)
			assert.Equal(t, products, st.LoadProducts(ctx))
		})
	}
}

func TestRecordKeysUseNamespace(t *testing.T) {
	ctx := context.Background()
	kv := database.NewMemoryDB()

	New(kv, "shop-a").SaveSiteConfig(ctx, testutil.TestSiteConfig(true))

	_, err := kv.Get(ctx, "shop-a:config")
	assert.NoError(t, err)

	// a second namespace on the same backend is independent
	assert.Equal(t, models.DefaultSiteConfig(), New(kv, "shop-b").LoadSiteConfig(ctx))
}

func TestEmptyCatalogStaysEmpty(t *testing.T) {
	ctx := context.Background()
	st := New(database.NewMemoryDB(), "nexus")

	st.SaveProducts(ctx, nil)

	products := st.LoadProducts(ctx)
	assert.NotNil(t, products)
	assert.Empty(t, products)
}

func TestCorruptRecordFallsBack(t *testing.T) {
	ctx := context.Background()
	kv := database.NewMemoryDB()
	require.NoError(t, kv.Set(ctx, "nexus:config", []byte("{not json")))
	require.NoError(t, kv.Set(ctx, "nexus:products", []byte(`{"id":1}`)))

	st, ops := recordingStore(kv)

	assert.Equal(t, models.DefaultSiteConfig(), st.LoadSiteConfig(ctx))
	assert.Equal(t, models.DefaultProducts(), st.LoadProducts(ctx))
	assert.Contains(t, *ops, recorded{"load_config", "error"})
}

func TestOlderConfigKeepsNewDefaults(t *testing.T) {
	ctx := context.Background()
	kv := database.NewMemoryDB()
	require.NoError(t, kv.Set(ctx, "nexus:config", []byte(`{"siteName":"Old Shop","isPublic":false}`)))

	cfg := New(kv, "nexus").LoadSiteConfig(ctx)

	assert.Equal(t, "Old Shop", cfg.SiteName)
	assert.False(t, cfg.IsPublic)
	assert.Equal(t, models.DefaultSiteConfig().PrimaryColor, cfg.PrimaryColor)
}

func TestBrokenBackendNeverFails(t *testing.T) {
	ctx := context.Background()
	st, ops := recordingStore(brokenKV{})

	assert.NotPanics(t, func() {
		st.SaveSiteConfig(ctx, testutil.TestSiteConfig(true))
		st.AppendVisitorLog(ctx, testutil.TestVisitorLog(testutil.IPAddresses.Public))
	})
	assert.Equal(t, models.DefaultSiteConfig(), st.LoadSiteConfig(ctx))
	assert.Contains(t, *ops, recorded{"save_config", "error"})
}

func TestAppendVisitorLogCapsHistory(t *testing.T) {
	ctx := context.Background()
	st := New(database.NewMemoryDB(), "nexus")

	for i := 0; i < models.MaxVisitorLogs+5; i++ {
		st.AppendVisitorLog(ctx, testutil.TestVisitorLog(fmt.Sprintf("10.0.0.%d", i)))
	}

	logs := st.LoadVisitorLogs(ctx)
	require.Len(t, logs, models.MaxVisitorLogs)
	assert.Equal(t, fmt.Sprintf("10.0.0.%d", models.MaxVisitorLogs+4), logs[0].IP, "newest first")
	assert.Equal(t, "10.0.0.5", logs[len(logs)-1].IP, "oldest dropped")
}

func TestConcurrentAppendsAreNotLost(t *testing.T) {
	ctx := context.Background()
	st := New(database.NewMemoryDB(), "nexus")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			st.AppendVisitorLog(ctx, testutil.TestVisitorLog(fmt.Sprintf("10.0.1.%d", i)))
		}(i)
	}
	wg.Wait()

	assert.Len(t, st.LoadVisitorLogs(ctx), 20)
}

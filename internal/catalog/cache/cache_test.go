package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dynforms/internal/catalog/models"
	id "dynforms/pkg/domain"
)

func TestPassthroughAlwaysLoads(t *testing.T) {
	calls := 0
	want := &models.TemplateVersion{Version: 3}
	load := func(context.Context) (*models.TemplateVersion, error) {
		calls++
		return want, nil
	}

	var c Passthrough
	for range 2 {
		got, err := c.LatestPublished(context.Background(), id.TemplateID(uuid.New()), load)
		require.NoError(t, err)
		assert.Same(t, want, got)
	}
	assert.Equal(t, 2, calls)
	assert.NoError(t, c.Invalidate(context.Background(), id.TemplateID(uuid.New())))
}

func TestPassthroughPropagatesLoadError(t *testing.T) {
	boom := errors.New("boom")
	_, err := Passthrough{}.LatestPublished(context.Background(), id.TemplateID(uuid.New()),
		func(context.Context) (*models.TemplateVersion, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
}

func TestKeyIsScopedPerTemplate(t *testing.T) {
	a, b := id.TemplateID(uuid.New()), id.TemplateID(uuid.New())
	assert.NotEqual(t, key(a), key(b))
	assert.Contains(t, key(a), a.String())
}

// memoryRedis covers the commands RedisCache issues. EvalSha runs the
// generation-guarded write in process.
type memoryRedis struct {
	redis.Cmdable
	mu   sync.Mutex
	data map[string]string
}

func newMemoryRedis() *memoryRedis {
	return &memoryRedis{data: map[string]string{}}
}

func (m *memoryRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	cmd := redis.NewStringCmd(ctx, "get", key)
	v, ok := m.data[key]
	if !ok {
		cmd.SetErr(redis.Nil)
		return cmd
	}
	cmd.SetVal(v)
	return cmd
}

func (m *memoryRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	cmd := redis.NewIntCmd(ctx, "del")
	var n int64
	for _, k := range keys {
		if _, ok := m.data[k]; ok {
			delete(m.data, k)
			n++
		}
	}
	cmd.SetVal(n)
	return cmd
}

func (m *memoryRedis) Incr(ctx context.Context, key string) *redis.IntCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	cmd := redis.NewIntCmd(ctx, "incr", key)
	n, _ := strconv.ParseInt(m.data[key], 10, 64)
	n++
	m.data[key] = strconv.FormatInt(n, 10)
	cmd.SetVal(n)
	return cmd
}

func (m *memoryRedis) EvalSha(ctx context.Context, _ string, keys []string, args ...any) *redis.Cmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	cmd := redis.NewCmd(ctx, "evalsha")
	current, ok := m.data[keys[1]]
	if !ok {
		current = "0"
	}
	if current != fmt.Sprint(args[0]) {
		cmd.SetVal(int64(0))
		return cmd
	}
	m.data[keys[0]] = fmt.Sprint(args[1])
	cmd.SetVal(int64(1))
	return cmd
}

func (m *memoryRedis) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok
}

func versionLoader(templateID id.TemplateID, version int) Loader {
	return func(context.Context) (*models.TemplateVersion, error) {
		return &models.TemplateVersion{TemplateID: templateID, Version: version, IsPublished: true, DesignJSON: "{}"}, nil
	}
}

func TestLoadStartedBeforeInvalidateIsNotWrittenBack(t *testing.T) {
	ctx := context.Background()
	rdb := newMemoryRedis()
	c := NewRedis(rdb, time.Minute)
	templateID := id.TemplateID(uuid.New())

	started := make(chan struct{})
	release := make(chan struct{})
	slowLoad := func(ctx context.Context) (*models.TemplateVersion, error) {
		close(started)
		<-release
		return versionLoader(templateID, 1)(ctx)
	}

	done := make(chan *models.TemplateVersion)
	go func() {
		v, err := c.LatestPublished(ctx, templateID, slowLoad)
		assert.NoError(t, err)
		done <- v
	}()

	<-started
	require.NoError(t, c.Invalidate(ctx, templateID))
	close(release)
	stale := <-done
	require.NotNil(t, stale)
	assert.Equal(t, 1, stale.Version)
	assert.False(t, rdb.has(key(templateID)), "a load overtaken by Invalidate must not repopulate the cache")

	got, err := c.LatestPublished(ctx, templateID, versionLoader(templateID, 2))
	require.NoError(t, err)
	assert.Equal(t, 2, got.Version)

	got, err = c.LatestPublished(ctx, templateID, versionLoader(templateID, 99))
	require.NoError(t, err)
	assert.Equal(t, 2, got.Version, "the fresh load is cached")
}

func TestInvalidateDropsCachedValue(t *testing.T) {
	ctx := context.Background()
	c := NewRedis(newMemoryRedis(), time.Minute)
	templateID := id.TemplateID(uuid.New())

	_, err := c.LatestPublished(ctx, templateID, versionLoader(templateID, 1))
	require.NoError(t, err)
	require.NoError(t, c.Invalidate(ctx, templateID))

	got, err := c.LatestPublished(ctx, templateID, versionLoader(templateID, 2))
	require.NoError(t, err)
	assert.Equal(t, 2, got.Version)
}

func TestSharedLoadSurvivesCallerCancellation(t *testing.T) {
	rdb := newMemoryRedis()
	c := NewRedis(rdb, time.Minute)
	templateID := id.TemplateID(uuid.New())
	ctx, cancel := context.WithCancel(context.Background())

	load := func(loadCtx context.Context) (*models.TemplateVersion, error) {
		cancel()
		if err := loadCtx.Err(); err != nil {
			return nil, err
		}
		return versionLoader(templateID, 4)(loadCtx)
	}

	got, err := c.LatestPublished(ctx, templateID, load)
	require.NoError(t, err)
	assert.Equal(t, 4, got.Version)
	assert.True(t, rdb.has(key(templateID)))
}

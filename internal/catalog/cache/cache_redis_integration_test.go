//go:build integration

package cache_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"dynforms/internal/catalog/cache"
	"dynforms/internal/catalog/models"
	id "dynforms/pkg/domain"
	"dynforms/pkg/platform/sentinel"
	"dynforms/pkg/testutil/containers"
)

type RedisCacheSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	cache *cache.RedisCache
}

func TestRedisCacheSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisCacheSuite))
}

func (s *RedisCacheSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.cache = cache.NewRedis(s.redis.Client, time.Minute)
}

func (s *RedisCacheSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisCacheSuite) TestHitAfterFirstLoad() {
	ctx := context.Background()
	templateID := id.TemplateID(uuid.New())
	var loads atomic.Int32
	load := func(context.Context) (*models.TemplateVersion, error) {
		loads.Add(1)
		return &models.TemplateVersion{TemplateID: templateID, Version: 2, IsPublished: true, DesignJSON: "{}"}, nil
	}

	for range 3 {
		v, err := s.cache.LatestPublished(ctx, templateID, load)
		s.Require().NoError(err)
		s.Equal(2, v.Version)
	}
	s.Equal(int32(1), loads.Load())

	s.Require().NoError(s.cache.Invalidate(ctx, templateID))
	_, err := s.cache.LatestPublished(ctx, templateID, load)
	s.Require().NoError(err)
	s.Equal(int32(2), loads.Load())
}

func (s *RedisCacheSuite) TestMissesAreNotCached() {
	ctx := context.Background()
	templateID := id.TemplateID(uuid.New())
	var loads atomic.Int32
	load := func(context.Context) (*models.TemplateVersion, error) {
		loads.Add(1)
		return nil, sentinel.ErrNotFound
	}

	for range 2 {
		_, err := s.cache.LatestPublished(ctx, templateID, load)
		s.ErrorIs(err, sentinel.ErrNotFound)
	}
	s.Equal(int32(2), loads.Load())
}

func (s *RedisCacheSuite) TestConcurrentMissesShareOneLoad() {
	ctx := context.Background()
	templateID := id.TemplateID(uuid.New())
	release := make(chan struct{})
	var loads atomic.Int32
	load := func(context.Context) (*models.TemplateVersion, error) {
		loads.Add(1)
		<-release
		return &models.TemplateVersion{TemplateID: templateID, Version: 1, IsPublished: true, DesignJSON: "{}"}, nil
	}

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.cache.LatestPublished(ctx, templateID, load)
			s.NoError(err)
		}()
	}
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()

	s.LessOrEqual(loads.Load(), int32(2))
}

func (s *RedisCacheSuite) TestLoadOvertakenByInvalidateIsNotCached() {
	ctx := context.Background()
	templateID := id.TemplateID(uuid.New())
	version := func(n int) *models.TemplateVersion {
		return &models.TemplateVersion{TemplateID: templateID, Version: n, IsPublished: true, DesignJSON: "{}"}
	}

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := s.cache.LatestPublished(ctx, templateID, func(context.Context) (*models.TemplateVersion, error) {
			close(started)
			<-release
			return version(1), nil
		})
		s.NoError(err)
	}()

	<-started
	s.Require().NoError(s.cache.Invalidate(ctx, templateID))
	close(release)
	<-done

	v, err := s.cache.LatestPublished(ctx, templateID, func(context.Context) (*models.TemplateVersion, error) {
		return version(2), nil
	})
	s.Require().NoError(err)
	s.Equal(2, v.Version)

	v, err = s.cache.LatestPublished(ctx, templateID, func(context.Context) (*models.TemplateVersion, error) {
		return version(3), nil
	})
	s.Require().NoError(err)
	s.Equal(2, v.Version)
}

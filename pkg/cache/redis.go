package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"comparador/pkg/logger"
	"comparador/pkg/models"

	"github.com/redis/go-redis/v9"
)

const redisPrefix = "comparador:search:"

// Redis keeps search results in a shared Redis so several instances reuse them.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(ctx context.Context, rawURL string, ttl time.Duration) (*Redis, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Redis{client: client, ttl: ttl}, nil
}

func redisKey(store, query string) string {
	return redisPrefix + storeKey(store) + ":" + NormalizeQuery(query)
}

func (r *Redis) Get(ctx context.Context, store, query string) ([]models.Product, bool) {
	data, err := r.client.Get(ctx, redisKey(store, query)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Log.Warn().Err(err).Str("store", store).Str("query", query).Msg("cache: redis get failed")
		}
		return nil, false
	}

	var products []models.Product
	if err := json.Unmarshal(data, &products); err != nil {
		logger.Log.Warn().Err(err).Str("store", store).Str("query", query).Msg("cache: failed to unmarshal products")
		return nil, false
	}
	return products, true
}

func (r *Redis) Set(ctx context.Context, store, query string, products []models.Product) {
	data, err := json.Marshal(products)
	if err != nil {
		logger.Log.Warn().Err(err).Str("store", store).Str("query", query).Msg("cache: failed to marshal products")
		return
	}
	if err := r.client.Set(ctx, redisKey(store, query), data, r.ttl).Err(); err != nil {
		logger.Log.Warn().Err(err).Str("store", store).Str("query", query).Msg("cache: redis set failed")
	}
}

func (r *Redis) Close() error {
	return r.client.Close()
}

package geo

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/inspection-dispatch/internal/models"
)

// RedisGeo implements Positions using Redis GEO commands so multiple
// gateway instances share one position table.
type RedisGeo struct {
	client *redis.Client
	key    string
	ctx    context.Context
}

func NewRedisGeo(addr, password, key string) *RedisGeo {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return &RedisGeo{client: c, key: key, ctx: context.Background()}
}

func (r *RedisGeo) Upsert(p models.DriverPosition) {
	_, _ = r.client.GeoAdd(r.ctx, r.key, &redis.GeoLocation{
		Longitude: p.Location.Lon,
		Latitude:  p.Location.Lat,
		Name:      p.DriverID,
	}).Result()
	_ = r.client.HSet(r.ctx, metaKey(p.DriverID), map[string]interface{}{
		"captured_at": p.Location.CapturedAt.Format(time.RFC3339),
		"accuracy_m":  p.Location.AccuracyM,
	}).Err()
}

func (r *RedisGeo) Remove(driverID string) {
	_ = r.client.ZRem(r.ctx, r.key, driverID).Err()
	_ = r.client.Del(r.ctx, metaKey(driverID)).Err()
}

func (r *RedisGeo) Nearby(lat, lon float64, limit int) []models.DriverPosition {
	res, err := r.client.GeoRadius(r.ctx, r.key, lon, lat, &redis.GeoRadiusQuery{
		Radius:    100,
		Unit:      "km",
		WithCoord: true,
		WithDist:  true,
		Count:     limit,
		Sort:      "ASC",
	}).Result()
	if err != nil {
		return nil
	}
	out := make([]models.DriverPosition, 0, len(res))
	for _, g := range res {
		p := models.DriverPosition{DriverID: g.Name}
		p.Location.Lat = g.Latitude
		p.Location.Lon = g.Longitude
		if m, err := r.client.HGetAll(r.ctx, metaKey(g.Name)).Result(); err == nil {
			if v, ok := m["captured_at"]; ok {
				if ts, err := time.Parse(time.RFC3339, v); err == nil {
					p.Location.CapturedAt = ts
				}
			}
		}
		out = append(out, p)
	}
	return out
}

func metaKey(id string) string { return "driver:pos:meta:" + id }

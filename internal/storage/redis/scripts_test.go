package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// setupTestRedis creates a miniredis instance for testing Lua scripts
func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	return client, mr
}

func TestSaveFeaturesScript(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer client.Close()
	defer mr.Close()

	ctx := context.Background()
	script := redis.NewScript(saveFeaturesScript)

	tests := []struct {
		name      string
		date      string
		payload   string
		wantDates int
	}{
		{name: "first day", date: "2024-01-15", payload: `{"v":1}`, wantDates: 1},
		{name: "overwrite same day", date: "2024-01-15", payload: `{"v":2}`, wantDates: 1},
		{name: "second day", date: "2024-01-16", payload: `{"v":3}`, wantDates: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := script.Run(ctx, client,
				[]string{featuresKey(tt.date), featuresDatesKey},
				tt.date, tt.payload,
			).Result()
			if err != nil {
				t.Fatalf("script failed: %v", err)
			}
			if res != "OK" {
				t.Errorf("script returned %v, want OK", res)
			}

			got, err := mr.Get(featuresKey(tt.date))
			if err != nil {
				t.Fatalf("features key missing: %v", err)
			}
			if got != tt.payload {
				t.Errorf("stored %q, want %q", got, tt.payload)
			}

			members, err := mr.Members(featuresDatesKey)
			if err != nil {
				t.Fatalf("index missing: %v", err)
			}
			if len(members) != tt.wantDates {
				t.Errorf("index has %d dates, want %d", len(members), tt.wantDates)
			}
		})
	}
}

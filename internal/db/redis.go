package db

import "github.com/redis/go-redis/v9"

// OpenRedis returns a client for the given address, or nil when no address
// is configured. A nil client disables the nearby-query cache entirely, so
// the server runs fine without Redis.
func OpenRedis(addr, pass string) *redis.Client {
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{Addr: addr, Password: pass})
}

// Package redis provides the Redis-backed session store and distributed locker.
package redis

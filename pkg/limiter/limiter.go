// Package limiter throttles model handles with a token bucket shared between
// callers.
package limiter

type Limiter interface {
	limiterSetup()
}

package eth

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Rate limiter per client with auto-tuning. Pacing is a token bucket with a
// burst of one; auto mode moves its limit up and down.
type rateLimiter struct {
	chainId      uint64
	limiter      *rate.Limiter
	maxTokens    int
	lastSuccess  time.Time // last successful call without 429
	backoffUntil time.Time // don't make any calls until this time
	autoMode     bool      // true = auto-tune rate, false = fixed rate
	lastCallTime time.Time // when last RPC call was made
	mu           sync.Mutex
}

const (
	initialRateLimit = 5                // start with 5 calls/sec (conservative for cold start)
	minRateLimit     = 1                // minimum 1 call/sec
	maxRateLimit     = 100              // maximum 100 calls/sec
	increaseInterval = 60 * time.Second // increase rate after 60 seconds without errors
	increasePercent  = 10               // increase by 10%
	decreasePercent  = 50               // decrease by 50% on 429 error
	backoffPeriod    = 5 * time.Second
)

// newRateLimiter starts in auto mode when rate is 0.
func newRateLimiter(chainId uint64, limit int) *rateLimiter {
	autoMode := limit <= 0
	if autoMode {
		limit = initialRateLimit
	}
	if limit > maxRateLimit {
		limit = maxRateLimit
	}

	log.Debug().Uint64("chainId", chainId).Int("rate", limit).Bool("auto", autoMode).Msg("RPC rate limiter initialized")

	return &rateLimiter{
		chainId:     chainId,
		limiter:     rate.NewLimiter(rate.Limit(limit), 1),
		maxTokens:   limit,
		lastSuccess: time.Now(),
		autoMode:    autoMode,
	}
}

// waitForToken blocks until the next call is allowed: first out of any 429
// backoff, then for a token.
func (rl *rateLimiter) waitForToken(ctx context.Context) error {
	for {
		rl.mu.Lock()
		wait := time.Until(rl.backoffUntil)
		rl.mu.Unlock()

		if wait <= 0 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}

	rl.mu.Lock()
	if rl.autoMode && time.Since(rl.lastSuccess) > increaseInterval && rl.maxTokens < maxRateLimit {
		newMax := rl.maxTokens + max(1, rl.maxTokens*increasePercent/100)
		if newMax > maxRateLimit {
			newMax = maxRateLimit
		}
		log.Debug().Uint64("chainId", rl.chainId).Int("oldRate", rl.maxTokens).Int("newRate", newMax).Msg("Rate limit increased (auto)")
		rl.setRate_locked(newMax)
		rl.lastSuccess = time.Now()
	}
	rl.mu.Unlock()

	if err := rl.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}

	rl.mu.Lock()
	rl.lastCallTime = time.Now()
	rl.mu.Unlock()
	return nil
}

func (rl *rateLimiter) setRate_locked(n int) {
	rl.maxTokens = n
	rl.limiter.SetLimit(rate.Limit(n))
}

// onRateLimitError is called when a 429 error is received - reduces rate and sets backoff
func (rl *rateLimiter) onRateLimitError() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	log.Warn().Uint64("chainId", rl.chainId).Int("rate", rl.maxTokens).
		Str("sinceLast", time.Since(rl.lastCallTime).String()).
		Msg("429 rate limit error")

	// give the provider time to reset its counters
	rl.backoffUntil = time.Now().Add(backoffPeriod)

	if rl.autoMode {
		newMax := rl.maxTokens - (rl.maxTokens * decreasePercent / 100)
		if newMax < minRateLimit {
			newMax = minRateLimit
		}
		if newMax < rl.maxTokens {
			log.Debug().Uint64("chainId", rl.chainId).Int("oldRate", rl.maxTokens).Int("newRate", newMax).Msg("Rate limit decreased due to 429 error (auto)")
			rl.setRate_locked(newMax)
		}
	}
}

func (rl *rateLimiter) onSuccess() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.lastSuccess = time.Now()
}

func (rl *rateLimiter) rate() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.maxTokens
}

// handleRPCResult checks for rate limit errors and reports success/failure
func (rl *rateLimiter) handleRPCResult(err error) {
	switch {
	case err == nil:
		rl.onSuccess()
	case isRateLimitError(err):
		rl.onRateLimitError()
	case isGatewayError(err):
		log.Warn().Err(err).Uint64("chainId", rl.chainId).Msg("RPC gateway error")
	}
}

func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "429") || strings.Contains(errStr, "Too Many Requests") || strings.Contains(errStr, "rate limit")
}

func isGatewayError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "502") || strings.Contains(errStr, "503") || strings.Contains(errStr, "504") ||
		strings.Contains(errStr, "Gateway") || strings.Contains(errStr, "Service Unavailable")
}

// Copyright (C) 2025 Dyne.org foundation
// designed, written and maintained by Denis Roio <jaromil@dyne.org>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package tools

import (
	"fmt"
	"sync"
	"time"
)

// RateLimitConfig configures per-tool call rates and cooldowns. A zero rate
// and zero cooldown leave a tool unthrottled.
type RateLimitConfig struct {
	DefaultPerMinute int
	PerTool          map[string]int
	Cooldowns        map[string]time.Duration
}

// DefaultRateLimitConfig returns the default rate limiting configuration.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		DefaultPerMinute: 60,
	}
}

func (c RateLimitConfig) rateFor(name string) int {
	if rate, ok := c.PerTool[name]; ok {
		return rate
	}
	return c.DefaultPerMinute
}

// toolRateLimiter is a token bucket holding one minute of calls, refilled
// continuously, plus an optional cooldown between consecutive calls.
type toolRateLimiter struct {
	mu          sync.Mutex
	now         func() time.Time
	capacity    float64
	tokens      float64
	interval    time.Duration
	last        time.Time
	cooldown    time.Duration
	nextAllowed time.Time
}

func newToolRateLimiter(ratePerMinute int, cooldown time.Duration, now func() time.Time) *toolRateLimiter {
	if ratePerMinute <= 0 && cooldown <= 0 {
		return nil
	}
	if now == nil {
		now = time.Now
	}

	rl := &toolRateLimiter{
		now:      now,
		cooldown: cooldown,
		last:     now(),
	}
	if ratePerMinute > 0 {
		rl.capacity = float64(ratePerMinute)
		rl.tokens = rl.capacity
		rl.interval = time.Minute / time.Duration(ratePerMinute)
	}
	return rl
}

// Allow consumes one call or reports why the call must wait.
func (r *toolRateLimiter) Allow() error {
	if r == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if !r.nextAllowed.IsZero() && now.Before(r.nextAllowed) {
		return fmt.Errorf("%w: retry after %s", ErrToolInCooldown, r.nextAllowed.Sub(now).Round(time.Second))
	}

	if r.interval > 0 {
		r.tokens += float64(now.Sub(r.last)) / float64(r.interval)
		if r.tokens > r.capacity {
			r.tokens = r.capacity
		}
		r.last = now
		if r.tokens < 1 {
			wait := time.Duration((1 - r.tokens) * float64(r.interval))
			return fmt.Errorf("%w: retry after %s", ErrToolRateLimited, wait.Round(time.Second))
		}
		r.tokens--
	}

	if r.cooldown > 0 {
		r.nextAllowed = now.Add(r.cooldown)
	}
	return nil
}

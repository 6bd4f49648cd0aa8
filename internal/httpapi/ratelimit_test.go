package httpapi

import "testing"

func TestRateLimiter_AllowsUpToBurstThenBlocks(t *testing.T) {
	rl := &RateLimiter{rate: 1.0 / 60.0, burst: 3, buckets: make(map[string]*ipBucket)}

	for i := 0; i < 3; i++ {
		allowed, _ := rl.allow("1.2.3.4")
		if !allowed {
			t.Fatalf("expected request %d within burst to be allowed", i)
		}
	}

	allowed, retryAfter := rl.allow("1.2.3.4")
	if allowed {
		t.Fatalf("expected the request beyond burst capacity to be blocked")
	}
	if retryAfter <= 0 {
		t.Fatalf("expected a positive retry-after duration, got %v", retryAfter)
	}
}

func TestRateLimiter_TracksIPsIndependently(t *testing.T) {
	rl := &RateLimiter{rate: 1.0 / 60.0, burst: 1, buckets: make(map[string]*ipBucket)}

	if allowed, _ := rl.allow("1.1.1.1"); !allowed {
		t.Fatalf("expected first request from 1.1.1.1 to be allowed")
	}
	if allowed, _ := rl.allow("1.1.1.1"); allowed {
		t.Fatalf("expected second request from 1.1.1.1 to be blocked")
	}
	if allowed, _ := rl.allow("2.2.2.2"); !allowed {
		t.Fatalf("expected a different IP to have its own bucket")
	}
}

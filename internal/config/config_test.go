package config

import (
	"testing"
	"time"
)

func TestEnvHelpers(t *testing.T) {
	t.Setenv("X_STR", "hello")
	t.Setenv("X_INT", "42")
	t.Setenv("X_BAD_INT", "forty")
	t.Setenv("X_DUR", "250ms")
	t.Setenv("X_BOOL", "off")

	if got := envStr("X_STR", "d"); got != "hello" {
		t.Errorf("envStr = %q", got)
	}
	if got := envStr("X_MISSING", "d"); got != "d" {
		t.Errorf("envStr default = %q", got)
	}
	if got := envInt("X_INT", 1); got != 42 {
		t.Errorf("envInt = %d", got)
	}
	if got := envInt("X_BAD_INT", 7); got != 7 {
		t.Errorf("envInt fallback = %d", got)
	}
	if got := envDur("X_DUR", time.Second); got != 250*time.Millisecond {
		t.Errorf("envDur = %v", got)
	}
	if got := envBool("X_BOOL", true); got {
		t.Errorf("envBool = %v", got)
	}
	if got := envBool("X_MISSING", true); !got {
		t.Errorf("envBool default = %v", got)
	}
}

func TestLoadRateLimitConfigClamps(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "2s")
	t.Setenv("RATE_LIMIT_TTL", "1s")

	cfg := LoadRateLimitConfig()
	if cfg.Capacity != 1 {
		t.Errorf("capacity = %d", cfg.Capacity)
	}
	if cfg.TTL < 2*time.Second {
		t.Errorf("ttl = %v, shorter than a refill", cfg.TTL)
	}
}

func TestLoadNotifyConfig(t *testing.T) {
	t.Setenv("RABBITMQ_URL", "")
	t.Setenv("AMQP_URL", "amqp://u:p@broker:5672/")
	t.Setenv("NOTIFY_COALESCE_WINDOW", "1s")
	t.Setenv("NOTIFY_REORDER_WAIT", "")

	cfg := LoadNotifyConfig()
	if cfg.AMQPURL != "amqp://u:p@broker:5672/" {
		t.Errorf("url = %q", cfg.AMQPURL)
	}
	if cfg.CoalesceWindow != time.Second || cfg.Exchange != "orders.events" || cfg.KitchenQueue != "kitchen.tickets" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.ReorderWait != 500*time.Millisecond {
		t.Errorf("reorder wait = %v", cfg.ReorderWait)
	}
}

func TestLoadRedisConfigHostPort(t *testing.T) {
	t.Setenv("REDIS_ADDR", "ignored:1")
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("REDIS_PORT", "6380")
	if got := LoadRedisConfig().Addr; got != "cache:6380" {
		t.Fatalf("addr = %q", got)
	}
}

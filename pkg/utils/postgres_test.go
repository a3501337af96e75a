package utils

import (
	"testing"
	"time"
)

func TestPoolConfigDefaults(t *testing.T) {
	c := PostgresPoolConfig{}.withDefaults()
	if c.MaxOpenConns != 25 || c.MaxIdleConns != 25 {
		t.Fatalf("conn defaults = %+v", c)
	}
	if c.ConnMaxLifetime != 30*time.Minute || c.ConnMaxIdleTime != 5*time.Minute {
		t.Fatalf("lifetime defaults = %+v", c)
	}
	if c.PingTimeout != 5*time.Second {
		t.Fatalf("ping timeout default = %v", c.PingTimeout)
	}

	kept := PostgresPoolConfig{MaxOpenConns: 5, PingTimeout: time.Second}.withDefaults()
	if kept.MaxOpenConns != 5 || kept.PingTimeout != time.Second {
		t.Fatalf("explicit values overridden: %+v", kept)
	}
}

package scheduler

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
)

func TestRedisClientOptParsesMiniredisURL(t *testing.T) {
	mr := miniredis.RunT(t)

	opt, err := redisClientOpt("redis://"+mr.Addr(), false)
	if err != nil {
		t.Fatalf("redisClientOpt: %v", err)
	}
	if opt.Addr != mr.Addr() {
		t.Errorf("addr = %s, want %s", opt.Addr, mr.Addr())
	}
	if opt.TLSConfig != nil {
		t.Error("plain redis url must not carry a TLS config")
	}
}

func TestRedisClientOptParsesCredentialsAndDB(t *testing.T) {
	opt, err := redisClientOpt("redis://:secret@localhost:6380/2", false)
	if err != nil {
		t.Fatalf("redisClientOpt: %v", err)
	}
	if opt.Addr != "localhost:6380" {
		t.Errorf("addr = %s", opt.Addr)
	}
	if opt.Password != "secret" {
		t.Errorf("password = %s", opt.Password)
	}
	if opt.DB != 2 {
		t.Errorf("db = %d", opt.DB)
	}
}

func TestRedisClientOptTLSInsecure(t *testing.T) {
	opt, err := redisClientOpt("rediss://localhost:6379", true)
	if err != nil {
		t.Fatalf("redisClientOpt: %v", err)
	}
	if opt.TLSConfig == nil || !opt.TLSConfig.InsecureSkipVerify {
		t.Error("expected InsecureSkipVerify TLS config for rediss with insecure flag")
	}

	opt, err = redisClientOpt("redis://localhost:6379", true)
	if err != nil {
		t.Fatalf("redisClientOpt: %v", err)
	}
	if opt.TLSConfig == nil || !opt.TLSConfig.InsecureSkipVerify {
		t.Error("insecure flag must force a TLS config even on a plain url")
	}
}

func TestRedisClientOptRejectsInvalidURL(t *testing.T) {
	if _, err := redisClientOpt("not-a-url", false); err == nil {
		t.Fatal("expected error for invalid redis url")
	}
}

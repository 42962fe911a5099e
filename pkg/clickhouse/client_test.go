package clickhouse

import (
	"net/url"
	"testing"
	"time"
)

func TestBuildDSN(t *testing.T) {
	cfg := defaultConfig()
	for _, opt := range []ClientOption{
		WithHost("ch.local"),
		WithDatabase("patternpull"),
		WithCredentials("svc", "p@ss"),
		WithHTTP(true),
		WithAsyncInsert(true, true),
		WithMaxExecutionTime(90 * time.Second),
	} {
		opt(cfg)
	}

	u, err := url.Parse(BuildDSN(*cfg))
	if err != nil {
		t.Fatalf("parse dsn: %v", err)
	}
	if u.Scheme != "http" || u.Host != "ch.local:9000" || u.Path != "/patternpull" {
		t.Fatalf("dsn = %s", u)
	}
	if pw, _ := u.User.Password(); u.User.Username() != "svc" || pw != "p@ss" {
		t.Fatalf("credentials not preserved: %s", u.User)
	}
	q := u.Query()
	if q.Get("async_insert") != "1" || q.Get("wait_for_async_insert") != "1" {
		t.Fatalf("query = %v", q)
	}
	if q.Get("max_execution_time") != "90" || q.Get("dial_timeout") != "5s" {
		t.Fatalf("timeouts = %v", q)
	}
}

func TestBuildDSNDefaults(t *testing.T) {
	cfg := defaultConfig()
	WithHost("localhost")(cfg)
	WithPort(0)(cfg)
	WithDatabase("")(cfg)

	u, err := url.Parse(BuildDSN(*cfg))
	if err != nil {
		t.Fatalf("parse dsn: %v", err)
	}
	if u.Host != "localhost:9000" || u.Path != "/default" {
		t.Fatalf("dsn = %s", u)
	}
	if u.Query().Get("async_insert") != "" {
		t.Fatalf("async insert should be off")
	}
}

func TestNewClientRequiresHost(t *testing.T) {
	if _, err := NewClient(); err == nil {
		t.Fatalf("expected error without host")
	}
}

package httpx

import (
	"testing"
	"time"
)

func TestSharedClientStartsWithNinetySeconds(t *testing.T) {
	c := ExternalHTTPClient()
	if c == nil {
		t.Fatal("shared client is nil")
	}
	if c.Timeout != 90*time.Second {
		t.Fatalf("shared client timeout = %s, want 90s", c.Timeout)
	}
}

func TestConfigureReturnsAppliedTimeout(t *testing.T) {
	saved := ExternalHTTPClient().Timeout
	t.Cleanup(func() { ExternalHTTPClient().Timeout = saved })

	cases := []struct {
		seconds int
		want    time.Duration
	}{
		{seconds: 30, want: 30 * time.Second},
		{seconds: 0, want: 90 * time.Second},
		{seconds: -5, want: 90 * time.Second},
		{seconds: 300, want: 5 * time.Minute},
	}
	for _, tc := range cases {
		applied := ConfigureExternalHTTPClient(tc.seconds)
		if applied != tc.want {
			t.Fatalf("ConfigureExternalHTTPClient(%d) returned %s, want %s", tc.seconds, applied, tc.want)
		}
		if got := ExternalHTTPClient().Timeout; got != applied {
			t.Fatalf("after ConfigureExternalHTTPClient(%d) client timeout = %s, returned %s", tc.seconds, got, applied)
		}
	}
}

func TestConfigureKeepsTheSameClient(t *testing.T) {
	saved := ExternalHTTPClient().Timeout
	t.Cleanup(func() { ExternalHTTPClient().Timeout = saved })

	before := ExternalHTTPClient()
	ConfigureExternalHTTPClient(15)
	if ExternalHTTPClient() != before {
		t.Fatal("configuring the timeout must not replace the shared client")
	}
}

package web

import "testing"

func TestRemoteHost(t *testing.T) {
	cases := []struct {
		addr string
		want string
	}{
		{"203.0.113.7:51423", "203.0.113.7"},
		{"203.0.113.7:40000", "203.0.113.7"},
		{"[2001:db8::1]:8080", "2001:db8::1"},
		{"pipe", "pipe"},
	}
	for _, c := range cases {
		if got := remoteHost(c.addr); got != c.want {
			t.Fatalf("remoteHost(%q) = %q, want %q", c.addr, got, c.want)
		}
	}
}

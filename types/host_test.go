package types

import "testing"

func TestParseHost(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    Host
		wantErr bool
	}{
		{"full", "deploy@example.com:2222", Host{User: "deploy", Addr: "example.com", Port: "2222"}, false},
		{"no port", "deploy@example.com", Host{User: "deploy", Addr: "example.com"}, false},
		{"no user", "example.com:22", Host{Addr: "example.com", Port: "22"}, false},
		{"bare addr", "10.0.0.5", Host{Addr: "10.0.0.5"}, false},
		{"bare ipv6", "2001:db8::1", Host{Addr: "2001:db8::1"}, false},
		{"bracketed ipv6", "[2001:db8::1]", Host{Addr: "2001:db8::1"}, false},
		{"bracketed ipv6 with port", "deploy@[2001:db8::1]:2222", Host{User: "deploy", Addr: "2001:db8::1", Port: "2222"}, false},
		{"unclosed bracket", "[2001:db8::1:22", Host{}, true},
		{"bracket without port separator", "[::1]22", Host{}, true},
		{"empty addr", "deploy@:22", Host{}, true},
		{"empty", "", Host{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseHost(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseHost(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseHost(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestHost_String(t *testing.T) {
	tests := []struct {
		host Host
		want string
	}{
		{Host{User: "vagrant", Addr: "127.0.0.1", Port: "2222"}, "vagrant@127.0.0.1:2222"},
		{Host{Addr: "example.com"}, "example.com"},
		{Host{User: "deploy", Addr: "example.com"}, "deploy@example.com"},
		{Host{User: "deploy", Addr: "2001:db8::1", Port: "22"}, "deploy@[2001:db8::1]:22"},
		{Host{Addr: "2001:db8::1"}, "[2001:db8::1]"},
	}

	for _, tt := range tests {
		if got := tt.host.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestParseHost_RoundTrip(t *testing.T) {
	for _, s := range []string{"deploy@example.com:2222", "example.com", "a@b", "deploy@[2001:db8::1]:2222", "[::1]"} {
		h, err := ParseHost(s)
		if err != nil {
			t.Fatalf("ParseHost(%q) error = %v", s, err)
		}
		if h.String() != s {
			t.Errorf("round trip %q -> %q", s, h.String())
		}
	}
}

package layout

import "testing"

func TestLayout(t *testing.T) {
	l := New("/srv/example.com")

	tests := []struct {
		got  string
		want string
	}{
		{l.Bin(), "/srv/example.com/bin"},
		{l.App(), "/srv/example.com/app"},
		{l.Log(), "/srv/example.com/log"},
		{l.Conf(), "/srv/example.com/conf"},
		{l.Venv(), "/srv/example.com/venv"},
	}

	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}

	if len(l.All()) != 5 {
		t.Errorf("All() returned %d dirs, want 5", len(l.All()))
	}
}

package httpmetrics

import "testing"

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"", "/"},
		{"/", "/"},
		{"/auth/login", "/auth/login"},
		{"/goals", "/goals"},
		{"/goals/7A2E3B4F-1C2D-4D66-8B02-000000000001", "/goals/{id}"},
		{"/nutrition/not-a-uuid", "/nutrition/{id}"},
		{"/sessions/42/", "/sessions/{id}"},
		{"/me/dashboard", "/me/dashboard"},
	}

	for _, tt := range tests {
		if got := NormalizePath(tt.path); got != tt.want {
			t.Errorf("NormalizePath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

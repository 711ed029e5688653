package ws

import "testing"

func TestCanSend(t *testing.T) {
	cases := []struct {
		name          string
		authenticated string
		claimed       string
		want          bool
	}{
		{"matching identity", "u1", "u1", true},
		{"other user", "u1", "u2", false},
		{"empty claim", "u1", "", false},
		{"both empty", "", "", false},
	}
	for _, tc := range cases {
		if got := CanSend(tc.authenticated, tc.claimed); got != tc.want {
			t.Fatalf("%s: CanSend(%q, %q) = %v, want %v", tc.name, tc.authenticated, tc.claimed, got, tc.want)
		}
	}
}

func TestCanDeleteMatchesCanSend(t *testing.T) {
	if !CanDelete("u1", "u1") {
		t.Fatalf("owner must be allowed to delete")
	}
	if CanDelete("u1", "u2") {
		t.Fatalf("foreign identity must be rejected")
	}
}

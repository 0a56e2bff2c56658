package db

import "testing"

func TestBuildDSN(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{":memory:", ":memory:?_foreign_keys=1&_busy_timeout=5000&_txlock=immediate"},
		{"data/aimlib.db", "data/aimlib.db?_foreign_keys=1&_busy_timeout=5000&_txlock=immediate&_journal_mode=WAL"},
		{"data/aimlib.db?_busy_timeout=100", "data/aimlib.db?_busy_timeout=100&_foreign_keys=1&_txlock=immediate&_journal_mode=WAL"},
		{"file:x.db?mode=memory&cache=shared", "file:x.db?mode=memory&cache=shared&_foreign_keys=1&_busy_timeout=5000&_txlock=immediate"},
	}
	for _, tc := range cases {
		if got := buildDSN(tc.in); got != tc.want {
			t.Errorf("buildDSN(%q) = %q，期望 %q", tc.in, got, tc.want)
		}
	}
}

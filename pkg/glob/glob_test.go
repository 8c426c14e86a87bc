package glob

import (
	"strings"
	"testing"
	"time"
)

func TestMatchBasics(t *testing.T) {
	cases := []struct {
		pattern, path string
		want          bool
	}{
		{"*.go", "main.go", true},
		{"*.go", "pkg/main.go", false}, // '*' does not cross '/'
		{"**/*.go", "pkg/swarm/pool.go", true},
		{"src/?.go", "src/a.go", true},
		{"src/?.go", "src/ab.go", false},
		{"a/**/b", "a/b", false}, // both literal '/' around '**' must appear
		{"a/**/b", "a/x/y/b", true},
		{"literal.txt", "literal.txt", true},
		{"literal.txt", "other.txt", false},
		{"a\\b\\*.go", "a/b/c.go", true},
	}
	for _, c := range cases {
		if got := Match(c.pattern, c.path); got != c.want {
			t.Errorf("Match(%q, %q) = %v, want %v", c.pattern, c.path, got, c.want)
		}
	}
}

func TestMatchRunawayStarsTreatedLiteral(t *testing.T) {
	pattern := "a***b"
	if Match(pattern, "aXXXb") {
		t.Error("pattern with runaway stars should not glob-match")
	}
	if !Match(pattern, pattern) {
		t.Error("pattern with runaway stars should match itself literally")
	}
}

func TestMatchOverlongPatternTreatedLiteral(t *testing.T) {
	pattern := strings.Repeat("a", 501)
	if !Match(pattern, pattern) {
		t.Error("overlong pattern should match itself literally")
	}
	if Match(pattern, pattern+"a") {
		t.Error("overlong pattern should not glob-match a longer string")
	}
}

func TestMatchAny(t *testing.T) {
	patterns := []string{"*.md", "pkg/**/*.go"}
	if !MatchAny("pkg/swarm/pool.go", patterns) {
		t.Error("expected MatchAny to find pkg/**/*.go")
	}
	if MatchAny("pkg/swarm/pool.rs", patterns) {
		t.Error("expected MatchAny to reject non-matching path")
	}
}

func TestMatchTerminatesQuickly(t *testing.T) {
	// An adversarial-looking but valid pattern (single stars repeated, no
	// run of 3+) must still terminate fast: the DP table is linear, not
	// exponential backtracking.
	pattern := strings.Repeat("*a", 100)
	path := strings.Repeat("ba", 100) + "x"

	done := make(chan bool, 1)
	go func() { done <- Match(pattern, path) }()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Match did not terminate quickly on adversarial pattern")
	}
}

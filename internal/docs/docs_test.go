package docs

import (
	"strings"
	"testing"
)

func TestTopics(t *testing.T) {
	got := strings.Join(Topics(), ",")
	if got != "layouts,preferences,widgets" {
		t.Fatalf("unexpected topics %s", got)
	}
}

func TestGet(t *testing.T) {
	s, ok := Get(" Preferences ")
	if !ok || !strings.Contains(s, "${request.<param>[:encoding]}") {
		t.Fatalf("expected preferences topic, got %v", ok)
	}
	if _, ok := Get("../docs"); ok {
		t.Fatalf("expected unknown topic to be missing")
	}
}

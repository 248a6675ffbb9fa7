package category_test

import (
	"testing"

	"github.com/edgard/leadscout/internal/category"
	"github.com/edgard/leadscout/internal/config"
)

func TestDerive(t *testing.T) {
	t.Parallel()

	m := category.NewMap([]config.Source{
		{Name: "PageA", Token: "t1", Category: "beauty"},
		{Name: "PageB", Token: "t2"},
	}, "uncategorized")

	tests := []struct {
		source   string
		expected string
	}{
		{"PageA", "beauty"},
		{"PageB", "uncategorized"},
		{"never-configured", "uncategorized"},
	}

	for _, tt := range tests {
		if got := m.Derive(tt.source); got != tt.expected {
			t.Errorf("Derive(%q) = %q, want %q", tt.source, got, tt.expected)
		}
	}
}

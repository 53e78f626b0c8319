package header

import (
	"strings"
	"testing"
	"time"

	"github.com/embervale/forumfed/domain"
	"github.com/embervale/forumfed/util"
)

func TestGetHeaderStyle_ContainsIdentity(t *testing.T) {
	acc := &domain.Person{
		Username:  "testuser",
		CreatedAt: time.Date(2025, 12, 10, 0, 0, 0, 0, time.UTC),
	}
	width := 120

	result := GetHeaderStyle(acc, width)

	if !strings.Contains(result, "testuser") {
		t.Errorf("Header should contain username, got: %s", result)
	}

	if !strings.Contains(result, util.GetNameAndVersion()) {
		t.Errorf("Header should contain name and version, got: %s", result)
	}

	if !strings.Contains(result, "2025-12-10") {
		t.Errorf("Header should contain join date, got: %s", result)
	}
}

func TestGetHeaderStyle_WidthHandling(t *testing.T) {
	acc := &domain.Person{
		Username:  "testuser",
		CreatedAt: time.Date(2025, 12, 10, 0, 0, 0, 0, time.UTC),
	}

	widths := []int{80, 120, 150}
	for _, width := range widths {
		result := GetHeaderStyle(acc, width)

		if !strings.Contains(result, "testuser") {
			t.Errorf("Header with width %d should contain username", width)
		}
	}
}

func TestGetHeaderStyle_HasBackgroundStyling(t *testing.T) {
	acc := &domain.Person{
		Username:  "testuser",
		CreatedAt: time.Date(2025, 12, 10, 0, 0, 0, 0, time.UTC),
	}

	result := GetHeaderStyle(acc, 120)

	if !strings.Contains(result, "\033[") {
		t.Errorf("Header should have ANSI codes")
	}
}

package slug

import (
	"strings"
	"testing"
)

func TestSlug_Examples(t *testing.T) {
	cases := map[string]string{
		"My Page!! 2024":          "my-page-2024",
		"Hello World":             "hello-world",
		"  leading and trailing ": "leading-and-trailing",
		"Café Crème":              "cafe-creme",
		"a -- b__c":               "a-b-c",
		"Заметки о Go":            "заметки-о-go",
		"Q3/Q4 planning: draft":   "q3-q4-planning-draft",
		"already-slugged":         "already-slugged",
	}
	for in, want := range cases {
		if got := Slug(in); got != want {
			t.Errorf("Slug(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSlug_NeverEmpty(t *testing.T) {
	for _, in := range []string{"", "   ", "!!!", "---", "\t\n"} {
		if got := Slug(in); got != Placeholder {
			t.Errorf("Slug(%q) = %q, want %q", in, got, Placeholder)
		}
	}
}

func TestSlug_Idempotent(t *testing.T) {
	inputs := []string{
		"My Page!! 2024",
		"İstanbul notes",
		"Ünïcödé   ŧëxŧ",
		"x",
		"",
		"Meeting — 2024/01/05 (final)",
		"ǅemal",
	}
	for _, in := range inputs {
		once := Slug(in)
		twice := Slug(once)
		if once != twice {
			t.Errorf("Slug not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestSlug_NoPathCharacters(t *testing.T) {
	got := Slug(`a/b\c:d*e?f"g<h>i|j.k`)
	if strings.ContainsAny(got, `/\:*?"<>|. `) {
		t.Errorf("slug %q contains path-illegal characters", got)
	}
	if strings.Contains(got, "--") || strings.HasPrefix(got, "-") || strings.HasSuffix(got, "-") {
		t.Errorf("slug %q has stray separators", got)
	}
}

package testutil

import (
	"embed"
	"fmt"
	"strings"
	"testing"
)

//go:embed pages/*.html
var pages embed.FS

// Page returns a copy of a recorded portal or CAS page by file name.
func Page(name string) []byte {
	contents, err := pages.ReadFile("pages/" + name)
	if err != nil {
		panic(fmt.Sprintf("unknown page %s: %v", name, err))
	}
	return contents
}

// Patch returns a copy of a page with old replaced by new, old must occur in
// the page exactly once.
func Patch(t testing.TB, page []byte, old, new string) []byte {
	t.Helper()
	contents := string(page)
	if strings.Count(contents, old) != 1 {
		t.Fatalf("expected exactly one occurrence of %q in page", old)
	}
	return []byte(strings.Replace(contents, old, new, 1))
}

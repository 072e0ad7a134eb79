package pathutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeValidPaths(t *testing.T) {
	cases := map[string]string{
		"":                        "",
		"file.txt":                "file.txt",
		"docs/readme.md":          "docs/readme.md",
		"/docs/readme.md":         "docs/readme.md",
		"docs//readme.md":         "docs/readme.md",
		"docs/readme.md/":         "docs/readme.md",
		"./docs/./readme.md":      "docs/readme.md",
		`docs\readme.md`:          "docs/readme.md",
		"a/b/c/d/e.txt":           "a/b/c/d/e.txt",
		"file with spaces.txt":    "file with spaces.txt",
		"über/naïve.txt":          "über/naïve.txt",
		"///deeply///nested//":    "deeply/nested",
	}

	for input, want := range cases {
		got, err := Normalize(input)
		require.NoError(t, err, "input %q", input)
		assert.Equal(t, want, got, "input %q", input)
	}
}

func TestNormalizeRoundTrip(t *testing.T) {
	// Already-normalized paths must map to themselves.
	for _, p := range []string{"", "a.txt", "dir/sub/file.bin", "x/y"} {
		got, err := Normalize(p)
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}
}

func TestNormalizeRejectsTraversal(t *testing.T) {
	bad := []string{
		"..",
		"../etc/passwd",
		"docs/../../etc/passwd",
		"docs/..",
		"..\\windows\\system32",
		`..\..`,
		"a/../../b",
		"/../root",
	}

	for _, input := range bad {
		_, err := Normalize(input)
		assert.ErrorIs(t, err, ErrInvalidPath, "input %q", input)
	}
}

func TestNormalizeRejectsControlCharacters(t *testing.T) {
	bad := []string{
		"file\x00.txt",
		"dir/\x01name",
		"a\nb",
		"tab\tfile",
	}

	for _, input := range bad {
		_, err := Normalize(input)
		assert.ErrorIs(t, err, ErrInvalidPath, "input %q", input)
	}
}

func TestValidateFilename(t *testing.T) {
	assert.NoError(t, ValidateFilename("readme.md"))
	assert.NoError(t, ValidateFilename("no extension"))

	for _, bad := range []string{"", ".", "..", "a/b", `a\b`, "nul\x00"} {
		assert.ErrorIs(t, ValidateFilename(bad), ErrInvalidPath, "input %q", bad)
	}
}

func TestParentBaseJoin(t *testing.T) {
	assert.Equal(t, "", Parent("file.txt"))
	assert.Equal(t, "docs", Parent("docs/readme.md"))
	assert.Equal(t, "a/b", Parent("a/b/c"))

	assert.Equal(t, "file.txt", Base("file.txt"))
	assert.Equal(t, "readme.md", Base("docs/readme.md"))

	assert.Equal(t, "file.txt", Join("", "file.txt"))
	assert.Equal(t, "docs/file.txt", Join("docs", "file.txt"))
}

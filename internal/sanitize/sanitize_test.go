package sanitize_test

import (
	"strings"
	"testing"

	"feedsync/internal/sanitize"

	"github.com/stretchr/testify/require"
)

func TestClean(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"paragraph with entity", "<p>A &amp; B</p>", "A & B"},
		{"whitespace run", "x   y", "x y"},
		{"nested tags", "<div><b>bold</b> <i>italic</i></div>", "bold italic"},
		{"all entities", "&lt;&gt;&quot;&apos;&#39;", `<>"''`},
		{"nbsp", "a&nbsp;&nbsp;b", "a b"},
		{"newlines and tabs", "\n\tline one\n\n line two \t", "line one line two"},
		{"double escaped", "&amp;lt;tag&amp;gt;", "<tag>"},
		{"unknown entity kept", "&copy; 2024", "&copy; 2024"},
		{"empty", "", ""},
		{"only markup", "<br/><hr>", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, sanitize.Clean(tc.in))
		})
	}
}

func TestTruncate_Boundary(t *testing.T) {
	exact := strings.Repeat("a", 500)
	require.Equal(t, exact, sanitize.Truncate(exact, 500))

	over := strings.Repeat("a", 501)
	got := sanitize.Truncate(over, 500)
	require.Equal(t, strings.Repeat("a", 500)+sanitize.Ellipsis, got)
}

func TestTruncate_CountsRunes(t *testing.T) {
	s := strings.Repeat("日", 3)
	require.Equal(t, s, sanitize.Truncate(s, 3))
	require.Equal(t, "日日...", sanitize.Truncate(s, 2))
}

func TestCap(t *testing.T) {
	require.Equal(t, "abc", sanitize.Cap("abcdef", 3))
	require.Equal(t, "ab", sanitize.Cap("ab", 3))
	require.Equal(t, "éé", sanitize.Cap("ééé", 2))
}

package llmutils

import "testing"

func TestTruncate(t *testing.T) {
	if got := Truncate("hello", 10); got != "hello" {
		t.Errorf("short string changed: %q", got)
	}
	if got := Truncate("hello world", 5); got != "hello..." {
		t.Errorf("Truncate = %q", got)
	}
}

func TestStripThink(t *testing.T) {
	in := "<think>reasoning\nhere</think>answer"
	if got := StripThink(in); got != "answer" {
		t.Errorf("StripThink = %q", got)
	}
}

func TestIsMarkdown(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{"just plain text with some_underscores", false},
		{"here is **bold** text", true},
		{"run `go build` first", true},
		{"```go\nfunc main() {}\n```", true},
		{"# Heading\nbody", true},
		{"see [docs](https://example.com)", true},
		{"- one\n- two", true},
		{"1. first\n2. second", true},
		{"the price is 3.50 dollars", false},
	}
	for _, c := range cases {
		if got := IsMarkdown(c.text); got != c.want {
			t.Errorf("IsMarkdown(%q) = %v, want %v", c.text, got, c.want)
		}
	}
}

func TestFirstLine(t *testing.T) {
	if got := FirstLine("\n\n  hello  \nworld"); got != "hello" {
		t.Errorf("FirstLine = %q", got)
	}
	if got := FirstLine("  \n "); got != "" {
		t.Errorf("FirstLine of blank = %q", got)
	}
}

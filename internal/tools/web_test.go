package tools

import (
	"context"
	"strings"
	"testing"
)

func TestSearchToolRequiresQuery(t *testing.T) {
	tool := NewSearchTool("key", 3)

	out, err := tool.Execute(context.Background(), map[string]any{})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(out, "query is required") {
		t.Errorf("out = %q", out)
	}
}

func TestSearchToolRequiresKey(t *testing.T) {
	tool := NewSearchTool("", 3)

	out, err := tool.Execute(context.Background(), map[string]any{"query": "go"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(out, "not configured") {
		t.Errorf("out = %q", out)
	}
}

func TestFetchToolRejectsBadURLs(t *testing.T) {
	tool := NewFetchTool(1000)

	for _, bad := range []string{"", "ftp://x/y", "not a url", "file:///etc/passwd"} {
		out, err := tool.Execute(context.Background(), map[string]any{"url": bad})
		if err != nil {
			t.Fatalf("Execute(%q): %v", bad, err)
		}
		if !strings.Contains(out, "valid http(s) URL") {
			t.Errorf("Execute(%q) = %q", bad, out)
		}
	}
}

func TestWeatherCodeText(t *testing.T) {
	cases := map[int]string{
		0:  "clear sky",
		2:  "partly cloudy",
		61: "rain",
		95: "thunderstorm",
	}
	for code, want := range cases {
		if got := weatherCodeText(code); got != want {
			t.Errorf("weatherCodeText(%d) = %q, want %q", code, got, want)
		}
	}
}

func TestRegistryBuilder(t *testing.T) {
	reg := NewRegistryBuilder().
		WithTool(NewWeatherTool()).
		WithTool(NewFetchTool(0)).
		Build()

	list := reg.AllTools()
	if list.Len() != 2 {
		t.Fatalf("Len = %d, want 2", list.Len())
	}
	if list.Get("weather") == nil || list.Get("fetch_page") == nil {
		t.Error("tools missing from list")
	}
}

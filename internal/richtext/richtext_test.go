package richtext

import (
	"strings"
	"testing"
)

func TestRenderMarkdown(t *testing.T) {
	out := string(Render("## Title\n\nSome **bold** text.\n\n| a | b |\n|---|---|\n| 1 | 2 |", "markdown"))
	for _, want := range []string{`<h2 id="title">Title</h2>`, "<strong>bold</strong>", "<table>"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %s", want, out)
		}
	}
}

func TestRenderSanitizesHTML(t *testing.T) {
	out := string(Render(`<p onclick="x()">Hi<script>alert(1)</script></p><a href="https://example.com">l</a>`, "html"))
	if strings.Contains(out, "script") || strings.Contains(out, "onclick") {
		t.Fatalf("unsafe markup survived: %s", out)
	}
	if !strings.Contains(out, "nofollow") {
		t.Fatalf("links must be nofollow: %s", out)
	}
}

func TestRenderMarkdownStripsRawScript(t *testing.T) {
	out := string(Render("hello <script>alert(1)</script>", ""))
	if strings.Contains(out, "<script") {
		t.Fatalf("script survived: %s", out)
	}
}

func TestRenderEmpty(t *testing.T) {
	if Render("   ", "markdown") != "" {
		t.Fatalf("blank body must render nothing")
	}
}

func TestExcerpt(t *testing.T) {
	got := Excerpt("<h2>Title</h2><p>First   line</p><style>p{}</style><p>second</p>", 0)
	if got != "Title First line second" {
		t.Fatalf("unexpected excerpt %q", got)
	}
	short := Excerpt("<p>The quick brown fox jumps over the lazy dog</p>", 20)
	if !strings.HasSuffix(short, "…") || len([]rune(short)) > 21 {
		t.Fatalf("unexpected truncation %q", short)
	}
	if PlainText("**Bold** move", "markdown", 0) != "Bold move" {
		t.Fatalf("unexpected plain text %q", PlainText("**Bold** move", "markdown", 0))
	}
}

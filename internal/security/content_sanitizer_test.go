package security

import (
	"strings"
	"testing"
)

func TestSanitize_AllowsBasicFormatting(t *testing.T) {
	s := NewContentSanitizer()

	in := "<p>First post on <strong>ThreadSpace</strong> with <em>style</em></p>"
	out := s.Sanitize(in)

	if out != in {
		t.Errorf("許可タグはそのまま通過すべき: got %q, want %q", out, in)
	}
}

func TestSanitize_RemovesScriptTags(t *testing.T) {
	s := NewContentSanitizer()

	out := s.Sanitize(`<p>hello</p><script>alert("xss")</script>`)

	if strings.Contains(out, "<script>") || strings.Contains(out, "alert") {
		t.Errorf("scriptタグは除去されるべき: %q", out)
	}
	if !strings.Contains(out, "<p>hello</p>") {
		t.Errorf("許可タグは保持されるべき: %q", out)
	}
}

func TestSanitize_RemovesEventAttributes(t *testing.T) {
	s := NewContentSanitizer()

	out := s.Sanitize(`<p onclick="alert('xss')">text</p>`)

	if strings.Contains(out, "onclick") {
		t.Errorf("on*イベント属性は除去されるべき: %q", out)
	}
}

func TestSanitize_RemovesIframe(t *testing.T) {
	s := NewContentSanitizer()

	out := s.Sanitize(`<iframe src="https://evil.example.com"></iframe><p>body</p>`)

	if strings.Contains(out, "iframe") {
		t.Errorf("iframeタグは除去されるべき: %q", out)
	}
}

func TestSanitize_ImgHTTPSOnly(t *testing.T) {
	s := NewContentSanitizer()

	httpsOut := s.Sanitize(`<img src="https://example.com/a.png" alt="図">`)
	if !strings.Contains(httpsOut, "https://example.com/a.png") {
		t.Errorf("httpsのimg srcは許可されるべき: %q", httpsOut)
	}

	httpOut := s.Sanitize(`<img src="http://example.com/a.png">`)
	if strings.Contains(httpOut, "http://example.com/a.png") {
		t.Errorf("httpのimg srcは拒否されるべき: %q", httpOut)
	}

	jsOut := s.Sanitize(`<img src="javascript:alert(1)">`)
	if strings.Contains(jsOut, "javascript") {
		t.Errorf("javascriptスキームは拒否されるべき: %q", jsOut)
	}
}

func TestSanitize_LinksGetSafeAttributes(t *testing.T) {
	s := NewContentSanitizer()

	out := s.Sanitize(`<a href="https://example.com">link</a>`)

	if !strings.Contains(out, `target="_blank"`) {
		t.Errorf("aタグにtarget=_blankが付与されるべき: %q", out)
	}
	if !strings.Contains(out, "noopener") || !strings.Contains(out, "noreferrer") {
		t.Errorf("aタグにrel=noopener noreferrerが付与されるべき: %q", out)
	}
}

func TestSanitize_EmptyInput(t *testing.T) {
	s := NewContentSanitizer()

	if out := s.Sanitize(""); out != "" {
		t.Errorf("空入力には空出力を返すべき: %q", out)
	}
}

func TestSanitize_Idempotent(t *testing.T) {
	s := NewContentSanitizer()

	in := `<p>text <a href="https://example.com">link</a></p><script>x</script>`
	once := s.Sanitize(in)
	twice := s.Sanitize(once)

	if once != twice {
		t.Errorf("サニタイズは冪等であるべき: 1回目 %q, 2回目 %q", once, twice)
	}
}

func TestSanitize_PlainTextPassesThrough(t *testing.T) {
	s := NewContentSanitizer()

	in := "タグを含まないプレーンな本文"
	if out := s.Sanitize(in); out != in {
		t.Errorf("プレーンテキストはそのまま通過すべき: got %q", out)
	}
}

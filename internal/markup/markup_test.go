package markup

import (
	"strings"
	"testing"
)

func TestEscape(t *testing.T) {
	cases := map[string]string{
		"happy":                     "happy",
		"<script>alert(1)</script>": "&lt;script&gt;alert(1)&lt;/script&gt;",
		`a "b" & 'c'`:               "a &#34;b&#34; &amp; &#39;c&#39;",
		"":                          "",
	}
	for in, want := range cases {
		if got := Escape(in); got != want {
			t.Errorf("Escape(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestEscapeNeverLeavesTags(t *testing.T) {
	inputs := []string{"<img src=x onerror=alert(1)>", "</div><b>", "<<>>", "x<y>z"}
	for _, in := range inputs {
		out := Escape(in)
		if strings.ContainsAny(out, "<>") {
			t.Errorf("Escape(%q) = %q still contains angle brackets", in, out)
		}
	}
}

func TestAttrStripsControlChars(t *testing.T) {
	if got := Attr("cam\n\"1\""); got != "cam&#34;1&#34;" {
		t.Fatalf("Attr = %q", got)
	}
}

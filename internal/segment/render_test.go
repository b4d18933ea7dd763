package segment

import (
	"fmt"
	"strings"
	"testing"
)

type scriptedRenderer struct {
	failOn string
	panics bool
}

func (r scriptedRenderer) RenderMath(body string, displayMode bool) (string, error) {
	if r.panics && body == r.failOn {
		panic("renderer exploded")
	}
	if body == r.failOn {
		return "", fmt.Errorf("bad formula: %s", body)
	}
	return "<m>" + body + "</m>", nil
}

func TestPreview_RendersAllSegmentsInOrder(t *testing.T) {
	out := Preview("a $x$ b $y$ c", scriptedRenderer{})
	want := "a <m>x</m> b <m>y</m> c"
	if out != want {
		t.Errorf("preview = %q, want %q", out, want)
	}
}

func TestPreview_FailureIsLocalized(t *testing.T) {
	out := Preview("a $bad$ b $ok$ c", scriptedRenderer{failOn: "bad"})
	if !strings.Contains(out, `class="math-error"`) {
		t.Errorf("missing error marker in %q", out)
	}
	// The broken formula stays visible as its raw source.
	if !strings.Contains(out, "$bad$") {
		t.Errorf("raw source of failed segment missing in %q", out)
	}
	// Later segments still render.
	if !strings.Contains(out, "<m>ok</m>") {
		t.Errorf("later segment not rendered in %q", out)
	}
}

func TestPreview_PanicIsContained(t *testing.T) {
	out := Preview("$boom$ and $fine$", scriptedRenderer{failOn: "boom", panics: true})
	if !strings.Contains(out, `class="math-error"`) {
		t.Errorf("missing error marker in %q", out)
	}
	if !strings.Contains(out, "<m>fine</m>") {
		t.Errorf("later segment not rendered in %q", out)
	}
}

func TestPreview_EscapesText(t *testing.T) {
	out := Preview("<script> $x$", scriptedRenderer{})
	if strings.Contains(out, "<script>") {
		t.Errorf("text not escaped: %q", out)
	}
}

func TestSpanRenderer(t *testing.T) {
	r := SpanRenderer{}
	inline, err := r.RenderMath("x<y", false)
	if err != nil {
		t.Fatalf("inline: %v", err)
	}
	if !strings.Contains(inline, "math inline") || !strings.Contains(inline, "x&lt;y") {
		t.Errorf("inline = %q", inline)
	}
	display, err := r.RenderMath("z", true)
	if err != nil {
		t.Fatalf("display: %v", err)
	}
	if !strings.Contains(display, "math display") {
		t.Errorf("display = %q", display)
	}
	if _, err := r.RenderMath("   ", false); err == nil {
		t.Error("empty formula should fail")
	}
}

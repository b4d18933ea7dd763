package segment

import (
	"fmt"
	"html"
	"strings"
)

// Renderer turns the body of a math segment into preview markup.
// Implementations may be backed by a client-side typesetter contract or
// a server-side renderer; Preview only relies on the error contract.
type Renderer interface {
	RenderMath(body string, displayMode bool) (string, error)
}

// SpanRenderer is the built-in renderer: it emits the math body inside
// a span/div carrying the delimiter class, leaving actual typesetting
// to the client. It rejects empty formulas.
type SpanRenderer struct{}

// RenderMath implements Renderer.
func (SpanRenderer) RenderMath(body string, displayMode bool) (string, error) {
	if strings.TrimSpace(body) == "" {
		return "", fmt.Errorf("empty formula")
	}
	escaped := html.EscapeString(body)
	if displayMode {
		return `<div class="math display">` + escaped + `</div>`, nil
	}
	return `<span class="math inline">` + escaped + `</span>`, nil
}

// Preview renders src as inline preview markup: text escaped verbatim,
// each math segment rendered independently through r. A failing segment
// is replaced with a visible error marker; the remaining segments are
// unaffected and the output keeps source order.
func Preview(src string, r Renderer) string {
	var b strings.Builder
	for _, seg := range Split(src) {
		if seg.Kind == KindText {
			b.WriteString(html.EscapeString(seg.Raw))
			continue
		}
		b.WriteString(renderOne(seg, r))
	}
	return b.String()
}

// renderOne renders a single math segment, containing both errors and
// panics so one bad formula cannot blank the whole preview.
func renderOne(seg Segment, r Renderer) (out string) {
	defer func() {
		if p := recover(); p != nil {
			out = errorMarker(seg, fmt.Sprintf("render panic: %v", p))
		}
	}()
	rendered, err := r.RenderMath(seg.Body(), seg.DisplayMode)
	if err != nil {
		return errorMarker(seg, err.Error())
	}
	return rendered
}

func errorMarker(seg Segment, reason string) string {
	return `<span class="math-error" title="` + html.EscapeString(reason) + `">` +
		html.EscapeString(seg.Raw) + `</span>`
}

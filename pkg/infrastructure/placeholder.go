package infrastructure

import (
	"bytes"
	"fmt"
	"strings"
)

const placeholderWrap = 88

// PlaceholderPDF builds a one-page A4 PDF showing a title and a notice. It is
// shown in the preview pane when rendering fails, so it never depends on
// anything outside this function.
func PlaceholderPDF(title, message string) []byte {
	lines := []string{title, ""}
	for _, para := range strings.Split(message, "\n") {
		lines = append(lines, wrapText(para, placeholderWrap)...)
	}

	var content bytes.Buffer
	content.WriteString("BT\n/F1 16 Tf\n20 TL\n56 780 Td\n")
	for i, l := range lines {
		if i == 1 {
			content.WriteString("/F1 11 Tf\n15 TL\n")
		}
		fmt.Fprintf(&content, "(%s) Tj T*\n", escapePDFString(l))
	}
	content.WriteString("ET\n")

	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 595 842] /Resources << /Font << /F1 4 0 R >> >> /Contents 5 0 R >>",
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%sendstream", content.Len(), content.String()),
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func escapePDFString(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`, "\r", "", "\t", " ")
	var b strings.Builder
	for _, c := range r.Replace(s) {
		// Helvetica in the standard encoding has no glyphs past Latin-1.
		if c > 0xff {
			b.WriteByte('?')
			continue
		}
		b.WriteByte(byte(c))
	}
	return b.String()
}

func wrapText(s string, width int) []string {
	words := strings.Fields(s)
	if len(words) == 0 {
		return []string{""}
	}
	var lines []string
	cur := words[0]
	for _, w := range words[1:] {
		if len(cur)+1+len(w) > width {
			lines = append(lines, cur)
			cur = w
			continue
		}
		cur += " " + w
	}
	return append(lines, cur)
}

package infrastructure

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlaceholderPDF_Offsets(t *testing.T) {
	pdf := PlaceholderPDF("Preview unavailable", "Render error: exit status 1 (see logs)\nCheck that RenderCV is installed.")

	require.True(t, bytes.HasPrefix(pdf, []byte("%PDF-1.4")))
	require.True(t, bytes.HasSuffix(pdf, []byte("%%EOF\n")))

	m := regexp.MustCompile(`startxref\n(\d+)\n`).FindSubmatch(pdf)
	require.NotNil(t, m)
	xref, err := strconv.Atoi(string(m[1]))
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(pdf[xref:], []byte("xref\n")))

	entries := regexp.MustCompile(`(\d{10}) 00000 n `).FindAllSubmatch(pdf, -1)
	require.Len(t, entries, 5)
	for i, e := range entries {
		off, err := strconv.Atoi(string(e[1]))
		require.NoError(t, err)
		want := fmt.Sprintf("%d 0 obj", i+1)
		assert.True(t, bytes.HasPrefix(pdf[off:], []byte(want)), "object %d not at offset %d", i+1, off)
	}

	assert.Contains(t, string(pdf), `exit status 1 \(see logs\)`)
}

func TestPlaceholderPDF_StreamLength(t *testing.T) {
	pdf := string(PlaceholderPDF("t", strings.Repeat("word ", 100)))
	m := regexp.MustCompile(`/Length (\d+) >>\nstream\n`).FindStringSubmatchIndex(pdf)
	require.NotNil(t, m)
	n, err := strconv.Atoi(pdf[m[2]:m[3]])
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(pdf[m[1]+n:], "endstream"))
}

func TestWrapText(t *testing.T) {
	assert.Equal(t, []string{""}, wrapText("   ", 10))
	assert.Equal(t, []string{"aaa bbb", "ccc"}, wrapText("aaa bbb ccc", 7))
	assert.Equal(t, []string{"averyveryverylongword"}, wrapText("averyveryverylongword", 5))
}

package chunker

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var paragraphBreak = regexp.MustCompile(`\n[ \t\r]*\n`)

// Split breaks text into ordered chunks of at most size bytes.
//
// Paragraphs accumulate until the next one would overflow, then the buffer is
// emitted and the next buffer starts with the last overlap words of the
// previous one. A buffer that is still too large is cut at the last sentence
// end past half the size, or hard-cut at size on a rune boundary.
//
// The same input always yields the same output.
func Split(text string, size, overlap int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}

	var (
		out []string
		buf string
	)
	emit := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}

	for _, para := range paragraphBreak.Split(text, -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		if buf != "" && len(buf)+2+len(para) > size {
			emit(buf)
			buf = join(overlapTail(buf, overlap, size/2), para, "\n\n")
		} else {
			buf = join(buf, para, "\n\n")
		}

		for len(buf) > size {
			cut := splitPoint(buf, size)
			head := buf[:cut]
			rest := strings.TrimSpace(buf[cut:])
			emit(head)
			if rest == "" {
				buf = ""
				break
			}
			// The seed must stay shorter than half the emitted head so the
			// buffer shrinks on every pass.
			buf = join(overlapTail(head, overlap, min(size/2, cut/2-1)), rest, " ")
		}
	}
	emit(buf)

	return out
}

// splitPoint returns the byte offset to cut an oversized buffer at.
func splitPoint(buf string, size int) int {
	for i := size - 1; i > size/2; i-- {
		if buf[i] == '.' && isSpace(buf[i+1]) {
			return i + 1
		}
	}

	cut := size
	for cut > 0 && !utf8.RuneStart(buf[cut]) {
		cut--
	}
	if cut == 0 {
		cut = size
		for cut < len(buf) && !utf8.RuneStart(buf[cut]) {
			cut++
		}
	}
	return cut
}

// overlapTail returns up to n trailing words of s, no longer than maxBytes.
func overlapTail(s string, n, maxBytes int) string {
	if n <= 0 || maxBytes <= 0 {
		return ""
	}
	words := strings.Fields(s)
	start := len(words)
	total := 0
	for start > 0 && len(words)-start < n {
		w := words[start-1]
		next := total + len(w)
		if total > 0 {
			next++
		}
		if next > maxBytes {
			break
		}
		total = next
		start--
	}
	return strings.Join(words[start:], " ")
}

func join(a, b, sep string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + sep + b
	}
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\n' || b == '\t' || b == '\r'
}

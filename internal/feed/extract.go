package feed

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// extractTable returns the JSON object assigned right after marker.
//
// HTML bodies are narrowed to the <script> carrying the marker first; when
// no script does, the whole body is scanned.
func extractTable(body []byte, marker string) ([]byte, error) {
	src := body
	if script, ok := scriptWithMarker(body, marker); ok {
		src = script
	}

	i := bytes.Index(src, []byte(marker))
	if i < 0 {
		return nil, parseErr("marker "+strings.TrimSpace(marker)+" not found", nil)
	}
	rest := src[i+len(marker):]

	start := bytes.IndexByte(rest, '{')
	if start < 0 || len(bytes.TrimSpace(rest[:start])) != 0 {
		return nil, parseErr("no object after marker", nil)
	}
	end, ok := matchBrace(rest[start:])
	if !ok {
		return nil, parseErr("unbalanced object after marker", nil)
	}
	return rest[start : start+end+1], nil
}

func scriptWithMarker(body []byte, marker string) ([]byte, bool) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, false
	}
	var found string
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if txt := s.Text(); strings.Contains(txt, marker) {
			found = txt
			return false
		}
		return true
	})
	if found == "" {
		return nil, false
	}
	return []byte(found), true
}

// matchBrace returns the index of the brace closing the one at s[0].
// Braces inside JSON string literals are ignored.
func matchBrace(s []byte) (int, bool) {
	depth := 0
	inStr, esc := false, false
	for i, c := range s {
		if inStr {
			switch {
			case esc:
				esc = false
			case c == '\\':
				esc = true
			case c == '"':
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

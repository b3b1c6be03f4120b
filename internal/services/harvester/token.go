package harvester

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const accessTokenMarker = `"accessToken"`

// ExtractAccessToken scrapes a bearer token out of the platform's home page
// HTML. The token lives inside a JSON blob embedded in a script tag, so this
// is a deliberate line-level heuristic: find the first line mentioning the
// accessToken key, split the remainder on quotes, and take the value segment.
// Any malformed shape yields ("", false) rather than an error; the page
// layout changes often enough that failing closed is the only safe behavior.
func ExtractAccessToken(html string) (string, bool) {
	for _, line := range strings.Split(html, "\n") {
		if !strings.Contains(line, accessTokenMarker) {
			continue
		}

		idx := strings.Index(line, accessTokenMarker+`:"`)
		if idx < 0 {
			// First marker line is malformed (e.g. "accessToken":null)
			return "", false
		}

		parts := strings.Split(line[idx:], `"`)
		if len(parts) <= 3 || parts[3] == "" {
			return "", false
		}
		return parts[3], true
	}

	return "", false
}

// HasActiveSession reports whether the page looks like an authenticated
// session: any script body mentioning the accessToken key. Cheaper signal
// than a full extraction, used by the login-presence probe alongside it.
func HasActiveSession(html string) bool {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return false
	}

	found := false
	doc.Find("script").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if strings.Contains(sel.Text(), accessTokenMarker) {
			found = true
			return false
		}
		return true
	})

	return found
}

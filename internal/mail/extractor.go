// Package mail locates the verification message inside the throwaway
// inbox and pulls the confirmation link out of its body.
package mail

import (
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// urlPattern matches scheme-qualified http(s) URLs. Bare domains without a
// scheme are deliberately not matched; following them would be guesswork.
var urlPattern = regexp.MustCompile(`https?://[^\s<>"']+`)

// verificationMarkers are the path or host substrings that identify a
// confirmation link among everything else a mail body carries.
var verificationMarkers = []string{"verify", "verification", "confirm"}

// ExtractVerificationLink scans body text for the first scheme-qualified URL
// whose host or path carries a verification marker. The second return is
// false when no such URL exists; unrelated links never win by default.
func ExtractVerificationLink(body string) (string, bool) {
	for _, raw := range urlPattern.FindAllString(body, -1) {
		candidate := trimTrailingPunct(raw)
		u, err := url.Parse(candidate)
		if err != nil {
			continue
		}
		if hasVerificationMarker(u) {
			return candidate, true
		}
	}
	return "", false
}

func hasVerificationMarker(u *url.URL) bool {
	host := strings.ToLower(u.Host)
	path := strings.ToLower(u.Path)
	for _, marker := range verificationMarkers {
		if strings.Contains(host, marker) || strings.Contains(path, marker) {
			return true
		}
	}
	return false
}

// trimTrailingPunct drops punctuation that mail clients glue onto the end of
// a URL when it sits at a sentence boundary.
func trimTrailingPunct(s string) string {
	return strings.TrimRight(s, ".,;:!?)]}>'\"")
}

// FlattenHTML renders an HTML fragment down to plain text with anchor hrefs
// inlined, so links buried in markup stay visible to the extractor. Invalid
// markup degrades gracefully; the tokenizer consumes what it can.
func FlattenHTML(src string) string {
	var sb strings.Builder
	tk := html.NewTokenizer(strings.NewReader(src))
	for {
		switch tk.Next() {
		case html.ErrorToken:
			return sb.String()
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := tk.Token()
			if tok.Data != "a" {
				continue
			}
			for _, attr := range tok.Attr {
				if attr.Key == "href" {
					sb.WriteString(" ")
					sb.WriteString(attr.Val)
					sb.WriteString(" ")
				}
			}
		case html.TextToken:
			sb.WriteString(string(tk.Text()))
			sb.WriteString(" ")
		}
	}
}

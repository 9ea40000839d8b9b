// Package replyquote encodes and decodes the inline "replying to"
// quotation carried in a message body. The persistence schema has no
// parent-message column, so the quotation lives in the text itself.
package replyquote

import "regexp"

// previewLimit is the number of characters of the quoted message kept
// before the ellipsis.
const previewLimit = 47

var replyPattern = regexp.MustCompile(`(?s)^\[Replying to: "(.*?)"\] (.*)$`)

// Encode prefixes body with a quotation of the message being replied to.
// Quotes longer than the preview limit are truncated with a trailing
// ellipsis. The convention is lossy and unescaped: a quoted message
// containing the literal sequence `"] ` can corrupt a later decode.
func Encode(quoted, body string) string {
	preview := quoted
	if runes := []rune(quoted); len(runes) > previewLimit {
		preview = string(runes[:previewLimit]) + "..."
	}
	return `[Replying to: "` + preview + `"] ` + body
}

// Decode splits a stored body into its quoted preview and the actual
// message text. Decoding is total: any input yields some result, and a
// body without the quotation prefix comes back unchanged with ok=false.
// A body that merely resembles the prefix decodes as a false positive;
// there is nothing in the encoding that could distinguish it.
func Decode(body string) (preview, actual string, ok bool) {
	match := replyPattern.FindStringSubmatch(body)
	if match == nil {
		return "", body, false
	}
	return match[1], match[2], true
}

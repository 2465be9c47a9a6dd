package blog

import (
	"strings"

	"golang.org/x/net/html"
)

// WordCount strips markup from an HTML fragment and counts whitespace
// separated words. Adjacent text nodes are joined without a separator, so
// "<b>go</b>lang" counts as one word.
func WordCount(content string) int {
	var text strings.Builder

	tokenizer := html.NewTokenizer(strings.NewReader(content))
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return len(strings.Fields(text.String()))
		case html.TextToken:
			text.Write(tokenizer.Text())
		}
	}
}

// Package templates holds the templ components of the public blog and the
// admin console. Run `templ generate` after editing a .templ file.
package templates

import (
	"encoding/json"
	"net/url"

	"github.com/a-h/templ"
)

//go:generate templ generate

// jsonLD writes a pre-encoded JSON-LD block as a structured data script.
func jsonLD(block string) templ.Component {
	return templ.JSONScript("", json.RawMessage(block)).WithType("application/ld+json")
}

func categoryPath(name string) string {
	return "/category/" + url.PathEscape(name)
}

func postPath(slug string) string {
	return "/posts/" + url.PathEscape(slug)
}

func searchPath(query string) string {
	return "/search?q=" + url.QueryEscape(query)
}

func editPath(id string) string {
	return "/admin?edit=" + url.QueryEscape(id)
}

// productName falls back to the post title for products without a name.
func productName(post PostView) string {
	if post.ProductName != "" {
		return post.ProductName
	}
	return post.Title
}

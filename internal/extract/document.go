package extract

import (
	"fmt"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// Document is a parsed HTML tree queried with XPath.
type Document struct {
	root *html.Node
}

// Parse builds a Document from markup. The HTML5 parser never rejects input,
// so an error here means the reader itself failed.
func Parse(markup string) (*Document, error) {
	root, err := htmlquery.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return &Document{root: root}, nil
}

// Root returns the document node.
func (d *Document) Root() *html.Node {
	return d.root
}

// Find returns the first node matching path, or nil.
func (d *Document) Find(path string) (*html.Node, error) {
	return FindWithin(d.root, path)
}

// FindAll returns every node matching path in document order.
func (d *Document) FindAll(path string) ([]*html.Node, error) {
	return FindAllWithin(d.root, path)
}

// FindWithin evaluates path with n as the context node.
func FindWithin(n *html.Node, path string) (*html.Node, error) {
	node, err := htmlquery.Query(n, path)
	if err != nil {
		return nil, fmt.Errorf("xpath %q: %w", path, err)
	}
	return node, nil
}

// FindAllWithin evaluates path with n as the context node.
func FindAllWithin(n *html.Node, path string) ([]*html.Node, error) {
	nodes, err := htmlquery.QueryAll(n, path)
	if err != nil {
		return nil, fmt.Errorf("xpath %q: %w", path, err)
	}
	return nodes, nil
}

// Remove detaches n from its parent. Removing a detached node is a no-op.
func Remove(n *html.Node) {
	if n == nil || n.Parent == nil {
		return
	}
	n.Parent.RemoveChild(n)
}

// Text returns the concatenated text content of n and its descendants.
func Text(n *html.Node) string {
	if n == nil {
		return ""
	}
	return htmlquery.InnerText(n)
}

// Attr returns the named attribute of n, or "".
func Attr(n *html.Node, name string) string {
	if n == nil {
		return ""
	}
	return htmlquery.SelectAttr(n, name)
}

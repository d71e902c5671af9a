package catalogue

import (
	"context"
	"strings"
)

const (
	categorySlugSeparator     = "/"
	categoryFullNameSeparator = " > "
)

// AncestorsAndSelf returns the ancestors of c followed by c.
func AncestorsAndSelf(ctx context.Context, tree CategoryTree, c *Category) ([]*Category, error) {
	ancestors, err := tree.Ancestors(ctx, c)
	if err != nil {
		return nil, err
	}
	return append(ancestors, c), nil
}

// DescendantsAndSelf returns the descendants of c followed by c.
func DescendantsAndSelf(ctx context.Context, tree CategoryTree, c *Category) ([]*Category, error) {
	descendants, err := tree.Descendants(ctx, c)
	if err != nil {
		return nil, err
	}
	return append(descendants, c), nil
}

// FullName joins the names of the category and its ancestors,
// e.g. "Books > Non-fiction > Essential programming".
func FullName(ctx context.Context, tree CategoryTree, c *Category) (string, error) {
	chain, err := AncestorsAndSelf(ctx, tree, c)
	if err != nil {
		return "", err
	}
	names := make([]string, 0, len(chain))
	for _, node := range chain {
		names = append(names, node.Name)
	}
	return strings.Join(names, categoryFullNameSeparator), nil
}

// FullSlug joins the slugs of the category and its ancestors,
// e.g. "books/non-fiction/essential-programming".
func FullSlug(ctx context.Context, tree CategoryTree, c *Category) (string, error) {
	chain, err := AncestorsAndSelf(ctx, tree, c)
	if err != nil {
		return "", err
	}
	slugs := make([]string, 0, len(chain))
	for _, node := range chain {
		slugs = append(slugs, node.Slug)
	}
	return strings.Join(slugs, categorySlugSeparator), nil
}

// HasChildren reports whether the category has child nodes.
func (c Category) HasChildren() bool { return c.NumChild > 0 }

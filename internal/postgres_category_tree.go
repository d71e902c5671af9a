package internal

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/lychee-technology/catalogue"
)

func categoryColumns(alias string) string {
	p := ""
	if alias != "" {
		p = alias + "."
	}
	return fmt.Sprintf("%[1]sid, %[1]spath, %[1]sdepth, %[1]snumchild, %[1]sname, %[1]sdescription, %[1]sslug, %[1]simage, %[1]screated_at, %[1]supdated_at", p)
}

func scanCategory(row pgx.Row) (*catalogue.Category, error) {
	var c catalogue.Category
	err := row.Scan(&c.ID, &c.Path, &c.Depth, &c.NumChild, &c.Name, &c.Description, &c.Slug, &c.Image,
		&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *PostgresCatalogueStore) queryCategories(ctx context.Context, query string, args ...any) ([]*catalogue.Category, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()
	out := make([]*catalogue.Category, 0)
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresCatalogueStore) GetCategory(ctx context.Context, id int64) (*catalogue.Category, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, categoryColumns(""), s.table(s.tables.Categories))
	c, err := scanCategory(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFoundOr(err, categoryNotFound(id))
	}
	return c, nil
}

// Ancestors returns the ancestors of c, root first.
func (s *PostgresCatalogueStore) Ancestors(ctx context.Context, c *catalogue.Category) ([]*catalogue.Category, error) {
	paths := ancestorPaths(c.Path)
	if len(paths) == 0 {
		return []*catalogue.Category{}, nil
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE path = ANY($1) ORDER BY path`,
		categoryColumns(""), s.table(s.tables.Categories))
	out, err := s.queryCategories(ctx, query, paths)
	if err != nil {
		return nil, err
	}
	if len(out) != len(paths) {
		return nil, fmt.Errorf("category tree is missing ancestors of %s", c.Path)
	}
	return out, nil
}

func (s *PostgresCatalogueStore) Children(ctx context.Context, c *catalogue.Category) ([]*catalogue.Category, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE path LIKE $1 AND depth = $2 ORDER BY path`,
		categoryColumns(""), s.table(s.tables.Categories))
	return s.queryCategories(ctx, query, likePrefix(c.Path), pathDepth(c.Path)+1)
}

func (s *PostgresCatalogueStore) Descendants(ctx context.Context, c *catalogue.Category) ([]*catalogue.Category, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE path LIKE $1 AND depth > $2 ORDER BY path`,
		categoryColumns(""), s.table(s.tables.Categories))
	return s.queryCategories(ctx, query, likePrefix(c.Path), pathDepth(c.Path))
}

// Siblings returns the nodes sharing c's parent, c included.
func (s *PostgresCatalogueStore) Siblings(ctx context.Context, c *catalogue.Category) ([]*catalogue.Category, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE path LIKE $1 AND depth = $2 ORDER BY path`,
		categoryColumns(""), s.table(s.tables.Categories))
	return s.queryCategories(ctx, query, likePrefix(parentPath(c.Path)), pathDepth(c.Path))
}

// nextChildPath returns the path following last under prefix. last is empty
// when prefix has no children yet.
func nextChildPath(prefix, last string) (string, error) {
	n := 0
	if last != "" {
		step := last[len(last)-categoryStepLen:]
		parsed, err := strconv.ParseInt(step, len(categoryAlphabet), 64)
		if err != nil {
			return "", fmt.Errorf("invalid category path %s: %w", last, err)
		}
		n = int(parsed)
	}
	step, err := encodePathStep(n + 1)
	if err != nil {
		return "", err
	}
	return prefix + step, nil
}

// AddCategory appends a node under parent, or a new root when parent is nil.
// The parent row is locked while the path is allocated.
func (s *PostgresCatalogueStore) AddCategory(ctx context.Context, parent *catalogue.Category, category *catalogue.Category) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // no-op if committed

	table := s.table(s.tables.Categories)
	prefix := ""
	if parent != nil {
		lock := fmt.Sprintf(`SELECT path FROM %s WHERE id = $1 FOR UPDATE`, table)
		if err := tx.QueryRow(ctx, lock, parent.ID).Scan(&prefix); err != nil {
			return notFoundOr(err, categoryNotFound(parent.ID))
		}
	}

	var last string
	lastQuery := fmt.Sprintf(`SELECT COALESCE(MAX(path), '') FROM %s WHERE path LIKE $1 AND depth = $2`, table)
	if err := tx.QueryRow(ctx, lastQuery, likePrefix(prefix), pathDepth(prefix)+1).Scan(&last); err != nil {
		return fmt.Errorf("find last child of %q: %w", prefix, err)
	}
	path, err := nextChildPath(prefix, last)
	if err != nil {
		return err
	}

	now := s.now()
	insert := fmt.Sprintf(`INSERT INTO %s (path, depth, numchild, name, description, slug, image, created_at, updated_at)
		VALUES ($1, $2, 0, $3, $4, $5, $6, $7, $8) RETURNING id`, table)
	if err := tx.QueryRow(ctx, insert, path, pathDepth(path), category.Name, category.Description,
		category.Slug, category.Image, now, now).Scan(&category.ID); err != nil {
		return constraintError(err, catalogue.ErrCodeConstraintFailed, fmt.Sprintf("category path %s already exists", path))
	}
	if parent != nil {
		bump := fmt.Sprintf(`UPDATE %s SET numchild = numchild + 1, updated_at = $1 WHERE id = $2`, table)
		if _, err := tx.Exec(ctx, bump, now, parent.ID); err != nil {
			return fmt.Errorf("update parent category %d: %w", parent.ID, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	category.Path = path
	category.Depth = pathDepth(path)
	category.NumChild = 0
	category.CreatedAt = now
	category.UpdatedAt = now
	return nil
}

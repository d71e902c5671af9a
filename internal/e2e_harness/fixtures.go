package e2e_harness

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/lychee-technology/catalogue"
	"github.com/lychee-technology/catalogue/factory"
)

// Seed is the catalogue created by SeedCatalogue.
type Seed struct {
	Books    *catalogue.ProductType
	Language *catalogue.AttributeOptionGroup
	Options  map[string]*catalogue.AttributeOption
	Dune     *catalogue.Product

	LanguageAttr *catalogue.ProductAttribute
	Translations *catalogue.ProductAttribute
	Pages        *catalogue.ProductAttribute
	Published    *catalogue.ProductAttribute
	Cover        *catalogue.ProductAttribute
	Related      *catalogue.ProductAttribute
}

// SeedCatalogue creates a Books product type with one attribute per common
// type, a Language option group and a single product.
func SeedCatalogue(ctx context.Context, c *factory.Catalogue) (*Seed, error) {
	s := &Seed{Options: make(map[string]*catalogue.AttributeOption)}

	group, err := c.Options.CreateGroup(ctx, "Language")
	if err != nil {
		return nil, fmt.Errorf("create option group: %w", err)
	}
	s.Language = group
	for _, text := range []string{"English", "French", "German"} {
		opt, err := c.Options.AddOption(ctx, group.ID, text)
		if err != nil {
			return nil, fmt.Errorf("add option %s: %w", text, err)
		}
		s.Options[text] = opt
	}

	s.Books = &catalogue.ProductType{Name: "Books", Slug: "books", RequiresShipping: true, TrackStock: true}
	if err := c.Products.CreateProductType(ctx, s.Books); err != nil {
		return nil, fmt.Errorf("create product type: %w", err)
	}

	define := func(name, code string, t catalogue.AttributeType, groupID *int64) (*catalogue.ProductAttribute, error) {
		attr, err := c.Manager.DefineAttribute(ctx, &catalogue.ProductAttribute{
			ProductTypeID: &s.Books.ID, Name: name, Code: code, Type: t, OptionGroupID: groupID,
		})
		if err != nil {
			return nil, fmt.Errorf("define %s: %w", code, err)
		}
		return attr, nil
	}
	steps := []struct {
		dst   **catalogue.ProductAttribute
		name  string
		code  string
		t     catalogue.AttributeType
		group *int64
	}{
		{&s.LanguageAttr, "Language", "language", catalogue.AttributeTypeOption, &group.ID},
		{&s.Translations, "Translations", "translations", catalogue.AttributeTypeMultiOption, &group.ID},
		{&s.Pages, "Number of pages", "number_of_pages", catalogue.AttributeTypeInteger, nil},
		{&s.Published, "Published", "published", catalogue.AttributeTypeDate, nil},
		{&s.Cover, "Cover", "cover", catalogue.AttributeTypeImage, nil},
		{&s.Related, "Related", "related", catalogue.AttributeTypeEntity, nil},
	}
	for _, step := range steps {
		attr, err := define(step.name, step.code, step.t, step.group)
		if err != nil {
			return nil, err
		}
		*step.dst = attr
	}

	s.Dune = &catalogue.Product{Name: "Dune", UPC: "9780441013593", ProductTypeID: s.Books.ID}
	if err := c.Products.CreateProduct(ctx, s.Dune); err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	return s, nil
}

// CountRows counts the rows of table matching where.
func CountRows(ctx context.Context, db *sql.DB, table, where string, args ...any) (int, error) {
	query := "SELECT count(*) FROM " + table
	if where != "" {
		query += " WHERE " + where
	}
	var n int
	if err := db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

// ObjectExists reports whether key is present in the configured bucket.
func ObjectExists(ctx context.Context, cfg catalogue.StorageConfig, key string) (bool, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
		config.WithBaseEndpoint(cfg.Endpoint),
	)
	if err != nil {
		return false, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})

	_, err = client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(cfg.Bucket), Key: aws.String(key)})
	if err == nil {
		return true, nil
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && (apiErr.ErrorCode() == "NotFound" || apiErr.ErrorCode() == "NoSuchKey") {
		return false, nil
	}
	return false, fmt.Errorf("head object: %w", err)
}

package internal

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lychee-technology/catalogue"
)

type valueKey struct {
	attributeID int64
	productID   int64
}

// MemoryStore keeps the whole catalogue in process memory. It implements
// every relational store interface and serializes value transactions with
// a single mutex. Intended for tests and local tooling.
type MemoryStore struct {
	mu     sync.Mutex
	nextID int64
	now    func() time.Time

	groups            map[int64]*catalogue.AttributeOptionGroup
	options           map[int64]*catalogue.AttributeOption
	attributes        map[int64]*catalogue.ProductAttribute
	productTypes      map[int64]*catalogue.ProductType
	products          map[int64]*catalogue.Product
	categories        map[int64]*catalogue.Category
	categoryPaths     map[string]int64
	productCategories map[int64][]int64
	values            map[valueKey]*catalogue.ProductAttributeValue
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:               time.Now,
		groups:            make(map[int64]*catalogue.AttributeOptionGroup),
		options:           make(map[int64]*catalogue.AttributeOption),
		attributes:        make(map[int64]*catalogue.ProductAttribute),
		productTypes:      make(map[int64]*catalogue.ProductType),
		products:          make(map[int64]*catalogue.Product),
		categories:        make(map[int64]*catalogue.Category),
		categoryPaths:     make(map[string]int64),
		productCategories: make(map[int64][]int64),
		values:            make(map[valueKey]*catalogue.ProductAttributeValue),
	}
}

// Stores returns the store wired into every relational slot.
func (s *MemoryStore) Stores() Stores {
	return Stores{Attributes: s, Options: s, Values: s, Products: s}
}

func (s *MemoryStore) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *MemoryStore) stamp(a *catalogue.Auditable, created bool) {
	now := s.now().UTC()
	if created {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
}

// RegisterEntities installs loaders for products, product types and
// categories held by this store.
func (s *MemoryStore) RegisterEntities(registry *EntityRegistry) error {
	return registerEntities(registry, s)
}

// ---- values ----

// WithinTx holds the store lock for the duration of fn and restores the
// value table when fn fails. fn must not call other MemoryStore methods.
func (s *MemoryStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx catalogue.ValueTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := make(map[valueKey]*catalogue.ProductAttributeValue, len(s.values))
	for k, v := range s.values {
		snapshot[k] = v
	}
	nextID := s.nextID

	if err := fn(ctx, &memoryTx{store: s}); err != nil {
		s.values = snapshot
		s.nextID = nextID
		return err
	}
	return nil
}

func (s *MemoryStore) ListProductValues(ctx context.Context, productID int64) ([]*catalogue.ProductAttributeValue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*catalogue.ProductAttributeValue, 0)
	for key, v := range s.values {
		if key.productID != productID {
			continue
		}
		record := cloneRecord(v)
		record.Value = s.refreshOptionsLocked(record.Value)
		if attr, ok := s.attributes[key.attributeID]; ok {
			record.Value = slotValue(attr, record)
		}
		out = append(out, record)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ValueCount returns the number of stored value rows.
func (s *MemoryStore) ValueCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.values)
}

type memoryTx struct {
	store *MemoryStore
}

func (tx *memoryTx) GetValue(ctx context.Context, attr *catalogue.ProductAttribute, productID int64) (*catalogue.ProductAttributeValue, error) {
	v, ok := tx.store.values[valueKey{attr.ID, productID}]
	if !ok {
		return nil, catalogue.NewNotFoundError(catalogue.ErrCodeValueNotFound,
			fmt.Sprintf("no value for attribute %d on product %d", attr.ID, productID))
	}
	record := cloneRecord(v)
	record.Value = tx.store.refreshOptionsLocked(record.Value)
	return record, nil
}

// refreshOptionsLocked replaces stored option copies with the current
// option rows, so renames show up on read.
func (s *MemoryStore) refreshOptionsLocked(v catalogue.Value) catalogue.Value {
	switch ov := v.(type) {
	case catalogue.OptionValue:
		if current, ok := s.options[ov.ID]; ok {
			return catalogue.OptionValue(*current)
		}
	case catalogue.MultiOptionValue:
		for i, o := range ov {
			if current, ok := s.options[o.ID]; ok {
				ov[i] = *current
			}
		}
	}
	return v
}

func (tx *memoryTx) CreateValue(ctx context.Context, attr *catalogue.ProductAttribute, value *catalogue.ProductAttributeValue) error {
	key := valueKey{attr.ID, value.ProductID}
	if _, exists := tx.store.values[key]; exists {
		return catalogue.NewDuplicateValueError(attr.ID, value.ProductID)
	}
	if _, ok := tx.store.products[value.ProductID]; !ok {
		return productNotFound(value.ProductID)
	}
	value.ID = tx.store.id()
	value.AttributeID = attr.ID
	tx.store.stamp(&value.Auditable, true)
	tx.store.values[key] = cloneRecord(value)
	return nil
}

func (tx *memoryTx) UpdateValue(ctx context.Context, attr *catalogue.ProductAttribute, value *catalogue.ProductAttributeValue) error {
	key := valueKey{attr.ID, value.ProductID}
	current, ok := tx.store.values[key]
	if !ok || current.ID != value.ID {
		return catalogue.NewNotFoundError(catalogue.ErrCodeValueNotFound,
			fmt.Sprintf("value %d not found", value.ID))
	}
	tx.store.stamp(&value.Auditable, false)
	tx.store.values[key] = cloneRecord(value)
	return nil
}

func (tx *memoryTx) DeleteValue(ctx context.Context, value *catalogue.ProductAttributeValue) error {
	key := valueKey{value.AttributeID, value.ProductID}
	if _, ok := tx.store.values[key]; !ok {
		return catalogue.NewNotFoundError(catalogue.ErrCodeValueNotFound,
			fmt.Sprintf("value %d not found", value.ID))
	}
	delete(tx.store.values, key)
	return nil
}

// ---- options ----

func optionInUse(optionID int64, v catalogue.Value) bool {
	switch ov := v.(type) {
	case catalogue.OptionValue:
		return ov.ID == optionID
	case catalogue.MultiOptionValue:
		for _, o := range ov {
			if o.ID == optionID {
				return true
			}
		}
	}
	return false
}

func (s *MemoryStore) CreateGroup(ctx context.Context, name string) (*catalogue.AttributeOptionGroup, error) {
	if strings.TrimSpace(name) == "" {
		return nil, catalogue.NewValidationError("name", "name is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	group := &catalogue.AttributeOptionGroup{ID: s.id(), Name: name}
	s.stamp(&group.Auditable, true)
	s.groups[group.ID] = group
	out := *group
	return &out, nil
}

func (s *MemoryStore) GetGroup(ctx context.Context, id int64) (*catalogue.AttributeOptionGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	group, ok := s.groups[id]
	if !ok {
		return nil, catalogue.NewOptionGroupNotFoundError(id)
	}
	out := *group
	return &out, nil
}

func (s *MemoryStore) DeleteGroup(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[id]; !ok {
		return catalogue.NewOptionGroupNotFoundError(id)
	}
	for _, attr := range s.attributes {
		if attr.OptionGroupID != nil && *attr.OptionGroupID == id {
			return catalogue.NewConstraintViolationError(catalogue.ErrCodeInUse,
				fmt.Sprintf("option group %d is used by attribute %s", id, attr.Code))
		}
	}
	for optionID, o := range s.options {
		if o.GroupID == id {
			delete(s.options, optionID)
		}
	}
	delete(s.groups, id)
	return nil
}

func (s *MemoryStore) findOptionLocked(groupID int64, text string) *catalogue.AttributeOption {
	for _, o := range s.options {
		if o.GroupID == groupID && o.Option == text {
			return o
		}
	}
	return nil
}

func duplicateOption(groupID int64, text string) error {
	return catalogue.NewConstraintViolationError(catalogue.ErrCodeDuplicateOption,
		fmt.Sprintf("option %q already exists in group %d", text, groupID))
}

func (s *MemoryStore) AddOption(ctx context.Context, groupID int64, option string) (*catalogue.AttributeOption, error) {
	if strings.TrimSpace(option) == "" {
		return nil, catalogue.NewValidationError("option", "option is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[groupID]; !ok {
		return nil, catalogue.NewOptionGroupNotFoundError(groupID)
	}
	if s.findOptionLocked(groupID, option) != nil {
		return nil, duplicateOption(groupID, option)
	}
	o := &catalogue.AttributeOption{ID: s.id(), GroupID: groupID, Option: option}
	s.stamp(&o.Auditable, true)
	s.options[o.ID] = o
	out := *o
	return &out, nil
}

func (s *MemoryStore) RenameOption(ctx context.Context, optionID int64, option string) (*catalogue.AttributeOption, error) {
	if strings.TrimSpace(option) == "" {
		return nil, catalogue.NewValidationError("option", "option is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.options[optionID]
	if !ok {
		return nil, catalogue.NewNotFoundError(catalogue.ErrCodeOptionNotFound,
			fmt.Sprintf("option %d not found", optionID))
	}
	if other := s.findOptionLocked(o.GroupID, option); other != nil && other.ID != optionID {
		return nil, duplicateOption(o.GroupID, option)
	}
	o.Option = option
	s.stamp(&o.Auditable, false)
	out := *o
	return &out, nil
}

func (s *MemoryStore) DeleteOption(ctx context.Context, optionID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.options[optionID]; !ok {
		return catalogue.NewNotFoundError(catalogue.ErrCodeOptionNotFound,
			fmt.Sprintf("option %d not found", optionID))
	}
	for _, v := range s.values {
		if optionInUse(optionID, v.Value) {
			return catalogue.NewConstraintViolationError(catalogue.ErrCodeInUse,
				fmt.Sprintf("option %d is referenced by value %d", optionID, v.ID))
		}
	}
	delete(s.options, optionID)
	return nil
}

func (s *MemoryStore) ListOptions(ctx context.Context, groupID int64) ([]catalogue.AttributeOption, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[groupID]; !ok {
		return nil, catalogue.NewOptionGroupNotFoundError(groupID)
	}
	out := make([]catalogue.AttributeOption, 0)
	for _, o := range s.options {
		if o.GroupID == groupID {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) FindOption(ctx context.Context, groupID int64, option string) (*catalogue.AttributeOption, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[groupID]; !ok {
		return nil, catalogue.NewOptionGroupNotFoundError(groupID)
	}
	o := s.findOptionLocked(groupID, option)
	if o == nil {
		return nil, catalogue.NewOptionNotFoundError(groupID, option)
	}
	out := *o
	return &out, nil
}

// ---- attributes ----

func sameProductType(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (s *MemoryStore) CreateAttribute(ctx context.Context, attr *catalogue.ProductAttribute) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.attributes {
		if existing.Code == attr.Code && sameProductType(existing.ProductTypeID, attr.ProductTypeID) {
			return catalogue.NewConstraintViolationError(catalogue.ErrCodeConstraintFailed,
				fmt.Sprintf("attribute code %s already exists for this product type", attr.Code))
		}
	}
	attr.ID = s.id()
	s.stamp(&attr.Auditable, true)
	stored := *attr
	s.attributes[attr.ID] = &stored
	return nil
}

func attributeNotFound(id int64) error {
	return catalogue.NewNotFoundError(catalogue.ErrCodeAttributeNotFound,
		fmt.Sprintf("attribute %d not found", id))
}

func (s *MemoryStore) GetAttribute(ctx context.Context, id int64) (*catalogue.ProductAttribute, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	attr, ok := s.attributes[id]
	if !ok {
		return nil, attributeNotFound(id)
	}
	out := *attr
	return &out, nil
}

func (s *MemoryStore) ListAttributes(ctx context.Context, productTypeID int64) ([]*catalogue.ProductAttribute, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*catalogue.ProductAttribute, 0)
	for _, attr := range s.attributes {
		if attr.ProductTypeID != nil && *attr.ProductTypeID == productTypeID {
			copied := *attr
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

// DeleteAttribute removes the attribute and its values.
func (s *MemoryStore) DeleteAttribute(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.attributes[id]; !ok {
		return attributeNotFound(id)
	}
	for key := range s.values {
		if key.attributeID == id {
			delete(s.values, key)
		}
	}
	delete(s.attributes, id)
	return nil
}

// ---- products ----

func productNotFound(id int64) error {
	return catalogue.NewNotFoundError(catalogue.ErrCodeProductNotFound,
		fmt.Sprintf("product %d not found", id))
}

func productTypeNotFound(id int64) error {
	return catalogue.NewNotFoundError(catalogue.ErrCodeNotFound,
		fmt.Sprintf("product type %d not found", id))
}

func (s *MemoryStore) CreateProductType(ctx context.Context, productType *catalogue.ProductType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	productType.ID = s.id()
	s.stamp(&productType.Auditable, true)
	stored := *productType
	s.productTypes[productType.ID] = &stored
	return nil
}

func (s *MemoryStore) GetProductType(ctx context.Context, id int64) (*catalogue.ProductType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pt, ok := s.productTypes[id]
	if !ok {
		return nil, productTypeNotFound(id)
	}
	out := *pt
	return &out, nil
}

func (s *MemoryStore) HasAttributes(ctx context.Context, productTypeID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, attr := range s.attributes {
		if attr.ProductTypeID != nil && *attr.ProductTypeID == productTypeID {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) CreateProduct(ctx context.Context, product *catalogue.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if product.ProductTypeID != 0 {
		if _, ok := s.productTypes[product.ProductTypeID]; !ok {
			return productTypeNotFound(product.ProductTypeID)
		}
	}
	if product.ParentID != nil {
		if _, ok := s.products[*product.ParentID]; !ok {
			return productNotFound(*product.ParentID)
		}
	}
	if product.UPC != "" {
		for _, p := range s.products {
			if p.UPC == product.UPC {
				return catalogue.NewConstraintViolationError(catalogue.ErrCodeDuplicateProduct,
					fmt.Sprintf("a product with UPC %s already exists", product.UPC))
			}
		}
	}
	product.ID = s.id()
	s.stamp(&product.Auditable, true)
	stored := *product
	s.products[product.ID] = &stored
	return nil
}

func (s *MemoryStore) GetProduct(ctx context.Context, id int64) (*catalogue.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return nil, productNotFound(id)
	}
	out := *p
	return &out, nil
}

func (s *MemoryStore) ChildProductIDs(ctx context.Context, parentID int64) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int64, 0)
	for id, p := range s.products {
		if p.ParentID != nil && *p.ParentID == parentID {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// DeleteProduct removes the product, its child products and all of their
// attribute values.
func (s *MemoryStore) DeleteProduct(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[id]; !ok {
		return productNotFound(id)
	}
	s.deleteProductLocked(id)
	return nil
}

func (s *MemoryStore) deleteProductLocked(id int64) {
	for childID, p := range s.products {
		if p.ParentID != nil && *p.ParentID == id {
			s.deleteProductLocked(childID)
		}
	}
	for key := range s.values {
		if key.productID == id {
			delete(s.values, key)
		}
	}
	delete(s.productCategories, id)
	delete(s.products, id)
}

func (s *MemoryStore) AddProductCategory(ctx context.Context, productID, categoryID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[productID]; !ok {
		return productNotFound(productID)
	}
	if _, ok := s.categories[categoryID]; !ok {
		return categoryNotFound(categoryID)
	}
	for _, existing := range s.productCategories[productID] {
		if existing == categoryID {
			return nil
		}
	}
	s.productCategories[productID] = append(s.productCategories[productID], categoryID)
	return nil
}

func (s *MemoryStore) ProductCategories(ctx context.Context, productID int64) ([]*catalogue.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[productID]; !ok {
		return nil, productNotFound(productID)
	}
	out := make([]*catalogue.Category, 0, len(s.productCategories[productID]))
	for _, id := range s.productCategories[productID] {
		c := *s.categories[id]
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// ---- categories ----

func categoryNotFound(id int64) error {
	return catalogue.NewNotFoundError(catalogue.ErrCodeNotFound,
		fmt.Sprintf("category %d not found", id))
}

// AddCategory appends a node under parent, or a new root when parent is nil.
func (s *MemoryStore) AddCategory(ctx context.Context, parent *catalogue.Category, category *catalogue.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prefix := ""
	var parentNode *catalogue.Category
	if parent != nil {
		node, ok := s.categories[parent.ID]
		if !ok {
			return categoryNotFound(parent.ID)
		}
		parentNode = node
		prefix = node.Path
	}
	siblings := 0
	for path := range s.categoryPaths {
		if len(path) == len(prefix)+categoryStepLen && strings.HasPrefix(path, prefix) {
			siblings++
		}
	}
	step, err := encodePathStep(siblings + 1)
	if err != nil {
		return err
	}

	category.ID = s.id()
	category.Path = prefix + step
	category.Depth = pathDepth(category.Path)
	category.NumChild = 0
	s.stamp(&category.Auditable, true)
	stored := *category
	s.categories[category.ID] = &stored
	s.categoryPaths[category.Path] = category.ID
	if parentNode != nil {
		parentNode.NumChild++
	}
	return nil
}

func (s *MemoryStore) GetCategory(ctx context.Context, id int64) (*catalogue.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.categories[id]
	if !ok {
		return nil, categoryNotFound(id)
	}
	out := *c
	return &out, nil
}

func (s *MemoryStore) categoriesWhere(match func(c *catalogue.Category) bool) []*catalogue.Category {
	out := make([]*catalogue.Category, 0)
	for _, c := range s.categories {
		if match(c) {
			copied := *c
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

func (s *MemoryStore) Ancestors(ctx context.Context, c *catalogue.Category) ([]*catalogue.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*catalogue.Category, 0)
	for _, path := range ancestorPaths(c.Path) {
		id, ok := s.categoryPaths[path]
		if !ok {
			return nil, fmt.Errorf("category tree is missing ancestor %s of %s", path, c.Path)
		}
		copied := *s.categories[id]
		out = append(out, &copied)
	}
	return out, nil
}

func (s *MemoryStore) Children(ctx context.Context, c *catalogue.Category) ([]*catalogue.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.categoriesWhere(func(n *catalogue.Category) bool {
		return isDescendantPath(n.Path, c.Path) && pathDepth(n.Path) == pathDepth(c.Path)+1
	}), nil
}

func (s *MemoryStore) Descendants(ctx context.Context, c *catalogue.Category) ([]*catalogue.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.categoriesWhere(func(n *catalogue.Category) bool {
		return isDescendantPath(n.Path, c.Path)
	}), nil
}

// Siblings returns the nodes sharing c's parent, c included.
func (s *MemoryStore) Siblings(ctx context.Context, c *catalogue.Category) ([]*catalogue.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	parent := parentPath(c.Path)
	return s.categoriesWhere(func(n *catalogue.Category) bool {
		return parentPath(n.Path) == parent && pathDepth(n.Path) == pathDepth(c.Path)
	}), nil
}

// ---- files ----

// MemoryFileStore keeps uploaded files in memory.
type MemoryFileStore struct {
	mu      sync.Mutex
	baseURL string
	files   map[string][]byte
	meta    map[string]catalogue.StoredFile
}

func NewMemoryFileStore(baseURL string) *MemoryFileStore {
	return &MemoryFileStore{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		files:   make(map[string][]byte),
		meta:    make(map[string]catalogue.StoredFile),
	}
}

func (f *MemoryFileStore) Save(ctx context.Context, key string, file catalogue.FileHandle) (catalogue.StoredFile, error) {
	if file.Body == nil {
		return catalogue.StoredFile{}, fmt.Errorf("file %s has no content", file.Name)
	}
	data, err := io.ReadAll(file.Body)
	if err != nil {
		return catalogue.StoredFile{}, fmt.Errorf("read file %s: %w", file.Name, err)
	}
	stored := catalogue.StoredFile{
		Key:         key,
		Name:        file.Name,
		ContentType: file.ContentType,
		Size:        int64(len(data)),
	}
	if f.baseURL != "" {
		stored.URL = f.baseURL + "/" + key
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[key] = data
	f.meta[key] = stored
	return stored, nil
}

// Delete removes the file. Missing keys are ignored.
func (f *MemoryFileStore) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.files, key)
	delete(f.meta, key)
	return nil
}

// Open returns a reader over a stored file.
func (f *MemoryFileStore) Open(key string) (io.Reader, catalogue.StoredFile, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.files[key]
	if !ok {
		return nil, catalogue.StoredFile{}, false
	}
	return bytes.NewReader(data), f.meta[key], true
}

// Len returns the number of stored files.
func (f *MemoryFileStore) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.files)
}

package main

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"
	"github.com/lychee-technology/catalogue"
)

// ---- option groups ----

type createGroupRequest struct {
	Name string `json:"name" validate:"required,max=128"`
}

type optionRequest struct {
	Option string `json:"option" validate:"required,max=255"`
}

// handleCreateGroup handles POST /api/v1/option-groups
func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var req createGroupRequest
	if err := readJSONBody(r, s.validate, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	group, err := s.catalogue.Options.CreateGroup(r.Context(), req.Name)
	if err != nil {
		writeCatalogueError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, group)
}

// handleDeleteGroup handles DELETE /api/v1/option-groups/{groupID}
func (s *Server) handleDeleteGroup(w http.ResponseWriter, r *http.Request) {
	groupID, err := idParam(r, "groupID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.catalogue.Options.DeleteGroup(r.Context(), groupID); err != nil {
		writeCatalogueError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleListOptions handles GET /api/v1/option-groups/{groupID}/options
func (s *Server) handleListOptions(w http.ResponseWriter, r *http.Request) {
	groupID, err := idParam(r, "groupID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	options, err := s.catalogue.Options.ListOptions(r.Context(), groupID)
	if err != nil {
		writeCatalogueError(w, r, err)
		return
	}
	summary, err := s.catalogue.Manager.OptionSummary(r.Context(), groupID)
	if err != nil {
		writeCatalogueError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"options": options, "summary": summary})
}

// handleAddOption handles POST /api/v1/option-groups/{groupID}/options
func (s *Server) handleAddOption(w http.ResponseWriter, r *http.Request) {
	groupID, err := idParam(r, "groupID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req optionRequest
	if err := readJSONBody(r, s.validate, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	option, err := s.catalogue.Options.AddOption(r.Context(), groupID, req.Option)
	if err != nil {
		writeCatalogueError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, option)
}

// handleRenameOption handles PATCH /api/v1/options/{optionID}
func (s *Server) handleRenameOption(w http.ResponseWriter, r *http.Request) {
	optionID, err := idParam(r, "optionID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req optionRequest
	if err := readJSONBody(r, s.validate, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	option, err := s.catalogue.Options.RenameOption(r.Context(), optionID, req.Option)
	if err != nil {
		writeCatalogueError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, option)
}

// handleDeleteOption handles DELETE /api/v1/options/{optionID}
func (s *Server) handleDeleteOption(w http.ResponseWriter, r *http.Request) {
	optionID, err := idParam(r, "optionID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.catalogue.Options.DeleteOption(r.Context(), optionID); err != nil {
		writeCatalogueError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---- product types and attributes ----

type createProductTypeRequest struct {
	Name             string `json:"name" validate:"required,max=128"`
	Slug             string `json:"slug" validate:"omitempty,max=128"`
	RequiresShipping bool   `json:"requiresShipping"`
	TrackStock       bool   `json:"trackStock"`
}

type createAttributeRequest struct {
	ProductTypeID *int64 `json:"productTypeId" validate:"omitempty,gt=0"`
	Name          string `json:"name" validate:"required,max=128"`
	Code          string `json:"code" validate:"required,max=128"`
	Type          string `json:"type" validate:"required"`
	Required      bool   `json:"required"`
	OptionGroupID *int64 `json:"optionGroupId" validate:"omitempty,gt=0"`
}

// handleCreateProductType handles POST /api/v1/product-types
func (s *Server) handleCreateProductType(w http.ResponseWriter, r *http.Request) {
	var req createProductTypeRequest
	if err := readJSONBody(r, s.validate, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	productType := &catalogue.ProductType{
		Name:             req.Name,
		Slug:             req.Slug,
		RequiresShipping: req.RequiresShipping,
		TrackStock:       req.TrackStock,
	}
	if err := s.catalogue.Products.CreateProductType(r.Context(), productType); err != nil {
		writeCatalogueError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, productType)
}

// handleListAttributes handles GET /api/v1/product-types/{typeID}/attributes
func (s *Server) handleListAttributes(w http.ResponseWriter, r *http.Request) {
	typeID, err := idParam(r, "typeID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	attrs, err := s.catalogue.Manager.AttributesForType(r.Context(), typeID)
	if err != nil {
		writeCatalogueError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, attrs)
}

// handleProductTypeSchema handles GET /api/v1/product-types/{typeID}/schema
func (s *Server) handleProductTypeSchema(w http.ResponseWriter, r *http.Request) {
	typeID, err := idParam(r, "typeID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	schema, err := s.catalogue.Manager.ProductTypeSchema(r.Context(), typeID)
	if err != nil {
		writeCatalogueError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, schema)
}

// handleDefineAttribute handles POST /api/v1/attributes
func (s *Server) handleDefineAttribute(w http.ResponseWriter, r *http.Request) {
	var req createAttributeRequest
	if err := readJSONBody(r, s.validate, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	attrType, err := catalogue.ParseAttributeType(req.Type)
	if err != nil {
		writeCatalogueError(w, r, err)
		return
	}
	attr, err := s.catalogue.Manager.DefineAttribute(r.Context(), &catalogue.ProductAttribute{
		ProductTypeID: req.ProductTypeID,
		Name:          req.Name,
		Code:          req.Code,
		Type:          attrType,
		Required:      req.Required,
		OptionGroupID: req.OptionGroupID,
	})
	if err != nil {
		writeCatalogueError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, attr)
}

// handleGetAttribute handles GET /api/v1/attributes/{attributeID}
func (s *Server) handleGetAttribute(w http.ResponseWriter, r *http.Request) {
	attributeID, err := idParam(r, "attributeID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	attr, err := s.catalogue.Manager.GetAttribute(r.Context(), attributeID)
	if err != nil {
		writeCatalogueError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, attr)
}

// ---- products ----

type createProductRequest struct {
	Name           string `json:"name" validate:"required,max=255"`
	UPC            string `json:"upc" validate:"omitempty,max=64"`
	Description    string `json:"description"`
	ParentID       *int64 `json:"parentId" validate:"omitempty,gt=0"`
	ProductTypeID  int64  `json:"productTypeId" validate:"required,gt=0"`
	IsDiscountable bool   `json:"isDiscountable"`
	ContainsHazmat bool   `json:"containsHazmat"`
}

// handleCreateProduct handles POST /api/v1/products
func (s *Server) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if err := readJSONBody(r, s.validate, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	product := &catalogue.Product{
		Name:           req.Name,
		UPC:            req.UPC,
		Description:    req.Description,
		ParentID:       req.ParentID,
		ProductTypeID:  req.ProductTypeID,
		IsDiscountable: req.IsDiscountable,
		ContainsHazmat: req.ContainsHazmat,
	}
	if err := s.catalogue.Products.CreateProduct(r.Context(), product); err != nil {
		writeCatalogueError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, product)
}

func (s *Server) productFromPath(w http.ResponseWriter, r *http.Request) (*catalogue.Product, bool) {
	productID, err := idParam(r, "productID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	product, err := s.catalogue.Products.GetProduct(r.Context(), productID)
	if err != nil {
		writeCatalogueError(w, r, err)
		return nil, false
	}
	return product, true
}

// handleGetProduct handles GET /api/v1/products/{productID}
func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	product, ok := s.productFromPath(w, r)
	if !ok {
		return
	}
	categories, err := s.catalogue.Products.ProductCategories(r.Context(), product.ID)
	if err != nil {
		writeCatalogueError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"product": product, "categories": categories})
}

// handleDeleteProduct handles DELETE /api/v1/products/{productID}
func (s *Server) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	productID, err := idParam(r, "productID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.catalogue.Manager.DeleteProduct(r.Context(), productID); err != nil {
		writeCatalogueError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleAddProductCategory handles PUT /api/v1/products/{productID}/categories/{categoryID}
func (s *Server) handleAddProductCategory(w http.ResponseWriter, r *http.Request) {
	productID, err := idParam(r, "productID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	categoryID, err := idParam(r, "categoryID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.catalogue.Products.AddProductCategory(r.Context(), productID, categoryID); err != nil {
		writeCatalogueError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---- attribute values ----

type valueResponse struct {
	Attribute string                  `json:"attribute"`
	Type      catalogue.AttributeType `json:"type"`
	Text      string                  `json:"text"`
	HTML      string                  `json:"html"`
	Summary   string                  `json:"summary"`
	URL       string                  `json:"url,omitempty"`
}

// handleListValues handles GET /api/v1/products/{productID}/values
func (s *Server) handleListValues(w http.ResponseWriter, r *http.Request) {
	product, ok := s.productFromPath(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	attrs, err := s.catalogue.Manager.AttributesForType(ctx, product.ProductTypeID)
	if err != nil {
		writeCatalogueError(w, r, err)
		return
	}
	records, err := s.catalogue.Manager.ProductValues(ctx, product.ID)
	if err != nil {
		writeCatalogueError(w, r, err)
		return
	}
	byAttribute := make(map[int64]*catalogue.ProductAttributeValue, len(records))
	for _, record := range records {
		byAttribute[record.AttributeID] = record
	}

	out := make([]valueResponse, 0, len(records))
	for _, attr := range attrs {
		record, ok := byAttribute[attr.ID]
		if !ok {
			continue
		}
		text, err := s.catalogue.Manager.ValueAsText(ctx, attr, record)
		if err != nil {
			writeCatalogueError(w, r, err)
			return
		}
		markup, err := s.catalogue.Manager.ValueAsHTML(ctx, attr, record)
		if err != nil {
			writeCatalogueError(w, r, err)
			return
		}
		summary, err := s.catalogue.Manager.Summary(ctx, attr, record)
		if err != nil {
			writeCatalogueError(w, r, err)
			return
		}
		resp := valueResponse{
			Attribute: attr.Code,
			Type:      attr.Type,
			Text:      text,
			HTML:      markup,
			Summary:   summary,
		}
		switch v := record.Value.(type) {
		case catalogue.FileValue:
			resp.URL = v.URL
		case catalogue.ImageValue:
			resp.URL = v.URL
		}
		out = append(out, resp)
	}
	writeJSON(w, http.StatusOK, out)
}

// handleSaveValues handles PUT /api/v1/products/{productID}/values
func (s *Server) handleSaveValues(w http.ResponseWriter, r *http.Request) {
	product, ok := s.productFromPath(w, r)
	if !ok {
		return
	}
	var payload map[string]any
	if err := readJSONBody(r, nil, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	results, err := s.catalogue.Manager.SaveValues(r.Context(), product, payload)
	if err != nil {
		writeCatalogueError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) attributeByCode(w http.ResponseWriter, r *http.Request, product *catalogue.Product) (*catalogue.ProductAttribute, bool) {
	code := chi.URLParam(r, "code")
	attrs, err := s.catalogue.Manager.AttributesForType(r.Context(), product.ProductTypeID)
	if err != nil {
		writeCatalogueError(w, r, err)
		return nil, false
	}
	for _, attr := range attrs {
		if attr.Code == code {
			return attr, true
		}
	}
	writeCatalogueError(w, r, catalogue.NewNotFoundError(catalogue.ErrCodeAttributeNotFound,
		fmt.Sprintf("attribute %q not defined for product type %d", code, product.ProductTypeID)))
	return nil, false
}

// handleDeleteValue handles DELETE /api/v1/products/{productID}/values/{code}
func (s *Server) handleDeleteValue(w http.ResponseWriter, r *http.Request) {
	product, ok := s.productFromPath(w, r)
	if !ok {
		return
	}
	attr, ok := s.attributeByCode(w, r, product)
	if !ok {
		return
	}
	result, err := s.catalogue.Manager.SaveValue(r.Context(), attr, product, catalogue.Delete())
	if err != nil {
		writeCatalogueError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{attr.Code: result})
}

// handleUploadFile handles PUT /api/v1/products/{productID}/values/{code}/file
// with a multipart form carrying the upload in the "file" field.
func (s *Server) handleUploadFile(w http.ResponseWriter, r *http.Request) {
	product, ok := s.productFromPath(w, r)
	if !ok {
		return
	}
	attr, ok := s.attributeByCode(w, r, product)
	if !ok {
		return
	}
	if !attr.IsFile() {
		writeCatalogueError(w, r, catalogue.NewValidationError("code",
			fmt.Sprintf("attribute %s is not a file attribute", attr.Code)))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid multipart form: %v", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	contentType, err := uploadContentType(file, header.Header.Get("Content-Type"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unreadable upload: %v", err))
		return
	}
	handle := catalogue.FileHandle{
		Name:        header.Filename,
		ContentType: contentType,
		Size:        header.Size,
		Body:        file,
	}
	result, err := s.catalogue.Manager.SaveValue(r.Context(), attr, product, catalogue.Set(handle))
	if err != nil {
		writeCatalogueError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{attr.Code: result})
}

// uploadContentType sniffs the content when the client sent no specific
// type, then rewinds the file.
func uploadContentType(file multipart.File, declared string) (string, error) {
	if declared != "" && declared != "application/octet-stream" {
		return declared, nil
	}
	detected, err := mimetype.DetectReader(file)
	if err != nil {
		return "", err
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return detected.String(), nil
}

// ---- categories ----

type createCategoryRequest struct {
	ParentID    *int64 `json:"parentId" validate:"omitempty,gt=0"`
	Name        string `json:"name" validate:"required,max=255"`
	Slug        string `json:"slug" validate:"required,max=255"`
	Description string `json:"description"`
}

type categoryResponse struct {
	*catalogue.Category
	FullName string                `json:"fullName"`
	FullSlug string                `json:"fullSlug"`
	Children []*catalogue.Category `json:"children"`
}

// handleCreateCategory handles POST /api/v1/categories
func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req createCategoryRequest
	if err := readJSONBody(r, s.validate, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var parent *catalogue.Category
	if req.ParentID != nil {
		p, err := s.catalogue.Categories.GetCategory(r.Context(), *req.ParentID)
		if err != nil {
			writeCatalogueError(w, r, err)
			return
		}
		parent = p
	}
	category := &catalogue.Category{Name: req.Name, Slug: req.Slug, Description: req.Description}
	if err := s.catalogue.Categories.AddCategory(r.Context(), parent, category); err != nil {
		writeCatalogueError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, category)
}

// handleGetCategory handles GET /api/v1/categories/{categoryID}
func (s *Server) handleGetCategory(w http.ResponseWriter, r *http.Request) {
	categoryID, err := idParam(r, "categoryID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx := r.Context()
	tree := s.catalogue.Categories
	category, err := tree.GetCategory(ctx, categoryID)
	if err != nil {
		writeCatalogueError(w, r, err)
		return
	}
	fullName, err := catalogue.FullName(ctx, tree, category)
	if err != nil {
		writeCatalogueError(w, r, err)
		return
	}
	fullSlug, err := catalogue.FullSlug(ctx, tree, category)
	if err != nil {
		writeCatalogueError(w, r, err)
		return
	}
	children, err := tree.Children(ctx, category)
	if err != nil {
		writeCatalogueError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, categoryResponse{Category: category, FullName: fullName, FullSlug: fullSlug, Children: children})
}

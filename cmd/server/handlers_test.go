package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lychee-technology/catalogue"
	"github.com/lychee-technology/catalogue/factory"
	"github.com/lychee-technology/catalogue/internal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type apiClient struct {
	t   *testing.T
	srv *Server
}

func newAPIClient(t *testing.T) *apiClient {
	t.Helper()
	c, err := factory.NewMemoryCatalogue(nil, internal.NewMemoryFileStore("https://cdn.example.com"))
	require.NoError(t, err)
	return &apiClient{t: t, srv: NewServer(c, catalogue.ServerConfig{MaxUploadMB: 1})}
}

func (c *apiClient) do(method, path string, body any) *httptest.ResponseRecorder {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c.srv.ServeHTTP(rec, req)
	return rec
}

// create posts body and returns the id of the created record.
func (c *apiClient) create(path string, body any) int64 {
	c.t.Helper()
	rec := c.do(http.MethodPost, path, body)
	require.Equal(c.t, http.StatusCreated, rec.Code, rec.Body.String())
	var out struct {
		ID int64 `json:"id"`
	}
	require.NoError(c.t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.NotZero(c.t, out.ID)
	return out.ID
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

type bookFixture struct {
	groupID, englishID, typeID, productID int64
}

func (c *apiClient) books() bookFixture {
	c.t.Helper()
	var f bookFixture
	f.groupID = c.create("/api/v1/option-groups", map[string]any{"name": "Language"})
	f.englishID = c.create(fmt.Sprintf("/api/v1/option-groups/%d/options", f.groupID), map[string]any{"option": "English"})
	c.create(fmt.Sprintf("/api/v1/option-groups/%d/options", f.groupID), map[string]any{"option": "French"})
	f.typeID = c.create("/api/v1/product-types", map[string]any{"name": "Books", "slug": "books"})

	c.create("/api/v1/attributes", map[string]any{"productTypeId": f.typeID, "name": "Language",
		"code": "language", "type": "option", "optionGroupId": f.groupID})
	c.create("/api/v1/attributes", map[string]any{"productTypeId": f.typeID, "name": "Number of pages",
		"code": "number_of_pages", "type": "integer"})
	c.create("/api/v1/attributes", map[string]any{"productTypeId": f.typeID, "name": "Cover",
		"code": "cover", "type": "image"})
	f.productID = c.create("/api/v1/products", map[string]any{"name": "Dune", "upc": "9780441013593",
		"productTypeId": f.typeID})
	return f
}

func TestSaveAndListValues(t *testing.T) {
	c := newAPIClient(t)
	f := c.books()
	valuesPath := fmt.Sprintf("/api/v1/products/%d/values", f.productID)

	rec := c.do(http.MethodPut, valuesPath, map[string]any{"language": "English", "number_of_pages": 412})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, map[string]string{"language": "created", "number_of_pages": "created"},
		decodeBody[map[string]string](t, rec))

	rec = c.do(http.MethodPut, valuesPath, map[string]any{"number_of_pages": 412})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]string{"number_of_pages": "noop"}, decodeBody[map[string]string](t, rec))

	rec = c.do(http.MethodGet, valuesPath, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	values := decodeBody[[]valueResponse](t, rec)
	require.Len(t, values, 2)
	assert.Equal(t, valueResponse{Attribute: "language", Type: catalogue.AttributeTypeOption,
		Text: "English", HTML: "English", Summary: "Language: English"}, values[0])
	assert.Equal(t, "412", values[1].Text)

	rec = c.do(http.MethodDelete, fmt.Sprintf("/api/v1/options/%d", f.englishID), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, catalogue.ErrCodeInUse, decodeBody[APIError](t, rec).Code)

	rec = c.do(http.MethodDelete, valuesPath+"/language", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]string{"language": "deleted"}, decodeBody[map[string]string](t, rec))

	rec = c.do(http.MethodDelete, fmt.Sprintf("/api/v1/options/%d", f.englishID), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestListValuesSummarisesEntities(t *testing.T) {
	c := newAPIClient(t)
	f := c.books()
	c.create("/api/v1/attributes", map[string]any{"productTypeId": f.typeID, "name": "Sequel",
		"code": "sequel", "type": "entity"})
	sequelID := c.create("/api/v1/products", map[string]any{"name": "Dune Messiah", "upc": "9780593098233",
		"productTypeId": f.typeID})
	valuesPath := fmt.Sprintf("/api/v1/products/%d/values", f.productID)

	rec := c.do(http.MethodPut, valuesPath, map[string]any{"sequel": map[string]any{"type": "product", "id": sequelID}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = c.do(http.MethodGet, valuesPath, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	values := decodeBody[[]valueResponse](t, rec)
	require.Len(t, values, 1)
	assert.Equal(t, fmt.Sprintf("Sequel: Product (id:%d): Dune Messiah", sequelID), values[0].Summary)

	rec = c.do(http.MethodDelete, fmt.Sprintf("/api/v1/products/%d", sequelID), nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = c.do(http.MethodGet, valuesPath, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	values = decodeBody[[]valueResponse](t, rec)
	require.Len(t, values, 1)
	assert.Equal(t, fmt.Sprintf("Sequel: product:%d", sequelID), values[0].Summary)
}

func TestSaveValuesRejectsInvalidPayload(t *testing.T) {
	c := newAPIClient(t)
	f := c.books()
	valuesPath := fmt.Sprintf("/api/v1/products/%d/values", f.productID)

	rec := c.do(http.MethodPut, valuesPath, map[string]any{"language": "Klingon"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = c.do(http.MethodPut, valuesPath, map[string]any{"number_of_pages": "many"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = c.do(http.MethodDelete, valuesPath+"/isbn", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, catalogue.ErrCodeAttributeNotFound, decodeBody[APIError](t, rec).Code)
}

// pngBytes starts with the PNG signature so content sniffing sees an image.
var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

func TestUploadFile(t *testing.T) {
	c := newAPIClient(t)
	f := c.books()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "dune.png")
	require.NoError(t, err)
	_, err = part.Write(pngBytes)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPut, fmt.Sprintf("/api/v1/products/%d/values/cover/file", f.productID), &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	c.srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, map[string]string{"cover": "created"}, decodeBody[map[string]string](t, rec))

	rec = c.do(http.MethodGet, fmt.Sprintf("/api/v1/products/%d/values", f.productID), nil)
	values := decodeBody[[]valueResponse](t, rec)
	require.Len(t, values, 1)
	assert.Equal(t, "dune.png", values[0].Text)
	assert.Contains(t, values[0].URL, "https://cdn.example.com/attributes/cover/")

	rec = c.do(http.MethodPut, fmt.Sprintf("/api/v1/products/%d/values/language/file", f.productID), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadFileRejectsNonImages(t *testing.T) {
	c := newAPIClient(t)
	f := c.books()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "dune.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("plain text pretending to be a cover"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPut, fmt.Sprintf("/api/v1/products/%d/values/cover/file", f.productID), &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	c.srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
}

func TestDefineAttributeValidation(t *testing.T) {
	c := newAPIClient(t)
	typeID := c.create("/api/v1/product-types", map[string]any{"name": "Books"})

	rec := c.do(http.MethodPost, "/api/v1/attributes", map[string]any{"productTypeId": typeID,
		"name": "Bad", "code": "1st_edition", "type": "boolean"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, catalogue.ErrCodeInvalidCode, decodeBody[APIError](t, rec).Code)

	rec = c.do(http.MethodPost, "/api/v1/attributes", map[string]any{"productTypeId": typeID,
		"name": "Language", "code": "language", "type": "option"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, catalogue.ErrCodeOptionGroupRequired, decodeBody[APIError](t, rec).Code)

	rec = c.do(http.MethodPost, "/api/v1/attributes", map[string]any{"code": "x", "type": "text"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody[APIError](t, rec).Error, "name failed on required")

	rec = c.do(http.MethodPost, "/api/v1/attributes", map[string]any{"name": "X", "code": "x", "type": "colour"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	id := c.create("/api/v1/attributes", map[string]any{"productTypeId": typeID, "name": "Hardback",
		"code": "hardback", "type": "boolean"})
	rec = c.do(http.MethodGet, fmt.Sprintf("/api/v1/attributes/%d", id), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hardback", decodeBody[catalogue.ProductAttribute](t, rec).Code)

	rec = c.do(http.MethodGet, fmt.Sprintf("/api/v1/product-types/%d/schema", typeID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"hardback"`)
}

func TestProductsAndCategories(t *testing.T) {
	c := newAPIClient(t)
	f := c.books()

	rec := c.do(http.MethodGet, "/api/v1/products/999", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = c.do(http.MethodGet, "/api/v1/products/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = c.do(http.MethodPost, "/api/v1/products", map[string]any{"name": "Dune (copy)",
		"upc": "9780441013593", "productTypeId": f.typeID})
	assert.Equal(t, http.StatusConflict, rec.Code)

	booksID := c.create("/api/v1/categories", map[string]any{"name": "Books", "slug": "books"})
	fictionID := c.create("/api/v1/categories", map[string]any{"name": "Fiction", "slug": "fiction", "parentId": booksID})

	rec = c.do(http.MethodGet, fmt.Sprintf("/api/v1/categories/%d", fictionID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	category := decodeBody[map[string]any](t, rec)
	assert.Equal(t, "Books > Fiction", category["fullName"])
	assert.Equal(t, "books/fiction", category["fullSlug"])

	rec = c.do(http.MethodPut, fmt.Sprintf("/api/v1/products/%d/categories/%d", f.productID, fictionID), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = c.do(http.MethodGet, fmt.Sprintf("/api/v1/products/%d", f.productID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"Fiction"`)

	rec = c.do(http.MethodDelete, fmt.Sprintf("/api/v1/products/%d", f.productID), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = c.do(http.MethodGet, fmt.Sprintf("/api/v1/products/%d", f.productID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOptionGroupEndpoints(t *testing.T) {
	c := newAPIClient(t)
	groupID := c.create("/api/v1/option-groups", map[string]any{"name": "Colour"})
	redID := c.create(fmt.Sprintf("/api/v1/option-groups/%d/options", groupID), map[string]any{"option": "Red"})
	c.create(fmt.Sprintf("/api/v1/option-groups/%d/options", groupID), map[string]any{"option": "Blue"})

	rec := c.do(http.MethodPost, fmt.Sprintf("/api/v1/option-groups/%d/options", groupID), map[string]any{"option": "Red"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = c.do(http.MethodPatch, fmt.Sprintf("/api/v1/options/%d", redID), map[string]any{"option": "Crimson"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = c.do(http.MethodGet, fmt.Sprintf("/api/v1/option-groups/%d/options", groupID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Crimson, Blue", decodeBody[map[string]any](t, rec)["summary"])

	rec = c.do(http.MethodDelete, fmt.Sprintf("/api/v1/option-groups/%d", groupID), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = c.do(http.MethodGet, fmt.Sprintf("/api/v1/option-groups/%d/options", groupID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

package admin

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vitrinecommerce/api/internal/services/product"
	"github.com/vitrinecommerce/api/internal/upload"
)

// ProductHandler handles admin product management endpoints.
type ProductHandler struct {
	products *product.Service
	receiver upload.Receiver
	logger   *slog.Logger
}

// NewProductHandler creates a product handler.
func NewProductHandler(productSvc *product.Service, logger *slog.Logger) *ProductHandler {
	return &ProductHandler{products: productSvc, logger: logger}
}

// RegisterRoutes registers product admin routes on the given mux.
func (h *ProductHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /admin/products", h.List)
	mux.HandleFunc("POST /admin/products", h.Create)
	mux.HandleFunc("GET /admin/products/{id}", h.Get)
	mux.HandleFunc("PUT /admin/products/{id}", h.Update)
	mux.HandleFunc("DELETE /admin/products/{id}", h.Delete)
	mux.HandleFunc("POST /admin/products/{id}/images", h.UploadImages)
	mux.HandleFunc("DELETE /admin/products/{id}/images", h.RemoveImage)
}

// Create handles POST /admin/products: multipart form with name, slug,
// description, price and optional "images" files persisted in the same
// request.
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form data")
		return
	}

	name := r.FormValue("name")
	slug := r.FormValue("slug")
	if name == "" || slug == "" {
		writeError(w, http.StatusBadRequest, "name and slug are required")
		return
	}

	price, err := decimal.NewFromString(r.FormValue("price"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid price")
		return
	}

	files, closeAll, err := h.receiver.OpenAll(r.MultipartForm.File["images"])
	if err != nil {
		writeError(w, uploadStatus(err), err.Error())
		return
	}
	defer closeAll()

	p, err := h.products.Create(r.Context(), product.CreateInput{
		Name:        name,
		Slug:        slug,
		Description: r.FormValue("description"),
		Price:       price,
		Files:       files,
	})
	if err != nil {
		if errors.Is(err, product.ErrSlugTaken) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		h.logger.Error("failed to create product", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusCreated, p)
}

// UploadImages handles POST /admin/products/{id}/images.
func (h *ProductHandler) UploadImages(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid product ID")
		return
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form data")
		return
	}

	headers := r.MultipartForm.File["images"]
	if len(headers) == 0 {
		writeError(w, http.StatusBadRequest, "no files uploaded")
		return
	}

	files, closeAll, err := h.receiver.OpenAll(headers)
	if err != nil {
		writeError(w, uploadStatus(err), err.Error())
		return
	}
	defer closeAll()

	paths, err := h.products.AttachImages(r.Context(), id, files)
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		h.logger.Error("failed to attach images", "error", err, "product_id", id)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"images": paths})
}

// RemoveImage handles DELETE /admin/products/{id}/images with a JSON body
// naming the stored path.
func (h *ProductHandler) RemoveImage(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid product ID")
		return
	}

	var req struct {
		Path string `json:"path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
		writeError(w, http.StatusBadRequest, "path required")
		return
	}

	if err := h.products.RemoveImage(r.Context(), id, req.Path); err != nil {
		if errors.Is(err, product.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		h.logger.Error("failed to remove image", "error", err, "product_id", id)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Get handles GET /admin/products/{id}.
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid product ID")
		return
	}

	p, err := h.products.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		h.logger.Error("failed to get product", "error", err, "product_id", id)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, p)
}

// List handles GET /admin/products.
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list products", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

// Update handles PUT /admin/products/{id} with a JSON body.
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid product ID")
		return
	}

	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Price       string `json:"price"`
		Active      bool   `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid price")
		return
	}

	p, err := h.products.Update(r.Context(), id, product.UpdateInput{
		Name:        req.Name,
		Description: req.Description,
		Price:       price,
		Active:      req.Active,
	})
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		h.logger.Error("failed to update product", "error", err, "product_id", id)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, p)
}

// Delete handles DELETE /admin/products/{id}.
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid product ID")
		return
	}

	if err := h.products.Delete(r.Context(), id); err != nil {
		if errors.Is(err, product.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		h.logger.Error("failed to delete product", "error", err, "product_id", id)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

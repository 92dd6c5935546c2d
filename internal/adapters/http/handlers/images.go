package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JeanGrijp/niji-api/internal/adapters/http/response"
	"github.com/JeanGrijp/niji-api/internal/core/domain"
)

const maxBodyBytes = 1 << 20

type ImageCatalog interface {
	Search(ctx context.Context, filter domain.ImageFilter, page domain.PageRequest) (domain.ImagePage, error)
	ByCategory(ctx context.Context, category string, page domain.PageRequest) (domain.ImagePage, error)
	Random(ctx context.Context, filter domain.ImageFilter, size int64) ([]domain.Image, error)
	Create(ctx context.Context, in domain.ImageCreate) (domain.Image, error)
	Update(ctx context.Context, id string, update domain.ImageUpdate) (domain.Image, error)
	Delete(ctx context.Context, id string) error
}

type ImageHandler struct {
	catalog ImageCatalog
}

func NewImageHandler(catalog ImageCatalog) *ImageHandler {
	return &ImageHandler{catalog: catalog}
}

// Search requires at least one filter; nsfw=true counts as one.
func (h *ImageHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	filter, err := parseFilter(query, true)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	filter.Category = strings.TrimSpace(query.Get("category"))
	filter.Anime = strings.TrimSpace(query.Get("anime"))

	page, err := parsePage(query)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	result, err := h.catalog.Search(r.Context(), filter, page)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, result)
}

func (h *ImageHandler) Random(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	filter, err := parseFilter(query, false)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	page, err := parsePage(query)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	images, err := h.catalog.Random(r.Context(), filter, page.Size)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]any{"size": len(images), "images": images})
}

func (h *ImageHandler) ByCategory(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r.URL.Query())
	if err != nil {
		response.Error(w, r, err)
		return
	}

	result, err := h.catalog.ByCategory(r.Context(), chi.URLParam(r, "ref"), page)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, result)
}

func (h *ImageHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in domain.ImageCreate
	if err := decodeBody(w, r, &in); err != nil {
		response.Error(w, r, err)
		return
	}

	image, err := h.catalog.Create(r.Context(), in)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]any{"detail": "Image added successfully.", "image": image})
}

func (h *ImageHandler) Update(w http.ResponseWriter, r *http.Request) {
	var update domain.ImageUpdate
	if err := decodeBody(w, r, &update); err != nil {
		response.Error(w, r, err)
		return
	}

	image, err := h.catalog.Update(r.Context(), chi.URLParam(r, "ref"), update)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]any{"detail": "Image updated successfully.", "image": image})
}

func (h *ImageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.Delete(r.Context(), chi.URLParam(r, "ref")); err != nil {
		response.Error(w, r, err)
		return
	}
	response.Detail(w, http.StatusOK, "Image deleted successfully.")
}

// parseFilter reads nsfw, character and tags. With nsfwEquality the nsfw
// value filters both ways; otherwise only nsfw=true narrows the result.
func parseFilter(query url.Values, nsfwEquality bool) (domain.ImageFilter, error) {
	var filter domain.ImageFilter

	if raw := strings.TrimSpace(query.Get("nsfw")); raw != "" {
		nsfw, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, fmt.Errorf("%w: nsfw must be a boolean", domain.ErrInvalidInput)
		}
		if nsfwEquality || nsfw {
			filter.NSFW = nsfw
			filter.NSFWSet = true
		}
	}
	filter.Character = strings.TrimSpace(query.Get("character"))
	filter.Tags = domain.ParseTags(query.Get("tags"))
	return filter, nil
}

func parsePage(query url.Values) (domain.PageRequest, error) {
	page := domain.PageRequest{Page: domain.DefaultPage, Size: domain.DefaultPageSize}

	if raw := strings.TrimSpace(query.Get("page")); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return page, fmt.Errorf("%w: page must be an integer", domain.ErrInvalidInput)
		}
		page.Page = n
	}
	if raw := strings.TrimSpace(query.Get("size")); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return page, fmt.Errorf("%w: size must be an integer", domain.ErrInvalidInput)
		}
		page.Size = n
	}
	return page, page.Validate()
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid request body", domain.ErrInvalidInput)
	}
	return nil
}

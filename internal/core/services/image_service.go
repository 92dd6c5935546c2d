package services

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/JeanGrijp/niji-api/internal/core/domain"
	"github.com/JeanGrijp/niji-api/internal/core/ports"
)

// ImageService implementa consultas e escrita do catálogo de imagens.
type ImageService struct {
	repo      ports.ImageRepository
	storage   ports.ImageStorage
	cdnDomain string
}

func NewImageService(repo ports.ImageRepository, storage ports.ImageStorage, cdnDomain string) (*ImageService, error) {
	if repo == nil {
		return nil, fmt.Errorf("image repository is required")
	}
	if storage == nil {
		return nil, fmt.Errorf("image storage is required")
	}
	return &ImageService{repo: repo, storage: storage, cdnDomain: strings.TrimRight(strings.TrimSpace(cdnDomain), "/")}, nil
}

func (s *ImageService) Search(ctx context.Context, filter domain.ImageFilter, page domain.PageRequest) (domain.ImagePage, error) {
	if !filter.HasAny() {
		return domain.ImagePage{}, fmt.Errorf("%w: at least one filter must be provided for searching", domain.ErrInvalidInput)
	}
	return s.list(ctx, filter, page, "no images found with given filters")
}

func (s *ImageService) ByCategory(ctx context.Context, category string, page domain.PageRequest) (domain.ImagePage, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return domain.ImagePage{}, fmt.Errorf("%w: category is required", domain.ErrInvalidInput)
	}
	filter := domain.ImageFilter{Category: category}
	return s.list(ctx, filter, page, fmt.Sprintf("no images found for category '%s'", category))
}

// Random samples up to size images matching filter.
func (s *ImageService) Random(ctx context.Context, filter domain.ImageFilter, size int64) ([]domain.Image, error) {
	if size < 1 {
		return nil, fmt.Errorf("%w: size must be >= 1", domain.ErrInvalidInput)
	}
	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return nil, fmt.Errorf("%w: no images found with given filters", domain.ErrNotFound)
	}
	return s.repo.Sample(ctx, filter, size)
}

func (s *ImageService) list(ctx context.Context, filter domain.ImageFilter, page domain.PageRequest, notFound string) (domain.ImagePage, error) {
	if err := page.Validate(); err != nil {
		return domain.ImagePage{}, err
	}

	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		return domain.ImagePage{}, err
	}
	if total == 0 {
		return domain.ImagePage{}, fmt.Errorf("%w: %s", domain.ErrNotFound, notFound)
	}

	images, err := s.repo.Find(ctx, filter, page)
	if err != nil {
		return domain.ImagePage{}, err
	}

	return domain.ImagePage{
		Page:       page.Page,
		Size:       page.Size,
		Total:      total,
		TotalPages: (total + page.Size - 1) / page.Size,
		Images:     images,
	}, nil
}

// Create downloads the source image, stores it and records it.
func (s *ImageService) Create(ctx context.Context, in domain.ImageCreate) (domain.Image, error) {
	if err := validateSourceURL(in.URL); err != nil {
		return domain.Image{}, err
	}
	category := strings.TrimSpace(in.Category)
	if category == "" {
		return domain.Image{}, fmt.Errorf("%w: category is required", domain.ErrInvalidInput)
	}

	stored, err := s.storage.Save(ctx, in.URL, category)
	if err != nil {
		return domain.Image{}, err
	}

	image := domain.Image{
		URL:       s.publicURL(stored.Path),
		Path:      stored.Path,
		Category:  category,
		Anime:     in.Anime,
		NSFW:      in.NSFW,
		Character: in.Character,
		Tags:      in.Tags,
	}

	inserted, err := s.repo.Insert(ctx, image)
	if err != nil {
		s.discard(ctx, stored.Path)
		return domain.Image{}, err
	}
	return inserted, nil
}

// Update applies a partial update. A new URL re-ingests the image into the
// resulting category and drops the previous file.
func (s *ImageService) Update(ctx context.Context, id string, update domain.ImageUpdate) (domain.Image, error) {
	if update.IsEmpty() {
		return domain.Image{}, fmt.Errorf("%w: no fields to update", domain.ErrInvalidInput)
	}

	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return domain.Image{}, err
	}

	var newPath string
	if update.URL != nil {
		if err := validateSourceURL(*update.URL); err != nil {
			return domain.Image{}, err
		}
		category := existing.Category
		if update.Category != nil && strings.TrimSpace(*update.Category) != "" {
			category = strings.TrimSpace(*update.Category)
		}
		stored, err := s.storage.Save(ctx, *update.URL, category)
		if err != nil {
			return domain.Image{}, err
		}
		newPath = stored.Path
		publicURL := s.publicURL(stored.Path)
		update.URL = &publicURL
		update.Path = &newPath
	}

	modified, err := s.repo.Update(ctx, id, update)
	if err != nil {
		if newPath != "" {
			s.discard(ctx, newPath)
		}
		return domain.Image{}, err
	}
	if !modified {
		return domain.Image{}, fmt.Errorf("%w: no changes made to the image", domain.ErrInvalidInput)
	}
	if newPath != "" && existing.Path != "" && existing.Path != newPath {
		s.discard(ctx, existing.Path)
	}

	return s.repo.Get(ctx, id)
}

func (s *ImageService) Delete(ctx context.Context, id string) error {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}

	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("%w: image not found", domain.ErrNotFound)
	}

	if existing.Path != "" {
		if err := s.storage.Remove(ctx, existing.Path); err != nil {
			return fmt.Errorf("error deleting image file: %w", err)
		}
	}
	return nil
}

func (s *ImageService) publicURL(path string) string {
	return s.cdnDomain + "/images/" + strings.TrimLeft(path, "/")
}

func (s *ImageService) discard(ctx context.Context, path string) {
	if err := s.storage.Remove(ctx, path); err != nil {
		log.WithError(err).WithField("path", path).Warn("images: failed to remove stored file")
	}
}

func validateSourceURL(raw string) error {
	u, err := url.ParseRequestURI(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: url must be an absolute http(s) URL", domain.ErrInvalidInput)
	}
	return nil
}

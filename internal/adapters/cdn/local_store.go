// Package cdn baixa imagens de origem e as grava no diretório estático servido pela CDN.
package cdn

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/JeanGrijp/niji-api/internal/core/domain"
	"github.com/JeanGrijp/niji-api/internal/core/ports"
)

const defaultMaxBytes = 20 << 20

type Config struct {
	BaseDir  string
	Timeout  time.Duration
	RPS      float64
	Burst    int
	MaxBytes int64
}

// LocalStore implements ImageStorage on the local filesystem.
type LocalStore struct {
	baseDir  string
	client   *http.Client
	limiter  *rate.Limiter
	maxBytes int64
	newName  func() string
}

var _ ports.ImageStorage = (*LocalStore)(nil)

func NewLocalStore(cfg Config, client *http.Client) (*LocalStore, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, errors.New("static images dir is required")
	}
	base, err := filepath.Abs(cfg.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("resolve static images dir: %w", err)
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	limit := rate.Inf
	if cfg.RPS > 0 {
		limit = rate.Limit(cfg.RPS)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}

	return &LocalStore{
		baseDir:  base,
		client:   client,
		limiter:  rate.NewLimiter(limit, burst),
		maxBytes: maxBytes,
		newName:  func() string { return uuid.NewString() },
	}, nil
}

// Save downloads sourceURL into <base>/<category>/<uuid>.<ext> and returns
// the path relative to base.
func (s *LocalStore) Save(ctx context.Context, sourceURL, category string) (domain.StoredImage, error) {
	if !validSegment(category) {
		return domain.StoredImage{}, fmt.Errorf("%w: invalid category %q", domain.ErrInvalidInput, category)
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return domain.StoredImage{}, fmt.Errorf("download throttled: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return domain.StoredImage{}, fmt.Errorf("%w: error downloading the image: %v", domain.ErrInvalidInput, err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return domain.StoredImage{}, fmt.Errorf("%w: error downloading the image: %v", domain.ErrInvalidInput, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return domain.StoredImage{}, fmt.Errorf("%w: error downloading the image: upstream returned %d", domain.ErrInvalidInput, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBytes+1))
	if err != nil {
		return domain.StoredImage{}, fmt.Errorf("%w: error downloading the image: %v", domain.ErrInvalidInput, err)
	}
	if int64(len(body)) > s.maxBytes {
		return domain.StoredImage{}, fmt.Errorf("%w: image exceeds %d bytes", domain.ErrInvalidInput, s.maxBytes)
	}

	ext := Extension(sourceURL, resp.Header.Get("Content-Type"))
	rel := category + "/" + s.newName() + "." + ext

	dir := filepath.Join(s.baseDir, category)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return domain.StoredImage{}, fmt.Errorf("error saving the image: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.baseDir, filepath.FromSlash(rel)), body, 0o644); err != nil {
		return domain.StoredImage{}, fmt.Errorf("error saving the image: %w", err)
	}

	log.WithFields(log.Fields{"path": rel, "bytes": len(body)}).Debug("cdn: image stored")
	return domain.StoredImage{Path: rel}, nil
}

// Remove deletes a stored file. Missing files are not an error.
func (s *LocalStore) Remove(_ context.Context, path string) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (s *LocalStore) resolve(path string) (string, error) {
	clean := filepath.Clean(filepath.Join(s.baseDir, filepath.FromSlash(strings.TrimLeft(path, "/"))))
	rel, err := filepath.Rel(s.baseDir, clean)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: path %q escapes the static directory", domain.ErrInvalidInput, path)
	}
	return clean, nil
}

// Extension picks the file extension from the content type, then the URL
// suffix, falling back to jpg.
func Extension(sourceURL, contentType string) string {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "image/gif"):
		return "gif"
	case strings.Contains(ct, "image/png"):
		return "png"
	case strings.Contains(ct, "image/jpeg"), strings.Contains(ct, "image/jpg"):
		return "jpg"
	}

	u := strings.ToLower(sourceURL)
	switch {
	case strings.HasSuffix(u, ".gif"):
		return "gif"
	case strings.HasSuffix(u, ".png"):
		return "png"
	}
	return "jpg"
}

func validSegment(s string) bool {
	if s == "" || s == "." || s == ".." {
		return false
	}
	return !strings.ContainsAny(s, `/\`) && !strings.ContainsRune(s, 0)
}

package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/JeanGrijp/niji-api/internal/core/domain"
)

type mockStorage struct {
	mu           sync.Mutex
	counts       map[string]int64
	ttls         map[string]time.Duration
	incrementErr error
	expireErrs   []error
	increments   int
	expires      int
}

func newMockStorage() *mockStorage {
	return &mockStorage{
		counts: make(map[string]int64),
		ttls:   make(map[string]time.Duration),
	}
}

func (m *mockStorage) Increment(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.increments++
	if m.incrementErr != nil {
		return 0, m.incrementErr
	}
	m.counts[key]++
	return m.counts[key], nil
}

func (m *mockStorage) Expire(_ context.Context, key string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expires++
	if len(m.expireErrs) > 0 {
		err := m.expireErrs[0]
		m.expireErrs = m.expireErrs[1:]
		if err != nil {
			return err
		}
	}
	m.ttls[key] = ttl
	return nil
}

func (m *mockStorage) keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.counts))
	for k := range m.counts {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

type mockKeyStore struct {
	mu         sync.Mutex
	byKey      map[string]domain.Identity
	lookupErrs []error
	lookups    int
	insertErr  error
}

func newMockKeyStore(identities ...domain.Identity) *mockKeyStore {
	ks := &mockKeyStore{byKey: make(map[string]domain.Identity)}
	for _, id := range identities {
		ks.byKey[id.Key] = id
	}
	return ks
}

func (m *mockKeyStore) FindByCredential(_ context.Context, credential string) (domain.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups++
	if len(m.lookupErrs) > 0 {
		err := m.lookupErrs[0]
		m.lookupErrs = m.lookupErrs[1:]
		if err != nil {
			return domain.Identity{}, err
		}
	}
	id, ok := m.byKey[credential]
	if !ok {
		return domain.Identity{}, domain.ErrKeyNotFound
	}
	return id, nil
}

func (m *mockKeyStore) FindByUsername(_ context.Context, username string) (domain.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.byKey {
		if id.Username == username {
			return id, nil
		}
	}
	return domain.Identity{}, domain.ErrKeyNotFound
}

func (m *mockKeyStore) Insert(_ context.Context, identity domain.Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return m.insertErr
	}
	m.byKey[identity.Key] = identity
	return nil
}

func (m *mockKeyStore) Count(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.byKey)), nil
}

type mockStats struct {
	mu        sync.Mutex
	counters  domain.GlobalCounters
	usersErr  error
	globalErr error
}

func (m *mockStats) IncrementRequests(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters.TotalRequests++
	return nil
}

func (m *mockStats) IncrementUsers(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.usersErr != nil {
		return m.usersErr
	}
	m.counters.TotalUsers++
	return nil
}

func (m *mockStats) Global(context.Context) (domain.GlobalCounters, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters, m.globalErr
}

type mockImageRepo struct {
	mu        sync.Mutex
	images    map[string]domain.Image
	nextID    int
	insertErr error
	lastPage  domain.PageRequest
	lastSize  int64
}

func newMockImageRepo(images ...domain.Image) *mockImageRepo {
	repo := &mockImageRepo{images: make(map[string]domain.Image)}
	for _, img := range images {
		repo.images[img.ID] = img
	}
	return repo
}

func (m *mockImageRepo) matching(filter domain.ImageFilter) []domain.Image {
	var out []domain.Image
	for _, img := range m.images {
		if filter.Category != "" && img.Category != filter.Category {
			continue
		}
		if filter.NSFWSet && img.NSFW != filter.NSFW {
			continue
		}
		out = append(out, img)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *mockImageRepo) Count(_ context.Context, filter domain.ImageFilter) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.matching(filter))), nil
}

func (m *mockImageRepo) Find(_ context.Context, filter domain.ImageFilter, page domain.PageRequest) ([]domain.Image, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastPage = page
	all := m.matching(filter)
	start := page.Skip()
	if start >= int64(len(all)) {
		return nil, nil
	}
	end := start + page.Size
	if end > int64(len(all)) {
		end = int64(len(all))
	}
	return all[start:end], nil
}

func (m *mockImageRepo) Sample(_ context.Context, filter domain.ImageFilter, size int64) ([]domain.Image, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastSize = size
	all := m.matching(filter)
	if int64(len(all)) > size {
		all = all[:size]
	}
	return all, nil
}

func (m *mockImageRepo) Get(_ context.Context, id string) (domain.Image, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	img, ok := m.images[id]
	if !ok {
		return domain.Image{}, domain.ErrNotFound
	}
	return img, nil
}

func (m *mockImageRepo) Insert(_ context.Context, image domain.Image) (domain.Image, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return domain.Image{}, m.insertErr
	}
	m.nextID++
	image.ID = "id-" + string(rune('0'+m.nextID))
	m.images[image.ID] = image
	return image, nil
}

func (m *mockImageRepo) Update(_ context.Context, id string, update domain.ImageUpdate) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	img, ok := m.images[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	before := img
	if update.URL != nil {
		img.URL = *update.URL
	}
	if update.Path != nil {
		img.Path = *update.Path
	}
	if update.Category != nil {
		img.Category = *update.Category
	}
	if update.NSFW != nil {
		img.NSFW = *update.NSFW
	}
	if update.Anime != nil {
		img.Anime = update.Anime
	}
	if update.Character != nil {
		img.Character = update.Character
	}
	if update.Tags != nil {
		img.Tags = *update.Tags
	}
	m.images[id] = img
	return !sameImage(before, img), nil
}

func (m *mockImageRepo) Delete(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.images[id]; !ok {
		return false, nil
	}
	delete(m.images, id)
	return true, nil
}

func (m *mockImageRepo) CountAll(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.images)), nil
}

func sameImage(a, b domain.Image) bool {
	if a.URL != b.URL || a.Path != b.Path || a.Category != b.Category || a.NSFW != b.NSFW {
		return false
	}
	if !sameOptional(a.Anime, b.Anime) || !sameOptional(a.Character, b.Character) {
		return false
	}
	if len(a.Tags) != len(b.Tags) {
		return false
	}
	for i := range a.Tags {
		if a.Tags[i] != b.Tags[i] {
			return false
		}
	}
	return true
}

func sameOptional(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

type mockImageStorage struct {
	mu      sync.Mutex
	saved   []string
	removed []string
	saveErr error
}

func (m *mockImageStorage) Save(_ context.Context, sourceURL, category string) (domain.StoredImage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return domain.StoredImage{}, m.saveErr
	}
	path := category + "/file" + string(rune('0'+len(m.saved)+1)) + ".png"
	m.saved = append(m.saved, path)
	return domain.StoredImage{Path: path}, nil
}

func (m *mockImageStorage) Remove(_ context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removed = append(m.removed, path)
	return nil
}

type mockMetrics struct {
	snapshot domain.SystemMetrics
	err      error
}

func (m mockMetrics) Snapshot(context.Context) (domain.SystemMetrics, error) {
	return m.snapshot, m.err
}

var errStoreDown = errors.New("dial tcp 127.0.0.1:6379: connect: connection refused")

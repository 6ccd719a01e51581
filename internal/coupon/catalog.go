package coupon

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryCatalog implements Store in process, indexed by ID and by
// normalised code. Callers receive copies.
type MemoryCatalog struct {
	mu     sync.RWMutex
	byID   map[string]*Coupon
	byCode map[string]string
}

// NewMemoryCatalog creates a new map-based coupon catalog.
func NewMemoryCatalog(capacity int) *MemoryCatalog {
	return &MemoryCatalog{
		byID:   make(map[string]*Coupon, capacity),
		byCode: make(map[string]string, capacity),
	}
}

// GetByCode finds a coupon by its case-insensitive code.
func (s *MemoryCatalog) GetByCode(_ context.Context, code string) (*Coupon, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byCode[NormalizeCode(code)]
	if !ok {
		return nil, nil
	}
	return s.byID[id].Clone(), nil
}

// GetByID finds a coupon by ID.
func (s *MemoryCatalog) GetByID(_ context.Context, id string) (*Coupon, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.byID[id]
	if !ok {
		return nil, nil
	}
	return c.Clone(), nil
}

// List returns every coupon ordered by code.
func (s *MemoryCatalog) List(_ context.Context) ([]Coupon, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Coupon, 0, len(s.byID))
	for _, c := range s.byID {
		out = append(out, *c.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

// Put creates or replaces a coupon. A missing ID is generated and written
// back to c. A stored expired or exhausted status is kept.
func (s *MemoryCatalog) Put(_ context.Context, c *Coupon) error {
	if err := c.Check(); err != nil {
		return err
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.Code = NormalizeCode(c.Code)

	s.mu.Lock()
	defer s.mu.Unlock()

	if owner, ok := s.byCode[c.Code]; ok && owner != c.ID {
		return fmt.Errorf("%w: %s", ErrDuplicateCode, c.Code)
	}
	stored := c.Clone()
	if prev, ok := s.byID[c.ID]; ok {
		if prev.Code != c.Code {
			delete(s.byCode, prev.Code)
		}
		if prev.Status.Terminal() {
			stored.Status = prev.Status
		}
	}
	s.byID[c.ID] = stored
	s.byCode[c.Code] = c.ID
	return nil
}

// UpdateStatus moves a coupon from one status to another.
func (s *MemoryCatalog) UpdateStatus(_ context.Context, id string, from, to Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("coupon %s not found", id)
	}
	if c.Status != from || from.Terminal() {
		return fmt.Errorf("%w: %s is %s, expected %s", ErrStatusConflict, id, c.Status, from)
	}
	c.Status = to
	return nil
}

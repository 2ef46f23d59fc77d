package directory

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"patientflow/internal/verification/models"
	id "patientflow/pkg/domain"
)

// Cache is the kiosk's local view of known patients, indexed by national ID
// and directory ID.
type Cache struct {
	mu    sync.RWMutex
	byNID map[id.NationalID]models.PatientIdentity
	byID  map[id.PatientID]models.PatientIdentity
}

func NewCache() *Cache {
	return &Cache{
		byNID: make(map[id.NationalID]models.PatientIdentity),
		byID:  make(map[id.PatientID]models.PatientIdentity),
	}
}

// Put stores or replaces p. Identities without an ID are ignored.
func (c *Cache) Put(p models.PatientIdentity) {
	if p.ID.IsNil() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if prev, ok := c.byID[p.ID]; ok && prev.NationalID != "" && prev.NationalID != p.NationalID {
		delete(c.byNID, prev.NationalID)
	}
	c.byID[p.ID] = p
	if p.NationalID != "" {
		c.byNID[p.NationalID] = p
	}
}

func (c *Cache) FindByNationalID(nid id.NationalID) (models.PatientIdentity, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.byNID[nid]
	return p, ok
}

func (c *Cache) Get(pid id.PatientID) (models.PatientIdentity, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.byID[pid]
	return p, ok
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byID)
}

// LoadSeed reads a JSON array of PatientRecord and puts each one.
func (c *Cache) LoadSeed(r io.Reader, now time.Time) (int, error) {
	var records []PatientRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return 0, fmt.Errorf("decode patient seed: %w", err)
	}
	n := 0
	for _, rec := range records {
		p := rec.ToIdentity(now)
		if p.ID.IsNil() {
			continue
		}
		c.Put(p)
		n++
	}
	return n, nil
}

func (c *Cache) LoadSeedFile(path string, now time.Time) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open patient seed: %w", err)
	}
	defer f.Close()
	return c.LoadSeed(f, now)
}

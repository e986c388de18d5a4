// Package colors picks Google Calendar color ids for published slots.
package colors

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/harrisonrobin/taskquest/pkg/model"
)

// Fixed colors for the known categories. Google's event palette runs 1..11.
var categoryColors = map[model.Category]string{
	model.CategoryProgramming: "9",  // blueberry
	model.CategoryFinance:     "10", // basil
	model.CategoryMusic:       "3",  // grape
	model.CategoryGeneral:     "8",  // graphite
}

// DefaultColorID is used for an empty key.
const DefaultColorID = "14"

type KeyState struct {
	ColorID      string    `json:"color_id"`
	LastModified time.Time `json:"last_modified"`
}

// ColorCache hands out colors not reserved by a category to other keys
// (tags, imported projects) and recycles the least recently used one when full.
type ColorCache struct {
	Path  string
	Keys  map[string]*KeyState `json:"keys"`
	dirty bool
	now   func() time.Time
}

const cacheFile = "colors.json"

func NewColorCache(dir string) (*ColorCache, error) {
	cache := &ColorCache{
		Path: filepath.Join(dir, cacheFile),
		Keys: make(map[string]*KeyState),
		now:  time.Now,
	}

	if _, err := os.Stat(cache.Path); err == nil {
		if err := cache.Load(); err != nil {
			return nil, err
		}
	}
	return cache, nil
}

func (c *ColorCache) Load() error {
	f, err := os.Open(c.Path)
	if err != nil {
		return err
	}
	defer f.Close()
	return json.NewDecoder(f).Decode(&c.Keys)
}

func (c *ColorCache) Save() error {
	if !c.dirty {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(c.Path), 0700); err != nil {
		return err
	}

	f, err := os.Create(c.Path)
	if err != nil {
		return err
	}
	defer f.Close()
	err = json.NewEncoder(f).Encode(c.Keys)
	if err == nil {
		c.dirty = false
	}
	return err
}

// CategoryColorID returns the reserved color of a known category, or falls
// back to the LRU pool for anything else.
func (c *ColorCache) CategoryColorID(category model.Category) string {
	if id, ok := categoryColors[category]; ok {
		return id
	}
	return c.GetColorID(string(category))
}

// GetColorID returns the color for key, assigning one from the free pool.
func (c *ColorCache) GetColorID(key string) string {
	if key == "" {
		return DefaultColorID
	}

	if state, exists := c.Keys[key]; exists {
		state.LastModified = c.now()
		c.dirty = true
		return state.ColorID
	}
	return c.assignColor(key)
}

func (c *ColorCache) assignColor(key string) string {
	used := make(map[string]bool)
	for _, s := range c.Keys {
		used[s.ColorID] = true
	}
	for _, id := range categoryColors {
		used[id] = true
	}

	for i := 1; i <= 11; i++ {
		id := strconv.Itoa(i)
		if !used[id] {
			c.Keys[key] = &KeyState{ColorID: id, LastModified: c.now()}
			c.dirty = true
			return id
		}
	}

	// pool exhausted: recycle the least recently used key's color
	var oldestKey string
	var oldestTime time.Time
	first := true
	for k, s := range c.Keys {
		if first || s.LastModified.Before(oldestTime) {
			oldestTime = s.LastModified
			oldestKey = k
			first = false
		}
	}
	if oldestKey == "" {
		return DefaultColorID
	}

	recycled := c.Keys[oldestKey].ColorID
	delete(c.Keys, oldestKey)
	c.Keys[key] = &KeyState{ColorID: recycled, LastModified: c.now()}
	c.dirty = true
	return recycled
}

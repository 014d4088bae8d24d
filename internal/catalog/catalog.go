// Package catalog holds the property's static reference data: rooms, guest
// rooms, offers and events. It is loaded once at start and never mutated.
package catalog

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"boraha-concierge/internal/domain"
)

//go:embed catalog.yaml
var defaultCatalog []byte

type document struct {
	Property   domain.Property `yaml:"property"`
	Rooms      []domain.Room   `yaml:"rooms"`
	GuestRooms []domain.Room   `yaml:"guestRooms"`
	Offers     []domain.Offer  `yaml:"offers"`
	Events     []domain.Event  `yaml:"events"`
}

// Catalog is an immutable view over the reference data.
type Catalog struct {
	doc document

	rooms  map[string]domain.Room
	guest  map[string]domain.Room
	offers map[string]domain.Offer
	events map[string]domain.Event
}

// Default returns the catalog embedded in the binary.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Load reads a catalog from path. An empty path selects the embedded catalog.
func Load(path string) (*Catalog, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Default()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %q: %w", path, err)
	}
	return Parse(raw)
}

// Parse decodes and validates a YAML catalog document.
func Parse(raw []byte) (*Catalog, error) {
	var doc document
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("catalog: decode: %w", err)
	}
	if strings.TrimSpace(doc.Property.Name) == "" {
		return nil, errors.New("catalog: property name must not be empty")
	}

	c := &Catalog{
		doc:    doc,
		rooms:  make(map[string]domain.Room, len(doc.Rooms)),
		guest:  make(map[string]domain.Room, len(doc.GuestRooms)),
		offers: make(map[string]domain.Offer, len(doc.Offers)),
		events: make(map[string]domain.Event, len(doc.Events)),
	}
	// Bungalows and guest rooms share one id namespace.
	seen := make(map[string]struct{}, len(doc.Rooms)+len(doc.GuestRooms))
	for _, list := range []struct {
		rooms []domain.Room
		into  map[string]domain.Room
	}{{doc.Rooms, c.rooms}, {doc.GuestRooms, c.guest}} {
		for _, r := range list.rooms {
			if err := checkID("room", r.ID, seen); err != nil {
				return nil, err
			}
			if r.Price <= 0 {
				return nil, fmt.Errorf("catalog: room %q: price must be positive", r.ID)
			}
			seen[r.ID] = struct{}{}
			list.into[r.ID] = r
		}
	}
	for _, o := range doc.Offers {
		if err := checkID("offer", o.ID, c.offers); err != nil {
			return nil, err
		}
		c.offers[o.ID] = o
	}
	for _, e := range doc.Events {
		if err := checkID("event", e.ID, c.events); err != nil {
			return nil, err
		}
		c.events[e.ID] = e
	}
	return c, nil
}

func checkID[T any](kind, id string, seen map[string]T) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("catalog: %s id must not be empty", kind)
	}
	if _, dup := seen[id]; dup {
		return fmt.Errorf("catalog: duplicate %s id %q", kind, id)
	}
	return nil
}

func (c *Catalog) Property() domain.Property { return c.doc.Property }

// Rooms returns the luxury bungalows.
func (c *Catalog) Rooms() []domain.Room { return append([]domain.Room(nil), c.doc.Rooms...) }

// GuestRooms returns the comfort rooms of the main house.
func (c *Catalog) GuestRooms() []domain.Room {
	return append([]domain.Room(nil), c.doc.GuestRooms...)
}

func (c *Catalog) Offers() []domain.Offer { return append([]domain.Offer(nil), c.doc.Offers...) }

func (c *Catalog) Events() []domain.Event { return append([]domain.Event(nil), c.doc.Events...) }

// Room looks up a bungalow by id.
func (c *Catalog) Room(id string) (domain.Room, bool) {
	r, ok := c.rooms[id]
	return r, ok
}

// GuestRoom looks up a guest room by id.
func (c *Catalog) GuestRoom(id string) (domain.Room, bool) {
	r, ok := c.guest[id]
	return r, ok
}

func (c *Catalog) Offer(id string) (domain.Offer, bool) {
	o, ok := c.offers[id]
	return o, ok
}

func (c *Catalog) Event(id string) (domain.Event, bool) {
	e, ok := c.events[id]
	return e, ok
}

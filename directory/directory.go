// Package directory implements the provider directory: a static catalog of
// care providers with their service locations and weekly availability
// windows, loaded once at startup and read-only thereafter. It answers
// exact and approximate name lookups, specialty lookups and day-filtered
// availability projections.
package directory

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

var (
	// ErrLoadFailed indicates the catalog source was unreadable or malformed.
	ErrLoadFailed = errors.New("directory: catalog load failed")
	// ErrNotLoaded indicates a query was issued before Load. This is a
	// programming error, not a recoverable condition.
	ErrNotLoaded = errors.New("directory: catalog not loaded")
)

// ServiceLocation is one place a provider sees patients, with the weekdays
// the provider is available there and a human-readable hours range.
type ServiceLocation struct {
	Name    string   `json:"name"`
	Phone   string   `json:"phone,omitempty"`
	Address string   `json:"address,omitempty"`
	Days    []string `json:"days"`
	Hours   string   `json:"hours"`
}

// Provider is one directory entry. Immutable after load.
type Provider struct {
	Name          string            `json:"name"`
	Certification string            `json:"certification"`
	Specialty     string            `json:"specialty"`
	Locations     []ServiceLocation `json:"locations"`
}

// Availability is one projected availability window. Provider is empty for
// single-provider projections, Days is empty for day-filtered projections.
type Availability struct {
	Provider string   `json:"provider,omitempty"`
	Location string   `json:"location"`
	Days     []string `json:"days_available,omitempty"`
	Hours    string   `json:"hours_available"`
}

// Directory holds the loaded catalog. The provider slice is never mutated
// after Load, so the read path needs no locking.
type Directory struct {
	providers []Provider
	loaded    bool
}

// New returns an empty, unloaded directory.
func New() *Directory { return &Directory{} }

// Load parses a JSON catalog from r. It must be called exactly once before
// any query.
func (d *Directory) Load(r io.Reader) error {
	var providers []Provider
	dec := json.NewDecoder(r)
	if err := dec.Decode(&providers); err != nil {
		return fmt.Errorf("%w: %v", ErrLoadFailed, err)
	}
	if len(providers) == 0 {
		return fmt.Errorf("%w: catalog is empty", ErrLoadFailed)
	}
	for i, p := range providers {
		if strings.TrimSpace(p.Name) == "" {
			return fmt.Errorf("%w: provider %d has no name", ErrLoadFailed, i)
		}
	}
	d.providers = providers
	d.loaded = true
	return nil
}

// LoadFile loads a JSON catalog from disk.
func (d *Directory) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLoadFailed, err)
	}
	defer f.Close()
	return d.Load(f)
}

// Providers returns the catalog in load order.
func (d *Directory) Providers() ([]Provider, error) {
	if !d.loaded {
		return nil, ErrNotLoaded
	}
	return d.providers, nil
}

// FindBySpecialty returns all providers whose specialty matches label,
// case-insensitively. No fuzziness.
func (d *Directory) FindBySpecialty(label string) ([]Provider, error) {
	if !d.loaded {
		return nil, ErrNotLoaded
	}
	target := strings.ToLower(strings.TrimSpace(label))
	var matches []Provider
	for _, p := range d.providers {
		if strings.ToLower(p.Specialty) == target {
			matches = append(matches, p)
		}
	}
	return matches, nil
}

// FindByName resolves a provider by name. It first attempts a
// case-insensitive exact match; on a miss it performs a single fuzzy pass
// over the entire catalog and returns the highest-scoring provider whose
// similarity is at least matchThreshold. Ties are broken by catalog order.
// The second return value is false when no provider matches.
func (d *Directory) FindByName(name string) (Provider, bool, error) {
	if !d.loaded {
		return Provider{}, false, ErrNotLoaded
	}
	target := strings.ToLower(strings.TrimSpace(name))
	for _, p := range d.providers {
		if strings.ToLower(strings.TrimSpace(p.Name)) == target {
			return p, true, nil
		}
	}
	if p, ok := d.closestMatch(name); ok {
		return p, true, nil
	}
	return Provider{}, false, nil
}

// ProviderAvailability returns one availability record per service location
// of the named provider (resolved via FindByName), or an empty list when the
// provider is not found.
func (d *Directory) ProviderAvailability(name string) ([]Availability, error) {
	p, ok, err := d.FindByName(name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []Availability{}, nil
	}
	avail := make([]Availability, 0, len(p.Locations))
	for _, loc := range p.Locations {
		avail = append(avail, Availability{Location: loc.Name, Days: loc.Days, Hours: loc.Hours})
	}
	return avail, nil
}

// SpecialtyAvailability returns one availability record per provider ×
// location pair for the given specialty.
func (d *Directory) SpecialtyAvailability(label string) ([]Availability, error) {
	providers, err := d.FindBySpecialty(label)
	if err != nil {
		return nil, err
	}
	avail := []Availability{}
	for _, p := range providers {
		for _, loc := range p.Locations {
			avail = append(avail, Availability{Provider: p.Name, Location: loc.Name, Days: loc.Days, Hours: loc.Hours})
		}
	}
	return avail, nil
}

// ProviderAvailabilityOnDay filters ProviderAvailability to locations whose
// day set contains day (exact weekday label, e.g. "Tuesday").
func (d *Directory) ProviderAvailabilityOnDay(name, day string) ([]Availability, error) {
	p, ok, err := d.FindByName(name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []Availability{}, nil
	}
	avail := []Availability{}
	for _, loc := range p.Locations {
		if containsDay(loc.Days, day) {
			avail = append(avail, Availability{Location: loc.Name, Hours: loc.Hours})
		}
	}
	return avail, nil
}

// SpecialtyAvailabilityOnDay filters SpecialtyAvailability to locations whose
// day set contains day.
func (d *Directory) SpecialtyAvailabilityOnDay(label, day string) ([]Availability, error) {
	providers, err := d.FindBySpecialty(label)
	if err != nil {
		return nil, err
	}
	avail := []Availability{}
	for _, p := range providers {
		for _, loc := range p.Locations {
			if containsDay(loc.Days, day) {
				avail = append(avail, Availability{Provider: p.Name, Location: loc.Name, Hours: loc.Hours})
			}
		}
	}
	return avail, nil
}

func containsDay(days []string, day string) bool {
	for _, d := range days {
		if d == day {
			return true
		}
	}
	return false
}

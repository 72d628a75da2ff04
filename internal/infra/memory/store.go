// Package memory is the default in-process LedgerStore. Every read and
// write deep-copies, so callers never share state with the store.
package memory

import (
	"context"
	"sync"

	"github.com/boddenberg/plantao-presenca-go/internal/domain"
)

type orgData struct {
	geofences     map[string]domain.Geofence
	records       map[domain.RecordKey]*domain.AttendanceRecord
	order         []domain.RecordKey
	cancellations []domain.CancellationEvent
}

// Store keeps each organization's ledger in memory.
type Store struct {
	mu   sync.RWMutex
	orgs map[string]*orgData
}

// NewStore creates a store that knows the given organizations.
func NewStore(orgIDs ...string) *Store {
	s := &Store{orgs: make(map[string]*orgData)}
	for _, id := range orgIDs {
		s.AddOrganization(id)
	}
	return s
}

// AddOrganization registers an organization; existing data is kept.
func (s *Store) AddOrganization(orgID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orgs[orgID]; ok {
		return
	}
	s.orgs[orgID] = &orgData{
		geofences: make(map[string]domain.Geofence),
		records:   make(map[domain.RecordKey]*domain.AttendanceRecord),
	}
}

func (s *Store) org(orgID string) (*orgData, error) {
	o, ok := s.orgs[orgID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "organization", ID: orgID}
	}
	return o, nil
}

// LoadSnapshot implements port.LedgerStore.
func (s *Store) LoadSnapshot(_ context.Context, orgID string) (*domain.LedgerSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, err := s.org(orgID)
	if err != nil {
		return nil, err
	}
	snap := &domain.LedgerSnapshot{
		OrganizationID: orgID,
		Geofences:      make(map[string]domain.Geofence, len(o.geofences)),
		Records:        make([]domain.AttendanceRecord, 0, len(o.order)),
		Cancellations:  append([]domain.CancellationEvent(nil), o.cancellations...),
	}
	for k, g := range o.geofences {
		snap.Geofences[k] = g
	}
	for _, k := range o.order {
		snap.Records = append(snap.Records, *o.records[k].Clone())
	}
	return snap, nil
}

// SaveGeofence implements port.LedgerStore.
func (s *Store) SaveGeofence(_ context.Context, orgID string, g *domain.Geofence) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, err := s.org(orgID)
	if err != nil {
		return err
	}
	o.geofences[g.SectorID] = *g
	return nil
}

// SaveRecord implements port.LedgerStore.
func (s *Store) SaveRecord(_ context.Context, orgID string, r *domain.AttendanceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, err := s.org(orgID)
	if err != nil {
		return err
	}
	key := r.Key()
	if _, ok := o.records[key]; !ok {
		o.order = append(o.order, key)
	}
	o.records[key] = r.Clone()
	return nil
}

// SaveCancellation implements port.LedgerStore.
func (s *Store) SaveCancellation(_ context.Context, orgID string, e *domain.CancellationEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, err := s.org(orgID)
	if err != nil {
		return err
	}
	o.cancellations = append(o.cancellations, *e)
	return nil
}

// Ping implements port.LedgerStore.
func (s *Store) Ping(context.Context) error { return nil }

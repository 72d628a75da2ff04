package service

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/boddenberg/plantao-presenca-go/internal/domain"
)

// orgLedger is the in-memory state of one organization. Mutations of a
// record key happen under locks.Lock(key); the maps themselves are guarded
// by mu for short reads and writes.
type orgLedger struct {
	id        string
	geofences *GeofenceRegistry
	locks     *keyedMutex
	version   atomic.Uint64

	mu            sync.RWMutex
	records       map[domain.RecordKey]*domain.AttendanceRecord
	cancellations []domain.CancellationEvent
}

func newOrgLedger(snap *domain.LedgerSnapshot) *orgLedger {
	o := &orgLedger{
		id:        snap.OrganizationID,
		geofences: NewGeofenceRegistry(snap.Geofences),
		locks:     newKeyedMutex(),
		records:   make(map[domain.RecordKey]*domain.AttendanceRecord, len(snap.Records)),
	}
	for i := range snap.Records {
		r := snap.Records[i].Clone()
		o.records[r.Key()] = r
	}
	o.cancellations = append(o.cancellations, snap.Cancellations...)
	return o
}

func (o *orgLedger) get(key domain.RecordKey) *domain.AttendanceRecord {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.records[key].Clone()
}

func (o *orgLedger) put(r *domain.AttendanceRecord) {
	o.mu.Lock()
	o.records[r.Key()] = r.Clone()
	o.mu.Unlock()
	o.version.Add(1)
}

func (o *orgLedger) appendCancellation(e domain.CancellationEvent) {
	o.mu.Lock()
	o.cancellations = append(o.cancellations, e)
	o.mu.Unlock()
	o.version.Add(1)
}

func (o *orgLedger) findCancellation(key domain.RecordKey) (domain.CancellationEvent, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	for _, e := range o.cancellations {
		if e.ShiftID == key.ShiftID && e.ProfessionalUserID == key.ProfessionalUserID {
			return e, true
		}
	}
	return domain.CancellationEvent{}, false
}

// recordList copies every record, oldest scheduled start first.
func (o *orgLedger) recordList() []domain.AttendanceRecord {
	o.mu.RLock()
	out := make([]domain.AttendanceRecord, 0, len(o.records))
	for _, r := range o.records {
		out = append(out, *r.Clone())
	}
	o.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].ScheduledStartAt.Equal(out[j].ScheduledStartAt) {
			return out[i].ScheduledStartAt.Before(out[j].ScheduledStartAt)
		}
		return out[i].Key().String() < out[j].Key().String()
	})
	return out
}

func (o *orgLedger) cancellationList() []domain.CancellationEvent {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return append([]domain.CancellationEvent(nil), o.cancellations...)
}

// snapshot is an eventually consistent copy of the whole ledger.
func (o *orgLedger) snapshot() *domain.LedgerSnapshot {
	fences := make(map[string]domain.Geofence)
	for _, g := range o.geofences.List() {
		fences[g.SectorID] = g
	}
	return &domain.LedgerSnapshot{
		OrganizationID: o.id,
		Geofences:      fences,
		Records:        o.recordList(),
		Cancellations:  o.cancellationList(),
	}
}

package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dalemusser/promohub/internal/app/resource"
	"github.com/dalemusser/promohub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/jonboulle/clockwork"
)

// Resources is an in-memory resource.Client. Due queries are evaluated
// against the injected clock. Operations can be told to fail.
type Resources struct {
	mu    sync.Mutex
	clock clockwork.Clock

	nextID   int
	promos   map[string]models.Promo
	members  map[string]models.Member
	idents   map[string]models.Identification
	identSeq []string
	programs []models.Program
	sites    []models.Site

	calls  map[string]int
	failOp map[string]error
	before map[string]func()
}

// NewResources returns an empty store reading time from clock.
func NewResources(clock clockwork.Clock) *Resources {
	return &Resources{
		clock:   clock,
		promos:  make(map[string]models.Promo),
		members: make(map[string]models.Member),
		idents:  make(map[string]models.Identification),
		calls:   make(map[string]int),
		failOp:  make(map[string]error),
		before:  make(map[string]func()),
	}
}

// Before runs fn once, just before the next call to op reads the store.
// fn may call other Resources methods.
func (r *Resources) Before(op string, fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.before[op] = fn
}

func (r *Resources) runBefore(op string) {
	r.mu.Lock()
	fn := r.before[op]
	delete(r.before, op)
	r.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// SetPromoStatus overwrites the stored status of a promo.
func (r *Resources) SetPromoStatus(id string, status models.PromoStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.promos[id]; ok {
		p.Status = status
		r.promos[id] = p
	}
}

// SetIdentificationStatus overwrites the stored status of an identification.
func (r *Resources) SetIdentificationStatus(id string, status models.IdentificationStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ident, ok := r.idents[id]; ok {
		ident.Status = status
		r.idents[id] = ident
	}
}

// FailOn makes every call to op return err. A nil err clears it.
func (r *Resources) FailOn(op string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil {
		delete(r.failOp, op)
		return
	}
	r.failOp[op] = err
}

// Calls returns how many times op was invoked.
func (r *Resources) Calls(op string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[op]
}

func (r *Resources) called(op string) error {
	r.calls[op]++
	return r.failOp[op]
}

func (r *Resources) newID(prefix string) string {
	r.nextID++
	return fmt.Sprintf("%s-%d", prefix, r.nextID)
}

// SeedPromo stores p as is, assigning an id and a pending status when
// missing.
func (r *Resources) SeedPromo(p models.Promo) models.Promo {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID == "" {
		p.ID = r.newID("promo")
	}
	if p.Status == "" {
		p.Status = models.PromoPending
	}
	p.NameCI = text.Fold(p.Name)
	p.Identifications = nil
	r.promos[p.ID] = p
	return p
}

// SeedIdentification stores an identification with the given status.
func (r *Resources) SeedIdentification(memberID, promoID string, status models.IdentificationStatus) models.Identification {
	r.mu.Lock()
	defer r.mu.Unlock()
	ident := models.Identification{
		ID:        r.newID("ident"),
		MemberID:  memberID,
		PromoID:   promoID,
		Status:    status,
		CreatedAt: r.clock.Now(),
		UpdatedAt: r.clock.Now(),
	}
	r.idents[ident.ID] = ident
	r.identSeq = append(r.identSeq, ident.ID)
	return ident
}

// SeedProgram adds a program to the catalog.
func (r *Resources) SeedProgram(name string, active bool) models.Program {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := models.Program{ID: r.newID("prog"), Name: name, NameCI: text.Fold(name), Active: active}
	r.programs = append(r.programs, p)
	return p
}

// SeedSite adds a site to the catalog.
func (r *Resources) SeedSite(name string, active bool) models.Site {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := models.Site{ID: r.newID("site"), Name: name, NameCI: text.Fold(name), Active: active}
	r.sites = append(r.sites, s)
	return s
}

// Promo returns the stored promo with its identifications.
func (r *Resources) Promo(id string) (models.Promo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.promos[id]
	if !ok {
		return models.Promo{}, false
	}
	return r.attachLocked(p), true
}

// Member returns the stored member.
func (r *Resources) Member(id string) (models.Member, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[id]
	return m, ok
}

// Identification returns the stored identification.
func (r *Resources) Identification(id string) (models.Identification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ident, ok := r.idents[id]
	return ident, ok
}

func (r *Resources) attachLocked(p models.Promo) models.Promo {
	p.Identifications = nil
	for _, id := range r.identSeq {
		if ident := r.idents[id]; ident.PromoID == p.ID {
			p.Identifications = append(p.Identifications, ident)
		}
	}
	return p
}

func (r *Resources) filterLocked(keep func(models.Promo) bool) []models.Promo {
	var out []models.Promo
	for _, p := range r.promos {
		if keep(p) {
			out = append(out, r.attachLocked(p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartDate.Equal(out[j].StartDate) {
			return out[i].StartDate.Before(out[j].StartDate)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ListPromosDueToStart implements resource.Client.
func (r *Resources) ListPromosDueToStart(context.Context) ([]models.Promo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.called("ListPromosDueToStart"); err != nil {
		return nil, err
	}
	now := r.clock.Now()
	return r.filterLocked(func(p models.Promo) bool {
		return p.Status == models.PromoPending && !p.StartDate.After(now)
	}), nil
}

// ListPromosDueToArchive implements resource.Client.
func (r *Resources) ListPromosDueToArchive(context.Context) ([]models.Promo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.called("ListPromosDueToArchive"); err != nil {
		return nil, err
	}
	now := r.clock.Now()
	return r.filterLocked(func(p models.Promo) bool {
		return p.Status == models.PromoActive && p.EndDate.Before(now)
	}), nil
}

// ListPromos implements resource.Client.
func (r *Resources) ListPromos(context.Context) ([]models.Promo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.called("ListPromos"); err != nil {
		return nil, err
	}
	return r.filterLocked(func(models.Promo) bool { return true }), nil
}

// ListPromosByStatus implements resource.Client.
func (r *Resources) ListPromosByStatus(_ context.Context, status models.PromoStatus) ([]models.Promo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.called("ListPromosByStatus"); err != nil {
		return nil, err
	}
	return r.filterLocked(func(p models.Promo) bool { return p.Status == status }), nil
}

// GetPromo implements resource.Client.
func (r *Resources) GetPromo(_ context.Context, id string) (models.Promo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.called("GetPromo"); err != nil {
		return models.Promo{}, err
	}
	p, ok := r.promos[id]
	if !ok {
		return models.Promo{}, resource.ErrNotFound
	}
	return r.attachLocked(p), nil
}

// CreatePromo implements resource.Client.
func (r *Resources) CreatePromo(_ context.Context, in models.Promo) (models.Promo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.called("CreatePromo"); err != nil {
		return models.Promo{}, err
	}
	key := text.Fold(in.Name)
	for _, p := range r.promos {
		if p.NameCI == key {
			return models.Promo{}, resource.ErrAlreadyExists
		}
	}
	now := r.clock.Now()
	p := models.Promo{
		ID:        r.newID("promo"),
		Name:      in.Name,
		NameCI:    key,
		StartDate: in.StartDate,
		EndDate:   in.EndDate,
		ProgramID: in.ProgramID,
		SiteID:    in.SiteID,
		Status:    models.PromoPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.promos[p.ID] = p
	return p, nil
}

// UpdatePromo implements resource.Client.
func (r *Resources) UpdatePromo(_ context.Context, id string, upd models.PromoUpdate) (models.Promo, error) {
	r.runBefore("UpdatePromo")
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.called("UpdatePromo"); err != nil {
		return models.Promo{}, err
	}
	p, ok := r.promos[id]
	if !ok {
		return models.Promo{}, resource.ErrNotFound
	}
	if upd.ExpectStatus != nil && p.Status != *upd.ExpectStatus {
		return models.Promo{}, fmt.Errorf("update promo %s: %w", id, resource.ErrConflict)
	}
	if upd.Name != nil {
		p.Name = *upd.Name
		p.NameCI = text.Fold(p.Name)
	}
	if upd.StartDate != nil {
		p.StartDate = *upd.StartDate
	}
	if upd.EndDate != nil {
		p.EndDate = *upd.EndDate
	}
	if upd.Status != nil {
		p.Status = *upd.Status
	}
	if upd.RoleID != nil {
		p.RoleID = *upd.RoleID
	}
	p.UpdatedAt = r.clock.Now()
	r.promos[id] = p
	return r.attachLocked(p), nil
}

// CreateMember implements resource.Client.
func (r *Resources) CreateMember(_ context.Context, m models.Member) (models.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.called("CreateMember"); err != nil {
		return models.Member{}, err
	}
	if _, ok := r.members[m.ID]; ok {
		return models.Member{}, resource.ErrAlreadyExists
	}
	now := r.clock.Now()
	m.CreatedAt, m.UpdatedAt = now, now
	r.members[m.ID] = m
	return m, nil
}

// GetMember implements resource.Client.
func (r *Resources) GetMember(_ context.Context, id string) (models.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.called("GetMember"); err != nil {
		return models.Member{}, err
	}
	m, ok := r.members[id]
	if !ok {
		return models.Member{}, resource.ErrNotFound
	}
	return m, nil
}

// UpdateMember implements resource.Client.
func (r *Resources) UpdateMember(_ context.Context, id, firstName, lastName string) (models.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.called("UpdateMember"); err != nil {
		return models.Member{}, err
	}
	m, ok := r.members[id]
	if !ok {
		return models.Member{}, resource.ErrNotFound
	}
	m.FirstName, m.LastName = firstName, lastName
	m.UpdatedAt = r.clock.Now()
	r.members[id] = m
	return m, nil
}

// CreateIdentification implements resource.Client.
func (r *Resources) CreateIdentification(_ context.Context, memberID, promoID string) (models.Identification, error) {
	r.mu.Lock()
	if err := r.called("CreateIdentification"); err != nil {
		r.mu.Unlock()
		return models.Identification{}, err
	}
	r.mu.Unlock()
	return r.SeedIdentification(memberID, promoID, models.IdentificationPending), nil
}

// UpdateIdentificationStatus implements resource.Client.
func (r *Resources) UpdateIdentificationStatus(_ context.Context, id string, status models.IdentificationStatus) (models.Identification, error) {
	r.runBefore("UpdateIdentificationStatus")
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.called("UpdateIdentificationStatus"); err != nil {
		return models.Identification{}, err
	}
	ident, ok := r.idents[id]
	if !ok {
		return models.Identification{}, resource.ErrNotFound
	}
	if ident.Status != models.IdentificationPending {
		return models.Identification{}, fmt.Errorf("update identification %s: %w", id, resource.ErrConflict)
	}
	ident.Status = status
	ident.UpdatedAt = r.clock.Now()
	r.idents[id] = ident
	return ident, nil
}

// GetIdentification implements resource.Client.
func (r *Resources) GetIdentification(_ context.Context, id string) (models.Identification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.called("GetIdentification"); err != nil {
		return models.Identification{}, err
	}
	ident, ok := r.idents[id]
	if !ok {
		return models.Identification{}, resource.ErrNotFound
	}
	return ident, nil
}

// ListActivePrograms implements resource.Client.
func (r *Resources) ListActivePrograms(context.Context) ([]models.Program, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.called("ListActivePrograms"); err != nil {
		return nil, err
	}
	var out []models.Program
	for _, p := range r.programs {
		if p.Active {
			out = append(out, p)
		}
	}
	return out, nil
}

// ListActiveSites implements resource.Client.
func (r *Resources) ListActiveSites(context.Context) ([]models.Site, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.called("ListActiveSites"); err != nil {
		return nil, err
	}
	var out []models.Site
	for _, s := range r.sites {
		if s.Active {
			out = append(out, s)
		}
	}
	return out, nil
}

// Ping implements resource.Client.
func (r *Resources) Ping(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.called("Ping")
}

var _ resource.Client = (*Resources)(nil)

package testutil

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oriadata/orgmaster/internal/data/repos"
	"github.com/oriadata/orgmaster/internal/domain"
	"github.com/oriadata/orgmaster/internal/pkg/dbctx"
)

// MemStore is an in-memory stand-in for the mastered tables, mirroring the
// temporal store semantics: append-only rows, at most one open row per
// semantic key, close stamps valid_end from the store clock. The clock only
// moves when a test calls Advance, so merge and split instants are exact.
type MemStore struct {
	mu     sync.Mutex
	clock  time.Time
	nextID int64

	Orgs          []*domain.ExternalOrg
	Aliases       []*domain.OrgAlias
	Relationships []*domain.OrgRelationship
	Correlations  []*domain.OrgCorrelation
	Locations     []*domain.OrgLocation
	MergeEvents   []*domain.MergeEvent

	Sources   []*domain.Source
	Schemes   []*domain.IDScheme
	RelTypes  []*domain.RelationshipType
	Postcodes []*domain.Postcode

	Batches []*domain.IngestBatch
	Records []*domain.IngestRecord
}

func NewMemStore() *MemStore {
	return &MemStore{clock: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (s *MemStore) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clock
}

// Advance moves the clock forward and returns the new instant.
func (s *MemStore) Advance(d time.Duration) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock = s.clock.Add(d)
	return s.clock
}

func (s *MemStore) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *MemStore) closeValidity(v *domain.Validity, sourceID int64, comment string) {
	end := s.clock
	v.ValidEnd = &end
	v.SourceID = sourceID
	if comment != "" {
		c := comment
		v.SourceComment = &c
	}
}

// Seed helpers. Each appends a registry row and returns it.

func (s *MemStore) AddSource(name string) *domain.Source {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := &domain.Source{ID: s.id(), Name: name}
	s.Sources = append(s.Sources, row)
	return row
}

func (s *MemStore) AddScheme(name string) *domain.IDScheme {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := &domain.IDScheme{ID: s.id(), Name: name}
	s.Schemes = append(s.Schemes, row)
	return row
}

func (s *MemStore) AddRelType(name string, reflexive bool) *domain.RelationshipType {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := &domain.RelationshipType{
		ID:           s.id(),
		Name:         name,
		ForwardLabel: name + " of",
		InverseLabel: name + " for",
		Reflexive:    reflexive,
	}
	s.RelTypes = append(s.RelTypes, row)
	return row
}

func (s *MemStore) AddPostcode(code string) *domain.Postcode {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := &domain.Postcode{ID: s.id(), Code: code, Country: "US"}
	s.Postcodes = append(s.Postcodes, row)
	return row
}

// Repo accessors.

func (s *MemStore) OrgRepo() repos.OrgRepo                   { return memOrgRepo{s} }
func (s *MemStore) AliasRepo() repos.AliasRepo               { return memAliasRepo{s} }
func (s *MemStore) RelationshipRepo() repos.RelationshipRepo { return memRelationshipRepo{s} }
func (s *MemStore) CorrelationRepo() repos.CorrelationRepo   { return memCorrelationRepo{s} }
func (s *MemStore) LocationRepo() repos.LocationRepo         { return memLocationRepo{s} }
func (s *MemStore) MergeEventRepo() repos.MergeEventRepo     { return memMergeEventRepo{s} }
func (s *MemStore) SourceRepo() repos.SourceRepo             { return memSourceRepo{s} }
func (s *MemStore) SchemeRepo() repos.SchemeRepo             { return memSchemeRepo{s} }
func (s *MemStore) RelTypeRepo() repos.RelationshipTypeRepo  { return memRelTypeRepo{s} }
func (s *MemStore) PostcodeRepo() repos.PostcodeRepo         { return memPostcodeRepo{s} }
func (s *MemStore) IngestRepo() repos.IngestRepo             { return memIngestRepo{s} }

var (
	_ repos.OrgRepo              = memOrgRepo{}
	_ repos.AliasRepo            = memAliasRepo{}
	_ repos.RelationshipRepo     = memRelationshipRepo{}
	_ repos.CorrelationRepo      = memCorrelationRepo{}
	_ repos.LocationRepo         = memLocationRepo{}
	_ repos.MergeEventRepo       = memMergeEventRepo{}
	_ repos.SourceRepo           = memSourceRepo{}
	_ repos.SchemeRepo           = memSchemeRepo{}
	_ repos.RelationshipTypeRepo = memRelTypeRepo{}
	_ repos.PostcodeRepo         = memPostcodeRepo{}
	_ repos.IngestRepo           = memIngestRepo{}
)

type memOrgRepo struct{ s *MemStore }

func (r memOrgRepo) Now() time.Time { return r.s.Now() }

func (r memOrgRepo) CreateLineage(_ dbctx.Context, row *domain.ExternalOrg) (*domain.ExternalOrg, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	row.ID = r.s.id()
	row.OrgID = row.ID
	r.s.Orgs = append(r.s.Orgs, row)
	return row, nil
}

func (r memOrgRepo) open(orgID int64) *domain.ExternalOrg {
	for _, row := range r.s.Orgs {
		if row.OrgID == orgID && row.Open() {
			return row
		}
	}
	return nil
}

func (r memOrgRepo) OpenByOrgID(_ dbctx.Context, orgID int64) (*domain.ExternalOrg, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.open(orgID), nil
}

func (r memOrgRepo) LockOpenByOrgID(dbc dbctx.Context, orgID int64) (*domain.ExternalOrg, error) {
	return r.OpenByOrgID(dbc, orgID)
}

func (r memOrgRepo) AsOfByOrgID(_ dbctx.Context, orgID int64, at time.Time) (*domain.ExternalOrg, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, row := range r.s.Orgs {
		if row.OrgID == orgID && row.OpenAt(at) {
			return row, nil
		}
	}
	return nil, nil
}

func (r memOrgRepo) History(_ dbctx.Context, orgID int64) ([]*domain.ExternalOrg, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.ExternalOrg
	for _, row := range r.s.Orgs {
		if row.OrgID == orgID {
			out = append(out, row)
		}
	}
	sortByStart(out, func(o *domain.ExternalOrg) (time.Time, int64) { return o.ValidStart, o.ID })
	return out, nil
}

func (r memOrgRepo) Supersede(_ dbctx.Context, orgID int64, sourceID int64, comment string, row *domain.ExternalOrg) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if cur := r.open(orgID); cur != nil {
		r.s.closeValidity(&cur.Validity, sourceID, comment)
	}
	row.ID = r.s.id()
	row.OrgID = orgID
	r.s.Orgs = append(r.s.Orgs, row)
	return nil
}

func (r memOrgRepo) Close(_ dbctx.Context, orgID int64, sourceID int64, comment string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if cur := r.open(orgID); cur != nil {
		r.s.closeValidity(&cur.Validity, sourceID, comment)
		return 1, nil
	}
	return 0, nil
}

type memAliasRepo struct{ s *MemStore }

func (r memAliasRepo) Now() time.Time { return r.s.Now() }

func (r memAliasRepo) AssertIdempotent(_ dbctx.Context, row *domain.OrgAlias) (bool, *domain.OrgAlias, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, cur := range r.s.Aliases {
		if cur.OrgID == row.OrgID && cur.Alias == row.Alias && cur.Lang == row.Lang && cur.Open() {
			return false, cur, nil
		}
	}
	row.ID = r.s.id()
	r.s.Aliases = append(r.s.Aliases, row)
	return true, row, nil
}

func (r memAliasRepo) Close(_ dbctx.Context, orgID int64, alias, lang string, sourceID int64, comment string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	wildcard := alias == "" || alias == "*"
	var n int64
	for _, cur := range r.s.Aliases {
		if cur.OrgID != orgID || !cur.Open() {
			continue
		}
		if !wildcard && (cur.Alias != alias || cur.Lang != lang) {
			continue
		}
		r.s.closeValidity(&cur.Validity, sourceID, comment)
		n++
	}
	return n, nil
}

func (r memAliasRepo) ListOpenByOrg(_ dbctx.Context, orgID int64) ([]*domain.OrgAlias, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.OrgAlias
	for _, cur := range r.s.Aliases {
		if cur.OrgID == orgID && cur.Open() {
			out = append(out, cur)
		}
	}
	return out, nil
}

func (r memAliasRepo) ListAsOfByOrg(_ dbctx.Context, orgID int64, at time.Time) ([]*domain.OrgAlias, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.OrgAlias
	for _, cur := range r.s.Aliases {
		if cur.OrgID == orgID && cur.OpenAt(at) {
			out = append(out, cur)
		}
	}
	return out, nil
}

func (r memAliasRepo) History(_ dbctx.Context, orgID int64, alias, lang string) ([]*domain.OrgAlias, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	wildcard := alias == "" || alias == "*"
	var out []*domain.OrgAlias
	for _, cur := range r.s.Aliases {
		if cur.OrgID != orgID {
			continue
		}
		if !wildcard && (cur.Alias != alias || cur.Lang != lang) {
			continue
		}
		out = append(out, cur)
	}
	sortByStart(out, func(a *domain.OrgAlias) (time.Time, int64) { return a.ValidStart, a.ID })
	return out, nil
}

func (r memAliasRepo) ListOpenStartedAt(_ dbctx.Context, orgID int64, at time.Time) ([]*domain.OrgAlias, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.OrgAlias
	for _, cur := range r.s.Aliases {
		if cur.OrgID == orgID && cur.Open() && cur.ValidStart.Equal(at) {
			out = append(out, cur)
		}
	}
	return out, nil
}

func (r memAliasRepo) ListOpenStartedAfter(_ dbctx.Context, orgID int64, at time.Time) ([]*domain.OrgAlias, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.OrgAlias
	for _, cur := range r.s.Aliases {
		if cur.OrgID == orgID && cur.Open() && cur.ValidStart.After(at) {
			out = append(out, cur)
		}
	}
	return out, nil
}

func (r memAliasRepo) GetRowByID(_ dbctx.Context, id int64) (*domain.OrgAlias, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, cur := range r.s.Aliases {
		if cur.ID == id {
			return cur, nil
		}
	}
	return nil, nil
}

func (r memAliasRepo) CloseRowByID(_ dbctx.Context, id int64, sourceID int64, comment string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, cur := range r.s.Aliases {
		if cur.ID == id && cur.Open() {
			r.s.closeValidity(&cur.Validity, sourceID, comment)
		}
	}
	return nil
}

func (r memAliasRepo) Create(_ dbctx.Context, rows []*domain.OrgAlias) ([]*domain.OrgAlias, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, row := range rows {
		row.ID = r.s.id()
		r.s.Aliases = append(r.s.Aliases, row)
	}
	return rows, nil
}

type memRelationshipRepo struct{ s *MemStore }

func (r memRelationshipRepo) Now() time.Time { return r.s.Now() }

func (r memRelationshipRepo) AssertIdempotent(_ dbctx.Context, row *domain.OrgRelationship) (bool, *domain.OrgRelationship, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, cur := range r.s.Relationships {
		if cur.Ext1 == row.Ext1 && cur.Ext2 == row.Ext2 && cur.RelTypeID == row.RelTypeID && cur.Open() {
			return false, cur, nil
		}
	}
	row.ID = r.s.id()
	r.s.Relationships = append(r.s.Relationships, row)
	return true, row, nil
}

func (r memRelationshipRepo) Close(_ dbctx.Context, ext1, ext2, relTypeID int64, sourceID int64, comment string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, cur := range r.s.Relationships {
		if cur.Ext1 == ext1 && cur.Ext2 == ext2 && cur.RelTypeID == relTypeID && cur.Open() {
			r.s.closeValidity(&cur.Validity, sourceID, comment)
			n++
		}
	}
	return n, nil
}

func (r memRelationshipRepo) CloseAllTouching(_ dbctx.Context, orgID int64, sourceID int64, comment string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, cur := range r.s.Relationships {
		if (cur.Ext1 == orgID || cur.Ext2 == orgID) && cur.Open() {
			r.s.closeValidity(&cur.Validity, sourceID, comment)
			n++
		}
	}
	return n, nil
}

func (r memRelationshipRepo) EdgesOf(_ dbctx.Context, orgID int64, relTypeID int64, dir domain.Direction, at time.Time) ([]*domain.OrgRelationship, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.OrgRelationship
	for _, cur := range r.s.Relationships {
		if at.IsZero() {
			if !cur.Open() {
				continue
			}
		} else if !cur.OpenAt(at) {
			continue
		}
		if relTypeID != 0 && cur.RelTypeID != relTypeID {
			continue
		}
		forward := cur.Ext1 == orgID
		inverse := cur.Ext2 == orgID
		switch dir {
		case domain.DirectionForward:
			if !forward {
				continue
			}
		case domain.DirectionInverse:
			if !inverse {
				continue
			}
		default:
			if !forward && !inverse {
				continue
			}
		}
		out = append(out, cur)
	}
	return out, nil
}

func (r memRelationshipRepo) OpenTouching(_ dbctx.Context, orgID int64) ([]*domain.OrgRelationship, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.OrgRelationship
	for _, cur := range r.s.Relationships {
		if (cur.Ext1 == orgID || cur.Ext2 == orgID) && cur.Open() {
			out = append(out, cur)
		}
	}
	return out, nil
}

func (r memRelationshipRepo) History(_ dbctx.Context, ext1, ext2, relTypeID int64) ([]*domain.OrgRelationship, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.OrgRelationship
	for _, cur := range r.s.Relationships {
		if cur.Ext1 == ext1 && cur.Ext2 == ext2 && cur.RelTypeID == relTypeID {
			out = append(out, cur)
		}
	}
	sortByStart(out, func(e *domain.OrgRelationship) (time.Time, int64) { return e.ValidStart, e.ID })
	return out, nil
}

func (r memRelationshipRepo) ListOpenTouchingStartedAt(_ dbctx.Context, orgID int64, at time.Time) ([]*domain.OrgRelationship, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.OrgRelationship
	for _, cur := range r.s.Relationships {
		if (cur.Ext1 == orgID || cur.Ext2 == orgID) && cur.Open() && cur.ValidStart.Equal(at) {
			out = append(out, cur)
		}
	}
	return out, nil
}

func (r memRelationshipRepo) ListOpenTouchingStartedAfter(_ dbctx.Context, orgID int64, at time.Time) ([]*domain.OrgRelationship, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.OrgRelationship
	for _, cur := range r.s.Relationships {
		if (cur.Ext1 == orgID || cur.Ext2 == orgID) && cur.Open() && cur.ValidStart.After(at) {
			out = append(out, cur)
		}
	}
	return out, nil
}

func (r memRelationshipRepo) GetRowByID(_ dbctx.Context, id int64) (*domain.OrgRelationship, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, cur := range r.s.Relationships {
		if cur.ID == id {
			return cur, nil
		}
	}
	return nil, nil
}

func (r memRelationshipRepo) CloseRowByID(_ dbctx.Context, id int64, sourceID int64, comment string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, cur := range r.s.Relationships {
		if cur.ID == id && cur.Open() {
			r.s.closeValidity(&cur.Validity, sourceID, comment)
		}
	}
	return nil
}

func (r memRelationshipRepo) Create(_ dbctx.Context, rows []*domain.OrgRelationship) ([]*domain.OrgRelationship, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, row := range rows {
		row.ID = r.s.id()
		r.s.Relationships = append(r.s.Relationships, row)
	}
	return rows, nil
}

type memCorrelationRepo struct{ s *MemStore }

func (r memCorrelationRepo) Now() time.Time { return r.s.Now() }

func (r memCorrelationRepo) LockOpenByTriple(_ dbctx.Context, masterID int64, otherID string, schemeID int64) (*domain.OrgCorrelation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, cur := range r.s.Correlations {
		if cur.MasterID == masterID && cur.OtherID == otherID && cur.SchemeID == schemeID && cur.Open() {
			return cur, nil
		}
	}
	return nil, nil
}

func (r memCorrelationRepo) Create(_ dbctx.Context, rows []*domain.OrgCorrelation) ([]*domain.OrgCorrelation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, row := range rows {
		row.ID = r.s.id()
		r.s.Correlations = append(r.s.Correlations, row)
	}
	return rows, nil
}

func (r memCorrelationRepo) Close(_ dbctx.Context, masterID int64, otherID string, schemeID int64, sourceID int64, comment string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	wildcard := otherID == "" || otherID == "*"
	var n int64
	for _, cur := range r.s.Correlations {
		if cur.MasterID != masterID || !cur.Open() {
			continue
		}
		if !wildcard && (cur.OtherID != otherID || cur.SchemeID != schemeID) {
			continue
		}
		r.s.closeValidity(&cur.Validity, sourceID, comment)
		n++
	}
	return n, nil
}

func (r memCorrelationRepo) ResolveOpen(_ dbctx.Context, schemeID int64, otherID string) (*domain.OrgCorrelation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, cur := range r.s.Correlations {
		if cur.SchemeID == schemeID && cur.OtherID == otherID && cur.Open() {
			return cur, nil
		}
	}
	return nil, nil
}

func (r memCorrelationRepo) ResolveAsOf(_ dbctx.Context, schemeID int64, otherID string, at time.Time) (*domain.OrgCorrelation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, cur := range r.s.Correlations {
		if cur.SchemeID == schemeID && cur.OtherID == otherID && cur.OpenAt(at) {
			return cur, nil
		}
	}
	return nil, nil
}

func (r memCorrelationRepo) ListOpenByMaster(_ dbctx.Context, masterID int64) ([]*domain.OrgCorrelation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.OrgCorrelation
	for _, cur := range r.s.Correlations {
		if cur.MasterID == masterID && cur.Open() {
			out = append(out, cur)
		}
	}
	return out, nil
}

func (r memCorrelationRepo) ListAsOfByMaster(_ dbctx.Context, masterID int64, at time.Time) ([]*domain.OrgCorrelation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.OrgCorrelation
	for _, cur := range r.s.Correlations {
		if cur.MasterID == masterID && cur.OpenAt(at) {
			out = append(out, cur)
		}
	}
	return out, nil
}

func (r memCorrelationRepo) History(_ dbctx.Context, masterID int64, otherID string, schemeID int64) ([]*domain.OrgCorrelation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.OrgCorrelation
	for _, cur := range r.s.Correlations {
		if cur.MasterID == masterID && cur.OtherID == otherID && cur.SchemeID == schemeID {
			out = append(out, cur)
		}
	}
	sortByStart(out, func(c *domain.OrgCorrelation) (time.Time, int64) { return c.ValidStart, c.ID })
	return out, nil
}

func (r memCorrelationRepo) ListOpenStartedAt(_ dbctx.Context, masterID int64, at time.Time) ([]*domain.OrgCorrelation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.OrgCorrelation
	for _, cur := range r.s.Correlations {
		if cur.MasterID == masterID && cur.Open() && cur.ValidStart.Equal(at) {
			out = append(out, cur)
		}
	}
	return out, nil
}

func (r memCorrelationRepo) ListOpenStartedAfter(_ dbctx.Context, masterID int64, at time.Time) ([]*domain.OrgCorrelation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.OrgCorrelation
	for _, cur := range r.s.Correlations {
		if cur.MasterID == masterID && cur.Open() && cur.ValidStart.After(at) {
			out = append(out, cur)
		}
	}
	return out, nil
}

func (r memCorrelationRepo) GetRowByID(_ dbctx.Context, id int64) (*domain.OrgCorrelation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, cur := range r.s.Correlations {
		if cur.ID == id {
			return cur, nil
		}
	}
	return nil, nil
}

func (r memCorrelationRepo) CloseRowByID(_ dbctx.Context, id int64, sourceID int64, comment string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, cur := range r.s.Correlations {
		if cur.ID == id && cur.Open() {
			r.s.closeValidity(&cur.Validity, sourceID, comment)
		}
	}
	return nil
}

type memLocationRepo struct{ s *MemStore }

func (r memLocationRepo) Now() time.Time { return r.s.Now() }

func (r memLocationRepo) AssertIdempotent(_ dbctx.Context, row *domain.OrgLocation) (bool, *domain.OrgLocation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, cur := range r.s.Locations {
		if cur.OrgID == row.OrgID && cur.PostcodeID == row.PostcodeID && cur.Open() {
			return false, cur, nil
		}
	}
	row.ID = r.s.id()
	r.s.Locations = append(r.s.Locations, row)
	return true, row, nil
}

func (r memLocationRepo) Close(_ dbctx.Context, orgID, postcodeID int64, sourceID int64, comment string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, cur := range r.s.Locations {
		if cur.OrgID != orgID || !cur.Open() {
			continue
		}
		if postcodeID != 0 && cur.PostcodeID != postcodeID {
			continue
		}
		r.s.closeValidity(&cur.Validity, sourceID, comment)
		n++
	}
	return n, nil
}

func (r memLocationRepo) ListOpenByOrg(_ dbctx.Context, orgID int64) ([]*domain.OrgLocation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.OrgLocation
	for _, cur := range r.s.Locations {
		if cur.OrgID == orgID && cur.Open() {
			out = append(out, cur)
		}
	}
	return out, nil
}

func (r memLocationRepo) ListAsOfByOrg(_ dbctx.Context, orgID int64, at time.Time) ([]*domain.OrgLocation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.OrgLocation
	for _, cur := range r.s.Locations {
		if cur.OrgID == orgID && cur.OpenAt(at) {
			out = append(out, cur)
		}
	}
	return out, nil
}

func (r memLocationRepo) ListOpenStartedAt(_ dbctx.Context, orgID int64, at time.Time) ([]*domain.OrgLocation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.OrgLocation
	for _, cur := range r.s.Locations {
		if cur.OrgID == orgID && cur.Open() && cur.ValidStart.Equal(at) {
			out = append(out, cur)
		}
	}
	return out, nil
}

func (r memLocationRepo) ListOpenStartedAfter(_ dbctx.Context, orgID int64, at time.Time) ([]*domain.OrgLocation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.OrgLocation
	for _, cur := range r.s.Locations {
		if cur.OrgID == orgID && cur.Open() && cur.ValidStart.After(at) {
			out = append(out, cur)
		}
	}
	return out, nil
}

func (r memLocationRepo) GetRowByID(_ dbctx.Context, id int64) (*domain.OrgLocation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, cur := range r.s.Locations {
		if cur.ID == id {
			return cur, nil
		}
	}
	return nil, nil
}

func (r memLocationRepo) CloseRowByID(_ dbctx.Context, id int64, sourceID int64, comment string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, cur := range r.s.Locations {
		if cur.ID == id && cur.Open() {
			r.s.closeValidity(&cur.Validity, sourceID, comment)
		}
	}
	return nil
}

func (r memLocationRepo) Create(_ dbctx.Context, rows []*domain.OrgLocation) ([]*domain.OrgLocation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, row := range rows {
		row.ID = r.s.id()
		r.s.Locations = append(r.s.Locations, row)
	}
	return rows, nil
}

type memMergeEventRepo struct{ s *MemStore }

func (r memMergeEventRepo) Create(_ dbctx.Context, rows []*domain.MergeEvent) ([]*domain.MergeEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, row := range rows {
		row.ID = r.s.id()
		r.s.MergeEvents = append(r.s.MergeEvents, row)
	}
	return rows, nil
}

func (r memMergeEventRepo) LatestByWinner(_ dbctx.Context, winnerID int64) (*domain.MergeEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var latest *domain.MergeEvent
	for _, cur := range r.s.MergeEvents {
		if cur.WinnerID != winnerID {
			continue
		}
		if latest == nil || cur.MergedAt.After(latest.MergedAt) || (cur.MergedAt.Equal(latest.MergedAt) && cur.ID > latest.ID) {
			latest = cur
		}
	}
	return latest, nil
}

func (r memMergeEventRepo) ListByOrg(_ dbctx.Context, orgID int64) ([]*domain.MergeEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.MergeEvent
	for _, cur := range r.s.MergeEvents {
		if cur.WinnerID == orgID || cur.LoserID == orgID {
			out = append(out, cur)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MergedAt.Before(out[j].MergedAt) })
	return out, nil
}

type memSourceRepo struct{ s *MemStore }

func (r memSourceRepo) Create(_ dbctx.Context, rows []*domain.Source) ([]*domain.Source, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, row := range rows {
		row.ID = r.s.id()
		r.s.Sources = append(r.s.Sources, row)
	}
	return rows, nil
}

func (r memSourceRepo) GetByID(_ dbctx.Context, id int64) (*domain.Source, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, cur := range r.s.Sources {
		if cur.ID == id {
			return cur, nil
		}
	}
	return nil, nil
}

func (r memSourceRepo) GetByName(_ dbctx.Context, name string) (*domain.Source, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, cur := range r.s.Sources {
		if cur.Name == name {
			return cur, nil
		}
	}
	return nil, nil
}

func (r memSourceRepo) List(_ dbctx.Context) ([]*domain.Source, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return append([]*domain.Source{}, r.s.Sources...), nil
}

type memSchemeRepo struct{ s *MemStore }

func (r memSchemeRepo) Create(_ dbctx.Context, rows []*domain.IDScheme) ([]*domain.IDScheme, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, row := range rows {
		row.ID = r.s.id()
		r.s.Schemes = append(r.s.Schemes, row)
	}
	return rows, nil
}

func (r memSchemeRepo) GetByID(_ dbctx.Context, id int64) (*domain.IDScheme, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, cur := range r.s.Schemes {
		if cur.ID == id {
			return cur, nil
		}
	}
	return nil, nil
}

func (r memSchemeRepo) GetByName(_ dbctx.Context, name string) (*domain.IDScheme, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, cur := range r.s.Schemes {
		if cur.Name == name {
			return cur, nil
		}
	}
	return nil, nil
}

func (r memSchemeRepo) List(_ dbctx.Context) ([]*domain.IDScheme, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return append([]*domain.IDScheme{}, r.s.Schemes...), nil
}

type memRelTypeRepo struct{ s *MemStore }

func (r memRelTypeRepo) Create(_ dbctx.Context, rows []*domain.RelationshipType) ([]*domain.RelationshipType, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, row := range rows {
		row.ID = r.s.id()
		r.s.RelTypes = append(r.s.RelTypes, row)
	}
	return rows, nil
}

func (r memRelTypeRepo) GetByID(_ dbctx.Context, id int64) (*domain.RelationshipType, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, cur := range r.s.RelTypes {
		if cur.ID == id {
			return cur, nil
		}
	}
	return nil, nil
}

func (r memRelTypeRepo) GetByName(_ dbctx.Context, name string) (*domain.RelationshipType, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, cur := range r.s.RelTypes {
		if cur.Name == name {
			return cur, nil
		}
	}
	return nil, nil
}

func (r memRelTypeRepo) List(_ dbctx.Context) ([]*domain.RelationshipType, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return append([]*domain.RelationshipType{}, r.s.RelTypes...), nil
}

type memPostcodeRepo struct{ s *MemStore }

func (r memPostcodeRepo) Create(_ dbctx.Context, rows []*domain.Postcode) ([]*domain.Postcode, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, row := range rows {
		row.ID = r.s.id()
		r.s.Postcodes = append(r.s.Postcodes, row)
	}
	return rows, nil
}

func (r memPostcodeRepo) GetByID(_ dbctx.Context, id int64) (*domain.Postcode, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, cur := range r.s.Postcodes {
		if cur.ID == id {
			return cur, nil
		}
	}
	return nil, nil
}

func (r memPostcodeRepo) GetByCode(_ dbctx.Context, code, country string) (*domain.Postcode, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, cur := range r.s.Postcodes {
		if cur.Code == code && cur.Country == country {
			return cur, nil
		}
	}
	return nil, nil
}

type memIngestRepo struct{ s *MemStore }

func (r memIngestRepo) CreateBatch(_ dbctx.Context, row *domain.IngestBatch) (*domain.IngestBatch, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	row.ID = uuid.New()
	r.s.Batches = append(r.s.Batches, row)
	return row, nil
}

func (r memIngestRepo) UpdateBatchCounts(_ dbctx.Context, id uuid.UUID, records, failed int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, cur := range r.s.Batches {
		if cur.ID == id {
			cur.Records = records
			cur.Failed = failed
		}
	}
	return nil
}

func (r memIngestRepo) CreateRecords(_ dbctx.Context, rows []*domain.IngestRecord) ([]*domain.IngestRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, row := range rows {
		row.ID = uuid.New()
		row.CreatedAt = r.s.clock
		r.s.Records = append(r.s.Records, row)
	}
	return rows, nil
}

func (r memIngestRepo) UpdateRecord(_ dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, cur := range r.s.Records {
		if cur.ID != id {
			continue
		}
		if v, ok := updates["status"].(string); ok {
			cur.Status = v
		}
		if v, ok := updates["error"].(string); ok {
			cur.Error = v
		}
		if v, ok := updates["org_id"].(int64); ok {
			cur.OrgID = &v
		}
	}
	return nil
}

func (r memIngestRepo) ListRecordsByBatch(_ dbctx.Context, batchID uuid.UUID) ([]*domain.IngestRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.IngestRecord
	for _, cur := range r.s.Records {
		if cur.BatchID == batchID {
			out = append(out, cur)
		}
	}
	return out, nil
}

func sortByStart[T any](rows []*T, key func(*T) (time.Time, int64)) {
	sort.Slice(rows, func(i, j int) bool {
		ti, ii := key(rows[i])
		tj, ij := key(rows[j])
		if ti.Equal(tj) {
			return ii < ij
		}
		return ti.Before(tj)
	})
}

package memory

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/agentgov/core/internal/graphstore"
	"github.com/agentgov/core/internal/logging"
)

// Service is the in-process Memory Service: a mutex-guarded in-memory
// mapping rebuilt by replay on startup, mutated via serialized writes,
// with the graphstore file as the truth of record under crash (spec.md
// section 9's re-architecture note).
type Service struct {
	log   *logging.Logger
	store *graphstore.Store

	mu        sync.Mutex
	entities  map[string]*Entity
	relations map[string]Relation
}

// Open opens the graph file at path and replays it into memory.
func Open(path string, compactThreshold int) (*Service, error) {
	store, err := graphstore.Open(path, compactThreshold)
	if err != nil {
		return nil, err
	}
	s := &Service{
		log:       logging.New("memory"),
		store:     store,
		entities:  make(map[string]*Entity),
		relations: make(map[string]Relation),
	}
	if err := s.load(); err != nil {
		store.Close()
		return nil, err
	}
	return s, nil
}

func (s *Service) load() error {
	return s.store.Replay(
		func(rec graphstore.EntityRecord) {
			s.entities[rec.Name] = &Entity{Name: rec.Name, EntityType: rec.EntityType, Observations: append([]string(nil), rec.Observations...)}
		},
		func(rec graphstore.RelationRecord) {
			r := Relation{From: rec.From, To: rec.To, RelationType: rec.RelationType}
			s.relations[r.key()] = r
		},
	)
}

// Close releases the underlying graph file.
func (s *Service) Close() error {
	return s.store.Close()
}

func (s *Service) appendEntityLocked(e *Entity) error {
	compact, err := s.store.AppendEntity(graphstore.EntityRecord{
		Name: e.Name, EntityType: e.EntityType, Observations: e.Observations,
	})
	if err != nil {
		return err
	}
	if compact {
		return s.compactLocked()
	}
	return nil
}

func (s *Service) appendRelationLocked(r Relation) error {
	compact, err := s.store.AppendRelation(graphstore.RelationRecord{
		From: r.From, To: r.To, RelationType: r.RelationType,
	})
	if err != nil {
		return err
	}
	if compact {
		return s.compactLocked()
	}
	return nil
}

func (s *Service) compactLocked() error {
	entities := make([]graphstore.EntityRecord, 0, len(s.entities))
	for _, e := range s.entities {
		entities = append(entities, graphstore.EntityRecord{Name: e.Name, EntityType: e.EntityType, Observations: e.Observations})
	}
	relations := make([]graphstore.RelationRecord, 0, len(s.relations))
	for _, r := range s.relations {
		relations = append(relations, graphstore.RelationRecord{From: r.From, To: r.To, RelationType: r.RelationType})
	}
	return s.store.Compact(entities, relations)
}

// CreateEntitiesResult is the return shape of CreateEntities.
type CreateEntitiesResult struct {
	Created int      `json:"created"`
	Errors  []string `json:"errors,omitempty"`
}

// CreateEntities creates each entity, rejecting (or replacing, if
// replaceExisting is set) name-duplicates.
func (s *Service) CreateEntities(entities []Entity, replaceExisting bool) (CreateEntitiesResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := CreateEntitiesResult{}
	for _, e := range entities {
		if _, exists := s.entities[e.Name]; exists && !replaceExisting {
			res.Errors = append(res.Errors, fmt.Sprintf("entity already exists: %s", e.Name))
			continue
		}
		ent := &Entity{Name: e.Name, EntityType: e.EntityType, Observations: append([]string(nil), e.Observations...)}
		if err := s.appendEntityLocked(ent); err != nil {
			return res, err
		}
		s.entities[e.Name] = ent
		res.Created++
	}
	return res, nil
}

// CreateRelationsResult is the return shape of CreateRelations.
type CreateRelationsResult struct {
	Created int      `json:"created"`
	Errors  []string `json:"errors,omitempty"`
}

// CreateRelations creates each relation after checking both endpoints
// resolve and the exact triple is not already present.
func (s *Service) CreateRelations(relations []Relation) (CreateRelationsResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := CreateRelationsResult{}
	for _, r := range relations {
		if _, ok := s.entities[r.From]; !ok {
			res.Errors = append(res.Errors, fmt.Sprintf("unknown entity: %s", r.From))
			continue
		}
		if _, ok := s.entities[r.To]; !ok {
			res.Errors = append(res.Errors, fmt.Sprintf("unknown entity: %s", r.To))
			continue
		}
		if _, exists := s.relations[r.key()]; exists {
			continue
		}
		if err := s.appendRelationLocked(r); err != nil {
			return res, err
		}
		s.relations[r.key()] = r
		res.Created++
	}
	return res, nil
}

// MutationResult is the shared return shape for add/delete observation
// calls: a count of applied mutations plus an optional structured error,
// never a Go-level error crossing the service boundary for business
// rejections (spec.md section 4.2.1).
type MutationResult struct {
	Count int    `json:"count"`
	Error string `json:"error,omitempty"`
}

// AddObservations appends observations to name under the tier rule.
func (s *Service) AddObservations(name string, observations []string, callerRole string, changeApproved bool) (MutationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entities[name]
	if !ok {
		return MutationResult{Error: fmt.Sprintf("not_found: %s", name)}, nil
	}
	tier := e.Tier()
	if !canWrite(tier, callerRole, changeApproved) {
		return MutationResult{Error: tierViolation(tier)}, nil
	}

	updated := &Entity{Name: e.Name, EntityType: e.EntityType, Observations: append(append([]string(nil), e.Observations...), observations...)}
	if err := s.appendEntityLocked(updated); err != nil {
		return MutationResult{}, err
	}
	s.entities[name] = updated
	return MutationResult{Count: len(observations)}, nil
}

// DeleteObservations removes exact-string observations from name under
// the tier rule.
func (s *Service) DeleteObservations(name string, observations []string, callerRole string, changeApproved bool) (MutationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entities[name]
	if !ok {
		return MutationResult{Error: fmt.Sprintf("not_found: %s", name)}, nil
	}
	tier := e.Tier()
	if !canWrite(tier, callerRole, changeApproved) {
		return MutationResult{Error: tierViolation(tier)}, nil
	}

	toRemove := make(map[string]bool, len(observations))
	for _, o := range observations {
		toRemove[o] = true
	}
	kept := make([]string, 0, len(e.Observations))
	removed := 0
	for _, o := range e.Observations {
		if toRemove[o] {
			removed++
			continue
		}
		kept = append(kept, o)
	}
	updated := &Entity{Name: e.Name, EntityType: e.EntityType, Observations: kept}
	if err := s.appendEntityLocked(updated); err != nil {
		return MutationResult{}, err
	}
	s.entities[name] = updated
	return MutationResult{Count: removed}, nil
}

// DeleteEntity removes name (tier-gated) and cascades to incident
// relations, always forcing a compaction.
func (s *Service) DeleteEntity(name string, callerRole string) (MutationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entities[name]
	if !ok {
		return MutationResult{Error: fmt.Sprintf("not_found: %s", name)}, nil
	}
	tier := e.Tier()
	if !canWrite(tier, callerRole, false) {
		return MutationResult{Error: tierViolation(tier)}, nil
	}

	delete(s.entities, name)
	for k, r := range s.relations {
		if r.From == name || r.To == name {
			delete(s.relations, k)
		}
	}
	if err := s.compactLocked(); err != nil {
		return MutationResult{}, err
	}
	return MutationResult{Count: 1}, nil
}

// DeleteRelations removes each exact triple present.
func (s *Service) DeleteRelations(relations []Relation) (MutationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for _, r := range relations {
		if _, ok := s.relations[r.key()]; ok {
			delete(s.relations, r.key())
			removed++
		}
	}
	if removed > 0 {
		if err := s.compactLocked(); err != nil {
			return MutationResult{}, err
		}
	}
	return MutationResult{Count: removed}, nil
}

func (s *Service) relationsFor(name string) []Relation {
	var out []Relation
	for _, r := range s.relations {
		if r.From == name || r.To == name {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].From != out[j].From {
			return out[i].From < out[j].From
		}
		if out[i].To != out[j].To {
			return out[i].To < out[j].To
		}
		return out[i].RelationType < out[j].RelationType
	})
	return out
}

// GetEntity returns an entity with its incident relations. Read access
// is unrestricted (spec.md section 4.2.1).
func (s *Service) GetEntity(name string) (*EntityWithRelations, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entities[name]
	if !ok {
		return nil, false
	}
	return &EntityWithRelations{Entity: *e, Relations: s.relationsFor(name)}, true
}

// GetEntitiesByTier returns every entity whose derived tier matches.
func (s *Service) GetEntitiesByTier(tier string) []Entity {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Entity
	for _, e := range s.entities {
		if e.Tier() == tier {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// SearchNodes performs a case-insensitive substring match over names and
// observations, returning matching entities with their incident relations.
func (s *Service) SearchNodes(query string) []EntityWithRelations {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := strings.ToLower(query)
	var out []EntityWithRelations
	for name, e := range s.entities {
		match := strings.Contains(strings.ToLower(name), q)
		if !match {
			for _, o := range e.Observations {
				if strings.Contains(strings.ToLower(o), q) {
					match = true
					break
				}
			}
		}
		if match {
			out = append(out, EntityWithRelations{Entity: *e, Relations: s.relationsFor(name)})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Entity.Name < out[j].Entity.Name })
	return out
}

// ValidateTierAccess is a pure predicate for external callers (spec.md
// section 4.2's validate_tier_access): does name's current tier permit
// operation (any write-shaped op) by callerRole?
func (s *Service) ValidateTierAccess(name, operation, callerRole string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entities[name]
	if !ok {
		return true // unrestricted: non-existent name can't be tier-violated
	}
	if operation == "read" {
		return true
	}
	return canWrite(e.Tier(), callerRole, false)
}

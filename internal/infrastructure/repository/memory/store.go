package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kirillkom/garimpo-judicial/internal/core/domain"
	"github.com/kirillkom/garimpo-judicial/internal/core/ports"
)

// Store keeps listings, the evaluation ledger, deep analyses and the audit
// trail in process. Ledger transactions stage writes on a copy and swap it in
// on success.
type Store struct {
	mu sync.RWMutex

	nextSeq     int64
	listings    map[domain.ListingRef]domain.Listing
	evaluations map[domain.EvaluationKey]domain.EvaluationRecord
	analyses    map[domain.ListingRef]domain.DeepAnalysis
	audit       []domain.WorkflowEvent
	auditIDs    map[string]struct{}
}

func NewStore() *Store {
	return &Store{
		listings:    make(map[domain.ListingRef]domain.Listing),
		evaluations: make(map[domain.EvaluationKey]domain.EvaluationRecord),
		analyses:    make(map[domain.ListingRef]domain.DeepAnalysis),
		auditIDs:    make(map[string]struct{}),
	}
}

// AddListing ingests a listing and assigns the next sequence number.
func (s *Store) AddListing(l domain.Listing) domain.Listing {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSeq++
	l.Seq = s.nextSeq
	s.listings[domain.ListingRef{Site: l.Site, ListingID: l.ListingID}] = l
	return l
}

// UpsertListing inserts or overwrites a listing, keeping its sequence number
// when it already exists.
func (s *Store) UpsertListing(_ context.Context, l domain.Listing) (int64, error) {
	if strings.TrimSpace(l.Site) == "" || strings.TrimSpace(l.ListingID) == "" {
		return 0, domain.WrapError(domain.ErrInvalidInput, "upsert listing", errors.New("site and listing_id are required"))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ref := domain.ListingRef{Site: l.Site, ListingID: l.ListingID}
	if existing, ok := s.listings[ref]; ok {
		l.Seq = existing.Seq
	} else {
		s.nextSeq++
		l.Seq = s.nextSeq
	}
	s.listings[ref] = l
	return l.Seq, nil
}

func (s *Store) ListPending(ctx context.Context, query domain.PendingQuery) ([]domain.Listing, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	evaluated := make(map[int64]struct{}, len(s.evaluations))
	for key, rec := range s.evaluations {
		if query.Scope == domain.ScopePerUser && key.UserID != query.UserID {
			continue
		}
		evaluated[rec.RawID] = struct{}{}
	}

	out := make([]domain.Listing, 0)
	for _, l := range s.listings {
		if _, ok := evaluated[l.Seq]; ok {
			continue
		}
		if !query.Filter.Matches(l) {
			continue
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq > out[j].Seq })
	if query.Limit > 0 && len(out) > query.Limit {
		out = out[:query.Limit]
	}
	return out, nil
}

func (s *Store) ListPortfolio(ctx context.Context, query domain.PortfolioQuery) ([]domain.PortfolioItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	bySeq := make(map[int64]domain.Listing, len(s.listings))
	for _, l := range s.listings {
		bySeq[l.Seq] = l
	}

	out := make([]domain.PortfolioItem, 0)
	for key, rec := range s.evaluations {
		if query.Scope == domain.ScopePerUser && key.UserID != query.UserID {
			continue
		}
		if !stateIn(rec.State, query.States) {
			continue
		}
		l, ok := bySeq[rec.RawID]
		if !ok {
			continue
		}
		out = append(out, domain.PortfolioItem{
			Listing:    l,
			State:      rec.State,
			Evaluation: key,
			DecidedAt:  rec.DecidedAt,
			UpdatedAt:  rec.UpdatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].Seq > out[j].Seq
	})
	return out, nil
}

func stateIn(state domain.State, states []domain.State) bool {
	for _, s := range states {
		if strings.EqualFold(string(state), string(s)) {
			return true
		}
	}
	return false
}

func (s *Store) FilterVocabulary(ctx context.Context) (domain.FilterVocabulary, error) {
	if err := ctx.Err(); err != nil {
		return domain.FilterVocabulary{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	ufs, cities, assets, sites, auctions := newSet(), newSet(), newSet(), newSet(), newSet()
	for _, l := range s.listings {
		ufs.add(l.UF)
		cities.add(l.City)
		assets.add(l.AssetType)
		sites.add(l.Site)
		auctions.add(l.AuctionType)
	}
	return domain.FilterVocabulary{
		UFs:          ufs.sorted(),
		Cities:       cities.sorted(),
		AssetTypes:   assets.sorted(),
		Sites:        sites.sorted(),
		AuctionTypes: auctions.sorted(),
	}, nil
}

func (s *Store) CorrectCoreData(ctx context.Context, ref domain.ListingRef, correction domain.ListingCorrection) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.listings[ref]
	if !ok {
		return domain.WrapError(domain.ErrListingNotFound, "correct core data", fmt.Errorf("site=%s listing_id=%s", ref.Site, ref.ListingID))
	}
	correction.Apply(&l)
	s.listings[ref] = l
	return nil
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx ports.LedgerTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	staged := make(map[domain.EvaluationKey]domain.EvaluationRecord, len(s.evaluations))
	for k, v := range s.evaluations {
		staged[k] = v
	}
	tx := &ledgerTx{listings: s.listings, evaluations: staged}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	s.evaluations = staged
	return nil
}

func (s *Store) AdvanceState(ctx context.Context, key domain.EvaluationKey, state domain.State, at time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.evaluations[key]
	if !ok {
		return false, nil
	}
	rec.State = state
	rec.UpdatedAt = at
	s.evaluations[key] = rec
	return true, nil
}

func (s *Store) CountByState(ctx context.Context) (map[domain.State]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[domain.State]int)
	for _, rec := range s.evaluations {
		state, err := domain.ParseState(string(rec.State))
		if err != nil {
			continue
		}
		counts[state]++
	}
	return counts, nil
}

func (s *Store) GetAnalysis(ctx context.Context, ref domain.ListingRef) (*domain.DeepAnalysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.analyses[ref]
	if !ok {
		return nil, domain.WrapError(domain.ErrAnalysisNotFound, "get analysis", fmt.Errorf("site=%s listing_id=%s", ref.Site, ref.ListingID))
	}
	return &a, nil
}

func (s *Store) ListAnalyses(ctx context.Context, refs []domain.ListingRef) (map[string]domain.DeepAnalysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]domain.DeepAnalysis, len(refs))
	for _, ref := range refs {
		if a, ok := s.analyses[ref]; ok {
			out[domain.UniqueID(ref.Site, ref.ListingID)] = a
		}
	}
	return out, nil
}

func (s *Store) UpsertAnalysis(ctx context.Context, analysis domain.DeepAnalysis) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	ref := domain.ListingRef{Site: analysis.Site, ListingID: analysis.ListingID}
	if existing, ok := s.analyses[ref]; ok {
		analysis.UserID = existing.UserID
	}
	s.analyses[ref] = analysis
	return nil
}

func (s *Store) AppendEvent(ctx context.Context, event domain.WorkflowEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.auditIDs[event.ID]; ok {
		return nil
	}
	s.auditIDs[event.ID] = struct{}{}
	s.audit = append(s.audit, event)
	return nil
}

func (s *Store) ListEvents(ctx context.Context, ref domain.ListingRef, limit int) ([]domain.WorkflowEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.WorkflowEvent, 0)
	for i := len(s.audit) - 1; i >= 0; i-- {
		e := s.audit[i]
		if e.Site != ref.Site || e.ListingID != ref.ListingID {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

type ledgerTx struct {
	listings    map[domain.ListingRef]domain.Listing
	evaluations map[domain.EvaluationKey]domain.EvaluationRecord
}

func (tx *ledgerTx) ResolveListing(_ context.Context, ref domain.ListingRef) (int64, bool, error) {
	l, ok := tx.listings[ref]
	if !ok {
		return 0, false, nil
	}
	return l.Seq, true, nil
}

func (tx *ledgerTx) ResolveListingByID(_ context.Context, listingID string) (int64, bool, error) {
	var best int64
	for ref, l := range tx.listings {
		if ref.ListingID != listingID {
			continue
		}
		if best == 0 || l.Seq < best {
			best = l.Seq
		}
	}
	return best, best != 0, nil
}

func (tx *ledgerTx) UpsertEvaluation(_ context.Context, rec domain.EvaluationRecord) error {
	if rec.UserID == "" {
		return errors.New("upsert evaluation: empty user id")
	}
	tx.evaluations[rec.EvaluationKey] = rec
	return nil
}

type stringSet map[string]struct{}

func newSet() stringSet { return make(stringSet) }

func (s stringSet) add(v string) {
	if strings.TrimSpace(v) == "" {
		return
	}
	s[v] = struct{}{}
}

func (s stringSet) sorted() []string {
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

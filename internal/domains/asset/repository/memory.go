package repository

import (
	"asset-library-backend/internal/domains/asset/model"
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memoryState is everything the memory store holds. It is copied on every
// unit of work and swapped in only when the work succeeds.
type memoryState struct {
	assets        map[uuid.UUID]*model.Asset
	assetByName   map[string]uuid.UUID
	authors       map[string]model.Author
	keywords      map[string]model.Keyword
	assetKeywords map[uuid.UUID]map[int64]struct{}
	commits       []model.Commit
	versions      []model.AssetVersion
	keywordSeq    int64
	commitSeq     int64
	versionSeq    int64
}

func newMemoryState() *memoryState {
	return &memoryState{
		assets:        make(map[uuid.UUID]*model.Asset),
		assetByName:   make(map[string]uuid.UUID),
		authors:       make(map[string]model.Author),
		keywords:      make(map[string]model.Keyword),
		assetKeywords: make(map[uuid.UUID]map[int64]struct{}),
	}
}

func (s *memoryState) clone() *memoryState {
	c := &memoryState{
		assets:        make(map[uuid.UUID]*model.Asset, len(s.assets)),
		assetByName:   make(map[string]uuid.UUID, len(s.assetByName)),
		authors:       make(map[string]model.Author, len(s.authors)),
		keywords:      make(map[string]model.Keyword, len(s.keywords)),
		assetKeywords: make(map[uuid.UUID]map[int64]struct{}, len(s.assetKeywords)),
		commits:       append([]model.Commit(nil), s.commits...),
		versions:      append([]model.AssetVersion(nil), s.versions...),
		keywordSeq:    s.keywordSeq,
		commitSeq:     s.commitSeq,
		versionSeq:    s.versionSeq,
	}
	for id, a := range s.assets {
		cp := *a
		c.assets[id] = &cp
	}
	for k, v := range s.assetByName {
		c.assetByName[k] = v
	}
	for k, v := range s.authors {
		c.authors[k] = v
	}
	for k, v := range s.keywords {
		c.keywords[k] = v
	}
	for id, set := range s.assetKeywords {
		cp := make(map[int64]struct{}, len(set))
		for k := range set {
			cp[k] = struct{}{}
		}
		c.assetKeywords[id] = cp
	}
	return c
}

var _ Store = (*MemoryStore)(nil)

// MemoryStore is a Store kept in process memory. Units of work are
// serialized by one mutex; reads share it.
type MemoryStore struct {
	mu    sync.RWMutex
	state *memoryState
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: newMemoryState()}
}

// SeedAuthor inserts or replaces an author record.
func (s *MemoryStore) SeedAuthor(a model.Author) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.authors[a.PennKey] = a
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

func (s *MemoryStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	if err := fn(&memoryTx{state: work}); err != nil {
		return err
	}
	if err := work.checkVersionsBound(); err != nil {
		return err
	}
	s.state = work
	return nil
}

// checkVersionsBound mirrors the deferred commit foreign key of the SQL schema.
func (s *memoryState) checkVersionsBound() error {
	known := make(map[uuid.UUID]struct{}, len(s.commits))
	for _, c := range s.commits {
		known[c.ID] = struct{}{}
	}
	for _, v := range s.versions {
		if _, ok := known[v.CommitID]; !ok {
			return model.NewInternal(model.StageMetadata,
				fmt.Errorf("asset version %s references unknown commit %s", v.Filepath, v.CommitID))
		}
	}
	return nil
}

func (s *MemoryStore) GetAssetByName(ctx context.Context, name string) (*model.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.assetByNameCopy(name)
}

func (s *memoryState) assetByNameCopy(name string) (*model.Asset, error) {
	id, ok := s.assetByName[name]
	if !ok {
		return nil, model.NewAssetNotFound(name)
	}
	cp := *s.assets[id]
	cp.Keywords = s.keywordsOf(id)
	return &cp, nil
}

func (s *memoryState) keywordsOf(assetID uuid.UUID) []string {
	set := s.assetKeywords[assetID]
	out := make([]string, 0, len(set))
	for _, kw := range s.keywords {
		if _, ok := set[kw.ID]; ok {
			out = append(out, kw.Keyword)
		}
	}
	sort.Strings(out)
	return out
}

func (s *MemoryStore) GetAuthor(ctx context.Context, pennKey string) (*model.Author, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.state.authors[pennKey]
	if !ok {
		return nil, model.NewAuthorNotFound(pennKey)
	}
	return &a, nil
}

func (s *MemoryStore) ListAuthors(ctx context.Context) ([]model.Author, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Author, 0, len(s.state.authors))
	for _, a := range s.state.authors {
		out = append(out, a)
	}
	sortAuthors(out)
	return out, nil
}

func sortAuthors(authors []model.Author) {
	sort.SliceStable(authors, func(i, j int) bool {
		if authors[i].FirstName != authors[j].FirstName {
			return authors[i].FirstName < authors[j].FirstName
		}
		if authors[i].LastName != authors[j].LastName {
			return authors[i].LastName < authors[j].LastName
		}
		return authors[i].PennKey < authors[j].PennKey
	})
}

func (s *MemoryStore) ListCatalog(ctx context.Context) ([]model.CatalogRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := make([]model.CatalogRow, 0, len(s.state.assets))
	for id := range s.state.assets {
		rows = append(rows, s.state.catalogRow(id))
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Asset.Name < rows[j].Asset.Name })
	return rows, nil
}

func (s *MemoryStore) GetCatalogRow(ctx context.Context, name string) (*model.CatalogRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.state.assetByName[name]
	if !ok {
		return nil, model.NewAssetNotFound(name)
	}
	row := s.state.catalogRow(id)
	return &row, nil
}

// catalogRow builds the row of one asset. The asset must exist.
func (s *memoryState) catalogRow(id uuid.UUID) model.CatalogRow {
	row := model.CatalogRow{Asset: *s.assets[id]}
	row.Asset.Keywords = s.keywordsOf(id)

	var first, latest *model.Commit
	for i := range s.commits {
		c := &s.commits[i]
		if c.AssetID != id {
			continue
		}
		if first == nil || c.Before(first) {
			first = c
		}
		if latest == nil || latest.Before(c) {
			latest = c
		}
	}
	if first != nil {
		row.First = s.record(*first)
		row.Latest = s.record(*latest)
		row.HasMaterials = row.Latest.HasMaterials
	}
	return row
}

// record joins a commit with its author and asset.
func (s *memoryState) record(c model.Commit) *model.CommitRecord {
	rec := &model.CommitRecord{
		Commit:       c,
		Author:       s.authors[c.AuthorPennKey],
		HasMaterials: model.HasMaterials(s.versions, c.ID),
	}
	if a, ok := s.assets[c.AssetID]; ok {
		rec.AssetName = a.Name
	}
	return rec
}

func (s *MemoryStore) ListCommits(ctx context.Context, filter CommitFilter) ([]model.CommitRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.CommitRecord
	for _, c := range s.state.commits {
		if filter.AssetID != nil && c.AssetID != *filter.AssetID {
			continue
		}
		if filter.Author != "" && c.AuthorPennKey != filter.Author {
			continue
		}
		out = append(out, *s.state.record(c))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[j].Before(&out[i].Commit) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *MemoryStore) GetCommit(ctx context.Context, id uuid.UUID) (*model.CommitRecord, []model.AssetVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.state.commits {
		if c.ID != id {
			continue
		}
		var versions []model.AssetVersion
		for _, v := range s.state.versions {
			if v.CommitID == id {
				versions = append(versions, v)
			}
		}
		return s.state.record(c), versions, nil
	}
	return nil, nil, model.NewCommitNotFound(id.String())
}

func (s *MemoryStore) ListVersions(ctx context.Context, assetID uuid.UUID) ([]model.AssetVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.AssetVersion
	for _, v := range s.state.versions {
		if v.AssetID == assetID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (s *MemoryStore) Checkout(ctx context.Context, assetID uuid.UUID, pennKey string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.state.assets[assetID]
	if !ok {
		return false, model.NewAssetNotFound(assetID.String())
	}
	if a.CheckedOutBy != nil {
		return false, nil
	}
	holder := pennKey
	a.CheckedOutBy = &holder
	a.CheckedOutAt = &at
	return true, nil
}

func (s *MemoryStore) Checkin(ctx context.Context, assetID uuid.UUID, pennKey string, force bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.state.assets[assetID]
	if !ok {
		return false, model.NewAssetNotFound(assetID.String())
	}
	if a.CheckedOutBy == nil || (!force && *a.CheckedOutBy != pennKey) {
		return false, nil
	}
	a.CheckedOutBy = nil
	a.CheckedOutAt = nil
	return true, nil
}

// memoryTx writes into the working copy of one unit of work.
type memoryTx struct {
	state *memoryState
}

func (t *memoryTx) InsertAsset(ctx context.Context, asset *model.Asset) error {
	if _, taken := t.state.assetByName[asset.Name]; taken {
		return model.NewAssetAlreadyExists(asset.Name)
	}
	if asset.ID == uuid.Nil {
		asset.ID = uuid.New()
	}
	cp := *asset
	cp.Keywords = nil
	t.state.assets[asset.ID] = &cp
	t.state.assetByName[asset.Name] = asset.ID
	return nil
}

func (t *memoryTx) LockAssetByName(ctx context.Context, name string) (*model.Asset, error) {
	return t.state.assetByNameCopy(name)
}

func (t *memoryTx) ResolveAuthor(ctx context.Context, pennKey string) (*model.Author, error) {
	key := strings.TrimSpace(pennKey)
	if key == "" {
		return nil, model.NewValidationMessage("pennkey is required")
	}
	a, ok := t.state.authors[key]
	if !ok {
		a = model.Author{PennKey: key}
		t.state.authors[key] = a
	}
	return &a, nil
}

func (t *memoryTx) ResolveKeyword(ctx context.Context, raw string) (*model.Keyword, error) {
	kw, err := model.NormalizeKeyword(raw)
	if err != nil {
		return nil, err
	}
	k, ok := t.state.keywords[kw]
	if !ok {
		t.state.keywordSeq++
		k = model.Keyword{ID: t.state.keywordSeq, Keyword: kw}
		t.state.keywords[kw] = k
	}
	return &k, nil
}

func (t *memoryTx) LinkKeyword(ctx context.Context, assetID uuid.UUID, keywordID int64) error {
	if _, ok := t.state.assets[assetID]; !ok {
		return model.NewAssetNotFound(assetID.String())
	}
	set, ok := t.state.assetKeywords[assetID]
	if !ok {
		set = make(map[int64]struct{})
		t.state.assetKeywords[assetID] = set
	}
	set[keywordID] = struct{}{}
	return nil
}

func (t *memoryTx) AppendCommit(ctx context.Context, commit *model.Commit) error {
	if _, ok := t.state.assets[commit.AssetID]; !ok {
		return model.NewAssetNotFound(commit.AssetID.String())
	}
	if _, ok := t.state.authors[commit.AuthorPennKey]; !ok {
		return model.NewAuthorNotFound(commit.AuthorPennKey)
	}
	if commit.ID == uuid.Nil {
		commit.ID = uuid.New()
	}
	t.state.commitSeq++
	commit.Seq = t.state.commitSeq
	t.state.commits = append(t.state.commits, *commit)
	return nil
}

func (t *memoryTx) RecordVersion(ctx context.Context, version *model.AssetVersion) error {
	if _, ok := t.state.assets[version.AssetID]; !ok {
		return model.NewAssetNotFound(version.AssetID.String())
	}
	if version.ID == uuid.Nil {
		version.ID = uuid.New()
	}
	t.state.versionSeq++
	version.Seq = t.state.versionSeq
	t.state.versions = append(t.state.versions, *version)
	return nil
}

func (t *memoryTx) LatestCommit(ctx context.Context, assetID uuid.UUID) (*model.Commit, error) {
	var latest *model.Commit
	for i := range t.state.commits {
		c := &t.state.commits[i]
		if c.AssetID == assetID && (latest == nil || latest.Before(c)) {
			latest = c
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

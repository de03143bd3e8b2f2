// Package engine implements the memory store operations: write with
// duplicate feedback, filtered semantic retrieval, label mutation, stats,
// and trending. It is stateless between calls; durability lives in the
// memory.Store collaborator and vectors come from the embed.Embedder.
package engine

import (
	"context"
	"math/rand/v2"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/memvault/memvault/pkg/embed"
	"github.com/memvault/memvault/pkg/errors"
	"github.com/memvault/memvault/pkg/filter"
	"github.com/memvault/memvault/pkg/log"
	"github.com/memvault/memvault/pkg/memory"
	"github.com/memvault/memvault/pkg/rank"
	"github.com/memvault/memvault/pkg/trend"
)

// Config tunes the engine's timeouts and defaults.
type Config struct {
	// EmbedTimeout bounds calls to the embedding provider
	EmbedTimeout time.Duration

	// StoreTimeout bounds calls to the durable store
	StoreTimeout time.Duration

	// DefaultNumResults is used when a retrieval gives no limit
	DefaultNumResults int

	// TrendWindowDays is the default trending window
	TrendWindowDays int

	// TrendHalfLifeDays is the decay half-life for trending scores
	TrendHalfLifeDays float64
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		EmbedTimeout:      15 * time.Second,
		StoreTimeout:      10 * time.Second,
		DefaultNumResults: 10,
		TrendWindowDays:   trend.DefaultWindowDays,
		TrendHalfLifeDays: trend.DefaultHalfLifeDays,
	}
}

// Engine coordinates the store, the embedder, and the ranking components.
type Engine struct {
	store    memory.Store
	vector   memory.VectorStore // nil when the store has no native ANN
	embedder embed.Embedder
	config   Config

	now func() time.Time
}

// New creates an Engine. Zero config fields fall back to DefaultConfig.
func New(store memory.Store, embedder embed.Embedder, config Config) *Engine {
	defaults := DefaultConfig()
	if config.EmbedTimeout <= 0 {
		config.EmbedTimeout = defaults.EmbedTimeout
	}
	if config.StoreTimeout <= 0 {
		config.StoreTimeout = defaults.StoreTimeout
	}
	if config.DefaultNumResults <= 0 {
		config.DefaultNumResults = defaults.DefaultNumResults
	}
	if config.TrendWindowDays <= 0 {
		config.TrendWindowDays = defaults.TrendWindowDays
	}
	if config.TrendHalfLifeDays <= 0 {
		config.TrendHalfLifeDays = defaults.TrendHalfLifeDays
	}

	e := &Engine{
		store:    store,
		embedder: embedder,
		config:   config,
		now:      time.Now,
	}
	if vs, ok := store.(memory.VectorStore); ok {
		e.vector = vs
	}
	return e
}

// StoreParams are the inputs to Store.
type StoreParams struct {
	Content   string
	Labels    []string
	Source    string
	Namespace string
}

// SimilarFeedback describes the most similar existing record at write time.
// It is advisory and never blocks the write.
type SimilarFeedback struct {
	ID         string
	Similarity float64
	Band       rank.Band
}

// StoreResult is the outcome of a Store call.
type StoreResult struct {
	Record  memory.Record
	Similar *SimilarFeedback
}

// Store embeds the content, reports duplicate feedback against the most
// similar same-namespace record, and persists the new record. If embedding
// fails nothing is persisted.
func (e *Engine) Store(ctx context.Context, params StoreParams) (StoreResult, error) {
	content := strings.TrimSpace(params.Content)
	if content == "" {
		return StoreResult{}, errors.Wrap(errors.New("content cannot be empty"), errors.ErrValidation)
	}

	embedding, err := e.embedContent(ctx, content)
	if err != nil {
		return StoreResult{}, err
	}

	record := memory.Record{
		ID:        uuid.New().String(),
		Namespace: params.Namespace,
		Content:   content,
		Embedding: embedding,
		Labels:    NormalizeLabels(params.Labels),
		Source:    strings.TrimSpace(params.Source),
		CreatedAt: e.now().UTC(),
	}

	similar := e.similarFeedback(ctx, params.Namespace, embedding)

	storeCtx, cancel := context.WithTimeout(ctx, e.config.StoreTimeout)
	defer cancel()
	if err := e.store.Insert(storeCtx, record); err != nil {
		return StoreResult{}, storeErr(err)
	}

	log.DebugContext(ctx, "Stored memory", "id", record.ID, "namespace", record.Namespace, "labels", len(record.Labels))
	return StoreResult{Record: record, Similar: similar}, nil
}

// similarFeedback finds the closest same-namespace record before a write.
// Failures here are logged and swallowed: feedback is advisory.
func (e *Engine) similarFeedback(ctx context.Context, namespace string, embedding []float32) *SimilarFeedback {
	neighbors, err := e.nearest(ctx, namespace, embedding, 1)
	if err != nil {
		log.WarnContext(ctx, "Duplicate feedback unavailable", "error", err)
		return nil
	}
	if len(neighbors) == 0 {
		return nil
	}

	best := neighbors[0]
	band, ok := rank.BandFor(best.Similarity)
	if !ok {
		return nil
	}
	return &SimilarFeedback{ID: best.Record.ID, Similarity: best.Similarity, Band: band}
}

// nearest ranks same-namespace records against an embedding, using the
// store's ANN when available and in-process ranking otherwise.
func (e *Engine) nearest(ctx context.Context, namespace string, embedding []float32, limit int) ([]memory.Neighbor, error) {
	storeCtx, cancel := context.WithTimeout(ctx, e.config.StoreTimeout)
	defer cancel()

	if e.vector != nil {
		neighbors, err := e.vector.Nearest(storeCtx, namespace, embedding, limit)
		if err != nil {
			return nil, storeErr(err)
		}
		return neighbors, nil
	}

	records, err := e.store.Scan(storeCtx, memory.ScanQuery{Namespace: namespace})
	if err != nil {
		return nil, storeErr(err)
	}
	return e.rankRecords(embedding, records, limit)
}

// rankRecords orders records by similarity to the embedding in process.
func (e *Engine) rankRecords(embedding []float32, records []memory.Record, limit int) ([]memory.Neighbor, error) {
	candidates := make([]rank.Candidate, len(records))
	byID := make(map[string]memory.Record, len(records))
	for i, r := range records {
		candidates[i] = rank.Candidate{ID: r.ID, Vector: r.Embedding, CreatedAt: r.CreatedAt}
		byID[r.ID] = r
	}

	ranked, err := rank.Rank(embedding, candidates)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrEmbedding)
	}
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}

	neighbors := make([]memory.Neighbor, len(ranked))
	for i, r := range ranked {
		neighbors[i] = memory.Neighbor{Record: byID[r.ID], Similarity: r.Score}
	}
	return neighbors, nil
}

// RetrieveParams are the inputs to Retrieve. Labels and Sources are filter
// expressions (comma-separated patterns, `!` prefix excludes).
type RetrieveParams struct {
	Query      string
	Labels     string
	Sources    string
	Namespace  string
	NumResults int
}

// Scored pairs a record with its similarity score. Similarity and Band are
// meaningful only when the retrieval had a semantic query.
type Scored struct {
	Record     memory.Record
	Similarity float64
	Band       rank.Band
}

// Retrieve scopes by namespace, applies fuzzy label/source filters, then
// ranks by similarity when a query is given and by recency otherwise.
// Filters always narrow the candidate set before ranking; the result is
// truncated only after ranking. An empty result is not an error.
func (e *Engine) Retrieve(ctx context.Context, params RetrieveParams) ([]Scored, error) {
	labelFilter := filter.Parse(params.Labels)
	sourceFilter := filter.Parse(params.Sources)
	limit := params.NumResults
	if limit <= 0 {
		limit = e.config.DefaultNumResults
	}

	// Unfiltered semantic query on an ANN-capable store: delegate ordering
	// and truncation to the store.
	if params.Query != "" && labelFilter.IsEmpty() && sourceFilter.IsEmpty() && e.vector != nil {
		embedding, err := e.embedContent(ctx, params.Query)
		if err != nil {
			return nil, err
		}
		neighbors, err := e.nearest(ctx, params.Namespace, embedding, limit)
		if err != nil {
			return nil, err
		}
		return scoredFromNeighbors(neighbors), nil
	}

	records, err := e.scanFiltered(ctx, params.Namespace, labelFilter, sourceFilter)
	if err != nil {
		return nil, err
	}

	if params.Query == "" {
		// Scan returns newest first already; just truncate.
		if len(records) > limit {
			records = records[:limit]
		}
		results := make([]Scored, len(records))
		for i, r := range records {
			results[i] = Scored{Record: r}
		}
		return results, nil
	}

	embedding, err := e.embedContent(ctx, params.Query)
	if err != nil {
		return nil, err
	}
	neighbors, err := e.rankRecords(embedding, records, limit)
	if err != nil {
		return nil, err
	}
	return scoredFromNeighbors(neighbors), nil
}

func scoredFromNeighbors(neighbors []memory.Neighbor) []Scored {
	results := make([]Scored, len(neighbors))
	for i, n := range neighbors {
		results[i] = Scored{Record: n.Record, Similarity: n.Similarity}
		if band, ok := rank.BandFor(n.Similarity); ok {
			results[i].Band = band
		}
	}
	return results
}

// scanFiltered fetches namespace-scoped records and applies the exact fuzzy
// filter semantics on top of the store's coarse pre-filter.
func (e *Engine) scanFiltered(ctx context.Context, namespace string, labelFilter, sourceFilter filter.Filter) ([]memory.Record, error) {
	storeCtx, cancel := context.WithTimeout(ctx, e.config.StoreTimeout)
	defer cancel()

	query := memory.ScanQuery{
		Namespace:        namespace,
		LabelSubstrings:  labelFilter.Inclusions,
		SourceSubstrings: sourceFilter.Inclusions,
	}
	records, err := e.store.Scan(storeCtx, query)
	if err != nil {
		return nil, storeErr(err)
	}

	filtered := records[:0]
	for _, r := range records {
		if !labelFilter.MatchesAny(r.Labels) {
			continue
		}
		if !sourceFilter.MatchesOptional(r.Source, r.Source != "") {
			continue
		}
		filtered = append(filtered, r)
	}
	return filtered, nil
}

// Get fetches one record by ID. Lookup is global: IDs are unique across
// namespaces and namespace scoping is a query convenience.
func (e *Engine) Get(ctx context.Context, id string) (memory.Record, error) {
	if strings.TrimSpace(id) == "" {
		return memory.Record{}, errors.Wrap(errors.New("memory ID cannot be empty"), errors.ErrValidation)
	}

	storeCtx, cancel := context.WithTimeout(ctx, e.config.StoreTimeout)
	defer cancel()

	record, err := e.store.Get(storeCtx, id)
	if err != nil {
		return memory.Record{}, storeErr(err)
	}
	return record, nil
}

// Delete removes a record by ID, reporting whether it existed. Deleting an
// absent ID is not an error.
func (e *Engine) Delete(ctx context.Context, id string) (bool, error) {
	if strings.TrimSpace(id) == "" {
		return false, errors.Wrap(errors.New("memory ID cannot be empty"), errors.ErrValidation)
	}

	storeCtx, cancel := context.WithTimeout(ctx, e.config.StoreTimeout)
	defer cancel()

	existed, err := e.store.Delete(storeCtx, id)
	if err != nil {
		return false, storeErr(err)
	}
	if existed {
		log.DebugContext(ctx, "Deleted memory", "id", id)
	}
	return existed, nil
}

// PickParams are the inputs to RandomPick.
type PickParams struct {
	Labels    string
	Sources   string
	Namespace string
}

// RandomPick selects uniformly at random from the filtered set, or returns
// nil when nothing matches.
func (e *Engine) RandomPick(ctx context.Context, params PickParams) (*memory.Record, error) {
	records, err := e.scanFiltered(ctx, params.Namespace, filter.Parse(params.Labels), filter.Parse(params.Sources))
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	record := records[rand.IntN(len(records))]
	return &record, nil
}

// StatsParams are the inputs to Stats.
type StatsParams struct {
	Labels    string
	Sources   string
	Namespace string
}

// Stats summarizes how a filter carves up a namespace, including every
// original-case label and source spelling the fuzzy patterns matched.
type Stats struct {
	Count          int
	NamespaceTotal int
	Percentage     float64
	MatchedLabels  []string
	MatchedSources []string
}

// Stats counts records passing the filters and reports the matched variants.
func (e *Engine) Stats(ctx context.Context, params StatsParams) (Stats, error) {
	labelFilter := filter.Parse(params.Labels)
	sourceFilter := filter.Parse(params.Sources)

	storeCtx, cancel := context.WithTimeout(ctx, e.config.StoreTimeout)
	defer cancel()

	// The namespace total needs the unfiltered set, so the whole namespace
	// is scanned and filters run in process.
	records, err := e.store.Scan(storeCtx, memory.ScanQuery{Namespace: params.Namespace})
	if err != nil {
		return Stats{}, storeErr(err)
	}

	stats := Stats{NamespaceTotal: len(records)}
	labelVariants := make(map[string]struct{})
	sourceVariants := make(map[string]struct{})

	for _, r := range records {
		if !labelFilter.MatchesAny(r.Labels) {
			continue
		}
		if !sourceFilter.MatchesOptional(r.Source, r.Source != "") {
			continue
		}
		stats.Count++
		for _, v := range labelFilter.MatchedBy(r.Labels) {
			labelVariants[v] = struct{}{}
		}
		if r.Source != "" {
			for _, v := range sourceFilter.MatchedBy([]string{r.Source}) {
				sourceVariants[v] = struct{}{}
			}
		}
	}

	if stats.NamespaceTotal > 0 {
		stats.Percentage = float64(stats.Count) / float64(stats.NamespaceTotal) * 100
	}
	stats.MatchedLabels = sortedKeys(labelVariants)
	stats.MatchedSources = sortedKeys(sourceVariants)
	return stats, nil
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// TrendingParams are the inputs to Trending.
type TrendingParams struct {
	Days      int
	Limit     int
	Namespace string
}

// Trending scores label popularity with exponential decay over the window,
// fed by the creation times of records bearing each label.
func (e *Engine) Trending(ctx context.Context, params TrendingParams) ([]trend.Row, error) {
	days := params.Days
	if days <= 0 {
		days = e.config.TrendWindowDays
	}

	storeCtx, cancel := context.WithTimeout(ctx, e.config.StoreTimeout)
	defer cancel()

	since := e.now().UTC().AddDate(0, 0, -days)
	records, err := e.store.Scan(storeCtx, memory.ScanQuery{Namespace: params.Namespace, Since: since})
	if err != nil {
		return nil, storeErr(err)
	}

	var events []trend.Event
	for _, r := range records {
		for _, label := range r.Labels {
			events = append(events, trend.Event{Label: label, At: r.CreatedAt})
		}
	}

	scorer := trend.Scorer{
		WindowDays:   days,
		HalfLifeDays: e.config.TrendHalfLifeDays,
		Now:          e.now,
	}
	return scorer.Trending(events, params.Limit), nil
}

// AddLabels unions new labels into a record's label set, case-insensitively
// and preserving existing spellings. Returns the updated record.
func (e *Engine) AddLabels(ctx context.Context, id string, labels []string) (memory.Record, error) {
	record, err := e.Get(ctx, id)
	if err != nil {
		return memory.Record{}, err
	}

	merged := NormalizeLabels(append(append([]string{}, record.Labels...), labels...))
	if err := e.updateLabels(ctx, id, merged); err != nil {
		return memory.Record{}, err
	}
	record.Labels = merged
	return record, nil
}

// RemoveLabels removes labels from a record's set, matching them
// case-insensitively. Removing an absent label is a no-op.
func (e *Engine) RemoveLabels(ctx context.Context, id string, labels []string) (memory.Record, error) {
	record, err := e.Get(ctx, id)
	if err != nil {
		return memory.Record{}, err
	}

	drop := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		drop[strings.ToLower(l)] = struct{}{}
	}

	kept := make([]string, 0, len(record.Labels))
	for _, l := range record.Labels {
		if _, gone := drop[strings.ToLower(l)]; gone {
			continue
		}
		kept = append(kept, l)
	}

	if err := e.updateLabels(ctx, id, kept); err != nil {
		return memory.Record{}, err
	}
	record.Labels = kept
	return record, nil
}

func (e *Engine) updateLabels(ctx context.Context, id string, labels []string) error {
	storeCtx, cancel := context.WithTimeout(ctx, e.config.StoreTimeout)
	defer cancel()

	if err := e.store.UpdateLabels(storeCtx, id, labels); err != nil {
		return storeErr(err)
	}
	return nil
}

// embedContent calls the embedding provider under its timeout and validates
// the vector width against the deployment dimensionality.
func (e *Engine) embedContent(ctx context.Context, text string) ([]float32, error) {
	embedCtx, cancel := context.WithTimeout(ctx, e.config.EmbedTimeout)
	defer cancel()

	embedding, err := e.embedder.Embed(embedCtx, text)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, errors.Wrap(err, errors.ErrTimeout)
		}
		return nil, errors.Wrap(err, errors.ErrEmbedding)
	}
	if len(embedding) == 0 {
		return nil, errors.Wrap(errors.New("provider returned an empty vector"), errors.ErrEmbedding)
	}
	if dims := e.embedder.Dimensions(); dims > 0 && len(embedding) != dims {
		return nil, errors.Wrapf(errors.ErrEmbedding, "embedding dimension mismatch: got %d, expected %d", len(embedding), dims)
	}
	return embedding, nil
}

// storeErr maps a durable-store failure onto the error taxonomy, leaving
// already-classified errors untouched.
func storeErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, errors.ErrNotFound):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return errors.Wrap(err, errors.ErrTimeout)
	default:
		return errors.Wrap(err, errors.ErrStorage)
	}
}

// NormalizeLabels trims, drops empties, and deduplicates case-insensitively
// while preserving the first-seen spelling and order.
func NormalizeLabels(labels []string) []string {
	normalized := make([]string, 0, len(labels))
	seen := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		key := strings.ToLower(l)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		normalized = append(normalized, l)
	}
	return normalized
}

// SplitLabelList splits a comma-separated label list, trimming whitespace
// and dropping empty entries.
func SplitLabelList(expr string) []string {
	parts := strings.Split(expr, ",")
	labels := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			labels = append(labels, p)
		}
	}
	return labels
}

package ingest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/david/contract-map/internal/category"
	"github.com/david/contract-map/internal/config"
	"github.com/david/contract-map/internal/geo"
	"github.com/david/contract-map/internal/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// ContractSink publishes a full snapshot. ReplaceContracts must delete the
// previous snapshot, write the new one and record meta atomically.
type ContractSink interface {
	ReplaceContracts(ctx context.Context, contracts []models.Contract, meta models.RefreshMetadata) error
}

// PreferenceSource returns the region codes stored across all user preferences.
type PreferenceSource interface {
	PreferredStates(ctx context.Context) ([]string, error)
}

// RunRecorder keeps the refresh history.
type RunRecorder interface {
	StartRun(ctx context.Context, run models.RefreshRun) error
	FinishRun(ctx context.Context, run models.RefreshRun) error
}

type RefreshResult struct {
	RunID            string `json:"runId,omitempty"`
	ContractsUpdated int    `json:"contractsUpdated"`
	ProcessingTimeMs int64  `json:"processingTime"`
}

type PreviewOptions struct {
	Limit int
	State string
}

const (
	DefaultPreviewLimit = 100
	MaxPreviewLimit     = 1000
)

type Pipeline struct {
	Source      OpportunitySource
	Sink        ContractSink
	Preferences PreferenceSource
	Runs        RunRecorder

	Cache           *geo.Cache
	Provider        geo.Provider
	GeocodeInterval time.Duration
	Classifier      *category.Classifier

	WindowDays int
	Limits     LimitPolicy
	Now        func() time.Time
	// Progress, if set, is called after each record is normalized.
	Progress func(done, total int)

	// Filled on first use. Refresh and Preview share one limiter so
	// overlapping runs stay within the provider's rate.
	setup   sync.Once
	limiter *rate.Limiter
	log     *logrus.Entry
}

func NewPipeline(cfg *config.Config, source OpportunitySource, sink ContractSink, prefs PreferenceSource, runs RunRecorder, cache *geo.Cache, provider geo.Provider) *Pipeline {
	return &Pipeline{
		Source:          source,
		Sink:            sink,
		Preferences:     prefs,
		Runs:            runs,
		Cache:           cache,
		Provider:        provider,
		GeocodeInterval: cfg.Geocoder.Interval,
		Classifier:      category.Default(),
		WindowDays:      cfg.Refresh.WindowDays,
		Limits:          LimitPolicyFromConfig(cfg.Refresh),
		Now:             time.Now,
	}
}

// Refresh runs one full ingestion cycle and replaces the published snapshot.
// Nothing is written to the sink unless every upstream query succeeded.
func (p *Pipeline) Refresh(ctx context.Context, trigger string) (result RefreshResult, err error) {
	start := p.now()
	run := models.RefreshRun{
		ID:        uuid.NewString(),
		Trigger:   trigger,
		Status:    "running",
		StartedAt: start.UTC(),
	}
	result.RunID = run.ID
	log := p.logger().WithFields(logrus.Fields{"run_id": run.ID, "trigger": trigger})

	if err := p.validateSource(); err != nil {
		log.WithError(err).Error("refresh aborted")
		return result, err
	}

	if p.Runs != nil {
		if startErr := p.Runs.StartRun(ctx, run); startErr != nil {
			log.WithError(startErr).Warn("failed to record refresh run start")
		}
	}

	var geocoder *geo.Geocoder
	defer func() {
		finished := p.now()
		run.DurationMs = finished.Sub(start).Milliseconds()
		run.CompletedAt = ptrTime(finished.UTC())
		run.Status = "completed"
		if err != nil {
			run.Status = "failed"
			run.Error = err.Error()
		}
		if geocoder != nil {
			stats := geocoder.Stats()
			run.GeocodeCalls = stats.ExternalCalls
			run.GeocodeFallbacks = stats.Fallbacks
		}
		if p.Runs != nil {
			// Record the outcome even when ctx was cancelled mid-run.
			finishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if finishErr := p.Runs.FinishRun(finishCtx, run); finishErr != nil {
				log.WithError(finishErr).Warn("failed to record refresh run outcome")
			}
		}
	}()

	states, err := p.preferredStates(ctx)
	if err != nil {
		log.WithError(err).Error("reading preferences failed")
		return result, err
	}
	run.Regions = len(states)

	window := TrailingWindow(start.In(p.location()), p.windowDays())
	limit := p.Limits.LimitAt(start)

	raws, err := p.fetchAll(ctx, window, limit, states)
	if err != nil {
		log.WithError(err).Error("upstream fetch failed, snapshot left untouched")
		return result, err
	}
	run.Fetched = len(raws)

	geocoder = p.newGeocoder()
	contracts := p.normalizeAll(ctx, geocoder, raws)
	if err := ctx.Err(); err != nil {
		return result, &RefreshError{Kind: KindInternal, Op: "refresh", Err: err}
	}

	meta := models.RefreshMetadata{
		Timestamp:        p.now().UTC(),
		ContractCount:    len(contracts),
		ProcessingTimeMs: p.now().Sub(start).Milliseconds(),
	}
	if err := p.Sink.ReplaceContracts(ctx, contracts, meta); err != nil {
		log.WithError(err).Error("publishing snapshot failed")
		return result, storageError("replace contracts", err)
	}

	run.Published = len(contracts)
	result.ContractsUpdated = len(contracts)
	result.ProcessingTimeMs = p.now().Sub(start).Milliseconds()

	stats := geocoder.Stats()
	log.WithFields(logrus.Fields{
		"regions":        len(states),
		"fetched":        len(raws),
		"count":          len(contracts),
		"geocode_hits":   stats.Hits,
		"geocode_calls":  stats.ExternalCalls,
		"geocode_misses": stats.Fallbacks,
		"duration_ms":    result.ProcessingTimeMs,
	}).Info("refresh complete")
	return result, nil
}

// Preview fetches and normalizes one query without touching the sink.
func (p *Pipeline) Preview(ctx context.Context, opts PreviewOptions) ([]models.Contract, error) {
	if err := p.validateSource(); err != nil {
		return nil, err
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultPreviewLimit
	}
	if limit > MaxPreviewLimit {
		limit = MaxPreviewLimit
	}
	now := p.now()
	window := TrailingWindow(now.In(p.location()), p.windowDays())

	var states []string
	if s := mergeStates([]string{opts.State}); len(s) > 0 {
		states = s
	}
	raws, err := p.fetchAll(ctx, window, limit, states)
	if err != nil {
		return nil, err
	}

	geocoder := p.newGeocoder()
	return p.normalizeAll(ctx, geocoder, raws), nil
}

// fetchAll issues one query per state, or a single unscoped query when
// states is empty. Results are merged by noticeId, first occurrence wins.
// Any failing query fails the whole fetch.
func (p *Pipeline) fetchAll(ctx context.Context, window Window, limit int, states []string) ([]RawOpportunity, error) {
	if len(states) == 0 {
		return p.Source.Search(ctx, SearchParams{PostedFrom: window.From, PostedTo: window.To, Limit: limit})
	}

	seen := make(map[string]struct{})
	var merged []RawOpportunity
	for _, state := range states {
		batch, err := p.Source.Search(ctx, SearchParams{PostedFrom: window.From, PostedTo: window.To, Limit: limit, State: state})
		if err != nil {
			return nil, err
		}
		for _, raw := range batch {
			if id := raw.NoticeID; id != "" {
				if _, dup := seen[id]; dup {
					continue
				}
				seen[id] = struct{}{}
			}
			merged = append(merged, raw)
		}
	}
	return merged, nil
}

// normalizeAll converts records sequentially so geocoder throttling holds,
// then drops records whose final id was already emitted.
func (p *Pipeline) normalizeAll(ctx context.Context, geocoder *geo.Geocoder, raws []RawOpportunity) []models.Contract {
	normalizer := NewNormalizer(geocoder, p.classifier())
	seen := make(map[string]struct{}, len(raws))
	out := make([]models.Contract, 0, len(raws))
	for i, raw := range raws {
		if ctx.Err() != nil {
			break
		}
		c := normalizer.Normalize(ctx, raw)
		if p.Progress != nil {
			p.Progress(i+1, len(raws))
		}
		if _, dup := seen[c.ID]; dup {
			p.logger().WithField("id", c.ID).Debug("dropping duplicate contract id")
			continue
		}
		seen[c.ID] = struct{}{}
		out = append(out, c.Record())
	}
	return out
}

func (p *Pipeline) preferredStates(ctx context.Context) ([]string, error) {
	if p.Preferences == nil {
		return nil, nil
	}
	states, err := p.Preferences.PreferredStates(ctx)
	if err != nil {
		return nil, storageError("read preferences", err)
	}
	return mergeStates(states), nil
}

func (p *Pipeline) validateSource() error {
	if p.Source == nil {
		return configError("refresh", errors.New("no opportunity source configured"))
	}
	if v, ok := p.Source.(interface{ Validate() error }); ok {
		return v.Validate()
	}
	return nil
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func (p *Pipeline) location() *time.Location {
	if p.Limits.Location != nil {
		return p.Limits.Location
	}
	return time.UTC
}

func (p *Pipeline) windowDays() int {
	if p.WindowDays <= 0 {
		return 90
	}
	return p.WindowDays
}

func (p *Pipeline) init() {
	p.setup.Do(func() {
		if p.Cache == nil {
			p.Cache = geo.NewCache(nil)
		}
		p.limiter = geo.NewLimiter(p.GeocodeInterval)
		p.log = logrus.WithField("component", "pipeline")
	})
}

func (p *Pipeline) newGeocoder() *geo.Geocoder {
	p.init()
	return geo.NewSharedGeocoder(p.Cache, p.Provider, p.limiter)
}

func (p *Pipeline) classifier() *category.Classifier {
	if p.Classifier == nil {
		return category.Default()
	}
	return p.Classifier
}

func (p *Pipeline) logger() *logrus.Entry {
	p.init()
	return p.log
}

func ptrTime(t time.Time) *time.Time {
	return &t
}

// Package pipeline runs a materials search: cache-or-query, then the
// classification and analysis stages over the result set.
package pipeline

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/hpungsan/matsift/internal/cache"
	"github.com/hpungsan/matsift/internal/elemset"
	"github.com/hpungsan/matsift/internal/errors"
	"github.com/hpungsan/matsift/internal/history"
	"github.com/hpungsan/matsift/internal/query"
	"github.com/hpungsan/matsift/internal/record"
	"github.com/hpungsan/matsift/internal/run"
)

// DefaultTaskCount is the classification task-count hint used when none is given.
const DefaultTaskCount = 1024

// State is a step of a single Run.
type State string

const (
	StateStart              State = "START"
	StateCacheHit           State = "CACHE_HIT"
	StateLoaded             State = "LOADED"
	StateCacheMiss          State = "CACHE_MISS"
	StateCredentialAcquired State = "CREDENTIAL_ACQUIRED"
	StateQueried            State = "QUERIED"
	StateCached             State = "CACHED"
	StateClassify           State = "CLASSIFY"
	StateAnalyze            State = "ANALYZE"
	StateDone               State = "DONE"
)

// Client queries the remote materials database.
type Client interface {
	Query(ctx context.Context, criteria map[string]any, fields []string, chunkSize int) (record.ResultSet, error)
}

// ClientFactory builds a Client for an access key.
type ClientFactory func(key string) Client

// Credentials supplies the access key for remote queries.
type Credentials interface {
	Obtain(ctx context.Context) (string, error)
}

// Classifier consumes a result set.
type Classifier interface {
	Classify(ctx context.Context, rs record.ResultSet, searchName string, taskCount int) error
}

// Analyzer runs after classification for the same search.
type Analyzer interface {
	Analyze(ctx context.Context, searchName string, filterOrder []string, elements []string) error
}

// Orchestrator wires the pipeline's collaborators. Recorder, Logger and Out
// are optional.
type Orchestrator struct {
	Cache       cache.Store
	Credentials Credentials
	NewClient   ClientFactory
	Classifier  Classifier
	Analyzer    Analyzer
	Recorder    history.Recorder
	Logger      *zap.Logger
	Out         io.Writer
}

// RunInput describes one search.
type RunInput struct {
	SearchName  string
	Elements    elemset.Set
	Exclude     elemset.Set
	Constraints query.Constraints
	FilterOrder []string

	// TaskCount is passed to the classifier. 0 means DefaultTaskCount.
	TaskCount int

	// ChunkSize is the remote batching knob. 0 means query.DefaultChunkSize.
	ChunkSize int
}

// RunOutput reports what a Run did.
type RunOutput struct {
	RunID    string           `json:"run_id,omitempty"`
	States   []State          `json:"states"`
	CacheHit bool             `json:"cache_hit"`
	Records  record.ResultSet `json:"records"`
}

// Run executes the pipeline for in. An existing cache entry for the search
// name is always used as is; the remote database is only queried on a miss,
// and only a fully successful query is cached.
func (o *Orchestrator) Run(ctx context.Context, in RunInput) (*RunOutput, error) {
	if err := cache.ValidateName(in.SearchName); err != nil {
		return nil, err
	}

	out := &RunOutput{States: []State{StateStart}}
	runID := o.startRun(in)
	out.RunID = runID

	err := o.run(ctx, in, out)

	outcome := run.OutcomeQueried
	switch {
	case err != nil:
		outcome = run.OutcomeFailed
	case out.CacheHit:
		outcome = run.OutcomeCacheHit
	}
	o.finishRun(runID, outcome, len(out.Records), err)

	return out, err
}

func (o *Orchestrator) run(ctx context.Context, in RunInput, out *RunOutput) error {
	log := o.logger().With(zap.String("search", in.SearchName))
	o.say("\n\nHello, and welcome to your database search!\n")

	hit, err := o.Cache.Exists(in.SearchName)
	if err != nil {
		return stageError("cache check", err)
	}

	var rs record.ResultSet
	if hit {
		out.CacheHit = true
		out.States = append(out.States, StateCacheHit)
		o.say(fmt.Sprintf("File %s.json found. Loading file.\n", in.SearchName))

		rs, err = o.Cache.Load(in.SearchName)
		if err != nil {
			return err
		}
		out.States = append(out.States, StateLoaded)
		log.Debug("loaded cached results", zap.Int("records", len(rs)))
	} else {
		out.States = append(out.States, StateCacheMiss)
		o.say(fmt.Sprintf("%s.json not found. Creating file and querying the Materials Project Database.\n", in.SearchName))

		rs, err = o.fetch(ctx, in, out, log)
		if err != nil {
			return err
		}
	}
	out.Records = rs

	if err := ctx.Err(); err != nil {
		return errors.NewCancelled("search")
	}
	out.States = append(out.States, StateClassify)
	taskCount := in.TaskCount
	if taskCount <= 0 {
		taskCount = DefaultTaskCount
	}
	if err := o.Classifier.Classify(ctx, rs, in.SearchName, taskCount); err != nil {
		return stageError("classification", err)
	}

	if err := ctx.Err(); err != nil {
		return errors.NewCancelled("search")
	}
	out.States = append(out.States, StateAnalyze)
	if err := o.Analyzer.Analyze(ctx, in.SearchName, in.FilterOrder, in.Elements.Symbols()); err != nil {
		return stageError("analysis", err)
	}

	out.States = append(out.States, StateDone)
	return nil
}

// fetch runs the cache-miss branch: credential, query, save.
func (o *Orchestrator) fetch(ctx context.Context, in RunInput, out *RunOutput, log *zap.Logger) (record.ResultSet, error) {
	spec, err := query.NewSpec(in.Elements, in.Exclude, in.Constraints)
	if err != nil {
		return nil, err
	}

	key, err := o.Credentials.Obtain(ctx)
	if err != nil {
		return nil, err
	}
	out.States = append(out.States, StateCredentialAcquired)

	chunkSize := in.ChunkSize
	if chunkSize <= 0 {
		chunkSize = query.DefaultChunkSize
	}
	log.Debug("querying remote database",
		zap.Strings("include", spec.Include().Symbols()),
		zap.Int("exclude_count", spec.Exclude().Len()),
		zap.Int("max_sites", spec.Constraints().MaxSites),
		zap.Int("num_elements", spec.Constraints().NumElements),
	)

	rs, err := o.NewClient(key).Query(ctx, spec.Criteria(), query.Fields(), chunkSize)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.NewCancelled("remote query")
		}
		return nil, errors.NewRemoteQuery(err)
	}
	if rs == nil {
		rs = record.ResultSet{}
	}
	out.States = append(out.States, StateQueried)
	o.say(fmt.Sprintf("%d materials found from your database query.\n", len(rs)))

	if err := o.Cache.Save(in.SearchName, rs); err != nil {
		return nil, err
	}
	out.States = append(out.States, StateCached)
	return rs, nil
}

func stageError(stage string, err error) error {
	var sErr *errors.SearchError
	if stderrors.As(err, &sErr) {
		return err
	}
	return errors.NewInternal(fmt.Errorf("%s failed: %w", stage, err))
}

func (o *Orchestrator) startRun(in RunInput) string {
	if o.Recorder == nil {
		return ""
	}
	id, err := o.Recorder.Start(in.SearchName, in.Elements.Symbols(), in.Exclude.Symbols())
	if err != nil {
		o.logger().Warn("failed to record run start", zap.Error(err))
		return ""
	}
	return id
}

func (o *Orchestrator) finishRun(id string, outcome run.Outcome, count int, cause error) {
	if o.Recorder == nil || id == "" {
		return
	}
	if err := o.Recorder.Finish(id, outcome, count, cause); err != nil {
		o.logger().Warn("failed to record run outcome", zap.String("run_id", id), zap.Error(err))
	}
}

func (o *Orchestrator) say(msg string) {
	if o.Out != nil {
		fmt.Fprint(o.Out, msg)
	}
}

func (o *Orchestrator) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

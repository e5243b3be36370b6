package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/pfrederiksen/nppes-extract/internal/archive"
	"github.com/pfrederiksen/nppes-extract/internal/config"
	"github.com/pfrederiksen/nppes-extract/internal/filter"
	"github.com/pfrederiksen/nppes-extract/internal/logger"
	"github.com/pfrederiksen/nppes-extract/internal/nppes"
	"github.com/pfrederiksen/nppes-extract/internal/storage"
	"github.com/pfrederiksen/nppes-extract/internal/table"
)

// Phase is a step of the run state machine
type Phase string

const (
	PhaseNotStarted     Phase = "not_started"
	PhaseIndexResolved  Phase = "index_resolved"
	PhaseArchiveFetched Phase = "archive_fetched"
	PhaseMemberLocated  Phase = "member_located"
	PhaseStreaming      Phase = "streaming"
	PhaseDone           Phase = "done"
	PhaseAborted        Phase = "aborted"
)

// Result summarizes a finished run
type Result struct {
	RunID         string
	SourceURL     string
	Member        string
	Output        string
	Batches       int
	RowsRead      int
	RowsKept      int
	HeaderWritten bool
	Phase         Phase
}

// Pipeline runs extractions for one configuration
type Pipeline struct {
	cfg     config.Config
	client  *nppes.Client
	log     *logger.Logger
	metrics *logger.Metrics
	store   *storage.Storage
	phase   Phase

	// OnProgress, if set, is called after every batch in addition to logging
	OnProgress func(Progress)
}

// New creates a Pipeline. cfg should already be normalized and validated.
func New(cfg config.Config, log *logger.Logger) *Pipeline {
	if log == nil {
		log = logger.Default()
	}
	p := &Pipeline{
		cfg:     cfg,
		client:  nppes.New(cfg.IndexURL, cfg.Timeout),
		log:     log,
		metrics: logger.NewMetrics(),
		phase:   PhaseNotStarted,
	}
	if cfg.Manifest {
		p.store = storage.New(cfg.Output)
	}
	return p
}

// Metrics returns the run's counters and timings
func (p *Pipeline) Metrics() *logger.Metrics {
	return p.metrics
}

// Phase returns the current phase
func (p *Pipeline) Phase() Phase {
	return p.phase
}

// Filters returns the predicates applied to every batch
func (p *Pipeline) Filters() filter.Set {
	return filter.Set{
		filter.Active(filter.DeactivationColumns...),
		filter.InRegion(p.cfg.State, filter.StateColumns...),
	}
}

func (p *Pipeline) enter(phase Phase, log *logger.Logger, fields logger.Fields) {
	p.phase = phase
	if fields == nil {
		fields = logger.Fields{}
	}
	fields["phase"] = string(phase)
	log.Debug("phase entered", fields)
}

// Resolve returns the URL of the newest Monthly V2 archive without downloading it
func (p *Pipeline) Resolve(ctx context.Context) (string, error) {
	start := time.Now()
	sourceURL, err := p.client.FindLatest(ctx)
	p.metrics.RecordTiming("phase.discover", time.Since(start))
	if err != nil {
		if errors.Is(err, nppes.ErrNotFound) {
			return "", newError(KindDiscovery, "finding latest archive", err)
		}
		return "", newError(KindFetch, "fetching index page", err)
	}
	return sourceURL, nil
}

// Run executes the whole extraction
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	runID := uuid.NewString()
	log := p.log.With(logger.Fields{"run_id": runID})

	result := &Result{
		RunID:  runID,
		Output: p.cfg.Output,
		Phase:  PhaseNotStarted,
	}

	res, err := p.run(ctx, log, result)
	if err != nil {
		p.phase = PhaseAborted
		result.Phase = PhaseAborted
		log.Debug("run aborted", logger.Fields{"kind": string(KindOf(err)), "error": err.Error()})
		return result, err
	}

	log.Debug("metrics", logger.Fields{"snapshot": p.metrics.GetSnapshot()})
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, log *logger.Logger, result *Result) (*Result, error) {
	sourceURL, err := p.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	result.SourceURL = sourceURL
	p.enter(PhaseIndexResolved, log, nil)
	log.Info("latest monthly V2 file", logger.Fields{"url": sourceURL})

	start := time.Now()
	data, err := p.client.Download(ctx, sourceURL)
	p.metrics.RecordTiming("phase.download", time.Since(start))
	if err != nil {
		return nil, newError(KindFetch, "downloading archive", err)
	}
	p.metrics.SetGauge("archive.bytes", float64(len(data)))
	p.enter(PhaseArchiveFetched, log, logger.Fields{"bytes": len(data)})

	zipArchive, err := archive.Open(data)
	if err != nil {
		return nil, newError(KindLocate, "opening archive", err)
	}
	member, err := zipArchive.Locate()
	if err != nil {
		return nil, newError(KindLocate, "locating data file", err)
	}
	result.Member = member.Name
	p.enter(PhaseMemberLocated, log, nil)
	log.Info("using CSV", logger.Fields{"member": member.Name, "size": member.Size})

	src, w, closeMember, err := p.open(member)
	if err != nil {
		return nil, err
	}
	defer closeMember()

	var manifest *storage.Manifest
	if p.store != nil {
		manifest, err = p.store.Start(result.RunID, p.cfg.State, p.cfg.Output)
		if err != nil {
			return nil, newError(KindWrite, "starting manifest", err)
		}
		manifest.SourceURL = sourceURL
		manifest.Member = member.Name
	}

	counts, err := p.stream(src, w, log, result)
	result.Batches = counts.Batches
	result.RowsRead = counts.RowsRead
	result.RowsKept = counts.RowsKept

	if manifest != nil {
		manifest.Batches = counts.Batches
		manifest.RowsRead = counts.RowsRead
		manifest.RowsKept = counts.RowsKept
		if finishErr := p.store.Finish(manifest, err); finishErr != nil && err == nil {
			return nil, newError(KindWrite, "finishing manifest", finishErr)
		}
	}
	if err != nil {
		return nil, err
	}

	p.enter(PhaseDone, log, nil)
	result.Phase = PhaseDone
	log.Info("done", logger.Fields{
		"rows":    result.RowsKept,
		"read":    result.RowsRead,
		"batches": result.Batches,
		"output":  result.Output,
	})
	return result, nil
}

// open prepares the member for reading and truncates the output
func (p *Pipeline) open(member archive.Member) (io.Reader, *table.Writer, func(), error) {
	rc, err := member.Open()
	if err != nil {
		return nil, nil, nil, newError(KindLocate, "opening data file", err)
	}

	src, err := table.Decode(rc, p.cfg.Encoding)
	if err != nil {
		rc.Close()
		return nil, nil, nil, newError(KindParse, "decoding data file", err)
	}

	w, err := table.Create(p.cfg.Output)
	if err != nil {
		rc.Close()
		return nil, nil, nil, newError(KindWrite, "truncating output", err)
	}

	return src, w, func() { rc.Close() }, nil
}

// stream filters src into the output
func (p *Pipeline) stream(src io.Reader, w *table.Writer, log *logger.Logger, result *Result) (Counts, error) {
	p.enter(PhaseStreaming, log, nil)

	start := time.Now()
	counts, err := FilterStream(src, w, p.Filters(), p.cfg.BatchSize, func(pr Progress) {
		p.metrics.IncrCounter("batches.read")
		p.metrics.AddCounter("rows.read", int64(pr.Read))
		p.metrics.AddCounter("rows.kept", int64(pr.Kept))
		p.metrics.AddCounter("rows.dropped", int64(pr.Read-pr.Kept))

		fields := logger.Fields{
			"batch": pr.Batch,
			"kept":  pr.Kept,
			"total": pr.Total,
		}
		if pr.Written {
			p.metrics.IncrCounter("batches.written")
			log.Info("batch written", fields)
		} else {
			fields["read"] = pr.Read
			log.Debug("batch empty after filtering", fields)
		}
		if pr.Batch == 1 {
			log.Debug("filter columns", logger.Fields{"columns": pr.Columns})
			for name, column := range pr.Columns {
				if column == "" {
					log.Warn("filter column missing, keeping every row", logger.Fields{"filter": name})
				}
			}
		}
		if p.OnProgress != nil {
			p.OnProgress(pr)
		}
	})
	p.metrics.RecordTiming("phase.filter", time.Since(start))
	result.HeaderWritten = w.HeaderWritten()

	return counts, err
}

// String formats a result the way the command prints it
func (r *Result) String() string {
	return fmt.Sprintf("Done. Wrote %d rows to %s", r.RowsKept, r.Output)
}

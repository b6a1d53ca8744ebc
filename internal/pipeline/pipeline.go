// File: internal/pipeline/pipeline.go
package pipeline

import (
	"context"
	encjson "encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fdmtools/printdoctor-cli/api/schemas"
	"github.com/fdmtools/printdoctor-cli/internal/analysis"
	"github.com/fdmtools/printdoctor-cli/internal/config"
	"github.com/fdmtools/printdoctor-cli/internal/gcode"
	"github.com/fdmtools/printdoctor-cli/internal/normalize"
	"github.com/fdmtools/printdoctor-cli/internal/report"
)

// acceptedExtensions are the g-code file extensions the pipeline takes.
var acceptedExtensions = map[string]bool{
	".gcode": true,
	".gc":    true,
	".g":     true,
	".nc":    true,
	".ngc":   true,
}

// ValidateExtension rejects files that are not g-code before any byte is
// read.
func ValidateExtension(path string) error {
	ext := strings.ToLower(filepath.Ext(path))
	if !acceptedExtensions[ext] {
		return &schemas.ValidationError{
			Field:   "file",
			Message: fmt.Sprintf("unsupported file extension %q (expected .gcode, .gc, .g, .nc or .ngc)", ext),
		}
	}
	return nil
}

// Job is the pipeline's view of one background analysis: wait for the
// raw result, stream progress, or cancel.
type Job interface {
	Wait(ctx context.Context) (encjson.RawMessage, error)
	Subscribe() (<-chan schemas.JobSnapshot, func())
	Snapshot() schemas.JobSnapshot
	Cancel()
}

// Submitter sends file content to the analysis service.
type Submitter interface {
	Submit(ctx context.Context, fileName string, content []byte) (Job, *schemas.SubmitResult, error)
}

// ClientSubmitter adapts the analysis client to the Submitter interface.
type ClientSubmitter struct {
	Client *analysis.Client
}

func (s ClientSubmitter) Submit(ctx context.Context, fileName string, content []byte) (Job, *schemas.SubmitResult, error) {
	job, res, err := s.Client.Submit(ctx, fileName, content)
	if err != nil {
		return nil, nil, err
	}
	return job, res, nil
}

// Outcome is everything one analyze run produced. Report is non-nil
// whenever local parsing succeeded, even if the remote analysis failed:
// the caller decides how to present the partial result.
type Outcome struct {
	Report *schemas.Report
	// RawResult is the unnormalized analysis payload, for archival.
	RawResult encjson.RawMessage
	// AnalysisErr is the remote job's failure, if any. The report is
	// still valid local-only data when this is set.
	AnalysisErr error
}

// Pipeline runs the full analyze flow: validate, parse, segment, submit,
// poll, normalize and assemble. Local reconstruction and the remote
// submission run concurrently; neither blocks the other.
type Pipeline struct {
	cfg       *config.Config
	parser    *gcode.Parser
	segmenter *gcode.Segmenter
	submitter Submitter
	norm      *normalize.Normalizer
	assembler *report.Assembler
	logger    *zap.Logger

	// onJob is invoked as soon as the background job exists, so the
	// caller can attach a progress subscription.
	onJob func(Job)
}

// New creates a pipeline with all collaborators wired from config.
func New(cfg *config.Config, submitter Submitter, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		parser:    gcode.NewParser(logger),
		segmenter: gcode.NewSegmenter(cfg.Parser, nil, logger),
		submitter: submitter,
		norm:      normalize.NewNormalizer(logger),
		assembler: report.NewAssembler(logger),
		logger:    logger.Named("pipeline"),
	}
}

// OnJob registers a callback fired when the background job starts.
func (p *Pipeline) OnJob(fn func(Job)) {
	p.onJob = fn
}

// Run analyzes one file. Validation and read failures return a nil
// outcome; once parsing succeeds a report is always produced, degrading
// to local-only data when the remote analysis fails or times out.
func (p *Pipeline) Run(ctx context.Context, path string) (*Outcome, error) {
	if err := ValidateExtension(path); err != nil {
		return nil, err
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	text := string(content)
	fileName := filepath.Base(path)

	var (
		parsed *schemas.ParseResult
		meta   schemas.Metadata
		segs   *schemas.SegmentationResult
		raw    encjson.RawMessage
		jobErr error
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		parsed = p.parser.Parse(text)
		meta = gcode.ScanMetadata(text)
		segs = p.segmenter.Segment(text, parsed)
		p.logger.Debug("Local reconstruction finished",
			zap.Int("commands", len(parsed.Commands)),
			zap.Int("layers", len(segs.Layers)))
		return nil
	})

	g.Go(func() error {
		job, submit, err := p.submitter.Submit(gctx, fileName, content)
		if err != nil {
			jobErr = err
			p.logger.Warn("Analysis submission failed; continuing with local data", zap.Error(err))
			return nil
		}
		if p.onJob != nil {
			p.onJob(job)
		}
		if submit.BackgroundAnalysisStarted {
			p.logger.Info("Waiting for background analysis",
				zap.String("analysis_id", submit.AnalysisID))
		}

		result, err := job.Wait(gctx)
		if err != nil {
			jobErr = err
			p.logger.Warn("Background analysis did not complete; continuing with local data", zap.Error(err))
			return nil
		}
		raw = result
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var normalized *normalize.Result
	if len(raw) > 0 {
		normalized, err = p.norm.Decode(raw)
		if err != nil {
			// A payload we cannot decode degrades to local-only data.
			p.logger.Warn("Analysis payload could not be decoded", zap.Error(err))
			jobErr = err
			normalized = nil
		}
	}

	rep := p.assembler.Assemble(report.Inputs{
		FileName:     fileName,
		Metadata:     meta,
		Parse:        parsed,
		Segmentation: segs,
		Normalized:   normalized,
	})

	return &Outcome{Report: rep, RawResult: raw, AnalysisErr: jobErr}, nil
}

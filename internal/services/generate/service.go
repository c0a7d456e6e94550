package generate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/launchbynttdata/metagen/internal/artifact"
	"github.com/launchbynttdata/metagen/internal/domain/buildsource"
	"github.com/launchbynttdata/metagen/internal/domain/descriptor"
	"github.com/launchbynttdata/metagen/internal/render"
	"github.com/launchbynttdata/metagen/internal/vcs"
)

var (
	ErrNilSource       = errors.New("generate service: nil version source")
	ErrNilWriter       = errors.New("generate service: nil artifact writer")
	ErrEmptyDest       = errors.New("generate service: destination path is empty")
	ErrMissingCounter  = errors.New("generate service: build source counter requires a build number")
	errUnknownBuildSrc = errors.New("generate service: unknown build source")
)

// Writer persists rendered artifacts.
type Writer interface {
	Write(data []byte, dest string) (artifact.Result, error)
}

// Config captures the inputs required to compute a descriptor.
type Config struct {
	TagPatterns    []string
	DefaultVersion string
	BuildSource    buildsource.Source
	BuildNumber    uint64
	// HasBuildNumber distinguishes an explicit zero from an unset counter.
	HasBuildNumber bool
}

// WriteConfig extends Config with the rendering and destination settings.
type WriteConfig struct {
	Config
	Template    string
	Render      render.Options
	Destination string
}

// Result captures the outcome of a run.
type Result struct {
	Descriptor descriptor.Descriptor
	Raw        vcs.RawTagInfo
	// Fallback reports that no tag was found and DefaultVersion was applied.
	Fallback bool
	Artifact artifact.Result
}

// Service orchestrates resolving version-control state, computing the descriptor,
// rendering it and writing the artifact.
type Service struct {
	source vcs.Source
	writer Writer
	clock  func() time.Time
	logger *zap.Logger
}

// NewService constructs a Service. A nil clock uses time.Now; a nil logger discards logs.
func NewService(source vcs.Source, writer Writer, clock func() time.Time, logger *zap.Logger) Service {
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return Service{source: source, writer: writer, clock: clock, logger: logger}
}

// Describe resolves version-control state and computes the descriptor without writing anything.
func (s Service) Describe(ctx context.Context, cfg Config) (Result, error) {
	if s.source == nil {
		return Result{}, ErrNilSource
	}

	opts, err := descriptorOptions(cfg)
	if err != nil {
		return Result{}, err
	}

	raw, err := s.source.Resolve(ctx, cfg.TagPatterns)
	fallback := false
	switch {
	case errors.Is(err, vcs.ErrNoTagFound):
		fallback = true
		raw.Tag = defaultVersion(cfg.DefaultVersion)
		raw.CommitsSinceTag = 0
		raw.Fallback = true
		s.logger.Warn("no version tag found, applying default version",
			zap.Strings("patterns", vcs.NormalizePatterns(cfg.TagPatterns)),
			zap.String("defaultVersion", raw.Tag),
		)
	case err != nil:
		return Result{}, fmt.Errorf("resolving version source: %w", err)
	}

	desc, err := descriptor.Compute(raw, s.clock(), opts)
	if err != nil {
		return Result{}, err
	}

	return Result{Descriptor: desc, Raw: raw, Fallback: fallback}, nil
}

// Generate computes the descriptor, renders it and atomically writes the artifact.
// Nothing is written unless every earlier step succeeded.
func (s Service) Generate(ctx context.Context, cfg WriteConfig) (Result, error) {
	if s.writer == nil {
		return Result{}, ErrNilWriter
	}

	dest := strings.TrimSpace(cfg.Destination)
	if dest == "" {
		return Result{}, ErrEmptyDest
	}

	result, err := s.Describe(ctx, cfg.Config)
	if err != nil {
		return Result{}, err
	}

	text, err := render.Render(render.Fields(result.Descriptor, cfg.Render), cfg.Template)
	if err != nil {
		return Result{}, err
	}

	written, err := s.writer.Write([]byte(text), dest)
	if err != nil {
		return Result{}, err
	}
	result.Artifact = written

	s.logger.Info("using version",
		zap.String("version", result.Descriptor.FullVersionString()),
		zap.Uint64("build", result.Descriptor.Build),
		zap.String("path", written.Path),
		zap.Bool("unchanged", written.Unchanged),
	)
	return result, nil
}

func descriptorOptions(cfg Config) (descriptor.Options, error) {
	source := cfg.BuildSource
	if source == "" {
		source = buildsource.Default()
	}
	switch source {
	case buildsource.SourceCommits, buildsource.SourceTag:
	case buildsource.SourceCounter:
		if !cfg.HasBuildNumber {
			return descriptor.Options{}, ErrMissingCounter
		}
	default:
		return descriptor.Options{}, fmt.Errorf("%w %q", errUnknownBuildSrc, source)
	}
	return descriptor.Options{BuildSource: source, BuildNumber: cfg.BuildNumber}, nil
}

func defaultVersion(value string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return descriptor.DefaultVersion
}

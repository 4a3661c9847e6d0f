package semgraph

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const insufficientInputFormat = "Text too short. Please provide at least %d lines."

// Service runs the analysis pipeline: chunk, embed, project and cluster,
// assemble. It holds no per-request state and is safe for concurrent use.
type Service struct {
	embedder Embedder
	cfg      Config
	logger   logrus.FieldLogger
}

// NewService constructs a service with the given embedder and configuration.
// The embedder is shared by every call and is closed by Close.
func NewService(embedder Embedder, cfg Config, logger logrus.FieldLogger) (*Service, error) {
	if embedder == nil {
		return nil, errors.New("embedder is required")
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	cfg.ApplyDefaults()
	return &Service{
		embedder: embedder,
		cfg:      cfg,
		logger:   logger.WithField("model", embedder.ModelID()),
	}, nil
}

// Close releases embedder resources.
func (s *Service) Close() error {
	if s.embedder != nil {
		return s.embedder.Close()
	}
	return nil
}

// Config returns the configuration in use.
func (s *Service) Config() Config {
	return s.cfg
}

// Analyze turns raw text into a Graph, or an InsufficientInput notice when
// fewer than MinChunks lines qualify. Empty text yields ErrInvalidInput and
// more than MaxChunks qualifying lines yield ErrInputTooLarge.
func (s *Service) Analyze(ctx context.Context, raw string) (Result, error) {
	if raw == "" {
		return nil, ErrInvalidInput
	}
	started := time.Now()
	chunks := Chunk(raw, s.cfg.MinLineLength)
	if len(chunks) < s.cfg.MinChunks {
		s.logger.WithField("chunks", len(chunks)).Info("input too short to analyze")
		return InsufficientInput{
			Message: fmt.Sprintf(insufficientInputFormat, s.cfg.MinChunks),
			Chunks:  len(chunks),
		}, nil
	}
	if len(chunks) > s.cfg.MaxChunks {
		return nil, fmt.Errorf("%w: %d qualifying lines, the limit is %d",
			ErrInputTooLarge, len(chunks), s.cfg.MaxChunks)
	}

	vecs, err := s.embedder.EmbedTexts(ctx, chunks)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vecs) != len(chunks) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vecs), len(chunks))
	}
	embedded := time.Now()
	s.logger.WithFields(logrus.Fields{
		"chunks":  len(chunks),
		"elapsed": embedded.Sub(started).String(),
	}).Debug("chunks embedded")

	// Projection and clustering read the same vectors and never see each
	// other's output.
	var coords []Coordinate
	var labels []int
	var g errgroup.Group
	g.Go(func() error {
		var err error
		coords, err = Project(vecs, s.cfg.Projector)
		if err != nil {
			return fmt.Errorf("project: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		labels, err = Cluster(vecs, s.cfg.Cluster)
		if err != nil {
			return fmt.Errorf("cluster: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	graph, err := Assemble(chunks, coords, labels, s.cfg)
	if err != nil {
		return nil, fmt.Errorf("assemble graph: %w", err)
	}
	s.logger.WithField("elapsed", time.Since(embedded).String()).Debug("layout and groups computed")
	s.logger.WithFields(logrus.Fields{
		"nodes":  len(graph.Nodes),
		"groups": ClusterCount(s.cfg.Cluster.MaxClusters, len(chunks)),
		"total":  time.Since(started).String(),
	}).Info("text analyzed")
	return graph, nil
}

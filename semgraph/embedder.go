package semgraph

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"yashubustudio/semgraph/emb"
)

// Embedder exposes the minimal surface required by the service layer.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	Close() error
	ModelID() string
}

// NewEmbedder builds the backend selected in cfg. Any failure is wrapped in
// ErrModelUnavailable.
func NewEmbedder(cfg EmbedderConfig, logger logrus.FieldLogger) (Embedder, error) {
	cfg.ApplyDefaults()
	switch cfg.Backend {
	case BackendONNX:
		return NewOrtEmbedder(cfg, logger)
	case BackendHash:
		return NewHashEmbedder(cfg.Dimensions), nil
	default:
		return nil, fmt.Errorf("%w: unknown backend %q", ErrModelUnavailable, cfg.Backend)
	}
}

// encoder is the model surface OrtEmbedder needs; *emb.Encoder satisfies it.
type encoder interface {
	Encode(text string) ([]float32, error)
	Close()
}

// OrtEmbedder is a thin wrapper over emb.Encoder with a memory and a disk
// cache tier. The tiers only save work: their failures are logged and the
// model is run instead.
type OrtEmbedder struct {
	enc    encoder
	cfg    EmbedderConfig
	cache  *cache.Cache
	store  *vectorStore
	logger logrus.FieldLogger
}

// NewOrtEmbedder loads the ONNX model and tokenizer once.
func NewOrtEmbedder(cfg EmbedderConfig, logger logrus.FieldLogger) (*OrtEmbedder, error) {
	cfg.ApplyDefaults()
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if cfg.ModelID == "" && cfg.ModelPath != "" {
		cfg.ModelID = filepath.Base(filepath.Dir(cfg.ModelPath)) + "/" + filepath.Base(cfg.ModelPath)
	}
	store, err := newVectorStore(cfg.CacheDir)
	if err != nil {
		return nil, err
	}
	enc := &emb.Encoder{}
	if err := enc.Init(emb.Config{
		OrtDLL:        cfg.OrtDLL,
		ModelPath:     cfg.ModelPath,
		TokenizerPath: cfg.TokenizerPath,
		MaxSeqLen:     cfg.MaxSeqLen,
	}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModelUnavailable, err)
	}
	return &OrtEmbedder{
		enc:    enc,
		cfg:    cfg,
		cache:  cache.New(cfg.CacheTTL, 2*cfg.CacheTTL),
		store:  store,
		logger: logger.WithField("model", cfg.ModelID),
	}, nil
}

// Close releases ORT resources.
func (o *OrtEmbedder) Close() error {
	if o == nil {
		return nil
	}
	if o.enc != nil {
		o.enc.Close()
		o.enc = nil
	}
	o.cache.Flush()
	return nil
}

// ModelID returns the identifier used for cache keys.
func (o *OrtEmbedder) ModelID() string {
	return o.cfg.ModelID
}

// EmbedText embeds a single string, consulting the in-memory cache and then
// the on-disk store before running the model.
func (o *OrtEmbedder) EmbedText(_ context.Context, text string) ([]float32, error) {
	if o == nil || o.enc == nil {
		return nil, errors.New("embedder is not initialized")
	}
	normalized := NormalizeText(text)
	key := cacheKey(o.cfg.ModelID, normalized)
	if v, ok := o.cache.Get(key); ok {
		return cloneVector(v.([]float32)), nil
	}
	vec, ok, err := o.store.load(key)
	if err != nil {
		o.logger.WithError(err).Warn("ignoring unreadable cached vector")
		ok = false
	}
	if !ok {
		if vec, err = o.enc.Encode(normalized); err != nil {
			return nil, err
		}
		if err := o.store.save(key, vec); err != nil {
			o.logger.WithError(err).Warn("could not persist vector")
		}
	}
	o.cache.Set(key, cloneVector(vec), cache.DefaultExpiration)
	return vec, nil
}

// EmbedTexts embeds a slice of strings sequentially.
func (o *OrtEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	return embedEach(ctx, o, texts)
}

func embedEach(ctx context.Context, e Embedder, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vec, err := e.EmbedText(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("embed line %d: %w", i, err)
		}
		out[i] = vec
	}
	return out, nil
}

func cacheKey(modelID, text string) string {
	h := sha1.New()
	_, _ = io.WriteString(h, modelID)
	_, _ = io.WriteString(h, "|")
	_, _ = io.WriteString(h, text)
	return hex.EncodeToString(h.Sum(nil))
}

func cloneVector(vec []float32) []float32 {
	out := make([]float32, len(vec))
	copy(out, vec)
	return out
}

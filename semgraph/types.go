package semgraph

import "time"

// Backend names an embedder implementation.
type Backend string

const (
	// BackendONNX runs a sentence-transformer export through ONNX Runtime.
	BackendONNX Backend = "onnx"
	// BackendHash uses the deterministic feature-hashing embedder.
	BackendHash Backend = "hash"
)

// Coordinate is a point in the projected 3-D space.
type Coordinate [3]float64

// Node is one chunk placed in the graph.
type Node struct {
	ID       int     `json:"id"`
	Text     string  `json:"text"`
	FullText string  `json:"full_text"`
	Group    int     `json:"group"`
	FX       float64 `json:"fx"`
	FY       float64 `json:"fy"`
	FZ       float64 `json:"fz"`
}

// Link connects two consecutive nodes.
type Link struct {
	Source int `json:"source"`
	Target int `json:"target"`
}

// Result is what Analyze returns on the success channel: either *Graph or
// InsufficientInput.
type Result interface {
	isResult()
}

// Graph is a fully analyzed text.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Links []Link `json:"links"`
}

func (*Graph) isResult() {}

// InsufficientInput reports that the text had too few qualifying lines to
// analyze. It is a normal outcome, not an error.
type InsufficientInput struct {
	Message string `json:"error"`
	Chunks  int    `json:"-"`
}

func (InsufficientInput) isResult() {}

// EmbedderConfig selects and configures the embedding backend.
type EmbedderConfig struct {
	Backend       Backend       `mapstructure:"backend" yaml:"backend" validate:"oneof=onnx hash"`
	OrtDLL        string        `mapstructure:"ort_dll" yaml:"ort_dll"`
	ModelPath     string        `mapstructure:"model_path" yaml:"model_path" validate:"required_if=Backend onnx"`
	TokenizerPath string        `mapstructure:"tokenizer_path" yaml:"tokenizer_path" validate:"required_if=Backend onnx"`
	MaxSeqLen     int           `mapstructure:"max_seq_len" yaml:"max_seq_len" validate:"gte=8"`
	ModelID       string        `mapstructure:"model_id" yaml:"model_id"`
	Dimensions    int           `mapstructure:"dimensions" yaml:"dimensions" validate:"gte=8"`
	CacheTTL      time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`
	CacheDir      string        `mapstructure:"cache_dir" yaml:"cache_dir"`
}

// ApplyDefaults populates zero values with sensible defaults.
func (c *EmbedderConfig) ApplyDefaults() {
	if c.Backend == "" {
		c.Backend = BackendONNX
	}
	if c.MaxSeqLen == 0 {
		c.MaxSeqLen = 256
	}
	if c.Dimensions == 0 {
		c.Dimensions = 384
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = 30 * time.Minute
	}
}

// ProjectorConfig controls the 3-D neighborhood-preserving layout.
type ProjectorConfig struct {
	NNeighbors         int     `mapstructure:"n_neighbors" yaml:"n_neighbors" validate:"gte=2"`
	MinDist            float64 `mapstructure:"min_dist" yaml:"min_dist" validate:"gte=0"`
	Spread             float64 `mapstructure:"spread" yaml:"spread" validate:"gt=0,gtefield=MinDist"`
	NEpochs            int     `mapstructure:"n_epochs" yaml:"n_epochs" validate:"gte=1"`
	NegativeSampleRate int     `mapstructure:"negative_sample_rate" yaml:"negative_sample_rate" validate:"gte=1"`
	LearningRate       float64 `mapstructure:"learning_rate" yaml:"learning_rate" validate:"gt=0"`
	Seed               int64   `mapstructure:"seed" yaml:"seed"`
}

// DefaultProjectorConfig returns the projector settings used when nothing is
// overridden.
func DefaultProjectorConfig() ProjectorConfig {
	c := ProjectorConfig{MinDist: 0.1, Seed: 42}
	c.ApplyDefaults()
	return c
}

// ApplyDefaults fills fields whose zero value is not a valid setting. MinDist
// and Seed are meaningful at zero and are left alone.
func (c *ProjectorConfig) ApplyDefaults() {
	if c.NNeighbors == 0 {
		c.NNeighbors = 5
	}
	if c.Spread == 0 {
		c.Spread = 1.0
	}
	if c.NEpochs == 0 {
		c.NEpochs = 500
	}
	if c.NegativeSampleRate == 0 {
		c.NegativeSampleRate = 5
	}
	if c.LearningRate == 0 {
		c.LearningRate = 1.0
	}
}

// ClusterConfig controls k-means grouping.
type ClusterConfig struct {
	MaxClusters int     `mapstructure:"max_clusters" yaml:"max_clusters" validate:"gte=1"`
	NInit       int     `mapstructure:"n_init" yaml:"n_init" validate:"gte=1"`
	MaxIter     int     `mapstructure:"max_iter" yaml:"max_iter" validate:"gte=1"`
	Tolerance   float64 `mapstructure:"tolerance" yaml:"tolerance" validate:"gte=0"`
	Seed        int64   `mapstructure:"seed" yaml:"seed"`
}

// DefaultClusterConfig returns the clustering settings used when nothing is
// overridden.
func DefaultClusterConfig() ClusterConfig {
	c := ClusterConfig{Tolerance: 1e-4, Seed: 42}
	c.ApplyDefaults()
	return c
}

// ApplyDefaults fills fields whose zero value is not a valid setting.
func (c *ClusterConfig) ApplyDefaults() {
	if c.MaxClusters == 0 {
		c.MaxClusters = 5
	}
	if c.NInit == 0 {
		c.NInit = 10
	}
	if c.MaxIter == 0 {
		c.MaxIter = 300
	}
}

// Config aggregates the analysis pipeline settings.
type Config struct {
	MinLineLength   int             `mapstructure:"min_line_length" yaml:"min_line_length" validate:"gte=0"`
	MinChunks       int             `mapstructure:"min_chunks" yaml:"min_chunks" validate:"gte=1"`
	MaxChunks       int             `mapstructure:"max_chunks" yaml:"max_chunks" validate:"gtefield=MinChunks"`
	DisplayLength   int             `mapstructure:"display_length" yaml:"display_length" validate:"gte=1"`
	Ellipsis        string          `mapstructure:"ellipsis" yaml:"ellipsis"`
	CoordinateScale float64         `mapstructure:"coordinate_scale" yaml:"coordinate_scale" validate:"gt=0"`
	Projector       ProjectorConfig `mapstructure:"projector" yaml:"projector"`
	Cluster         ClusterConfig   `mapstructure:"cluster" yaml:"cluster"`
}

// ApplyDefaults fills fields whose zero value is not a valid setting.
// MinLineLength and Ellipsis accept zero values and only come from
// DefaultConfig.
func (c *Config) ApplyDefaults() {
	if c.MinChunks == 0 {
		c.MinChunks = 5
	}
	if c.MaxChunks == 0 {
		c.MaxChunks = 1000
	}
	if c.DisplayLength == 0 {
		c.DisplayLength = 100
	}
	if c.CoordinateScale == 0 {
		c.CoordinateScale = 10
	}
	c.Projector.ApplyDefaults()
	c.Cluster.ApplyDefaults()
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	c := Config{
		MinLineLength: 10,
		Ellipsis:      "...",
		Projector:     DefaultProjectorConfig(),
		Cluster:       DefaultClusterConfig(),
	}
	c.ApplyDefaults()
	return c
}

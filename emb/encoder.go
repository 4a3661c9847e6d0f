// Package emb runs sentence-transformer ONNX exports through ONNX Runtime and
// turns their token states into a single normalized sentence vector.
package emb

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
	ort "github.com/yalue/onnxruntime_go"
)

const (
	inputIDs      = "input_ids"
	attentionMask = "attention_mask"
	tokenTypeIDs  = "token_type_ids"

	outputHiddenState = "last_hidden_state"
	outputSentence    = "sentence_embedding"
)

// Config points the encoder at its runtime library and model artifacts.
type Config struct {
	OrtDLL        string
	ModelPath     string
	TokenizerPath string
	MaxSeqLen     int
}

// Encoder owns one ORT session and its tokenizer. Encode is safe for
// concurrent use once Init has returned.
type Encoder struct {
	session   *ort.DynamicAdvancedSession
	inputs    []string
	output    string
	tk        *tokenizer.Tokenizer
	tkMu      sync.Mutex
	maxSeqLen int
}

var (
	envMu   sync.Mutex
	envRefs int
)

func acquireEnvironment(libPath string) error {
	envMu.Lock()
	defer envMu.Unlock()
	if envRefs == 0 {
		if libPath != "" {
			ort.SetSharedLibraryPath(libPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return fmt.Errorf("initialize onnxruntime: %w", err)
		}
	}
	envRefs++
	return nil
}

func releaseEnvironment() {
	envMu.Lock()
	defer envMu.Unlock()
	if envRefs == 0 {
		return
	}
	envRefs--
	if envRefs == 0 {
		_ = ort.DestroyEnvironment()
	}
}

// Init loads the tokenizer and model. It must be called exactly once.
func (e *Encoder) Init(cfg Config) error {
	if e.session != nil {
		return errors.New("encoder already initialized")
	}
	if cfg.ModelPath == "" {
		return errors.New("model path is required")
	}
	if cfg.TokenizerPath == "" {
		return errors.New("tokenizer path is required")
	}
	tk, err := pretrained.FromFile(cfg.TokenizerPath)
	if err != nil {
		return fmt.Errorf("load tokenizer: %w", err)
	}
	if err := acquireEnvironment(cfg.OrtDLL); err != nil {
		return err
	}
	inInfo, outInfo, err := ort.GetInputOutputInfo(cfg.ModelPath)
	if err != nil {
		releaseEnvironment()
		return fmt.Errorf("inspect model: %w", err)
	}
	inputs, err := pickInputs(inInfo)
	if err != nil {
		releaseEnvironment()
		return err
	}
	output, err := pickOutput(outInfo)
	if err != nil {
		releaseEnvironment()
		return err
	}
	session, err := ort.NewDynamicAdvancedSession(cfg.ModelPath, inputs, []string{output}, nil)
	if err != nil {
		releaseEnvironment()
		return fmt.Errorf("create session: %w", err)
	}
	e.session = session
	e.inputs = inputs
	e.output = output
	e.tk = tk
	e.maxSeqLen = cfg.MaxSeqLen
	if e.maxSeqLen <= 0 {
		e.maxSeqLen = 512
	}
	return nil
}

func pickInputs(info []ort.InputOutputInfo) ([]string, error) {
	names := make([]string, 0, len(info))
	for _, in := range info {
		switch in.Name {
		case inputIDs, attentionMask, tokenTypeIDs:
			names = append(names, in.Name)
		default:
			return nil, fmt.Errorf("unsupported model input %q", in.Name)
		}
	}
	for _, required := range []string{inputIDs, attentionMask} {
		found := false
		for _, n := range names {
			if n == required {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("model input %q missing", required)
		}
	}
	return names, nil
}

func pickOutput(info []ort.InputOutputInfo) (string, error) {
	if len(info) == 0 {
		return "", errors.New("model has no outputs")
	}
	for _, out := range info {
		if out.Name == outputSentence {
			return out.Name, nil
		}
	}
	for _, out := range info {
		if out.Name == outputHiddenState {
			return out.Name, nil
		}
	}
	return info[0].Name, nil
}

// Close releases the session. The encoder is unusable afterwards.
func (e *Encoder) Close() {
	if e.session == nil {
		return
	}
	_ = e.session.Destroy()
	e.session = nil
	releaseEnvironment()
}

// Encode returns the mean-pooled, L2-normalized sentence vector for text.
func (e *Encoder) Encode(text string) ([]float32, error) {
	if e.session == nil {
		return nil, errors.New("encoder is not initialized")
	}
	ids, mask, types, err := e.tokenize(text)
	if err != nil {
		return nil, err
	}
	seqLen := int64(len(ids))
	shape := ort.NewShape(1, seqLen)

	feeds := make([]ort.Value, len(e.inputs))
	defer func() {
		for _, f := range feeds {
			if f != nil {
				_ = f.Destroy()
			}
		}
	}()
	for i, name := range e.inputs {
		var data []int64
		switch name {
		case inputIDs:
			data = ids
		case attentionMask:
			data = mask
		case tokenTypeIDs:
			data = types
		}
		t, err := ort.NewTensor(shape, data)
		if err != nil {
			return nil, fmt.Errorf("build %s tensor: %w", name, err)
		}
		feeds[i] = t
	}

	outputs := []ort.Value{nil}
	if err := e.session.Run(feeds, outputs); err != nil {
		return nil, fmt.Errorf("run model: %w", err)
	}
	defer func() {
		if outputs[0] != nil {
			_ = outputs[0].Destroy()
		}
	}()
	tensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unexpected output type %T", outputs[0])
	}
	vec, err := pool(tensor.GetData(), tensor.GetShape(), mask)
	if err != nil {
		return nil, err
	}
	normalize(vec)
	return vec, nil
}

func (e *Encoder) tokenize(text string) (ids, mask, types []int64, err error) {
	e.tkMu.Lock()
	enc, err := e.tk.EncodeSingle(text, true)
	e.tkMu.Unlock()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("tokenize: %w", err)
	}
	n := len(enc.Ids)
	if n == 0 {
		return nil, nil, nil, errors.New("tokenizer produced no tokens")
	}
	keep := n
	if keep > e.maxSeqLen {
		keep = e.maxSeqLen
	}
	ids = make([]int64, keep)
	mask = make([]int64, keep)
	types = make([]int64, keep)
	for i := 0; i < keep; i++ {
		// The closing special token survives truncation.
		src := i
		if keep < n && i == keep-1 {
			src = n - 1
		}
		ids[i] = int64(enc.Ids[src])
		mask[i] = 1
		if src < len(enc.AttentionMask) {
			mask[i] = int64(enc.AttentionMask[src])
		}
		if src < len(enc.TypeIds) {
			types[i] = int64(enc.TypeIds[src])
		}
	}
	return ids, mask, types, nil
}

// pool reduces [1, seq, hidden] token states to one vector using the
// attention mask. [1, hidden] outputs are already pooled.
func pool(data []float32, shape ort.Shape, mask []int64) ([]float32, error) {
	switch len(shape) {
	case 2:
		hidden := int(shape[1])
		if len(data) < hidden {
			return nil, fmt.Errorf("output shape %v does not match data", shape)
		}
		out := make([]float32, hidden)
		copy(out, data[:hidden])
		return out, nil
	case 3:
		seq, hidden := int(shape[1]), int(shape[2])
		if len(data) < seq*hidden || seq != len(mask) {
			return nil, fmt.Errorf("output shape %v does not match input", shape)
		}
		sum := make([]float64, hidden)
		var count float64
		for t := 0; t < seq; t++ {
			if mask[t] == 0 {
				continue
			}
			row := data[t*hidden : (t+1)*hidden]
			for j, v := range row {
				sum[j] += float64(v)
			}
			count++
		}
		if count == 0 {
			count = 1
		}
		out := make([]float32, hidden)
		for j := range sum {
			out[j] = float32(sum[j] / count)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported output rank %d", len(shape))
	}
}

func normalize(vec []float32) {
	var ss float64
	for _, v := range vec {
		ss += float64(v) * float64(v)
	}
	if ss == 0 {
		return
	}
	inv := float32(1 / math.Sqrt(ss))
	for i := range vec {
		vec[i] *= inv
	}
}

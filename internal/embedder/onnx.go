package embedder

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/dshills/eventsage/internal/vector"
)

// ONNXConfig locates a local BERT-style embedding model export
type ONNXConfig struct {
	ModelPath   string // model.onnx
	VocabPath   string // vocab.txt; default: next to the model
	LibraryPath string // libonnxruntime; default: next to the model
	Model       string // reported model name
}

// ortEnv guards the process-wide ONNX Runtime initialization
var ortEnv struct {
	once sync.Once
	err  error
}

func initORT(libPath string) error {
	ortEnv.once.Do(func() {
		ort.SetSharedLibraryPath(libPath)
		ortEnv.err = ort.InitializeEnvironment()
	})
	return ortEnv.err
}

// ONNXProvider runs a bge-style bi-encoder locally. Sentence embeddings are
// the L2-normalized [CLS] hidden state.
type ONNXProvider struct {
	mu      sync.RWMutex
	session *ort.DynamicAdvancedSession
	tok     *wordPiece
	inputs  []string
	output  string
	dim     int64
	model   string
	closed  bool
}

// NewONNXProvider loads the model and vocabulary. It is expensive and is
// normally called once through NewLazy.
func NewONNXProvider(cfg ONNXConfig) (*ONNXProvider, error) {
	if cfg.ModelPath == "" {
		return nil, fmt.Errorf("%w: onnx model path not set", ErrNoProviderEnabled)
	}
	dir := filepath.Dir(cfg.ModelPath)
	if cfg.VocabPath == "" {
		cfg.VocabPath = filepath.Join(dir, "vocab.txt")
	}
	if cfg.LibraryPath == "" {
		cfg.LibraryPath = filepath.Join(dir, "libonnxruntime.so")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultONNXModel
	}

	if err := initORT(cfg.LibraryPath); err != nil {
		return nil, fmt.Errorf("initialize onnx runtime: %w", err)
	}

	tok, err := loadWordPiece(cfg.VocabPath)
	if err != nil {
		return nil, err
	}

	inputs, outputs, err := ort.GetInputOutputInfo(cfg.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("read model info: %w", err)
	}
	inputNames, err := bertInputs(inputs)
	if err != nil {
		return nil, err
	}
	if len(outputs) == 0 {
		return nil, fmt.Errorf("onnx model has no outputs")
	}
	dims := outputs[0].Dimensions
	if len(dims) != 3 || dims[2] <= 0 {
		return nil, fmt.Errorf("expected [batch, seq, dim] output, got %v", dims)
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("create session options: %w", err)
	}
	defer func() { _ = opts.Destroy() }()
	_ = opts.SetIntraOpNumThreads(4)
	_ = opts.SetInterOpNumThreads(1)

	session, err := ort.NewDynamicAdvancedSession(cfg.ModelPath, inputNames, []string{outputs[0].Name}, opts)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	return &ONNXProvider{
		session: session,
		tok:     tok,
		inputs:  inputNames,
		output:  outputs[0].Name,
		dim:     dims[2],
		model:   cfg.Model,
	}, nil
}

// bertInputs returns the model inputs in feed order. token_type_ids is optional.
func bertInputs(inputs []ort.InputOutputInfo) ([]string, error) {
	have := make(map[string]bool, len(inputs))
	for _, in := range inputs {
		have[in.Name] = true
	}
	names := []string{"input_ids", "attention_mask"}
	for _, n := range names {
		if !have[n] {
			return nil, fmt.Errorf("onnx model missing input %q", n)
		}
	}
	if have["token_type_ids"] {
		names = append(names, "token_type_ids")
	}
	return names, nil
}

func (p *ONNXProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	resp, err := p.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: []string{req.Text}})
	if err != nil {
		return nil, err
	}
	return resp.Embeddings[0], nil
}

func (p *ONNXProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return nil, fmt.Errorf("%w: onnx session closed", ErrProviderFailed)
	}

	out := make([]*Embedding, 0, len(req.Texts))
	for start := 0; start < len(req.Texts); start += DefaultBatchSize {
		end := min(start+DefaultBatchSize, len(req.Texts))
		vecs, err := p.infer(req.Texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrProviderFailed, err)
		}
		for i, v := range vecs {
			out = append(out, &Embedding{
				Vector:    v,
				Dimension: len(v),
				Provider:  ProviderONNX,
				Model:     p.model,
				Hash:      ComputeHash(req.Texts[start+i]),
			})
		}
	}

	return &BatchEmbeddingResponse{Embeddings: out, Provider: ProviderONNX, Model: p.model}, nil
}

// infer runs one padded batch and returns the pooled vectors
func (p *ONNXProvider) infer(texts []string) ([][]float32, error) {
	encoded := make([][]int64, len(texts))
	seqLen := 0
	for i, t := range texts {
		encoded[i] = p.tok.encode(t)
		seqLen = max(seqLen, len(encoded[i]))
	}

	batch := int64(len(texts))
	ids := make([]int64, int(batch)*seqLen)
	mask := make([]int64, int(batch)*seqLen)
	types := make([]int64, int(batch)*seqLen)
	for i, seq := range encoded {
		off := i * seqLen
		copy(ids[off:], seq)
		for j := range seq {
			mask[off+j] = 1
		}
	}

	shape := ort.NewShape(batch, int64(seqLen))
	feeds := make([]ort.Value, 0, len(p.inputs))
	for _, name := range p.inputs {
		data := ids
		switch name {
		case "attention_mask":
			data = mask
		case "token_type_ids":
			data = types
		}
		t, err := ort.NewTensor(shape, data)
		if err != nil {
			return nil, fmt.Errorf("create %s tensor: %w", name, err)
		}
		defer func() { _ = t.Destroy() }()
		feeds = append(feeds, t)
	}

	outT, err := ort.NewEmptyTensor[float32](ort.NewShape(batch, int64(seqLen), p.dim))
	if err != nil {
		return nil, fmt.Errorf("create output tensor: %w", err)
	}
	defer func() { _ = outT.Destroy() }()

	if err := p.session.Run(feeds, []ort.Value{outT}); err != nil {
		return nil, fmt.Errorf("inference: %w", err)
	}

	data := outT.GetData()
	dim := int(p.dim)
	vecs := make([][]float32, len(texts))
	for i := range texts {
		off := i * seqLen * dim // [CLS] is position 0
		cls := make([]float32, dim)
		copy(cls, data[off:off+dim])
		vecs[i] = vector.Normalize(cls)
	}
	return vecs, nil
}

func (p *ONNXProvider) Dimension() int {
	return int(p.dim)
}

func (p *ONNXProvider) Provider() string {
	return ProviderONNX
}

func (p *ONNXProvider) Model() string {
	return p.model
}

func (p *ONNXProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.session.Destroy()
}

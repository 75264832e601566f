//go:build onnx

// Package onnx runs sentence-transformer models locally through ONNX
// Runtime. Build with -tags onnx and point Config at an exported MiniLM
// model plus its tokenizer.json. No server required; inference stays in
// process.
package onnx

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	ort "github.com/yalue/onnxruntime_go"
)

var logger = log.WithPrefix("onnx")

// BERT special token IDs shared by the MiniLM exports.
const (
	clsToken = 101
	sepToken = 102
	unkToken = 100
)

// Config configures the ONNX embedder.
type Config struct {
	// ModelPath is the path to the ONNX model file.
	ModelPath string

	// TokenizerPath is the path to the model's tokenizer.json.
	TokenizerPath string

	// LibraryPath locates libonnxruntime.so. Empty keeps the runtime's
	// platform default.
	LibraryPath string

	// Dimensions is the embedding vector size (default 384, the MiniLM
	// hidden size).
	Dimensions int

	// MaxSequenceLength caps tokenized input, [CLS] and [SEP] included
	// (default 128). Longer text is truncated.
	MaxSequenceLength int
}

// Embedder generates embeddings with an ONNX Runtime session. Close it to
// release the session.
type Embedder struct {
	session   *ort.DynamicAdvancedSession
	tokenizer *wordPieceTokenizer
	dims      int
	maxLen    int
}

// New loads the tokenizer and opens an inference session. The runtime
// environment is initialized once per process; later embedders reuse it,
// so only the first LibraryPath takes effect.
func New(cfg Config) (*Embedder, error) {
	if cfg.ModelPath == "" {
		return nil, fmt.Errorf("onnx: ModelPath is required")
	}
	if cfg.TokenizerPath == "" {
		return nil, fmt.Errorf("onnx: TokenizerPath is required")
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = 384
	}
	if cfg.MaxSequenceLength <= 0 {
		cfg.MaxSequenceLength = 128
	}

	if !ort.IsInitialized() {
		if cfg.LibraryPath != "" {
			ort.SetSharedLibraryPath(cfg.LibraryPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("onnx: initialize runtime: %w", err)
		}
	}

	tokenizer, err := loadTokenizer(cfg.TokenizerPath)
	if err != nil {
		return nil, fmt.Errorf("onnx: load tokenizer: %w", err)
	}

	// I/O names for sentence-transformers exports of the BERT family.
	session, err := ort.NewDynamicAdvancedSession(cfg.ModelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{"last_hidden_state"},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("onnx: create session: %w", err)
	}

	logger.Info("session ready", "model", cfg.ModelPath, "dimensions", cfg.Dimensions)

	return &Embedder{
		session:   session,
		tokenizer: tokenizer,
		dims:      cfg.Dimensions,
		maxLen:    cfg.MaxSequenceLength,
	}, nil
}

// Embed converts text to a unit-length embedding vector.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	inputIDs, attentionMask, tokenTypeIDs := e.encode(text)

	shape := ort.NewShape(1, int64(e.maxLen))
	idsTensor, err := ort.NewTensor(shape, inputIDs)
	if err != nil {
		return nil, fmt.Errorf("onnx: input_ids tensor: %w", err)
	}
	defer idsTensor.Destroy()

	maskTensor, err := ort.NewTensor(shape, attentionMask)
	if err != nil {
		return nil, fmt.Errorf("onnx: attention_mask tensor: %w", err)
	}
	defer maskTensor.Destroy()

	typesTensor, err := ort.NewTensor(shape, tokenTypeIDs)
	if err != nil {
		return nil, fmt.Errorf("onnx: token_type_ids tensor: %w", err)
	}
	defer typesTensor.Destroy()

	// Run allocates the output tensor for the nil slot.
	outputs := []ort.Value{nil}
	if err := e.session.Run([]ort.Value{idsTensor, maskTensor, typesTensor}, outputs); err != nil {
		return nil, fmt.Errorf("onnx: inference: %w", err)
	}
	defer func() {
		for _, out := range outputs {
			if out != nil {
				out.Destroy()
			}
		}
	}()

	if len(outputs) == 0 || outputs[0] == nil {
		return nil, fmt.Errorf("onnx: no output tensor returned")
	}
	tensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("onnx: unexpected output tensor type %T", outputs[0])
	}

	embedding, err := e.pool(tensor, attentionMask)
	if err != nil {
		return nil, err
	}
	normalize(embedding)
	return embedding, nil
}

// EmbedBatch embeds texts one at a time; the session is reused across
// calls.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// Dimensions returns the embedding vector size.
func (e *Embedder) Dimensions() int {
	return e.dims
}

// Close releases the inference session.
func (e *Embedder) Close() error {
	if e.session != nil {
		if err := e.session.Destroy(); err != nil {
			return err
		}
		e.session = nil
	}
	return nil
}

// encode tokenizes text into fixed-length [CLS] ... [SEP] input slices.
func (e *Embedder) encode(text string) (inputIDs, attentionMask, tokenTypeIDs []int64) {
	tokens := e.tokenizer.tokenize(text)

	inputIDs = make([]int64, e.maxLen)
	attentionMask = make([]int64, e.maxLen)
	tokenTypeIDs = make([]int64, e.maxLen)

	inputIDs[0] = clsToken
	attentionMask[0] = 1

	n := len(tokens)
	if n > e.maxLen-2 {
		n = e.maxLen - 2
	}
	for i := 0; i < n; i++ {
		inputIDs[i+1] = tokens[i]
		attentionMask[i+1] = 1
	}

	inputIDs[n+1] = sepToken
	attentionMask[n+1] = 1
	return inputIDs, attentionMask, tokenTypeIDs
}

// pool reduces the model output to a single vector. Pooled exports
// ([1, dims]) pass through; token-level exports ([1, seq, dims]) are
// mean-pooled over attended positions.
func (e *Embedder) pool(tensor *ort.Tensor[float32], attentionMask []int64) ([]float32, error) {
	data := tensor.GetData()
	shape := tensor.GetShape()

	switch len(shape) {
	case 2:
		if len(data) < e.dims {
			return nil, fmt.Errorf("onnx: output has %d values, expected %d", len(data), e.dims)
		}
		embedding := make([]float32, e.dims)
		copy(embedding, data[:e.dims])
		return embedding, nil

	case 3:
		batch, seqLen, hidden := shape[0], shape[1], shape[2]
		if batch != 1 {
			return nil, fmt.Errorf("onnx: expected batch size 1, got %d", batch)
		}
		if hidden != int64(e.dims) {
			return nil, fmt.Errorf("onnx: hidden size %d, expected %d", hidden, e.dims)
		}

		embedding := make([]float32, e.dims)
		var attended float32
		for i := 0; i < int(seqLen); i++ {
			if i >= len(attentionMask) || attentionMask[i] == 0 {
				continue
			}
			attended++
			offset := i * e.dims
			for j := 0; j < e.dims; j++ {
				embedding[j] += data[offset+j]
			}
		}
		if attended > 0 {
			for j := range embedding {
				embedding[j] /= attended
			}
		}
		return embedding, nil

	default:
		return nil, fmt.Errorf("onnx: unexpected output shape %v", shape)
	}
}

// normalize scales vec to unit length in place.
func normalize(vec []float32) {
	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return
	}
	norm = float32(math.Sqrt(float64(norm)))
	for i := range vec {
		vec[i] /= norm
	}
}

// wordPieceTokenizer implements the BERT WordPiece scheme over a
// tokenizer.json vocabulary.
type wordPieceTokenizer struct {
	vocab map[string]int
}

func loadTokenizer(path string) (*wordPieceTokenizer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var file struct {
		Model struct {
			Vocab map[string]int `json:"vocab"`
		} `json:"model"`
	}
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	if len(file.Model.Vocab) == 0 {
		return nil, fmt.Errorf("no vocabulary in %s", path)
	}

	return &wordPieceTokenizer{vocab: file.Model.Vocab}, nil
}

// tokenize converts text to token IDs. BERT vocabularies are lowercase.
func (t *wordPieceTokenizer) tokenize(text string) []int64 {
	var tokens []int64
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,!?;:\"'")
		if word == "" {
			continue
		}

		if id, ok := t.vocab[word]; ok {
			tokens = append(tokens, int64(id))
			continue
		}
		for _, piece := range t.wordPieces(word) {
			if id, ok := t.vocab[piece]; ok {
				tokens = append(tokens, int64(id))
			} else {
				tokens = append(tokens, unkToken)
			}
		}
	}
	return tokens
}

// wordPieces splits an out-of-vocabulary word into longest-prefix
// subwords, marking continuations with ##.
func (t *wordPieceTokenizer) wordPieces(word string) []string {
	var pieces []string
	start := 0
	for start < len(word) {
		end := len(word)
		matched := false
		for end > start {
			piece := word[start:end]
			if start > 0 {
				piece = "##" + piece
			}
			if _, ok := t.vocab[piece]; ok {
				pieces = append(pieces, piece)
				start = end
				matched = true
				break
			}
			end--
		}
		if !matched {
			pieces = append(pieces, "[UNK]")
			start++
		}
	}
	return pieces
}

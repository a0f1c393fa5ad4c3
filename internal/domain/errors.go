// Sentinel errors for the evaluation pipeline.
// Gateway adapters wrap their failures with one of the kind errors so callers can
// use errors.Is() on both the kind and the underlying cause.
package domain

import (
	"errors"
	"fmt"
)

// Error kinds surfaced per item.
var (
	// ErrEmbedding indicates the embedding backend is unreachable or returned a bad vector.
	ErrEmbedding = errors.New("embedding error")

	// ErrRetrieval indicates the vector index is unreachable or the collection is absent.
	ErrRetrieval = errors.New("retrieval error")

	// ErrRerank indicates the reranker scoring backend failed.
	ErrRerank = errors.New("rerank error")

	// ErrGeneration indicates the generation backend failed.
	ErrGeneration = errors.New("generation error")

	// ErrJudge indicates the judge backend failed or its verdict could not be parsed.
	ErrJudge = errors.New("judge error")

	// ErrConfiguration indicates invalid thresholds or retrieval parameters.
	// It is fatal and raised before any item is processed.
	ErrConfiguration = errors.New("configuration error")
)

// Finer-grained causes wrapped together with a kind.
var (
	// ErrDimensionMismatch indicates the query vector does not match the index dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrCollectionNotFound indicates the configured collection does not exist.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrVerdictUnparsable indicates the judge response is not a well-formed verdict.
	ErrVerdictUnparsable = errors.New("verdict unparsable")

	// ErrBackendUnsupported indicates a configuration tag names no known backend.
	ErrBackendUnsupported = errors.New("backend not supported")
)

// ErrorKind is the stable name of an error kind, used in item records and metrics labels.
type ErrorKind string

const (
	ErrorKindNone          ErrorKind = ""
	ErrorKindEmbedding     ErrorKind = "embedding_error"
	ErrorKindRetrieval     ErrorKind = "retrieval_error"
	ErrorKindRerank        ErrorKind = "rerank_error"
	ErrorKindGeneration    ErrorKind = "generation_error"
	ErrorKindJudge         ErrorKind = "judge_error"
	ErrorKindConfiguration ErrorKind = "configuration_error"
	ErrorKindUnknown       ErrorKind = "unknown_error"
)

// KindOf maps err to its ErrorKind. A nil error maps to ErrorKindNone.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ErrorKindNone
	case errors.Is(err, ErrConfiguration):
		return ErrorKindConfiguration
	case errors.Is(err, ErrEmbedding):
		return ErrorKindEmbedding
	case errors.Is(err, ErrRetrieval):
		return ErrorKindRetrieval
	case errors.Is(err, ErrRerank):
		return ErrorKindRerank
	case errors.Is(err, ErrGeneration):
		return ErrorKindGeneration
	case errors.Is(err, ErrJudge):
		return ErrorKindJudge
	default:
		return ErrorKindUnknown
	}
}

// WrapKind tags err with kind unless it already carries it.
func WrapKind(kind error, op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, kind) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", kind, op, err)
}

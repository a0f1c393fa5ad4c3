package domain

import (
	"encoding/json"
	"time"
)

// PayloadTextKey is the payload field holding passage content.
const PayloadTextKey = "text"

// Candidate is one retrieved passage, before or after reranking.
type Candidate struct {
	Text    string         `json:"text"`
	Payload map[string]any `json:"payload,omitempty"`
	// BaseScore is the similarity score from the vector index; nil for degenerate backends.
	BaseScore *float64 `json:"base_score,omitempty"`
	// RerankScore is set only after reranking.
	RerankScore *float64 `json:"rerank_score,omitempty"`
}

// RetrievalParams are the per-call retrieval knobs.
type RetrievalParams struct {
	DenseTopK     int  `json:"dense_top_k"`
	RerankEnabled bool `json:"rerank_enabled"`
	RerankTopN    int  `json:"rerank_top_n"`
}

// StageTimings brackets each retrieval stage with wall-clock deltas.
// Total is the sum of the three stage deltas, not an end-to-end measurement.
type StageTimings struct {
	EmbedQuery time.Duration
	Retrieve   time.Duration
	Rerank     time.Duration
	Total      time.Duration
}

// NewStageTimings builds timings whose Total is the sum of the stages.
func NewStageTimings(embedQuery, retrieve, rerank time.Duration) StageTimings {
	return StageTimings{
		EmbedQuery: embedQuery,
		Retrieve:   retrieve,
		Rerank:     rerank,
		Total:      embedQuery + retrieve + rerank,
	}
}

type stageTimingsJSON struct {
	EmbedQueryMs float64 `json:"embed_query_ms"`
	RetrieveMs   float64 `json:"retrieve_ms"`
	RerankMs     float64 `json:"rerank_ms"`
	TotalMs      float64 `json:"total_ms"`
}

// MarshalJSON renders the timings in milliseconds.
func (t StageTimings) MarshalJSON() ([]byte, error) {
	return json.Marshal(stageTimingsJSON{
		EmbedQueryMs: Millis(t.EmbedQuery),
		RetrieveMs:   Millis(t.Retrieve),
		RerankMs:     Millis(t.Rerank),
		TotalMs:      Millis(t.Total),
	})
}

// UnmarshalJSON reads timings written by MarshalJSON.
func (t *StageTimings) UnmarshalJSON(data []byte) error {
	var raw stageTimingsJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*t = NewStageTimings(fromMillis(raw.EmbedQueryMs), fromMillis(raw.RetrieveMs), fromMillis(raw.RerankMs))
	return nil
}

// Millis converts a duration to fractional milliseconds.
func Millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func fromMillis(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}

// RetrievalResult is the output of one retrieval execution.
// TopDenseScore and TopRerankScore are read off the first element of DenseResults
// and FinalResults respectively, and are 0 when that list is empty. TopRerankScore is
// nil only when reranking did not run.
type RetrievalResult struct {
	Question       string          `json:"question"`
	Params         RetrievalParams `json:"params"`
	DenseResults   []Candidate     `json:"dense_results"`
	FinalResults   []Candidate     `json:"final_results"`
	TopDenseScore  float64         `json:"top_dense_score"`
	TopRerankScore *float64        `json:"top_rerank_score,omitempty"`
	Timings        StageTimings    `json:"timings"`
}

// NewRetrievalResult derives the top scores from the ordered sequences.
// When reranked is nil the final order equals the dense order and no rerank score is set.
// A non-nil but empty reranked list means reranking ran and kept nothing; its top score is 0.
func NewRetrievalResult(question string, params RetrievalParams, dense, reranked []Candidate, timings StageTimings) RetrievalResult {
	if dense == nil {
		dense = []Candidate{}
	}
	res := RetrievalResult{
		Question:     question,
		Params:       params,
		DenseResults: dense,
		FinalResults: dense,
		Timings:      timings,
	}
	if len(dense) > 0 && dense[0].BaseScore != nil {
		res.TopDenseScore = *dense[0].BaseScore
	}
	if reranked != nil {
		res.FinalResults = reranked
		var top float64
		if len(reranked) > 0 && reranked[0].RerankScore != nil {
			top = *reranked[0].RerankScore
		}
		res.TopRerankScore = &top
	}
	return res
}

// ContextPassages returns the final ordered passage texts handed to generation.
func (r RetrievalResult) ContextPassages() []string {
	out := make([]string, 0, len(r.FinalResults))
	for _, c := range r.FinalResults {
		out = append(out, c.Text)
	}
	return out
}

// Float64Ptr returns a pointer to v.
func Float64Ptr(v float64) *float64 {
	return &v
}

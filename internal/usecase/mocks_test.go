package usecase_test

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"ragbench/internal/domain"

	"github.com/stretchr/testify/mock"
)

// fakeRetriever returns a canned result per question. Safe for concurrent use.
type fakeRetriever struct {
	results map[string]*domain.RetrievalResult
	errs    map[string]error
	calls   atomic.Int32
}

func (f *fakeRetriever) Retrieve(ctx context.Context, question string, params domain.RetrievalParams) (*domain.RetrievalResult, error) {
	f.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, domain.WrapKind(domain.ErrRetrieval, "search", err)
	}
	if err, ok := f.errs[question]; ok {
		return nil, err
	}
	res, ok := f.results[question]
	if !ok {
		empty := domain.NewRetrievalResult(question, params, nil, nil, domain.StageTimings{})
		return &empty, nil
	}
	cp := *res
	cp.Params = params
	return &cp, nil
}

type mockGenerator struct {
	mock.Mock
	model string
}

func (m *mockGenerator) Generate(ctx context.Context, question string, passages []string) (*domain.Answer, error) {
	args := m.Called(ctx, question, passages)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Answer), args.Error(1)
}

func (m *mockGenerator) Model() string { return m.model }

type mockJudge struct {
	mock.Mock
}

func (m *mockJudge) Judge(ctx context.Context, question, answer string, passages []string) (*domain.Verdict, domain.TokenUsage, error) {
	args := m.Called(ctx, question, answer, passages)
	var v *domain.Verdict
	if args.Get(0) != nil {
		v = args.Get(0).(*domain.Verdict)
	}
	return v, args.Get(1).(domain.TokenUsage), args.Error(2)
}

func (m *mockJudge) Model() string { return "gpt-4.1-mini" }

// memRunRepo is an in-memory domain.RunRepository.
type memRunRepo struct {
	mu    sync.Mutex
	runs  map[string]*domain.RunRecord
	items map[string][]domain.ItemResult
	err   error
}

func newMemRunRepo() *memRunRepo {
	return &memRunRepo{runs: map[string]*domain.RunRecord{}, items: map[string][]domain.ItemResult{}}
}

func (r *memRunRepo) CreateRun(ctx context.Context, run *domain.RunRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	cp := *run
	r.runs[run.ID] = &cp
	return nil
}

func (r *memRunRepo) AcquireNextQueued(ctx context.Context) (*domain.RunRecord, error) {
	return nil, nil
}

func (r *memRunRepo) FinishRun(ctx context.Context, id string, status domain.RunStatus, summary json.RawMessage, errMsg *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	if !ok {
		return domain.ErrConfiguration
	}
	run.Status = status
	run.Summary = summary
	if errMsg != nil {
		run.Error = *errMsg
	}
	return nil
}

func (r *memRunRepo) GetRun(ctx context.Context, id string) (*domain.RunRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	if !ok {
		return nil, nil
	}
	cp := *run
	return &cp, nil
}

func (r *memRunRepo) ListRuns(ctx context.Context, limit int) ([]domain.RunRecord, error) {
	return nil, nil
}

func (r *memRunRepo) InsertItems(ctx context.Context, runID, cell string, results []domain.ItemResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := runID + "|" + cell
	r.items[key] = append(r.items[key], results...)
	return nil
}

func (r *memRunRepo) ListItems(ctx context.Context, runID, cell string) ([]domain.ItemResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.items[runID+"|"+cell], nil
}

type staticLoader struct {
	items []domain.BenchItem
	err   error
}

func (l staticLoader) LoadBench(path string) ([]domain.BenchItem, error) {
	return l.items, l.err
}

// --- fixtures ---

func strPtr(s string) *string { return &s }

func answerable(id, question, gold string, mustContain ...string) domain.BenchItem {
	return domain.BenchItem{ID: id, Question: question, GoldAnswer: strPtr(gold), MustContain: mustContain}
}

func unanswerable(id, question string) domain.BenchItem {
	return domain.BenchItem{ID: id, Question: question}
}

// retrieved builds a retrieval result whose dense and final lists hold texts in
// order. rerank nil means reranking was disabled.
func retrieved(question string, dense float64, rerank *float64, texts ...string) *domain.RetrievalResult {
	cands := make([]domain.Candidate, len(texts))
	for i, t := range texts {
		cands[i] = domain.Candidate{Text: t, BaseScore: domain.Float64Ptr(dense - float64(i)*0.01)}
	}
	var reranked []domain.Candidate
	if rerank != nil {
		reranked = make([]domain.Candidate, len(cands))
		for i, c := range cands {
			c.RerankScore = domain.Float64Ptr(*rerank - float64(i)*0.01)
			reranked[i] = c
		}
	}
	timings := domain.NewStageTimings(2_000_000, 3_000_000, 5_000_000)
	res := domain.NewRetrievalResult(question, domain.RetrievalParams{}, cands, reranked, timings)
	return &res
}

func defaultParams() domain.RetrievalParams {
	return domain.RetrievalParams{DenseTopK: 10, RerankEnabled: true, RerankTopN: 3}
}

var defaultThresholds = domain.Thresholds{Dense: 0.3, Rerank: 0.2}

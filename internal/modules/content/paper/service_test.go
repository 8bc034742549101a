package paper

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/paperchain/core/internal/models"
	"github.com/paperchain/core/internal/modules/identity"
	"github.com/paperchain/core/internal/modules/processing/analysis"
	"github.com/paperchain/core/internal/pkg/ipfs"
	"github.com/paperchain/core/internal/pkg/signature"
	"github.com/paperchain/core/internal/pkg/taskqueue"
	"github.com/paperchain/core/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memStore struct {
	mu      sync.Mutex
	next    int
	objects map[string][]byte
	failErr error
}

func newMemStore() *memStore {
	return &memStore{objects: make(map[string][]byte)}
}

func (s *memStore) put(data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return "", s.failErr
	}
	s.next++
	cid := "QmFake" + strconv.Itoa(s.next)
	s.objects[cid] = data
	return cid, nil
}

func (s *memStore) Upload(_ context.Context, _ string, data []byte) (string, error) {
	return s.put(data)
}

func (s *memStore) UploadJSON(_ context.Context, _ string, v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return s.put(data)
}

func (s *memStore) Retrieve(_ context.Context, cid string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[cid]
	if !ok {
		return nil, ipfs.ErrNotFound
	}
	return data, nil
}

func (s *memStore) Exists(_ context.Context, cid string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[cid]
	return ok
}

type stubModel struct {
	mu     sync.Mutex
	rating int
	err    error
	calls  int
}

func (m *stubModel) Complete(context.Context, string, string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	return `{"plagiarismCheck":"none","referenceVerification":"ok","contentSummary":"fine","qualityRating":` +
		strconv.Itoa(m.rating) + `}`, nil
}

func (m *stubModel) setRating(r int) {
	m.mu.Lock()
	m.rating = r
	m.mu.Unlock()
}

type countingRecorder struct {
	mu        sync.Mutex
	papers    int
	reviews   int
	tokens    map[string]int
	uploadErr int
}

func (r *countingRecorder) PaperSubmitted() { r.mu.Lock(); r.papers++; r.mu.Unlock() }

func (r *countingRecorder) ReviewSubmitted() { r.mu.Lock(); r.reviews++; r.mu.Unlock() }

func (r *countingRecorder) TokensAwarded(reason string, amount int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.tokens == nil {
		r.tokens = make(map[string]int)
	}
	r.tokens[reason] += amount
}

func (r *countingRecorder) Upload(_ string, err error) {
	if err != nil {
		r.mu.Lock()
		r.uploadErr++
		r.mu.Unlock()
	}
}

type harness struct {
	svc        *Service
	repo       *repository.Memory
	store      *memStore
	model      *stubModel
	dispatcher *taskqueue.Dispatcher
	recorder   *countingRecorder
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	repo := repository.NewMemory()
	store := newMemStore()
	model := &stubModel{rating: 5}
	rec := &countingRecorder{}
	logger := zap.NewNop()
	dispatcher := taskqueue.NewDispatcher(context.Background(), logger)
	t.Cleanup(dispatcher.Wait)

	svc := NewService(Deps{
		Repo:       repo,
		Identities: identity.NewResolver(repo, logger),
		Store:      store,
		Analyzer:   analysis.NewService(repo, store, model, logger),
		Dispatcher: dispatcher,
		Recorder:   rec,
		Logger:     logger,
	})
	svc.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }
	return &harness{svc: svc, repo: repo, store: store, model: model, dispatcher: dispatcher, recorder: rec}
}

func (h *harness) balance(t *testing.T, wallet string) int {
	t.Helper()
	u, err := h.repo.GetUserByWallet(context.Background(), wallet)
	require.NoError(t, err)
	require.NotNil(t, u)
	return u.TokenBalance
}

func submission(wallet string) SubmitPaperDTO {
	return SubmitPaperDTO{
		Title:         "On Graphs",
		Abstract:      strings.Repeat("graph theory ", 6),
		IPFSCid:       "QmPaper",
		Tags:          []string{"math", " graphs "},
		WalletAddress: wallet,
	}
}

func reviewOf(wallet string, rating int) CreateReviewDTO {
	return CreateReviewDTO{
		Content:       strings.Repeat("solid work ", 6),
		Rating:        rating,
		WalletAddress: wallet,
	}
}

func TestSubmit_CreatesAuthorAndAwardsBonus(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	p, err := h.svc.Submit(ctx, submission("0xAA"))
	require.NoError(t, err)
	h.dispatcher.Wait()

	assert.Equal(t, uint(1), p.ID)
	assert.Equal(t, models.PaperSubmitted, p.Status)
	assert.Equal(t, models.StringArray{"math", "graphs"}, p.Tags)
	assert.Equal(t, 3, h.balance(t, "0xaa"))
	assert.Equal(t, 1, h.recorder.papers)
	assert.Equal(t, 3, h.recorder.tokens[repository.SubmissionReason])
	assert.Equal(t, 1, h.model.calls)

	author, err := h.repo.GetUserByWallet(ctx, "0xaa")
	require.NoError(t, err)
	assert.Equal(t, "user_aa", author.Username)
}

func TestSubmit_SameWalletReusesAuthor(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first, err := h.svc.Submit(ctx, submission("0xAA"))
	require.NoError(t, err)
	second, err := h.svc.Submit(ctx, submission("0xaa"))
	require.NoError(t, err)
	h.dispatcher.Wait()

	assert.Equal(t, first.AuthorID, second.AuthorID)
	assert.Equal(t, 6, h.balance(t, "0xaa"))
}

func TestSubmit_Signature(t *testing.T) {
	h := newHarness(t)
	key, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	wallet := signature.AddressOf(key)

	dto := submission(wallet)
	dto.Signature = signature.Sign(signature.SubmissionMessage(dto.Title, dto.IPFSCid), key)
	_, err = h.svc.Submit(context.Background(), dto)
	require.NoError(t, err)

	other, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	forged := submission(signature.AddressOf(other))
	forged.Signature = dto.Signature
	_, err = h.svc.Submit(context.Background(), forged)
	assert.ErrorIs(t, err, ErrInvalidSignature)

	u, err := h.repo.GetUserByWallet(context.Background(), signature.AddressOf(other))
	require.NoError(t, err)
	assert.Nil(t, u, "rejected submissions must not create users")
	h.dispatcher.Wait()
}

func TestSubmit_HighRatingVerifiesInBackground(t *testing.T) {
	h := newHarness(t)
	h.model.setRating(8)

	p, err := h.svc.Submit(context.Background(), submission("0xaa"))
	require.NoError(t, err)
	h.dispatcher.Wait()

	got, err := h.repo.GetPaper(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaperVerified, got.Status)
	assert.True(t, got.AIVerified)
	require.NotNil(t, got.AIAnalysis)
	assert.Equal(t, 8, got.AIAnalysis.QualityRating)
	assert.Equal(t, 13, h.balance(t, "0xaa"))
}

func TestSubmit_AnalysisFailureKeepsPaper(t *testing.T) {
	h := newHarness(t)
	h.model.err = errors.New("upstream down")

	p, err := h.svc.Submit(context.Background(), submission("0xaa"))
	require.NoError(t, err)
	h.dispatcher.Wait()

	got, err := h.repo.GetPaper(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaperSubmitted, got.Status)
	assert.Nil(t, got.AIAnalysis)
}

func TestReview_PinsAwardsAndAdvancesStatus(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	p, err := h.svc.Submit(ctx, submission("0xaa"))
	require.NoError(t, err)
	h.dispatcher.Wait()
	_, err = h.svc.identities.Resolve(ctx, "0xbb")
	require.NoError(t, err)
	_, err = h.svc.identities.Resolve(ctx, "0xcc")
	require.NoError(t, err)

	r, err := h.svc.Review(ctx, p.ID, reviewOf("0xBB", 4))
	require.NoError(t, err)
	assert.Equal(t, 5, h.balance(t, "0xbb"))

	pinned, err := h.store.Retrieve(ctx, r.IPFSCid)
	require.NoError(t, err)
	var payload map[string]any
	require.NoError(t, json.Unmarshal(pinned, &payload))
	assert.Equal(t, float64(p.ID), payload["paperId"])
	assert.Equal(t, "0xbb", payload["reviewer"])
	assert.Equal(t, float64(4), payload["rating"])
	assert.Equal(t, "2024-03-01T12:00:00Z", payload["timestamp"])

	got, err := h.repo.GetPaper(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaperSubmitted, got.Status)
	assert.Equal(t, 5, got.TokenCount)

	_, err = h.svc.Review(ctx, p.ID, reviewOf("0xcc", 2))
	require.NoError(t, err)
	got, err = h.repo.GetPaper(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaperReviewed, got.Status)
	assert.Equal(t, 10, got.TokenCount)
	assert.Equal(t, 2, h.recorder.reviews)

	reviews, err := h.svc.Reviews(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, reviews, 2)
	assert.Equal(t, "user_cc", reviews[0].Reviewer.Username)
}

func TestReview_Rejections(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	p, err := h.svc.Submit(ctx, submission("0xaa"))
	require.NoError(t, err)
	h.dispatcher.Wait()

	_, err = h.svc.Review(ctx, 99, reviewOf("0xaa", 3))
	assert.ErrorIs(t, err, ErrPaperNotFound)

	_, err = h.svc.Review(ctx, p.ID, reviewOf("0xdd", 3))
	assert.ErrorIs(t, err, ErrReviewerNotFound)

	_, err = h.svc.Review(ctx, p.ID, reviewOf("0xAA", 3))
	assert.ErrorIs(t, err, ErrSelfReview)

	assert.Empty(t, h.store.objects, "nothing should be pinned for rejected reviews")
}

func TestReview_PinFailureAborts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	p, err := h.svc.Submit(ctx, submission("0xaa"))
	require.NoError(t, err)
	h.dispatcher.Wait()
	_, err = h.svc.identities.Resolve(ctx, "0xbb")
	require.NoError(t, err)

	h.store.failErr = errors.New("pinning service unavailable")
	_, err = h.svc.Review(ctx, p.ID, reviewOf("0xbb", 4))
	assert.ErrorIs(t, err, ErrPinFailed)
	assert.Equal(t, 1, h.recorder.uploadErr)

	count, err := h.repo.CountReviews(ctx, p.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Zero(t, h.balance(t, "0xbb"))
}

func TestGet_IncrementsViews(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	p, err := h.svc.Submit(ctx, submission("0xaa"))
	require.NoError(t, err)
	h.dispatcher.Wait()

	_, err = h.svc.Get(ctx, p.ID)
	require.NoError(t, err)
	got, err := h.svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.ViewCount)
	assert.Equal(t, "user_aa", got.Author.Username)

	_, err = h.svc.Get(ctx, 42)
	assert.ErrorIs(t, err, ErrPaperNotFound)
}

func TestReanalyze(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	p, err := h.svc.Submit(ctx, submission("0xaa"))
	require.NoError(t, err)
	h.dispatcher.Wait()

	h.model.setRating(9)
	res, err := h.svc.Reanalyze(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaperVerified, res.Status)
	assert.True(t, res.AIVerified)
	assert.Equal(t, 9, res.Analysis.QualityRating)
	assert.Equal(t, string(analysis.ModeFull), res.Mode)
	assert.Equal(t, 13, h.balance(t, "0xaa"))

	_, err = h.svc.Reanalyze(ctx, 77)
	assert.ErrorIs(t, err, ErrPaperNotFound)
}

func TestReanalyze_WithoutAnalyzer(t *testing.T) {
	repo := repository.NewMemory()
	ctx := context.Background()
	author, _, err := repo.FindOrCreateUserByWallet(ctx, "0xaa", models.UserModel{Username: "user_aa"})
	require.NoError(t, err)
	p, err := repo.CreatePaper(ctx, repository.NewPaper{
		Title:    "Paper",
		Abstract: strings.Repeat("a", 60),
		AuthorID: author.ID,
		IPFSCid:  "bafy-paper",
	})
	require.NoError(t, err)

	svc := NewService(Deps{Repo: repo})
	_, err = svc.Reanalyze(ctx, p.ID)
	assert.ErrorIs(t, err, analysis.ErrNoModel)

	_, err = svc.Reanalyze(ctx, 999)
	assert.ErrorIs(t, err, ErrPaperNotFound)
}

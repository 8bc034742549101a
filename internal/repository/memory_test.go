package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/paperchain/core/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUser(t *testing.T, repo *Memory, wallet string) *models.UserModel {
	t.Helper()
	u, _, err := repo.FindOrCreateUserByWallet(context.Background(), wallet, models.UserModel{Username: "user_" + wallet})
	require.NoError(t, err)
	return u
}

func TestFindOrCreateUserByWallet_Idempotent(t *testing.T) {
	repo := NewMemory()
	ctx := context.Background()

	first, created, err := repo.FindOrCreateUserByWallet(ctx, "0xAbC", models.UserModel{Username: "user_abc"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 0, first.TokenBalance)
	assert.Equal(t, "0xabc", first.Wallet())

	second, created, err := repo.FindOrCreateUserByWallet(ctx, "0xABC", models.UserModel{Username: "other"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "user_abc", second.Username)
}

func TestFindOrCreateUserByWallet_EmptyWallet(t *testing.T) {
	_, _, err := NewMemory().FindOrCreateUserByWallet(context.Background(), "  ", models.UserModel{})
	assert.ErrorIs(t, err, ErrEmptyWallet)
}

func TestFindOrCreateUserByWallet_UsernameCollision(t *testing.T) {
	repo := NewMemory()
	ctx := context.Background()

	a, _, err := repo.FindOrCreateUserByWallet(ctx, "0x1", models.UserModel{Username: "user_same"})
	require.NoError(t, err)
	b, _, err := repo.FindOrCreateUserByWallet(ctx, "0x2", models.UserModel{Username: "user_same"})
	require.NoError(t, err)

	assert.Equal(t, "user_same", a.Username)
	assert.Equal(t, "user_same_2", b.Username)
}

func TestCreatePaper_InitialState(t *testing.T) {
	repo := NewMemory()
	ctx := context.Background()
	author := newUser(t, repo, "0xaa")

	p, err := repo.CreatePaper(ctx, NewPaper{Title: "X", Abstract: "abstract", AuthorID: author.ID, IPFSCid: "Qm1", Tags: []string{" ml ", ""}})
	require.NoError(t, err)

	assert.Equal(t, uint(1), p.ID)
	assert.Equal(t, models.PaperSubmitted, p.Status)
	assert.Equal(t, 0, p.ViewCount)
	assert.Equal(t, 0, p.TokenCount)
	assert.False(t, p.AIVerified)
	assert.Nil(t, p.AIAnalysis)
	assert.Equal(t, models.StringArray{"ml"}, p.Tags)

	u, err := repo.GetUser(ctx, author.ID)
	require.NoError(t, err)
	assert.Equal(t, SubmissionBonus, u.TokenBalance)

	ledger, err := repo.GetUserTokens(ctx, author.ID)
	require.NoError(t, err)
	require.Len(t, ledger, 1)
	assert.Equal(t, SubmissionReason, ledger[0].Reason)
}

func TestCreatePaper_UnknownAuthor(t *testing.T) {
	_, err := NewMemory().CreatePaper(context.Background(), NewPaper{Title: "X", AuthorID: 42, IPFSCid: "Qm"})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestGetAllPapers_NewestFirstWithReviewCount(t *testing.T) {
	repo := NewMemory()
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	repo.SetClock(func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	})

	author := newUser(t, repo, "0xaa")
	reviewer := newUser(t, repo, "0xbb")
	older, err := repo.CreatePaper(ctx, NewPaper{Title: "old", AuthorID: author.ID, IPFSCid: "a"})
	require.NoError(t, err)
	newer, err := repo.CreatePaper(ctx, NewPaper{Title: "new", AuthorID: author.ID, IPFSCid: "b"})
	require.NoError(t, err)
	_, err = repo.CreateReview(ctx, NewReview{PaperID: older.ID, ReviewerID: reviewer.ID, Rating: 4, IPFSCid: "r"})
	require.NoError(t, err)

	papers, err := repo.GetAllPapers(ctx)
	require.NoError(t, err)
	require.Len(t, papers, 2)
	assert.Equal(t, newer.ID, papers[0].ID)
	assert.Equal(t, older.ID, papers[1].ID)
	assert.Equal(t, 1, papers[1].ReviewCount)
	assert.Equal(t, author.Username, papers[0].Author.Username)
}

func TestGetPaperWithAuthor_MissingAuthorFallsBack(t *testing.T) {
	repo := NewMemory()
	ctx := context.Background()
	author := newUser(t, repo, "0xaa")
	p, err := repo.CreatePaper(ctx, NewPaper{Title: "X", AuthorID: author.ID, IPFSCid: "c"})
	require.NoError(t, err)

	repo.mu.Lock()
	delete(repo.users, author.ID)
	repo.mu.Unlock()

	joined, err := repo.GetPaperWithAuthor(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, joined)
	assert.Equal(t, "Unknown Author", joined.Author.Username)

	all, err := repo.GetAllPapers(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Unknown Author", all[0].Author.Username)
}

func TestTargetedUpdates_MissingPaper(t *testing.T) {
	repo := NewMemory()
	ctx := context.Background()

	ok, err := repo.UpdatePaperStatus(ctx, 99, models.PaperVerified)
	assert.NoError(t, err)
	assert.False(t, ok)
	ok, _ = repo.UpdatePaperAIVerified(ctx, 99, true)
	assert.False(t, ok)
	ok, _ = repo.UpdatePaperAIAnalysis(ctx, 99, &models.AIAnalysis{QualityRating: 5})
	assert.False(t, ok)
	ok, _ = repo.IncrementPaperViews(ctx, 99)
	assert.False(t, ok)
}

func TestTargetedUpdates(t *testing.T) {
	repo := NewMemory()
	ctx := context.Background()
	author := newUser(t, repo, "0xaa")
	p, err := repo.CreatePaper(ctx, NewPaper{Title: "X", AuthorID: author.ID, IPFSCid: "c"})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		ok, err := repo.IncrementPaperViews(ctx, p.ID)
		require.NoError(t, err)
		require.True(t, ok)
	}
	analysis := &models.AIAnalysis{ContentSummary: "ok", QualityRating: 9}
	ok, _ := repo.UpdatePaperAIAnalysis(ctx, p.ID, analysis)
	require.True(t, ok)
	analysis.QualityRating = 1

	got, err := repo.GetPaper(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.ViewCount)
	require.NotNil(t, got.AIAnalysis)
	assert.Equal(t, 9, got.AIAnalysis.QualityRating)
}

func TestCreateReview_SecondReviewMarksReviewed(t *testing.T) {
	repo := NewMemory()
	ctx := context.Background()
	author := newUser(t, repo, "0xaa")
	b := newUser(t, repo, "0xbb")
	c := newUser(t, repo, "0xcc")
	p, err := repo.CreatePaper(ctx, NewPaper{Title: "X", AuthorID: author.ID, IPFSCid: "c"})
	require.NoError(t, err)

	_, err = repo.CreateReview(ctx, NewReview{PaperID: p.ID, ReviewerID: b.ID, Rating: 4, IPFSCid: "r1"})
	require.NoError(t, err)
	got, _ := repo.GetPaper(ctx, p.ID)
	assert.Equal(t, models.PaperSubmitted, got.Status)

	_, err = repo.CreateReview(ctx, NewReview{PaperID: p.ID, ReviewerID: c.ID, Rating: 5, IPFSCid: "r2"})
	require.NoError(t, err)
	got, _ = repo.GetPaper(ctx, p.ID)
	assert.Equal(t, models.PaperReviewed, got.Status)

	reviews, err := repo.GetReviewsWithReviewer(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, reviews, 2)
	assert.Equal(t, c.Username, reviews[0].Reviewer.Username)
}

func TestCreateReview_RejectsSelfReview(t *testing.T) {
	repo := NewMemory()
	ctx := context.Background()
	author := newUser(t, repo, "0xaa")
	p, err := repo.CreatePaper(ctx, NewPaper{Title: "X", AuthorID: author.ID, IPFSCid: "c"})
	require.NoError(t, err)

	_, err = repo.CreateReview(ctx, NewReview{PaperID: p.ID, ReviewerID: author.ID, Rating: 3, IPFSCid: "r"})
	assert.ErrorIs(t, err, ErrSelfReview)

	n, _ := repo.CountReviews(ctx, p.ID)
	assert.Equal(t, 0, n)
}

func TestAwardTokens_ExplicitPaper(t *testing.T) {
	repo := NewMemory()
	ctx := context.Background()
	author := newUser(t, repo, "0xaa")
	reviewer := newUser(t, repo, "0xbb")
	p, err := repo.CreatePaper(ctx, NewPaper{Title: "X", AuthorID: author.ID, IPFSCid: "c"})
	require.NoError(t, err)

	entry, err := repo.AwardTokens(ctx, Award{UserID: reviewer.ID, Amount: ReviewBonus, Reason: ReviewReason, PaperID: &p.ID})
	require.NoError(t, err)
	require.NotNil(t, entry.PaperID)
	assert.Equal(t, p.ID, *entry.PaperID)

	got, _ := repo.GetPaper(ctx, p.ID)
	assert.Equal(t, ReviewBonus, got.TokenCount)
	u, _ := repo.GetUser(ctx, reviewer.ID)
	assert.Equal(t, ReviewBonus, u.TokenBalance)
}

func TestAwardTokens_ReviewHeuristic(t *testing.T) {
	repo := NewMemory()
	ctx := context.Background()
	author := newUser(t, repo, "0xaa")
	reviewer := newUser(t, repo, "0xbb")
	first, _ := repo.CreatePaper(ctx, NewPaper{Title: "1", AuthorID: author.ID, IPFSCid: "c1"})
	second, _ := repo.CreatePaper(ctx, NewPaper{Title: "2", AuthorID: author.ID, IPFSCid: "c2"})

	_, err := repo.CreateReview(ctx, NewReview{PaperID: first.ID, ReviewerID: reviewer.ID, Rating: 3, IPFSCid: "r1"})
	require.NoError(t, err)
	_, err = repo.CreateReview(ctx, NewReview{PaperID: second.ID, ReviewerID: reviewer.ID, Rating: 3, IPFSCid: "r2"})
	require.NoError(t, err)

	_, err = repo.AwardTokens(ctx, Award{UserID: reviewer.ID, Amount: 5, Reason: "Peer Review bonus"})
	require.NoError(t, err)

	p1, _ := repo.GetPaper(ctx, first.ID)
	p2, _ := repo.GetPaper(ctx, second.ID)
	assert.Equal(t, 0, p1.TokenCount)
	assert.Equal(t, 5, p2.TokenCount)
}

func TestAwardTokens_NonReviewReasonDoesNotTouchPaper(t *testing.T) {
	repo := NewMemory()
	ctx := context.Background()
	author := newUser(t, repo, "0xaa")
	p, _ := repo.CreatePaper(ctx, NewPaper{Title: "1", AuthorID: author.ID, IPFSCid: "c1"})

	_, err := repo.AwardTokens(ctx, Award{UserID: author.ID, Amount: VerificationBonus, Reason: VerificationReason})
	require.NoError(t, err)

	got, _ := repo.GetPaper(ctx, p.ID)
	assert.Equal(t, 0, got.TokenCount)
	u, _ := repo.GetUser(ctx, author.ID)
	assert.Equal(t, SubmissionBonus+VerificationBonus, u.TokenBalance)
}

func TestAwardTokens_Invalid(t *testing.T) {
	repo := NewMemory()
	ctx := context.Background()
	u := newUser(t, repo, "0xaa")

	_, err := repo.AwardTokens(ctx, Award{UserID: u.ID, Amount: 0, Reason: "x"})
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = repo.AwardTokens(ctx, Award{UserID: 404, Amount: 1, Reason: "x"})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestAwardTokens_ConcurrentBalanceIsExact(t *testing.T) {
	repo := NewMemory()
	ctx := context.Background()
	u := newUser(t, repo, "0xaa")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = repo.AwardTokens(ctx, Award{UserID: u.ID, Amount: 2, Reason: "bulk"})
		}()
	}
	wg.Wait()

	got, _ := repo.GetUser(ctx, u.ID)
	assert.Equal(t, 100, got.TokenBalance)
	ledger, _ := repo.GetUserTokens(ctx, u.ID)
	assert.Len(t, ledger, 50)
}

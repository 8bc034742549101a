package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/paperchain/core/internal/models"
)

// Memory keeps all entities in process memory.
//
// A single mutex guards every map, so a token award (ledger append, balance
// and paper counter) is atomic relative to all other operations. Concurrent
// status writers still race with last-write-wins semantics.
type Memory struct {
	mu sync.Mutex

	users     map[uint]*models.UserModel
	wallets   map[string]uint
	usernames map[string]uint
	papers    map[uint]*models.PaperModel
	reviews   map[uint]*models.ReviewModel
	byPaper   map[uint][]uint
	tokens    []models.TokenModel

	nextUser   uint
	nextPaper  uint
	nextReview uint
	nextToken  uint

	now func() time.Time
}

var _ Repository = (*Memory)(nil)

// NewMemory returns an empty in-memory repository.
func NewMemory() *Memory {
	return &Memory{
		users:     make(map[uint]*models.UserModel),
		wallets:   make(map[string]uint),
		usernames: make(map[string]uint),
		papers:    make(map[uint]*models.PaperModel),
		reviews:   make(map[uint]*models.ReviewModel),
		byPaper:   make(map[uint][]uint),
		now:       time.Now,
	}
}

// SetClock overrides the timestamp source. Intended for tests.
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
}

func (m *Memory) GetUser(_ context.Context, id uint) (*models.UserModel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneUser(m.users[id]), nil
}

func (m *Memory) GetUserByWallet(_ context.Context, wallet string) (*models.UserModel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.wallets[NormalizeWallet(wallet)]
	if !ok {
		return nil, nil
	}
	return cloneUser(m.users[id]), nil
}

func (m *Memory) FindOrCreateUserByWallet(_ context.Context, wallet string, user models.UserModel) (*models.UserModel, bool, error) {
	key := NormalizeWallet(wallet)
	if key == "" {
		return nil, false, ErrEmptyWallet
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.wallets[key]; ok {
		return cloneUser(m.users[id]), false, nil
	}

	m.nextUser++
	u := user
	u.ID = m.nextUser
	u.CreatedAt = m.now()
	u.WalletAddress = &key
	u.TokenBalance = 0
	u.Username = m.uniqueUsername(user.Username)

	m.users[u.ID] = &u
	m.wallets[key] = u.ID
	m.usernames[u.Username] = u.ID
	return cloneUser(&u), true, nil
}

func (m *Memory) uniqueUsername(base string) string {
	if base == "" {
		base = "user"
	}
	name := base
	for n := 2; ; n++ {
		if _, taken := m.usernames[name]; !taken {
			return name
		}
		name = fmt.Sprintf("%s_%d", base, n)
	}
}

func (m *Memory) GetUserTokens(_ context.Context, userID uint) ([]models.TokenModel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.TokenModel, 0)
	for i := len(m.tokens) - 1; i >= 0; i-- {
		if m.tokens[i].UserID == userID {
			out = append(out, m.tokens[i])
		}
	}
	return out, nil
}

func (m *Memory) CreatePaper(_ context.Context, p NewPaper) (*models.PaperModel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[p.AuthorID]; !ok {
		return nil, fmt.Errorf("create paper: %w", ErrUserNotFound)
	}

	m.nextPaper++
	paper := &models.PaperModel{
		Base:         models.Base{ID: m.nextPaper, CreatedAt: m.now()},
		Title:        p.Title,
		Abstract:     p.Abstract,
		AuthorID:     p.AuthorID,
		IPFSCid:      p.IPFSCid,
		MetadataHash: p.MetadataHash,
		Status:       models.PaperSubmitted,
		Tags:         copyTags(p.Tags),
	}
	m.papers[paper.ID] = paper

	if _, err := m.awardLocked(Award{UserID: p.AuthorID, Amount: SubmissionBonus, Reason: SubmissionReason}); err != nil {
		return nil, err
	}
	return clonePaper(paper), nil
}

func (m *Memory) GetPaper(_ context.Context, id uint) (*models.PaperModel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return clonePaper(m.papers[id]), nil
}

func (m *Memory) GetAllPapers(_ context.Context) ([]models.PaperWithAuthor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.PaperWithAuthor, 0, len(m.papers))
	for _, p := range m.papers {
		out = append(out, m.joinLocked(p))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (m *Memory) GetPaperWithAuthor(_ context.Context, id uint) (*models.PaperWithAuthor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.papers[id]
	if !ok {
		return nil, nil
	}
	joined := m.joinLocked(p)
	return &joined, nil
}

func (m *Memory) joinLocked(p *models.PaperModel) models.PaperWithAuthor {
	return models.PaperWithAuthor{
		PaperModel:  *clonePaper(p),
		Author:      m.users[p.AuthorID].Summary(),
		ReviewCount: len(m.byPaper[p.ID]),
	}
}

func (m *Memory) UpdatePaperStatus(_ context.Context, id uint, status models.PaperStatus) (bool, error) {
	return m.mutatePaper(id, func(p *models.PaperModel) { p.Status = status }), nil
}

func (m *Memory) UpdatePaperAIVerified(_ context.Context, id uint, verified bool) (bool, error) {
	return m.mutatePaper(id, func(p *models.PaperModel) { p.AIVerified = verified }), nil
}

func (m *Memory) UpdatePaperAIAnalysis(_ context.Context, id uint, analysis *models.AIAnalysis) (bool, error) {
	return m.mutatePaper(id, func(p *models.PaperModel) { p.AIAnalysis = cloneAnalysis(analysis) }), nil
}

func (m *Memory) IncrementPaperViews(_ context.Context, id uint) (bool, error) {
	return m.mutatePaper(id, func(p *models.PaperModel) { p.ViewCount++ }), nil
}

func (m *Memory) mutatePaper(id uint, fn func(*models.PaperModel)) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.papers[id]
	if !ok {
		return false
	}
	fn(p)
	return true
}

func (m *Memory) CreateReview(_ context.Context, r NewReview) (*models.ReviewModel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	paper, ok := m.papers[r.PaperID]
	if !ok {
		return nil, fmt.Errorf("create review: %w", ErrPaperNotFound)
	}
	if _, ok := m.users[r.ReviewerID]; !ok {
		return nil, fmt.Errorf("create review: %w", ErrUserNotFound)
	}
	if paper.AuthorID == r.ReviewerID {
		return nil, ErrSelfReview
	}

	m.nextReview++
	review := &models.ReviewModel{
		Base:            models.Base{ID: m.nextReview, CreatedAt: m.now()},
		PaperID:         r.PaperID,
		ReviewerID:      r.ReviewerID,
		Content:         r.Content,
		Rating:          r.Rating,
		IPFSCid:         r.IPFSCid,
		TransactionHash: r.TransactionHash,
	}
	m.reviews[review.ID] = review
	m.byPaper[r.PaperID] = append(m.byPaper[r.PaperID], review.ID)

	if len(m.byPaper[r.PaperID]) >= ReviewedThreshold {
		paper.Status = models.PaperReviewed
	}
	out := *review
	return &out, nil
}

func (m *Memory) GetReviewsByPaper(_ context.Context, paperID uint) ([]models.ReviewModel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := m.byPaper[paperID]
	out := make([]models.ReviewModel, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		out = append(out, *m.reviews[ids[i]])
	}
	return out, nil
}

func (m *Memory) GetReviewsWithReviewer(_ context.Context, paperID uint) ([]models.ReviewWithReviewer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := m.byPaper[paperID]
	out := make([]models.ReviewWithReviewer, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		r := m.reviews[ids[i]]
		out = append(out, models.ReviewWithReviewer{
			ReviewModel: *r,
			Reviewer:    m.users[r.ReviewerID].Summary(),
		})
	}
	return out, nil
}

func (m *Memory) CountReviews(_ context.Context, paperID uint) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byPaper[paperID]), nil
}

func (m *Memory) AwardTokens(_ context.Context, a Award) (*models.TokenModel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.awardLocked(a)
}

func (m *Memory) awardLocked(a Award) (*models.TokenModel, error) {
	if a.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	user, ok := m.users[a.UserID]
	if !ok {
		return nil, fmt.Errorf("award tokens: %w", ErrUserNotFound)
	}

	paperID := a.PaperID
	if paperID == nil && isReviewReason(a.Reason) {
		paperID = m.latestReviewedPaperLocked(a.UserID)
	}

	m.nextToken++
	entry := models.TokenModel{
		Base:            models.Base{ID: m.nextToken, CreatedAt: m.now()},
		UserID:          a.UserID,
		Amount:          a.Amount,
		Reason:          a.Reason,
		TransactionHash: a.TransactionHash,
		PaperID:         paperID,
	}
	m.tokens = append(m.tokens, entry)

	user.TokenBalance += a.Amount
	if paperID != nil {
		if p, ok := m.papers[*paperID]; ok {
			p.TokenCount += a.Amount
		}
	}
	return &entry, nil
}

// latestReviewedPaperLocked returns the target of the reviewer's newest review.
func (m *Memory) latestReviewedPaperLocked(reviewerID uint) *uint {
	var latest *models.ReviewModel
	for _, r := range m.reviews {
		if r.ReviewerID != reviewerID {
			continue
		}
		if latest == nil || r.ID > latest.ID {
			latest = r
		}
	}
	if latest == nil {
		return nil
	}
	id := latest.PaperID
	return &id
}

func cloneUser(u *models.UserModel) *models.UserModel {
	if u == nil {
		return nil
	}
	out := *u
	if u.WalletAddress != nil {
		w := *u.WalletAddress
		out.WalletAddress = &w
	}
	return &out
}

func clonePaper(p *models.PaperModel) *models.PaperModel {
	if p == nil {
		return nil
	}
	out := *p
	out.Tags = append(models.StringArray(nil), p.Tags...)
	if out.Tags == nil {
		out.Tags = models.StringArray{}
	}
	out.AIAnalysis = cloneAnalysis(p.AIAnalysis)
	return &out
}

func cloneAnalysis(a *models.AIAnalysis) *models.AIAnalysis {
	if a == nil {
		return nil
	}
	out := *a
	return &out
}

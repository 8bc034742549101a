package repository

import (
	"context"
	"errors"
	"fmt"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/paperchain/core/internal/models"
	"gorm.io/gorm"
)

// Gorm persists entities through a gorm connection (MySQL in production).
type Gorm struct{ db *gorm.DB }

var _ Repository = (*Gorm)(nil)

func NewGorm(db *gorm.DB) *Gorm { return &Gorm{db: db} }

func (g *Gorm) GetUser(ctx context.Context, id uint) (*models.UserModel, error) {
	var u models.UserModel
	if err := g.db.WithContext(ctx).First(&u, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func (g *Gorm) GetUserByWallet(ctx context.Context, wallet string) (*models.UserModel, error) {
	var u models.UserModel
	err := g.db.WithContext(ctx).Where("wallet_address = ?", NormalizeWallet(wallet)).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func (g *Gorm) FindOrCreateUserByWallet(ctx context.Context, wallet string, user models.UserModel) (*models.UserModel, bool, error) {
	key := NormalizeWallet(wallet)
	if key == "" {
		return nil, false, ErrEmptyWallet
	}

	var out models.UserModel
	created := false
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("wallet_address = ?", key).First(&out).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		name, err := g.uniqueUsername(tx, user.Username)
		if err != nil {
			return err
		}
		out = user
		out.ID = 0
		out.Username = name
		out.WalletAddress = &key
		out.TokenBalance = 0
		created = true
		return tx.Create(&out).Error
	})
	if err != nil {
		// A concurrent first request for the same wallet won the insert.
		if isDuplicateKey(err) {
			if existing, rerr := g.GetUserByWallet(ctx, key); rerr == nil && existing != nil {
				return existing, false, nil
			}
		}
		return nil, false, err
	}
	return &out, created, nil
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var myErr *mysqldriver.MySQLError
	return errors.As(err, &myErr) && myErr.Number == 1062
}

func (g *Gorm) uniqueUsername(tx *gorm.DB, base string) (string, error) {
	if base == "" {
		base = "user"
	}
	name := base
	for n := 2; ; n++ {
		var count int64
		if err := tx.Model(&models.UserModel{}).Where("username = ?", name).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return name, nil
		}
		name = fmt.Sprintf("%s_%d", base, n)
	}
}

func (g *Gorm) GetUserTokens(ctx context.Context, userID uint) ([]models.TokenModel, error) {
	items := make([]models.TokenModel, 0)
	err := g.db.WithContext(ctx).Where("user_id = ?", userID).Order("id DESC").Find(&items).Error
	return items, err
}

func (g *Gorm) CreatePaper(ctx context.Context, p NewPaper) (*models.PaperModel, error) {
	paper := models.PaperModel{
		Title:        p.Title,
		Abstract:     p.Abstract,
		AuthorID:     p.AuthorID,
		IPFSCid:      p.IPFSCid,
		MetadataHash: p.MetadataHash,
		Status:       models.PaperSubmitted,
		Tags:         copyTags(p.Tags),
	}
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.UserModel{}).Where("id = ?", p.AuthorID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return fmt.Errorf("create paper: %w", ErrUserNotFound)
		}
		if err := tx.Create(&paper).Error; err != nil {
			return err
		}
		_, err := awardTx(tx, Award{UserID: p.AuthorID, Amount: SubmissionBonus, Reason: SubmissionReason})
		return err
	})
	if err != nil {
		return nil, err
	}
	return &paper, nil
}

func (g *Gorm) GetPaper(ctx context.Context, id uint) (*models.PaperModel, error) {
	var p models.PaperModel
	if err := g.db.WithContext(ctx).First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (g *Gorm) GetAllPapers(ctx context.Context) ([]models.PaperWithAuthor, error) {
	var papers []models.PaperModel
	if err := g.db.WithContext(ctx).Order("created_at DESC, id DESC").Find(&papers).Error; err != nil {
		return nil, err
	}
	return g.join(ctx, papers)
}

func (g *Gorm) GetPaperWithAuthor(ctx context.Context, id uint) (*models.PaperWithAuthor, error) {
	p, err := g.GetPaper(ctx, id)
	if err != nil || p == nil {
		return nil, err
	}
	joined, err := g.join(ctx, []models.PaperModel{*p})
	if err != nil {
		return nil, err
	}
	return &joined[0], nil
}

func (g *Gorm) join(ctx context.Context, papers []models.PaperModel) ([]models.PaperWithAuthor, error) {
	out := make([]models.PaperWithAuthor, 0, len(papers))
	if len(papers) == 0 {
		return out, nil
	}

	authorIDs := make([]uint, 0, len(papers))
	paperIDs := make([]uint, 0, len(papers))
	for _, p := range papers {
		authorIDs = append(authorIDs, p.AuthorID)
		paperIDs = append(paperIDs, p.ID)
	}

	var authors []models.UserModel
	if err := g.db.WithContext(ctx).Where("id IN ?", authorIDs).Find(&authors).Error; err != nil {
		return nil, err
	}
	authorByID := make(map[uint]*models.UserModel, len(authors))
	for i := range authors {
		authorByID[authors[i].ID] = &authors[i]
	}

	var counts []struct {
		PaperID uint
		Count   int
	}
	if err := g.db.WithContext(ctx).Model(&models.ReviewModel{}).
		Select("paper_id, COUNT(*) AS count").
		Where("paper_id IN ?", paperIDs).
		Group("paper_id").
		Scan(&counts).Error; err != nil {
		return nil, err
	}
	countByID := make(map[uint]int, len(counts))
	for _, c := range counts {
		countByID[c.PaperID] = c.Count
	}

	for _, p := range papers {
		out = append(out, models.PaperWithAuthor{
			PaperModel:  p,
			Author:      authorByID[p.AuthorID].Summary(),
			ReviewCount: countByID[p.ID],
		})
	}
	return out, nil
}

func (g *Gorm) UpdatePaperStatus(ctx context.Context, id uint, status models.PaperStatus) (bool, error) {
	return g.updatePaper(ctx, id, map[string]interface{}{"status": status})
}

func (g *Gorm) UpdatePaperAIVerified(ctx context.Context, id uint, verified bool) (bool, error) {
	return g.updatePaper(ctx, id, map[string]interface{}{"ai_verified": verified})
}

func (g *Gorm) UpdatePaperAIAnalysis(ctx context.Context, id uint, analysis *models.AIAnalysis) (bool, error) {
	res := g.db.WithContext(ctx).Model(&models.PaperModel{Base: models.Base{ID: id}}).
		Select("ai_analysis").
		Updates(&models.PaperModel{AIAnalysis: analysis})
	if res.Error != nil {
		return false, res.Error
	}
	return g.rowsOrExists(ctx, id, res.RowsAffected)
}

func (g *Gorm) IncrementPaperViews(ctx context.Context, id uint) (bool, error) {
	return g.updatePaper(ctx, id, map[string]interface{}{"view_count": gorm.Expr("view_count + 1")})
}

func (g *Gorm) updatePaper(ctx context.Context, id uint, updates map[string]interface{}) (bool, error) {
	res := g.db.WithContext(ctx).Model(&models.PaperModel{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return g.rowsOrExists(ctx, id, res.RowsAffected)
}

// rowsOrExists distinguishes "no such paper" from "value unchanged",
// since MySQL reports zero affected rows for no-op updates.
func (g *Gorm) rowsOrExists(ctx context.Context, id uint, affected int64) (bool, error) {
	if affected > 0 {
		return true, nil
	}
	var count int64
	if err := g.db.WithContext(ctx).Model(&models.PaperModel{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (g *Gorm) CreateReview(ctx context.Context, r NewReview) (*models.ReviewModel, error) {
	review := models.ReviewModel{
		PaperID:         r.PaperID,
		ReviewerID:      r.ReviewerID,
		Content:         r.Content,
		Rating:          r.Rating,
		IPFSCid:         r.IPFSCid,
		TransactionHash: r.TransactionHash,
	}
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var paper models.PaperModel
		if err := tx.Select("id, author_id").First(&paper, r.PaperID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("create review: %w", ErrPaperNotFound)
			}
			return err
		}
		if paper.AuthorID == r.ReviewerID {
			return ErrSelfReview
		}
		if err := tx.Create(&review).Error; err != nil {
			return err
		}
		var count int64
		if err := tx.Model(&models.ReviewModel{}).Where("paper_id = ?", r.PaperID).Count(&count).Error; err != nil {
			return err
		}
		if count >= ReviewedThreshold {
			return tx.Model(&models.PaperModel{}).Where("id = ?", r.PaperID).Update("status", models.PaperReviewed).Error
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &review, nil
}

func (g *Gorm) GetReviewsByPaper(ctx context.Context, paperID uint) ([]models.ReviewModel, error) {
	items := make([]models.ReviewModel, 0)
	err := g.db.WithContext(ctx).Where("paper_id = ?", paperID).Order("id DESC").Find(&items).Error
	return items, err
}

func (g *Gorm) GetReviewsWithReviewer(ctx context.Context, paperID uint) ([]models.ReviewWithReviewer, error) {
	reviews, err := g.GetReviewsByPaper(ctx, paperID)
	if err != nil {
		return nil, err
	}
	out := make([]models.ReviewWithReviewer, 0, len(reviews))
	if len(reviews) == 0 {
		return out, nil
	}

	ids := make([]uint, 0, len(reviews))
	for _, r := range reviews {
		ids = append(ids, r.ReviewerID)
	}
	var users []models.UserModel
	if err := g.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	byID := make(map[uint]*models.UserModel, len(users))
	for i := range users {
		byID[users[i].ID] = &users[i]
	}
	for _, r := range reviews {
		out = append(out, models.ReviewWithReviewer{ReviewModel: r, Reviewer: byID[r.ReviewerID].Summary()})
	}
	return out, nil
}

func (g *Gorm) CountReviews(ctx context.Context, paperID uint) (int, error) {
	var count int64
	err := g.db.WithContext(ctx).Model(&models.ReviewModel{}).Where("paper_id = ?", paperID).Count(&count).Error
	return int(count), err
}

func (g *Gorm) AwardTokens(ctx context.Context, a Award) (*models.TokenModel, error) {
	var entry *models.TokenModel
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		entry, err = awardTx(tx, a)
		return err
	})
	return entry, err
}

// awardTx appends the ledger entry and bumps the cached counters inside tx.
func awardTx(tx *gorm.DB, a Award) (*models.TokenModel, error) {
	if a.Amount <= 0 {
		return nil, ErrInvalidAmount
	}

	res := tx.Model(&models.UserModel{}).Where("id = ?", a.UserID).
		Update("token_balance", gorm.Expr("token_balance + ?", a.Amount))
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("award tokens: %w", ErrUserNotFound)
	}

	paperID := a.PaperID
	if paperID == nil && isReviewReason(a.Reason) {
		var latest models.ReviewModel
		err := tx.Select("paper_id").Where("reviewer_id = ?", a.UserID).Order("id DESC").First(&latest).Error
		switch {
		case err == nil:
			paperID = &latest.PaperID
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return nil, err
		}
	}

	entry := models.TokenModel{
		UserID:          a.UserID,
		Amount:          a.Amount,
		Reason:          a.Reason,
		TransactionHash: a.TransactionHash,
		PaperID:         paperID,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return nil, err
	}
	if paperID != nil {
		if err := tx.Model(&models.PaperModel{}).Where("id = ?", *paperID).
			Update("token_count", gorm.Expr("token_count + ?", a.Amount)).Error; err != nil {
			return nil, err
		}
	}
	return &entry, nil
}

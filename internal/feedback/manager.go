// Package feedback stores thumbs up/down ratings of generated content and exports the
// positive ones as tuning data.
package feedback

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/harishm17/study-buddy-sub001/internal/models"
)

// Manager handles feedback storage and export
type Manager struct {
	db     *gorm.DB
	logger *zap.Logger
	now    func() time.Time
}

func NewManager(db *gorm.DB, logger *zap.Logger) *Manager {
	return &Manager{db: db, logger: logger, now: time.Now}
}

// Submit records one rating per user and content item; rating again replaces the
// earlier one and queues it for export again.
func (m *Manager) Submit(ctx context.Context, userID string, content *models.TopicContent, isPositive bool, comment string) (*models.ContentFeedback, error) {
	fb := &models.ContentFeedback{
		ContentID:   content.ID,
		UserID:      userID,
		ContentType: content.ContentType,
		IsPositive:  isPositive,
		Comment:     comment,
		Prompt:      content.Prompt,
		Response:    string(content.ContentData),
	}
	err := m.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "content_id"}, {Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"is_positive": isPositive,
			"comment":     comment,
			"prompt":      fb.Prompt,
			"response":    fb.Response,
			"exported":    false,
			"exported_at": nil,
			"updated_at":  m.now(),
		}),
	}).Create(fb).Error
	if err != nil {
		return nil, fmt.Errorf("failed to store feedback: %w", err)
	}

	var stored models.ContentFeedback
	if err := m.db.WithContext(ctx).First(&stored, "content_id = ? AND user_id = ?", content.ID, userID).Error; err != nil {
		return nil, fmt.Errorf("failed to reload feedback: %w", err)
	}
	m.logger.Info("Stored feedback",
		zap.String("content_id", content.ID),
		zap.String("content_type", string(content.ContentType)),
		zap.Bool("positive", isPositive))
	return &stored, nil
}

// Unexported returns feedback not yet exported, oldest first. limit <= 0 means all.
func (m *Manager) Unexported(ctx context.Context, limit int) ([]models.ContentFeedback, error) {
	var out []models.ContentFeedback
	q := m.db.WithContext(ctx).Where("exported = ?", false).Order("created_at ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to get unexported feedback: %w", err)
	}
	return out, nil
}

func (m *Manager) MarkExported(ctx context.Context, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	now := m.now()
	res := m.db.WithContext(ctx).Model(&models.ContentFeedback{}).
		Where("id IN ?", ids).
		Updates(map[string]any{"exported": true, "exported_at": &now})
	if res.Error != nil {
		return fmt.Errorf("failed to mark feedback as exported: %w", res.Error)
	}
	m.logger.Info("Marked feedback as exported", zap.Int64("count", res.RowsAffected))
	return nil
}

// ExportJSONL renders positive feedback as Gemini tuning lines. Negative feedback is
// skipped; the count of written lines is returned.
func ExportJSONL(feedback []models.ContentFeedback) ([]byte, int, error) {
	var buf bytes.Buffer
	n := 0
	for _, fb := range feedback {
		if !fb.IsPositive {
			continue
		}
		point := models.TrainingDataPoint{
			Contents: []models.TrainingContent{
				{Role: "user", Parts: []models.TrainingPart{{Text: fb.Prompt}}},
				{Role: "model", Parts: []models.TrainingPart{{Text: fb.Response}}},
			},
		}
		line, err := json.Marshal(point)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to marshal training data: %w", err)
		}
		if n > 0 {
			buf.WriteByte('\n')
		}
		buf.Write(line)
		n++
	}
	return buf.Bytes(), n, nil
}

type TypeStats struct {
	Total    int64 `json:"total"`
	Positive int64 `json:"positive"`
}

type Stats struct {
	TotalCount      int64                `json:"total_count"`
	PositiveCount   int64                `json:"positive_count"`
	UnexportedCount int64                `json:"unexported_count"`
	ByContentType   map[string]TypeStats `json:"by_content_type"`
}

func (m *Manager) Stats(ctx context.Context) (*Stats, error) {
	var rows []struct {
		ContentType string
		Total       int64
		Positive    int64
		Unexported  int64
	}
	err := m.db.WithContext(ctx).Model(&models.ContentFeedback{}).
		Select(`content_type,
			COUNT(*) AS total,
			SUM(CASE WHEN is_positive THEN 1 ELSE 0 END) AS positive,
			SUM(CASE WHEN exported THEN 0 ELSE 1 END) AS unexported`).
		Group("content_type").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	stats := &Stats{ByContentType: make(map[string]TypeStats, len(rows))}
	for _, r := range rows {
		stats.TotalCount += r.Total
		stats.PositiveCount += r.Positive
		stats.UnexportedCount += r.Unexported
		stats.ByContentType[r.ContentType] = TypeStats{Total: r.Total, Positive: r.Positive}
	}
	return stats, nil
}

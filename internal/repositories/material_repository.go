package repositories

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/harishm17/study-buddy-sub001/internal/models"
)

type MaterialRepository struct {
	DB *gorm.DB
}

func (r *MaterialRepository) Create(ctx context.Context, material *models.Material) error {
	if material.ValidationStatus == "" {
		material.ValidationStatus = models.ValidationPending
	}
	return r.DB.WithContext(ctx).Create(material).Error
}

func (r *MaterialRepository) Get(ctx context.Context, id string) (*models.Material, error) {
	var material models.Material
	if err := r.DB.WithContext(ctx).First(&material, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &material, nil
}

func (r *MaterialRepository) ListByProject(ctx context.Context, projectID string) ([]models.Material, error) {
	var materials []models.Material
	err := r.DB.WithContext(ctx).Where("project_id = ?", projectID).Order("created_at ASC").Find(&materials).Error
	return materials, err
}

func (r *MaterialRepository) ListValidByProject(ctx context.Context, projectID string) ([]models.Material, error) {
	var materials []models.Material
	err := r.DB.WithContext(ctx).
		Where("project_id = ? AND validation_status = ?", projectID, models.ValidationValid).
		Order("created_at ASC").
		Find(&materials).Error
	return materials, err
}

func (r *MaterialRepository) UpdateValidation(ctx context.Context, id string, status models.ValidationStatus, notes string, pageCount int) error {
	now := time.Now()
	return r.DB.WithContext(ctx).Model(&models.Material{}).Where("id = ?", id).Updates(map[string]any{
		"validation_status": status,
		"validation_notes":  notes,
		"page_count":        pageCount,
		"validated_at":      &now,
	}).Error
}

// Delete removes the material row together with its chunks and their topic mappings.
func (r *MaterialRepository) Delete(ctx context.Context, id string) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		chunkIDs := tx.Model(&models.MaterialChunk{}).Select("id").Where("material_id = ?", id)
		if err := tx.Where("chunk_id IN (?)", chunkIDs).Delete(&models.TopicChunkMapping{}).Error; err != nil {
			return err
		}
		if err := tx.Where("material_id = ?", id).Delete(&models.MaterialChunk{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Material{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// ReplaceChunks swaps the chunk set of a material atomically, so reprocessing is idempotent.
func (r *MaterialRepository) ReplaceChunks(ctx context.Context, materialID string, chunks []models.MaterialChunk) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		old := tx.Model(&models.MaterialChunk{}).Select("id").Where("material_id = ?", materialID)
		if err := tx.Where("chunk_id IN (?)", old).Delete(&models.TopicChunkMapping{}).Error; err != nil {
			return err
		}
		if err := tx.Where("material_id = ?", materialID).Delete(&models.MaterialChunk{}).Error; err != nil {
			return err
		}
		if len(chunks) == 0 {
			return nil
		}
		for i := range chunks {
			chunks[i].MaterialID = materialID
		}
		return tx.CreateInBatches(&chunks, 100).Error
	})
}

func (r *MaterialRepository) ListChunks(ctx context.Context, materialID string) ([]models.MaterialChunk, error) {
	var chunks []models.MaterialChunk
	err := r.DB.WithContext(ctx).Where("material_id = ?", materialID).Order("chunk_index ASC").Find(&chunks).Error
	return chunks, err
}

func (r *MaterialRepository) CountChunksByProject(ctx context.Context, projectID string) (int64, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&models.MaterialChunk{}).
		Joins("JOIN materials ON materials.id = material_chunks.material_id").
		Where("materials.project_id = ?", projectID).
		Count(&count).Error
	return count, err
}

// SectionSample is a chunk preview used to summarise a project's materials.
type SectionSample struct {
	MaterialID       string
	Filename         string
	Category         models.MaterialCategory
	SectionHierarchy string
	ChunkText        string
	PageStart        *int
}

// SectionSamples returns chunks that carry a section heading, grouped by material.
func (r *MaterialRepository) SectionSamples(ctx context.Context, projectID string, limit int) ([]SectionSample, error) {
	var out []SectionSample
	err := r.DB.WithContext(ctx).
		Table("material_chunks AS mc").
		Select("mc.material_id, m.filename, m.category, mc.section_hierarchy, mc.chunk_text, mc.page_start").
		Joins("JOIN materials m ON mc.material_id = m.id").
		Where("m.project_id = ? AND m.validation_status = ?", projectID, models.ValidationValid).
		Where("mc.section_hierarchy IS NOT NULL AND mc.section_hierarchy <> ''").
		Order("m.created_at ASC, m.id ASC, mc.chunk_index ASC").
		Limit(limit).
		Scan(&out).Error
	return out, err
}

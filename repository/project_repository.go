package repository

import (
	"context"
	"errors"
	"time"

	"Cutline/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProjectSummary 工程列表项，不包含文档内容
type ProjectSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Revision  int64     `json:"revision"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ProjectRepository 工程数据访问接口
type ProjectRepository interface {
	Save(ctx context.Context, p model.Project) (int64, error)
	GetByID(ctx context.Context, id string) (*model.Project, int64, error)
	List(ctx context.Context, limit, offset int) ([]ProjectSummary, error)
	Delete(ctx context.Context, id string) error
}

// gormProjectRepository GORM 实现
type gormProjectRepository struct {
	db *gorm.DB
}

// NewGormProjectRepository 创建 GORM 工程仓库
func NewGormProjectRepository(db *gorm.DB) ProjectRepository {
	return &gormProjectRepository{db: db}
}

// Save 写入工程文档，已存在时覆盖并递增修订号，返回新的修订号
func (r *gormProjectRepository) Save(ctx context.Context, p model.Project) (int64, error) {
	if p.ID == "" {
		return 0, errors.New("project id is empty")
	}
	var revision int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec model.ProjectRecord
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", p.ID).
			First(&rec).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			rec = model.ProjectRecord{ID: p.ID, Name: p.Name, Document: model.ProjectDocument(p), Revision: 1}
			revision = 1
			return tx.Create(&rec).Error
		case err != nil:
			return err
		}
		revision = rec.Revision + 1
		return tx.Model(&model.ProjectRecord{}).
			Where("id = ?", p.ID).
			Updates(map[string]interface{}{
				"name":     p.Name,
				"document": model.ProjectDocument(p),
				"revision": revision,
			}).Error
	})
	if err != nil {
		return 0, err
	}
	return revision, nil
}

// GetByID 读取工程，不存在时返回 nil
func (r *gormProjectRepository) GetByID(ctx context.Context, id string) (*model.Project, int64, error) {
	var rec model.ProjectRecord
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, 0, nil
		}
		return nil, 0, err
	}
	p := model.Project(rec.Document)
	p.ID = rec.ID
	p.Name = rec.Name
	return &p, rec.Revision, nil
}

// List 按更新时间倒序列出工程
func (r *gormProjectRepository) List(ctx context.Context, limit, offset int) ([]ProjectSummary, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var out []ProjectSummary
	err := r.db.WithContext(ctx).Model(&model.ProjectRecord{}).
		Select("id", "name", "revision", "updated_at").
		Order("updated_at DESC").
		Limit(limit).
		Offset(offset).
		Scan(&out).Error
	return out, err
}

// Delete 删除工程
func (r *gormProjectRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.ProjectRecord{}).Error
}

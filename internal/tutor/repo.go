package tutor

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) Create(ctx context.Context, t *Tutor) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *Repo) Get(ctx context.Context, id uuid.UUID) (*Tutor, error) {
	var t Tutor
	if err := r.db.WithContext(ctx).First(&t, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *Repo) GetAll(ctx context.Context) ([]Tutor, error) {
	var tutors []Tutor
	if err := r.db.WithContext(ctx).Order("created_at ASC").Find(&tutors).Error; err != nil {
		return nil, err
	}
	return tutors, nil
}

// GetVisible lists the tutors shown to regular users.
func (r *Repo) GetVisible(ctx context.Context) ([]Tutor, error) {
	var tutors []Tutor
	if err := r.db.WithContext(ctx).
		Where("visible = ?", true).
		Order("created_at ASC").
		Find(&tutors).Error; err != nil {
		return nil, err
	}
	return tutors, nil
}

func (r *Repo) Save(ctx context.Context, t *Tutor) error {
	return r.db.WithContext(ctx).Save(t).Error
}

func (r *Repo) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&Tutor{}, "id = ?", id).Error
}

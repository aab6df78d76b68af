package repositories

import (
	"errors"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"commune_backend/internal/models"
)

var ErrLinkNotFound = errors.New("link not found")

type LinkRepository interface {
	Create(link *models.Link) error
	FindByID(id string) (*models.Link, error)

	// FindCachedMetadata returns metadata already fetched for the same URL by
	// any earlier link, or nil when the URL has never been enriched.
	FindCachedMetadata(url string) (datatypes.JSON, error)

	SetMetadata(id string, metadata datatypes.JSON) error
}

type LinkRepositoryImpl struct {
	db *gorm.DB
}

func NewLinkRepository(db *gorm.DB) LinkRepository {
	return &LinkRepositoryImpl{db: db}
}

func (r *LinkRepositoryImpl) Create(link *models.Link) error {
	return r.db.Create(link).Error
}

func (r *LinkRepositoryImpl) FindByID(id string) (*models.Link, error) {
	var link models.Link
	if err := r.db.First(&link, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLinkNotFound
		}
		return nil, err
	}
	return &link, nil
}

func (r *LinkRepositoryImpl) FindCachedMetadata(url string) (datatypes.JSON, error) {
	var link models.Link
	err := r.db.
		Where("url = ? AND metadata IS NOT NULL", url).
		Order("updated_at DESC").
		First(&link).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return link.Metadata, nil
}

func (r *LinkRepositoryImpl) SetMetadata(id string, metadata datatypes.JSON) error {
	result := r.db.Model(&models.Link{}).
		Where("id = ?", id).
		Update("metadata", metadata)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrLinkNotFound
	}
	return nil
}

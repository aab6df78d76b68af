package repositories

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"commune_backend/internal/models"
)

var ErrSectionNotFound = errors.New("section not found")

type SectionRepository interface {
	Create(section *models.Section) error
	FindByID(id string) (*models.Section, error)
	List() ([]models.Section, error)

	// Subscription edges read by the notification materializer.
	Subscribe(userID, sectionID string) error
	Unsubscribe(userID, sectionID string) error
	SubscriberIDs(sectionID string) ([]string, error)
}

type SectionRepositoryImpl struct {
	db *gorm.DB
}

func NewSectionRepository(db *gorm.DB) SectionRepository {
	return &SectionRepositoryImpl{db: db}
}

func (r *SectionRepositoryImpl) Create(section *models.Section) error {
	return r.db.Create(section).Error
}

func (r *SectionRepositoryImpl) FindByID(id string) (*models.Section, error) {
	var section models.Section
	if err := r.db.First(&section, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSectionNotFound
		}
		return nil, err
	}
	return &section, nil
}

func (r *SectionRepositoryImpl) List() ([]models.Section, error) {
	var sections []models.Section
	err := r.db.Order("name").Find(&sections).Error
	return sections, err
}

// Subscribe is idempotent: re-subscribing an already-subscribed user is a
// no-op thanks to the unique (user, section) index.
func (r *SectionRepositoryImpl) Subscribe(userID, sectionID string) error {
	sub := models.SectionSubscription{UserID: userID, SectionID: sectionID}
	return r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&sub).Error
}

func (r *SectionRepositoryImpl) Unsubscribe(userID, sectionID string) error {
	return r.db.
		Where("user_id = ? AND section_id = ?", userID, sectionID).
		Delete(&models.SectionSubscription{}).Error
}

func (r *SectionRepositoryImpl) SubscriberIDs(sectionID string) ([]string, error) {
	var ids []string
	err := r.db.Model(&models.SectionSubscription{}).
		Where("section_id = ?", sectionID).
		Pluck("user_id", &ids).Error
	return ids, err
}

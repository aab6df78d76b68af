package services

import (
	"commune_backend/internal/models"
	"commune_backend/internal/repositories"
)

type SectionService interface {
	CreateSection(name, description string) (*models.Section, error)
	ListSections() ([]models.Section, error)
	Subscribe(userID string, sectionIDs []string) error
	Unsubscribe(userID, sectionID string) error
}

type sectionService struct {
	sectionRepo repositories.SectionRepository
}

func NewSectionService(sectionRepo repositories.SectionRepository) SectionService {
	return &sectionService{sectionRepo: sectionRepo}
}

func (s *sectionService) CreateSection(name, description string) (*models.Section, error) {
	section := &models.Section{Name: name, Description: description}
	if err := s.sectionRepo.Create(section); err != nil {
		return nil, err
	}
	return section, nil
}

func (s *sectionService) ListSections() ([]models.Section, error) {
	return s.sectionRepo.List()
}

func (s *sectionService) Subscribe(userID string, sectionIDs []string) error {
	for _, sectionID := range sectionIDs {
		if _, err := s.sectionRepo.FindByID(sectionID); err != nil {
			return err
		}
		if err := s.sectionRepo.Subscribe(userID, sectionID); err != nil {
			return err
		}
	}
	return nil
}

func (s *sectionService) Unsubscribe(userID, sectionID string) error {
	return s.sectionRepo.Unsubscribe(userID, sectionID)
}

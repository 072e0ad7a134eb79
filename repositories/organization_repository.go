package repositories

import (
	"stormcloud/database"
	"stormcloud/models"
)

// OrganizationRepository handles organization data operations.
type OrganizationRepository struct{}

// NewOrganizationRepository creates a new organization repository.
func NewOrganizationRepository() *OrganizationRepository {
	return &OrganizationRepository{}
}

// Create creates a new organization.
func (r *OrganizationRepository) Create(org *models.Organization) error {
	return database.DB.Create(org).Error
}

// GetByID retrieves an organization.
func (r *OrganizationRepository) GetByID(id uint) (*models.Organization, error) {
	var org models.Organization
	err := database.DB.First(&org, id).Error
	if err != nil {
		return nil, err
	}
	return &org, nil
}

// GetAll retrieves all organizations.
func (r *OrganizationRepository) GetAll() ([]models.Organization, error) {
	var orgs []models.Organization
	err := database.DB.Order("name").Find(&orgs).Error
	return orgs, err
}

// Update persists changes to an organization.
func (r *OrganizationRepository) Update(org *models.Organization) error {
	return database.DB.Save(org).Error
}

package repository

import (
	"context"
	"errors"

	"marketplace/internal/apperr"
	"marketplace/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RoleRepository is the identity/role store: seeded roles with permission codes plus the
// per-account grants produced by approved registrations.
type RoleRepository interface {
	List(ctx context.Context) ([]model.Role, error)
	GetPermissionsByRoleNames(ctx context.Context, roleNames []string) ([]string, error)
	GrantRole(ctx context.Context, accountID uuid.UUID, roleName string, approvalRequestID uuid.UUID) (*model.AccountRole, error)
	RolesForAccount(ctx context.Context, accountID uuid.UUID) ([]string, error)
	GrantsForAccount(ctx context.Context, accountID uuid.UUID) ([]model.AccountRole, error)
}

type roleRepository struct {
	db *gorm.DB
}

func NewRoleRepository(db *gorm.DB) RoleRepository {
	return &roleRepository{db: db}
}

func (r *roleRepository) List(ctx context.Context) ([]model.Role, error) {
	var roles []model.Role
	if err := GetDB(ctx, r.db).Preload("Permissions").Order("name ASC").Find(&roles).Error; err != nil {
		return nil, err
	}
	return roles, nil
}

func (r *roleRepository) GetPermissionsByRoleNames(ctx context.Context, roleNames []string) ([]string, error) {
	if len(roleNames) == 0 {
		return nil, nil
	}

	var codes []string
	err := GetDB(ctx, r.db).Raw(`
		SELECT DISTINCT p.code FROM permissions p
		INNER JOIN role_permissions rp ON rp.permission_id = p.id
		INNER JOIN roles r ON r.id = rp.role_id
		WHERE r.name IN ?
	`, roleNames).Scan(&codes).Error
	if err != nil {
		return nil, err
	}
	return codes, nil
}

// GrantRole inserts the grant unless the account already holds the role or the approval
// already produced a grant. In both cases the existing grant is returned with ErrAlreadyGranted.
func (r *roleRepository) GrantRole(ctx context.Context, accountID uuid.UUID, roleName string, approvalRequestID uuid.UUID) (*model.AccountRole, error) {
	db := GetDB(ctx, r.db)

	grant := model.AccountRole{
		AccountID:         accountID,
		RoleName:          roleName,
		ApprovalRequestID: &approvalRequestID,
	}
	res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&grant)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 1 {
		return &grant, nil
	}

	var existing model.AccountRole
	err := db.Where("account_id = ? AND role_name = ?", accountID, roleName).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		err = db.Where("approval_request_id = ?", approvalRequestID).First(&existing).Error
	}
	if err != nil {
		return nil, err
	}
	return &existing, apperr.ErrAlreadyGranted
}

func (r *roleRepository) RolesForAccount(ctx context.Context, accountID uuid.UUID) ([]string, error) {
	var names []string
	if err := GetDB(ctx, r.db).Model(&model.AccountRole{}).
		Where("account_id = ?", accountID).
		Order("granted_at ASC").
		Pluck("role_name", &names).Error; err != nil {
		return nil, err
	}
	return names, nil
}

func (r *roleRepository) GrantsForAccount(ctx context.Context, accountID uuid.UUID) ([]model.AccountRole, error) {
	var grants []model.AccountRole
	if err := GetDB(ctx, r.db).Where("account_id = ?", accountID).Order("granted_at ASC").Find(&grants).Error; err != nil {
		return nil, err
	}
	return grants, nil
}

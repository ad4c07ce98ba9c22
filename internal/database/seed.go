package database

import (
	"context"
	"errors"
	"fmt"

	"marketplace/internal/model"

	"gorm.io/gorm"
)

// Permission codes checked by the HTTP middleware
const (
	PermApprovalsRead    = "approvals.read"
	PermApprovalsApprove = "approvals.approve"
	PermApprovalsSubmit  = "approvals.submit"
	PermAuditRead        = "audit.read"
)

var defaultPermissions = []model.Permission{
	{Code: PermApprovalsRead, Name: "View approval requests", Group: "approvals"},
	{Code: PermApprovalsApprove, Name: "Approve / reject requests", Group: "approvals"},
	{Code: PermApprovalsSubmit, Name: "Submit listing requests", Group: "approvals"},
	{Code: PermAuditRead, Name: "View audit trail", Group: "audit"},
}

var defaultRoles = []struct {
	Name        string
	Description string
	PermCodes   []string
}{
	{
		Name:        model.RoleAdmin,
		Description: "Administrator: reviews registrations and listings",
		PermCodes:   []string{PermApprovalsRead, PermApprovalsApprove, PermApprovalsSubmit, PermAuditRead},
	},
	{
		Name:        model.RoleSupplier,
		Description: "Approved supplier: may submit product listings",
		PermCodes:   []string{PermApprovalsSubmit},
	},
	{
		Name:        model.RoleBuyer,
		Description: "Approved buyer",
		PermCodes:   []string{},
	},
}

// SeedRolesAndPermissions creates the default permissions and roles if not already present.
// Existing permissions get their name and group refreshed; role permission sets are replaced.
func SeedRolesAndPermissions(ctx context.Context, db *gorm.DB) error {
	db = db.WithContext(ctx)

	permByCode := make(map[string]model.Permission, len(defaultPermissions))
	for _, p := range defaultPermissions {
		perm := p
		var existing model.Permission
		err := db.Where("code = ?", perm.Code).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := db.Create(&perm).Error; err != nil {
				return fmt.Errorf("failed to seed permission '%s': %w", perm.Code, err)
			}
		case err != nil:
			return fmt.Errorf("failed to look up permission '%s': %w", perm.Code, err)
		default:
			perm.ID = existing.ID
			if err := db.Model(&existing).Updates(map[string]interface{}{"name": perm.Name, "group": perm.Group}).Error; err != nil {
				return fmt.Errorf("failed to refresh permission '%s': %w", perm.Code, err)
			}
		}
		permByCode[perm.Code] = perm
	}

	for _, def := range defaultRoles {
		role := model.Role{Name: def.Name}
		if err := db.Where(model.Role{Name: def.Name}).
			Attrs(model.Role{Description: def.Description, IsSystem: true}).
			FirstOrCreate(&role).Error; err != nil {
			return fmt.Errorf("failed to seed role '%s': %w", def.Name, err)
		}

		perms := make([]model.Permission, 0, len(def.PermCodes))
		for _, code := range def.PermCodes {
			perms = append(perms, permByCode[code])
		}
		assoc := db.Model(&role).Association("Permissions")
		if len(perms) == 0 {
			if err := assoc.Clear(); err != nil {
				return fmt.Errorf("failed to clear permissions of role '%s': %w", def.Name, err)
			}
			continue
		}
		if err := assoc.Replace(perms); err != nil {
			return fmt.Errorf("failed to assign permissions to role '%s': %w", def.Name, err)
		}
	}

	return nil
}

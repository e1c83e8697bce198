package events

import (
	"errors"

	"gorm.io/gorm"
)

// roleFor looks up the single permission row for (eventID, userID). The
// second return value reports whether any permission exists.
func roleFor(tx *gorm.DB, eventID, userID string) (Role, bool, error) {
	var permission EventPermission
	err := tx.Where("event_id = ? AND user_id = ?", eventID, userID).Take(&permission).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return permission.Role, true, nil
}

// hasPermission reports whether the user's held role satisfies the required
// role. A missing permission row always fails.
func hasPermission(tx *gorm.DB, eventID, userID string, required Role) (bool, error) {
	role, found, err := roleFor(tx, eventID, userID)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}
	return role.Meets(required), nil
}

// listPermissions returns every permission row for the event.
func listPermissions(tx *gorm.DB, eventID string) ([]EventPermission, error) {
	var permissions []EventPermission
	if err := tx.Where("event_id = ?", eventID).
		Order("user_id ASC").
		Find(&permissions).Error; err != nil {
		return nil, err
	}
	return permissions, nil
}

// permissionHolders returns the user ids holding any role on the event.
func permissionHolders(tx *gorm.DB, eventID string) ([]string, error) {
	permissions, err := listPermissions(tx, eventID)
	if err != nil {
		return nil, err
	}
	holders := make([]string, 0, len(permissions))
	for _, permission := range permissions {
		holders = append(holders, permission.UserID)
	}
	return holders, nil
}

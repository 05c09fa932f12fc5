package models

import (
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type Role string

const (
	RoleAdmin      Role = "admin"
	RoleSupervisor Role = "supervisor"
	RoleViewer     Role = "viewer"
)

// Actions checked by HasPermission.
const (
	ActionViewFleet      = "view_fleet"
	ActionViewAlerts     = "view_alerts"
	ActionHandleAlerts   = "handle_alerts"
	ActionControlFetcher = "control_fetcher"
	ActionEvaluateRules  = "evaluate_rules"
	ActionManageUsers    = "manage_users"
)

// User is a monitoring-room operator who signs in to the REST API.
type User struct {
	gorm.Model
	Username string `gorm:"uniqueIndex;not null" json:"username"`
	Password string `gorm:"not null" json:"-"`
	Role     Role   `gorm:"not null" json:"role"`
	Email    string `gorm:"index" json:"email"`
	Active   bool   `gorm:"not null" json:"active"`
}

func (u *User) SetPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.Password = string(hashedPassword)
	return nil
}

func (u *User) CheckPassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password))
	return err == nil
}

// HasPermission reports whether role may perform action.
func HasPermission(role Role, action string) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleSupervisor:
		return action != ActionManageUsers
	case RoleViewer:
		return action == ActionViewFleet || action == ActionViewAlerts
	default:
		return false
	}
}

func (u *User) HasPermission(action string) bool {
	return u.Active && HasPermission(u.Role, action)
}

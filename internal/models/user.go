// internal/models/user.go
package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

type User struct {
	BaseModel
	Email                   string     `json:"email" gorm:"uniqueIndex;size:255;not null"`
	Name                    string     `json:"name" gorm:"size:255;not null"`
	PasswordHash            string     `json:"-" gorm:"size:255;not null"`
	Role                    UserRole   `json:"role" gorm:"type:varchar(20);not null;default:'Customer'"`
	IsActive                bool       `json:"is_active" gorm:"default:true"`
	Company                 string     `json:"company,omitempty" gorm:"size:255"`
	AvatarURL               string     `json:"avatar_url,omitempty" gorm:"size:512"`
	EmailVerified           bool       `json:"email_verified" gorm:"default:false"`
	EmailVerifiedAt         *time.Time `json:"email_verified_at"`
	MobileVerified          bool       `json:"mobile_verified" gorm:"default:false"`
	MobileVerifiedAt        *time.Time `json:"mobile_verified_at"`
	VerificationCompletedAt *time.Time `json:"verification_completed_at"`
	LastLoginAt             *time.Time `json:"last_login_at"`

	// Relationships
	Licenses []License `json:"licenses,omitempty" gorm:"foreignKey:UserID"`
	Orders   []Order   `json:"orders,omitempty" gorm:"foreignKey:UserID"`
}

func (u *User) IsAdmin() bool {
	return u.Role == UserRoleAdmin
}

func (u *User) SetPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hashedPassword)
	return nil
}

func (u *User) CheckPassword(password string) error {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
}

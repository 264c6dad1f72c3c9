package mapper

import (
	authdto "github.com/trackfit/backend/internal/auth/service/dto"
	userdomain "github.com/trackfit/backend/internal/user/domain"
)

// UserToProfile drops the password hash.
func UserToProfile(user userdomain.User) authdto.Profile {
	return authdto.Profile{
		ID:    string(user.ID),
		Email: user.Email,
		Name:  user.Name,
	}
}

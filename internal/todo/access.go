package todo

import "github.com/eleven-am/todoapp/internal/models"

// UserOwnsCategory is the only authorization rule: ownership equality
func UserOwnsCategory(user *models.User, category *models.Category) bool {
	if user == nil || category == nil {
		return false
	}
	return category.UserID == user.ID
}

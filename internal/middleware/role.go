package middleware

import "github.com/iliyamo/pasal-api/internal/model"

// roleAllowed reports whether role satisfies required.  An empty
// requirement admits every authenticated role.
func roleAllowed(role model.Role, required []model.Role) bool {
	if len(required) == 0 {
		return true
	}
	for _, r := range required {
		if r == role {
			return true
		}
	}
	return false
}

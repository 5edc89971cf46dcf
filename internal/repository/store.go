// Package repository persists answered tax questions.
package repository

import "tax-assistant/internal/domain"

func normalizeUserID(userID string) string {
	if userID == "" {
		return domain.DefaultUserID
	}
	return userID
}

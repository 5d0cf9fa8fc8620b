package store

import (
	"context"

	"github.com/shmkit/itsgate/pkg/directory/models"
)

// GetUser looks up a directory account by username.
func (s *Store) GetUser(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).
		Where("userid = ?", username).
		First(&user).Error
	if err != nil {
		return nil, convertNotFoundError(err, models.ErrUserNotFound)
	}
	return &user, nil
}

// AuthorizedIDs returns the project and structure ids the user has been
// granted. An empty slice means the user currently has access to nothing.
func (s *Store) AuthorizedIDs(ctx context.Context, username string) ([]string, error) {
	var rows []models.AuthMapping
	err := s.db.WithContext(ctx).
		Where("userid = ?", username).
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	return ids, nil
}

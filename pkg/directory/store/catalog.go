package store

import (
	"context"

	"github.com/shmkit/itsgate/pkg/directory/models"
)

// ListProjects returns the project catalog. A nil filter returns every
// project; otherwise only projects whose id is in the filter are returned.
func (s *Store) ListProjects(ctx context.Context, projectIDs []string) ([]models.ProjectRow, error) {
	var rows []models.ProjectRow
	q := s.db.WithContext(ctx).
		Table("tb_project p").
		Select("p.projectid, p.projectname, p.regdate, p.closedate").
		Order("p.projectid")
	if projectIDs != nil {
		q = q.Where("p.projectid IN ?", projectIDs)
	}
	if err := q.Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListStructures returns the structures belonging to one project.
func (s *Store) ListStructures(ctx context.Context, projectID string) ([]models.StructureRow, error) {
	return s.structuresWhere(ctx, "g.projectid = ?", projectID)
}

// StructuresForProjects returns the structures belonging to any of the given
// projects. This backs the project-to-structure scope expansion: a user
// granted a project is implicitly granted every structure under it.
func (s *Store) StructuresForProjects(ctx context.Context, projectIDs []string) ([]models.StructureRow, error) {
	return s.structuresWhere(ctx, "g.projectid IN ?", projectIDs)
}

func (s *Store) structuresWhere(ctx context.Context, cond string, arg any) ([]models.StructureRow, error) {
	var rows []models.StructureRow
	err := s.db.WithContext(ctx).
		Table("tb_structure s").
		Select("s.stid, s.stname, s.staddr").
		Joins("JOIN tb_group g ON s.groupid = g.groupid").
		Where(cond, arg).
		Order("s.stid").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ListProjectStructures returns the joined project/structure catalog,
// optionally filtered to a set of project ids.
func (s *Store) ListProjectStructures(ctx context.Context, projectIDs []string) ([]models.ProjectStructureRow, error) {
	var rows []models.ProjectStructureRow
	q := s.db.WithContext(ctx).
		Table("tb_structure s").
		Select("tp.projectid, tp.projectname, s.stid, s.stname, s.staddr, tp.regdate, tp.closedate").
		Joins("JOIN tb_group g ON s.groupid = g.groupid").
		Joins("JOIN tb_project tp ON g.projectid = tp.projectid").
		Order("tp.projectid, s.stid")
	if projectIDs != nil {
		q = q.Where("tp.projectid IN ?", projectIDs)
	}
	if err := q.Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

package repository

import (
	"testing"

	"github.com/stretchr/testify/require"

	"campus-chat/models"
)

func Test_Profile_IdsSequentialPerRole(t *testing.T) {
	req := require.New(t)
	repo := NewSQLiteProfileRepo(testDB(t))

	s1, err := repo.Create("Ada Student", "ada@campus.edu", models.RoleStudent, "hash")
	req.NoError(err)
	f1, err := repo.Create("Grace Faculty", "grace@campus.edu", models.RoleFaculty, "hash")
	req.NoError(err)
	s2, err := repo.Create("Linus Student", "linus@campus.edu", models.RoleStudent, "hash")
	req.NoError(err)

	// Ids restart per role: the first faculty member also gets id 1.
	req.Equal(1, s1.ID)
	req.Equal(1, f1.ID)
	req.Equal(2, s2.ID)
}

func Test_Profile_FindByIdentityFiltersRole(t *testing.T) {
	req := require.New(t)
	repo := NewSQLiteProfileRepo(testDB(t))

	_, err := repo.Create("Ada Student", "ada@campus.edu", models.RoleStudent, "hash")
	req.NoError(err)
	_, err = repo.Create("Grace Faculty", "grace@campus.edu", models.RoleFaculty, "hash")
	req.NoError(err)

	p, err := repo.FindByIdentity(models.Identity{ID: 1, Role: models.RoleFaculty})
	req.NoError(err)
	req.Equal("Grace Faculty", p.Name)

	_, err = repo.FindByIdentity(models.Identity{ID: 2, Role: models.RoleFaculty})
	req.ErrorIs(err, ErrProfileNotFound)
}

func Test_Profile_FindByEmail(t *testing.T) {
	req := require.New(t)
	repo := NewSQLiteProfileRepo(testDB(t))

	created, err := repo.Create("Ada Student", "ada@campus.edu", models.RoleStudent, "hash")
	req.NoError(err)

	p, err := repo.FindByEmail("ada@campus.edu")
	req.NoError(err)
	req.Equal(created.Identity(), p.Identity())
	req.Equal("hash", p.Password)

	_, err = repo.FindByEmail("nobody@campus.edu")
	req.ErrorIs(err, ErrProfileNotFound)
}

package creator

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
	"github.com/angelmondragon/marketplace-backend/pkg/pagination"
)

func newTestService(t *testing.T, repo *Repository) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{Repo: repo})
	require.NoError(t, err)
	return svc
}

func TestRegisterAndGet(t *testing.T) {
	repo := NewRepository(openTestDB(t))
	svc := newTestService(t, repo)
	userID := uuid.New()

	created, err := svc.Register(t.Context(), userID, RegisterInput{
		Name:    "  Atelier Nord ",
		Email:   "Studio@Example.com",
		Website: ptr("https://atelier.example.com"),
	})
	require.NoError(t, err)
	assert.Equal(t, userID, created.ID)
	assert.Equal(t, "Atelier Nord", created.Name)
	assert.Equal(t, string(enums.CreatorStatusActive), created.Status)

	stored, err := repo.FindByID(t.Context(), userID)
	require.NoError(t, err)
	assert.Equal(t, "studio@example.com", stored.Email)

	got, err := svc.Get(t.Context(), userID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	_, err = svc.Get(t.Context(), uuid.New())
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound), "unexpected error %v", err)
}

func TestRegisterConflicts(t *testing.T) {
	svc := newTestService(t, NewRepository(openTestDB(t)))
	userID := uuid.New()

	_, err := svc.Register(t.Context(), userID, RegisterInput{Name: "One", Email: "one@example.com"})
	require.NoError(t, err)

	_, err = svc.Register(t.Context(), userID, RegisterInput{Name: "Again", Email: "again@example.com"})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConflict), "re-registering: %v", err)

	_, err = svc.Register(t.Context(), uuid.New(), RegisterInput{Name: "Two", Email: "ONE@example.com"})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConflict), "duplicate email: %v", err)
	assert.Equal(t, "email already in use", pkgerrors.As(err).Message())
}

func TestRegisterValidation(t *testing.T) {
	svc := newTestService(t, NewRepository(openTestDB(t)))
	cases := map[string]struct {
		user  uuid.UUID
		input RegisterInput
	}{
		"no user":    {uuid.Nil, RegisterInput{Name: "A", Email: "a@example.com"}},
		"blank name": {uuid.New(), RegisterInput{Name: "  ", Email: "a@example.com"}},
		"bad email":  {uuid.New(), RegisterInput{Name: "A", Email: "not-an-email"}},
		"trailing @": {uuid.New(), RegisterInput{Name: "A", Email: "a@"}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Register(t.Context(), tc.user, tc.input)
			assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation), "unexpected error %v", err)
		})
	}
}

func TestListActivePagesByName(t *testing.T) {
	repo := NewRepository(openTestDB(t))
	svc := newTestService(t, repo)
	mustSeedCreator(t, repo, "Cedar", enums.CreatorStatusActive)
	mustSeedCreator(t, repo, "Birch", enums.CreatorStatusActive)
	mustSeedCreator(t, repo, "Alder", enums.CreatorStatusSuspended)
	mustSeedCreator(t, repo, "Aspen", enums.CreatorStatusActive)

	res, err := svc.ListActive(t.Context(), ptr(1), ptr(2))
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Total)
	assert.Equal(t, 2, res.TotalPages)
	require.Len(t, res.Items, 2)
	assert.Equal(t, "Aspen", res.Items[0].Name)
	assert.Equal(t, "Birch", res.Items[1].Name)

	res, err = svc.ListActive(t.Context(), ptr(2), ptr(2))
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "Cedar", res.Items[0].Name)

	res, err = svc.ListActive(t.Context(), ptr(50), nil)
	require.NoError(t, err)
	assert.Empty(t, res.Items)
	assert.Equal(t, pagination.DefaultPageSize, res.PageSize)

	_, err = svc.ListActive(t.Context(), ptr(0), nil)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
	_, err = svc.ListActive(t.Context(), nil, ptr(pagination.MaxPageSize+1))
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

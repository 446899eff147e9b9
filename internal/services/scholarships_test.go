package services

import (
	"context"
	"testing"
	"time"

	"github.com/Folexy13/scholarhunter-sub001/internal/database"
	"github.com/Folexy13/scholarhunter-sub001/internal/models"
	"github.com/Folexy13/scholarhunter-sub001/internal/testutil"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeScholarshipRepo is an in-memory catalogue that counts list queries.
type fakeScholarshipRepo struct {
	items     []models.Scholarship
	listCalls int
	expired   int64
}

func (f *fakeScholarshipRepo) CreateScholarship(_ context.Context, in models.ScholarshipInput) (*models.Scholarship, error) {
	s := models.Scholarship{
		ID:           uuid.New(),
		Name:         in.Name,
		Organization: in.Organization,
		Deadline:     in.Deadline,
		IsActive:     in.IsActive == nil || *in.IsActive,
	}
	f.items = append(f.items, s)
	return &s, nil
}

func (f *fakeScholarshipRepo) GetScholarship(_ context.Context, id uuid.UUID) (*models.Scholarship, error) {
	for i := range f.items {
		if f.items[i].ID == id {
			return &f.items[i], nil
		}
	}
	return nil, database.ErrNotFound
}

func (f *fakeScholarshipRepo) ListScholarships(_ context.Context, filter models.ScholarshipFilter) ([]models.Scholarship, error) {
	f.listCalls++
	out := make([]models.Scholarship, 0, len(f.items))
	for _, s := range f.items {
		if filter.IsActive != nil && s.IsActive != *filter.IsActive {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeScholarshipRepo) SearchScholarships(context.Context, string) ([]models.Scholarship, error) {
	return []models.Scholarship{}, nil
}

func (f *fakeScholarshipRepo) UpdateScholarship(_ context.Context, id uuid.UUID, upd models.ScholarshipUpdate) (*models.Scholarship, error) {
	s, err := f.GetScholarship(context.Background(), id)
	if err != nil {
		return nil, err
	}
	if upd.Name != nil {
		s.Name = *upd.Name
	}
	return s, nil
}

func (f *fakeScholarshipRepo) DeleteScholarship(_ context.Context, id uuid.UUID) error {
	for i := range f.items {
		if f.items[i].ID == id {
			f.items = append(f.items[:i], f.items[i+1:]...)
			return nil
		}
	}
	return database.ErrNotFound
}

func (f *fakeScholarshipRepo) DeleteAllScholarships(context.Context) (int64, error) {
	n := int64(len(f.items))
	f.items = nil
	return n, nil
}

func (f *fakeScholarshipRepo) DeactivateExpiredScholarships(context.Context, time.Time) (int64, error) {
	return f.expired, nil
}

func setupScholarshipService(t *testing.T) (*ScholarshipService, *fakeScholarshipRepo, *recordingNotifier, *miniredis.Miniredis) {
	t.Helper()

	mr := testutil.SetupMiniRedis(t)
	repo := &fakeScholarshipRepo{}
	notifier := &recordingNotifier{}
	svc := NewScholarshipService(repo, testutil.NewTestCache(t, mr), time.Minute, notifier)
	return svc, repo, notifier, mr
}

func seed(t *testing.T, svc *ScholarshipService, names ...string) {
	t.Helper()
	for _, name := range names {
		_, err := svc.Create(context.Background(), models.ScholarshipInput{
			Name:         name,
			Organization: "Org",
			Deadline:     time.Now().Add(24 * time.Hour),
		})
		require.NoError(t, err)
	}
}

func TestScholarshipService_ListingIsCachedAndInvalidated(t *testing.T) {
	svc, repo, _, _ := setupScholarshipService(t)
	ctx := context.Background()
	seed(t, svc, "Rhodes", "Fulbright")

	for i := 0; i < 3; i++ {
		list, err := svc.FindAll(ctx, models.ScholarshipFilter{}, false)
		require.NoError(t, err)
		assert.Len(t, list, 2)
	}
	assert.Equal(t, 1, repo.listCalls)

	seed(t, svc, "Chevening")
	list, err := svc.FindAll(ctx, models.ScholarshipFilter{}, false)
	require.NoError(t, err)
	assert.Len(t, list, 3)
	assert.Equal(t, 2, repo.listCalls)
}

func TestScholarshipService_CreateAnnouncesToStudents(t *testing.T) {
	svc, _, notifier, _ := setupScholarshipService(t)
	seed(t, svc, "Rhodes")

	inactive := false
	_, err := svc.Create(context.Background(), models.ScholarshipInput{
		Name: "Hidden", Organization: "Org", Deadline: time.Now(), IsActive: &inactive,
	})
	require.NoError(t, err)

	events := notifier.sent()
	require.Len(t, events, 1)
	assert.Equal(t, models.RoleStudent, events[0].Role)
	assert.Equal(t, models.EventScholarshipMatch, events[0].Event)
}

func TestScholarshipService_Validation(t *testing.T) {
	svc, _, _, _ := setupScholarshipService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, models.ScholarshipInput{Organization: "Org", Deadline: time.Now()})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Create(ctx, models.ScholarshipInput{Name: "X", Organization: "Org"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Search(ctx, "   ")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestScholarshipService_RandomizeAndMatches(t *testing.T) {
	svc, _, _, _ := setupScholarshipService(t)
	ctx := context.Background()
	seed(t, svc, "A", "B", "C", "D")

	// Reverse instead of shuffling so the order is deterministic.
	svc.shuffle = func(n int, swap func(i, j int)) {
		for i := 0; i < n/2; i++ {
			swap(i, n-1-i)
		}
	}

	list, err := svc.FindAll(ctx, models.ScholarshipFilter{}, true)
	require.NoError(t, err)
	names := make([]string, 0, len(list))
	for _, s := range list {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"D", "C", "B", "A"}, names)

	matches, err := svc.Matches(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, matches, 2)
}

func TestScholarshipService_Removal(t *testing.T) {
	svc, repo, _, _ := setupScholarshipService(t)
	ctx := context.Background()
	seed(t, svc, "A", "B")

	assert.ErrorIs(t, svc.Remove(ctx, uuid.New()), ErrNotFound)
	require.NoError(t, svc.Remove(ctx, repo.items[0].ID))

	n, err := svc.RemoveAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	repo.expired = 4
	n, err = svc.DeactivateExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}

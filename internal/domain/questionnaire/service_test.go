package questionnaire

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medscreen/medscreen/internal/domain/scoring"
	"github.com/medscreen/medscreen/internal/platform/auth"
	"github.com/medscreen/medscreen/internal/platform/cache"
)

// ── Mock Repository ──

type mockTemplateRepo struct {
	data  map[uuid.UUID]*Template
	reads int
}

func (m *mockTemplateRepo) Create(_ context.Context, t *Template) error {
	t.ID = uuid.New()
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt
	cp := *t
	m.data[t.ID] = &cp
	return nil
}
func (m *mockTemplateRepo) GetByID(_ context.Context, id uuid.UUID) (*Template, error) {
	m.reads++
	if t, ok := m.data[id]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, ErrNotFound
}
func (m *mockTemplateRepo) Update(_ context.Context, t *Template) error {
	if _, ok := m.data[t.ID]; !ok {
		return ErrNotFound
	}
	cp := *t
	m.data[t.ID] = &cp
	return nil
}
func (m *mockTemplateRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.data, id)
	return nil
}
func (m *mockTemplateRepo) filter(keep func(*Template) bool) ([]*Template, int, error) {
	var out []*Template
	for _, t := range m.data {
		if keep(t) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, len(out), nil
}
func (m *mockTemplateRepo) List(_ context.Context, limit, offset int) ([]*Template, int, error) {
	return m.filter(func(*Template) bool { return true })
}
func (m *mockTemplateRepo) ListByDoctor(_ context.Context, doctorID uuid.UUID, limit, offset int) ([]*Template, int, error) {
	return m.filter(func(t *Template) bool { return t.DoctorID == doctorID })
}
func (m *mockTemplateRepo) ListPublic(_ context.Context, limit, offset int) ([]*Template, int, error) {
	return m.filter(func(t *Template) bool { return t.IsPublic })
}

func newTestService() (*Service, *mockTemplateRepo) {
	repo := &mockTemplateRepo{data: make(map[uuid.UUID]*Template)}
	return NewService(repo, zerolog.Nop()), repo
}

func doctor() auth.Principal {
	return auth.Principal{ID: uuid.New(), Type: auth.PrincipalDoctor, Role: auth.RoleUser}
}

func admin() auth.Principal {
	return auth.Principal{ID: uuid.New(), Type: auth.PrincipalDoctor, Role: auth.RoleAdmin}
}

func respondent() auth.Principal {
	return auth.Principal{ID: uuid.New(), Type: auth.PrincipalRespondent, Role: auth.RoleUser}
}

func sampleTemplate() *Template {
	return &Template{
		Title: "Depression screening",
		Definition: scoring.Definition{
			Questions: []scoring.Question{
				{Text: "Little interest?", Kind: scoring.KindSingleChoice, Options: []scoring.Option{
					{Text: "Never", Score: 0}, {Text: "Often", Score: 3},
				}},
				{Text: "Symptoms", Kind: scoring.KindMultiChoice, Options: []scoring.Option{
					{Text: "Fatigue", Score: 1}, {Text: "Other", Score: 1, Kind: scoring.OptionCustom},
				}},
				{Text: "Notes", Kind: scoring.KindFreeText},
			},
			Tiers: []scoring.Tier{
				{MinScore: 0, MaxScore: 2, Label: "Minimal"},
				{MinScore: 3, MaxScore: 5, Label: "Moderate"},
			},
		},
	}
}

// ── Validation ──

func TestValidateTemplate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(t *Template)
		wantErr error
	}{
		{"valid", func(*Template) {}, nil},
		{"missing title", func(t *Template) { t.Title = "  " }, ErrInvalid},
		{"no questions", func(t *Template) { t.Questions = nil }, ErrInvalid},
		{"empty question text", func(t *Template) { t.Questions[0].Text = "" }, scoring.ErrMalformedQuestion},
		{"unknown kind", func(t *Template) { t.Questions[0].Kind = "slider" }, scoring.ErrMalformedQuestion},
		{"choice without options", func(t *Template) { t.Questions[1].Options = nil }, scoring.ErrMalformedQuestion},
		{"empty option text", func(t *Template) { t.Questions[0].Options[1].Text = "" }, scoring.ErrMalformedQuestion},
		{"repeated option text is kept", func(t *Template) { t.Questions[0].Options[1].Text = "Never" }, nil},
		{"inverted tier", func(t *Template) { t.Tiers[0].MinScore = 9 }, scoring.ErrInvalidTier},
		{"no tiers is allowed", func(t *Template) { t.Tiers = nil }, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tpl := sampleTemplate()
			tt.mutate(tpl)
			err := ValidateTemplate(tpl)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestService_RepeatedOptionTextScoresFirst(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	doc := doctor()
	tpl := &Template{
		Title: "Legacy screening",
		Definition: scoring.Definition{
			Questions: []scoring.Question{
				{Text: "Merasa lelah?", Kind: scoring.KindSingleChoice, Options: []scoring.Option{
					{Text: "Ya", Score: 3}, {Text: "Ya", Score: 10}, {Text: "Tidak", Score: 0},
				}},
			},
			Tiers: []scoring.Tier{{MinScore: 0, MaxScore: 5, Label: "Rendah"}},
		},
	}
	require.NoError(t, svc.Create(ctx, doc, tpl))

	stored, err := svc.Get(ctx, doc, tpl.ID)
	require.NoError(t, err)
	require.Len(t, stored.Questions[0].Options, 3, "repeated options are stored as authored")

	out, err := scoring.Score(stored.Definition, []scoring.Answer{
		{QuestionIndex: 0, Selected: &scoring.Selection{Text: "Ya"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 3.0, out.TotalScore)
	require.NotNil(t, out.Tier)
	assert.Equal(t, "Rendah", out.Tier.Label)

	stored.Title = "Legacy screening v2"
	assert.NoError(t, svc.Update(ctx, doc, stored), "templates with repeated options stay editable")
}

// ── CRUD and access ──

func TestService_Create(t *testing.T) {
	svc, _ := newTestService()
	doc := doctor()
	tpl := sampleTemplate()
	tpl.DoctorID = uuid.New()

	require.NoError(t, svc.Create(context.Background(), doc, tpl))
	assert.Equal(t, doc.ID, tpl.DoctorID, "templates belong to their author")
	assert.NotEqual(t, uuid.Nil, tpl.ID)

	err := svc.Create(context.Background(), respondent(), sampleTemplate())
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestService_GetAccess(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	owner := doctor()
	private := sampleTemplate()
	require.NoError(t, svc.Create(ctx, owner, private))
	public := sampleTemplate()
	public.IsPublic = true
	require.NoError(t, svc.Create(ctx, owner, public))

	_, err := svc.Get(ctx, owner, private.ID)
	assert.NoError(t, err)
	_, err = svc.Get(ctx, admin(), private.ID)
	assert.NoError(t, err)
	_, err = svc.Get(ctx, doctor(), private.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = svc.Get(ctx, respondent(), private.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.Get(ctx, respondent(), public.ID)
	assert.NoError(t, err)
	_, err = svc.GetPublic(ctx, private.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.GetPublic(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_UpdateDelete_OwnerOrAdmin(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	owner := doctor()
	tpl := sampleTemplate()
	require.NoError(t, svc.Create(ctx, owner, tpl))

	upd := sampleTemplate()
	upd.ID = tpl.ID
	upd.Title = "Renamed"
	assert.ErrorIs(t, svc.Update(ctx, doctor(), upd), ErrForbidden)
	require.NoError(t, svc.Update(ctx, owner, upd))
	assert.Equal(t, owner.ID, upd.DoctorID)

	bad := sampleTemplate()
	bad.ID = tpl.ID
	bad.Tiers[0].MinScore = 10
	assert.ErrorIs(t, svc.Update(ctx, owner, bad), scoring.ErrInvalidTier)

	assert.ErrorIs(t, svc.Delete(ctx, doctor(), tpl.ID), ErrForbidden)
	require.NoError(t, svc.Delete(ctx, admin(), tpl.ID))
	_, err := svc.Get(ctx, owner, tpl.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_List_Scoped(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	a, b := doctor(), doctor()
	require.NoError(t, svc.Create(ctx, a, sampleTemplate()))
	pub := sampleTemplate()
	pub.IsPublic = true
	require.NoError(t, svc.Create(ctx, b, pub))

	_, total, _ := svc.List(ctx, a, 20, 0)
	assert.Equal(t, 1, total)
	_, total, _ = svc.List(ctx, admin(), 20, 0)
	assert.Equal(t, 2, total)
	items, total, _ := svc.List(ctx, respondent(), 20, 0)
	require.Equal(t, 1, total)
	assert.True(t, items[0].IsPublic)
}

// ── Cache ──

func TestService_ReadThroughCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	svc, repo := newTestService()
	svc.SetCache(cache.NewStore[Template](client, "questionnaire:", time.Minute))
	ctx := context.Background()
	owner := doctor()
	tpl := sampleTemplate()
	require.NoError(t, svc.Create(ctx, owner, tpl))

	first, err := svc.Get(ctx, owner, tpl.ID)
	require.NoError(t, err)
	assert.True(t, mr.Exists("questionnaire:"+tpl.ID.String()))
	readsAfterFirst := repo.reads

	second, err := svc.Get(ctx, owner, tpl.ID)
	require.NoError(t, err)
	assert.Equal(t, readsAfterFirst, repo.reads, "second read should be served from cache")
	assert.Equal(t, first.Title, second.Title)
	assert.Equal(t, first.Tiers, second.Tiers)
	assert.Equal(t, first.Questions, second.Questions)

	upd := sampleTemplate()
	upd.ID = tpl.ID
	upd.Title = "Updated title"
	require.NoError(t, svc.Update(ctx, owner, upd))
	assert.False(t, mr.Exists("questionnaire:"+tpl.ID.String()), "update must invalidate the cache")

	third, err := svc.Get(ctx, owner, tpl.ID)
	require.NoError(t, err)
	assert.Equal(t, "Updated title", third.Title)
}

type failingCache struct{}

func (failingCache) Get(context.Context, string) (*Template, error) {
	return nil, errors.New("connection refused")
}
func (failingCache) Set(context.Context, string, *Template) error { return errors.New("connection refused") }
func (failingCache) Delete(context.Context, string) error         { return errors.New("connection refused") }

func TestService_CacheFailureFallsBack(t *testing.T) {
	svc, _ := newTestService()
	svc.SetCache(failingCache{})
	ctx := context.Background()
	owner := doctor()
	tpl := sampleTemplate()
	require.NoError(t, svc.Create(ctx, owner, tpl))

	got, err := svc.Get(ctx, owner, tpl.ID)
	require.NoError(t, err)
	assert.Equal(t, tpl.Title, got.Title)
	assert.NoError(t, svc.Delete(ctx, owner, tpl.ID))
}

package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codexalpha/blueprint_go_server/internal/model"
	"github.com/codexalpha/blueprint_go_server/internal/model/dto"
	"github.com/codexalpha/blueprint_go_server/internal/repository"
	"github.com/codexalpha/blueprint_go_server/internal/testutil"
)

func setupTemplateService(t *testing.T) (*TemplateService, func()) {
	t.Helper()

	db := testutil.SetupTestDB(t)
	service := NewTemplateService(repository.NewTemplateRepository(db))

	cleanup := func() {
		testutil.CleanupTestDB(t, db)
	}
	return service, cleanup
}

func TestTemplateService_Create(t *testing.T) {
	service, cleanup := setupTemplateService(t)
	defer cleanup()

	detail, err := service.Create(&dto.CreateTemplateRequest{
		CodexName:  "Coaching Philosophy",
		CodexOrder: 1,
		Sections: model.TemplateSectionList{
			{Index: 2, Name: "Values", Prompt: "Describe values"},
			{Index: 1, Name: "Mission", Prompt: "Describe mission"},
		},
	})
	require.NoError(t, err)
	assert.NotZero(t, detail.ID)
	assert.True(t, detail.IsActive)

	// Sections stored sorted by index
	require.Len(t, detail.Sections, 2)
	assert.Equal(t, 1, detail.Sections[0].Index)
	assert.Equal(t, 2, detail.Sections[1].Index)
}

func TestTemplateService_Create_DuplicateIndex(t *testing.T) {
	service, cleanup := setupTemplateService(t)
	defer cleanup()

	_, err := service.Create(&dto.CreateTemplateRequest{
		CodexName: "Broken",
		Sections: model.TemplateSectionList{
			{Index: 1, Name: "A"},
			{Index: 1, Name: "B"},
		},
	})
	assert.ErrorIs(t, err, ErrDuplicateSectionIndex)
}

func TestTemplateService_Update(t *testing.T) {
	service, cleanup := setupTemplateService(t)
	defer cleanup()

	detail, err := service.Create(&dto.CreateTemplateRequest{
		CodexName: "Original",
		Sections: model.TemplateSectionList{
			{Index: 1, Name: "A"},
		},
	})
	require.NoError(t, err)

	newName := "Renamed"
	inactive := false
	updated, err := service.Update(detail.ID, &dto.UpdateTemplateRequest{
		CodexName: &newName,
		IsActive:  &inactive,
	})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.CodexName)
	assert.False(t, updated.IsActive)

	// Sections untouched when not provided
	assert.Len(t, updated.Sections, 1)
}

func TestTemplateService_Update_NotFound(t *testing.T) {
	service, cleanup := setupTemplateService(t)
	defer cleanup()

	name := "x"
	_, err := service.Update(99999, &dto.UpdateTemplateRequest{CodexName: &name})
	assert.ErrorIs(t, err, ErrTemplateNotFound)
}

func TestTemplateService_List(t *testing.T) {
	service, cleanup := setupTemplateService(t)
	defer cleanup()

	for i := 0; i < 3; i++ {
		_, err := service.Create(&dto.CreateTemplateRequest{
			CodexName: "Template",
			Sections:  model.TemplateSectionList{{Index: 1, Name: "A"}},
		})
		require.NoError(t, err)
	}

	items, err := service.List()
	require.NoError(t, err)
	assert.Len(t, items, 3)
}

func TestTemplateService_Get_NotFound(t *testing.T) {
	service, cleanup := setupTemplateService(t)
	defer cleanup()

	_, err := service.Get(99999)
	assert.ErrorIs(t, err, ErrTemplateNotFound)
}

func TestTemplateService_Get(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	service := NewTemplateService(repository.NewTemplateRepository(db))
	template := testutil.TestTemplate(t, db)

	detail, err := service.Get(template.ID)
	require.NoError(t, err)
	assert.Equal(t, template.CodexName, detail.CodexName)
	assert.Len(t, detail.Sections, 3)
}

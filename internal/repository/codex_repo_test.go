package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codexalpha/blueprint_go_server/internal/model"
	"github.com/codexalpha/blueprint_go_server/internal/testutil"
)

func TestCodexRepository_Create(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewCodexRepository(db)
	user := testutil.TestUser(t, db)
	template := testutil.TestTemplate(t, db)
	run := testutil.TestRun(t, db, user.ID)

	codex := &model.Codex{
		RunID:      run.ID,
		TemplateID: template.ID,
		Name:       "Coaching Philosophy",
		CodexOrder: 1,
		Status:     model.CodexStatusPending,
	}

	err := repo.Create(codex)
	require.NoError(t, err)
	assert.NotZero(t, codex.ID)
}

func TestCodexRepository_ListByRunID_Ordered(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewCodexRepository(db)
	user := testutil.TestUser(t, db)
	template := testutil.TestTemplate(t, db)
	run := testutil.TestRun(t, db, user.ID)

	testutil.TestCodex(t, db, run.ID, template.ID, func(c *model.Codex) { c.CodexOrder = 3 })
	testutil.TestCodex(t, db, run.ID, template.ID, func(c *model.Codex) { c.CodexOrder = 1 })
	testutil.TestCodex(t, db, run.ID, template.ID, func(c *model.Codex) { c.CodexOrder = 2 })

	codexes, err := repo.ListByRunID(run.ID)
	require.NoError(t, err)
	require.Len(t, codexes, 3)
	assert.Equal(t, 1, codexes[0].CodexOrder)
	assert.Equal(t, 2, codexes[1].CodexOrder)
	assert.Equal(t, 3, codexes[2].CodexOrder)
}

func TestCodexRepository_UpdateAggregates(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewCodexRepository(db)
	user := testutil.TestUser(t, db)
	template := testutil.TestTemplate(t, db)
	run := testutil.TestRun(t, db, user.ID)
	codex := testutil.TestCodex(t, db, run.ID, template.ID)

	err := repo.UpdateAggregates(codex.ID, model.CodexStatusReadyWithErrors, 5, 3)
	require.NoError(t, err)

	found, err := repo.GetByID(codex.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CodexStatusReadyWithErrors, found.Status)
	assert.Equal(t, 5, found.TotalSections)
	assert.Equal(t, 3, found.CompletedSections)
}

func TestCodexRepository_UpdateExportURL(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewCodexRepository(db)
	user := testutil.TestUser(t, db)
	template := testutil.TestTemplate(t, db)
	run := testutil.TestRun(t, db, user.ID)
	codex := testutil.TestCodex(t, db, run.ID, template.ID)

	err := repo.UpdateExportURL(codex.ID, "https://cdn.example.com/codexes/1/1/123.md")
	require.NoError(t, err)

	found, err := repo.GetByID(codex.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/codexes/1/1/123.md", found.ExportURL)
}

func TestCodexRepository_DeleteByRunID(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewCodexRepository(db)
	user := testutil.TestUser(t, db)
	template := testutil.TestTemplate(t, db)
	run := testutil.TestRun(t, db, user.ID)
	other := testutil.TestRun(t, db, user.ID)

	testutil.TestCodex(t, db, run.ID, template.ID)
	testutil.TestCodex(t, db, run.ID, template.ID)
	kept := testutil.TestCodex(t, db, other.ID, template.ID)

	err := repo.DeleteByRunID(run.ID)
	require.NoError(t, err)

	codexes, err := repo.ListByRunID(run.ID)
	require.NoError(t, err)
	assert.Empty(t, codexes)

	found, err := repo.GetByID(kept.ID)
	require.NoError(t, err)
	assert.Equal(t, kept.ID, found.ID)
}

func TestCodexRepository_ListIDsByRunID(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewCodexRepository(db)
	user := testutil.TestUser(t, db)
	template := testutil.TestTemplate(t, db)
	run := testutil.TestRun(t, db, user.ID)

	c1 := testutil.TestCodex(t, db, run.ID, template.ID)
	c2 := testutil.TestCodex(t, db, run.ID, template.ID)

	ids, err := repo.ListIDsByRunID(run.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{c1.ID, c2.ID}, ids)
}

package worker

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/codexalpha/blueprint_go_server/config"
	"github.com/codexalpha/blueprint_go_server/internal/model"
	"github.com/codexalpha/blueprint_go_server/internal/pkg/queue"
	"github.com/codexalpha/blueprint_go_server/internal/repository"
	"github.com/codexalpha/blueprint_go_server/internal/service"
	"github.com/codexalpha/blueprint_go_server/internal/testutil"
)

// fakeGenerator 可编程的 Generator 实现
type fakeGenerator struct {
	content string
	err     error
	calls   int
}

func (g *fakeGenerator) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	g.calls++
	if g.err != nil {
		return "", g.err
	}
	return g.content, nil
}

type dispatcherEnv struct {
	db          *gorm.DB
	dispatcher  *Dispatcher
	generator   *fakeGenerator
	runRepo     *repository.RunRepository
	codexRepo   *repository.CodexRepository
	sectionRepo *repository.SectionRepository
}

func setupDispatcher(t *testing.T, generator *fakeGenerator) (*dispatcherEnv, func()) {
	t.Helper()

	db := testutil.SetupTestDB(t)

	runRepo := repository.NewRunRepository(db)
	codexRepo := repository.NewCodexRepository(db)
	sectionRepo := repository.NewSectionRepository(db)
	templateRepo := repository.NewTemplateRepository(db)
	codexService := service.NewCodexService(codexRepo, sectionRepo, templateRepo)
	runService := service.NewRunService(runRepo, codexRepo, sectionRepo, templateRepo, codexService, nil, nil)

	dispatcher := NewDispatcher(runRepo, codexRepo, sectionRepo, codexService, runService, generator, nil, nil, &config.Config{})

	env := &dispatcherEnv{
		db:          db,
		dispatcher:  dispatcher,
		generator:   generator,
		runRepo:     runRepo,
		codexRepo:   codexRepo,
		sectionRepo: sectionRepo,
	}
	cleanup := func() {
		testutil.CleanupTestDB(t, db)
	}
	return env, cleanup
}

func sectionMessage(user *model.User, run *model.PersonaRun, codex *model.Codex, section *model.Section) *queue.SectionMessage {
	return &queue.SectionMessage{
		SectionID: section.ID,
		CodexID:   codex.ID,
		RunID:     run.ID,
		UserID:    user.ID,
	}
}

func TestDispatcher_Process_Success(t *testing.T) {
	env, cleanup := setupDispatcher(t, &fakeGenerator{content: "generated text"})
	defer cleanup()

	user := testutil.TestUser(t, env.db)
	template := testutil.TestTemplate(t, env.db)
	run := testutil.TestRun(t, env.db, user.ID, testutil.WithRunStatus(model.RunStatusGenerating))
	codex := testutil.TestCodex(t, env.db, run.ID, template.ID)
	section := testutil.TestSection(t, env.db, codex.ID, 1)

	err := env.dispatcher.Process(context.Background(), sectionMessage(user, run, codex, section))
	require.NoError(t, err)
	assert.Equal(t, 1, env.generator.calls)

	found, err := env.sectionRepo.GetByID(section.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SectionStatusCompleted, found.Status)
	require.NotNil(t, found.Content)
	assert.Equal(t, "generated text", *found.Content)
}

func TestDispatcher_Process_GenerationError(t *testing.T) {
	env, cleanup := setupDispatcher(t, &fakeGenerator{err: errors.New("rate limit exceeded: too many requests")})
	defer cleanup()

	user := testutil.TestUser(t, env.db)
	template := testutil.TestTemplate(t, env.db)
	run := testutil.TestRun(t, env.db, user.ID, testutil.WithRunStatus(model.RunStatusGenerating))
	codex := testutil.TestCodex(t, env.db, run.ID, template.ID)
	section := testutil.TestSection(t, env.db, codex.ID, 1)

	// Provider failure is recorded as data, not returned as an error
	err := env.dispatcher.Process(context.Background(), sectionMessage(user, run, codex, section))
	require.NoError(t, err)

	found, err := env.sectionRepo.GetByID(section.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SectionStatusError, found.Status)
	require.NotNil(t, found.ErrorMessage)
	assert.Equal(t, "rate limit exceeded: too many requests", *found.ErrorMessage)
}

func TestDispatcher_Process_CancelledRunSkips(t *testing.T) {
	env, cleanup := setupDispatcher(t, &fakeGenerator{content: "should not run"})
	defer cleanup()

	user := testutil.TestUser(t, env.db)
	template := testutil.TestTemplate(t, env.db)
	run := testutil.TestRun(t, env.db, user.ID, testutil.WithCancelled())
	codex := testutil.TestCodex(t, env.db, run.ID, template.ID)
	section := testutil.TestSection(t, env.db, codex.ID, 1)

	err := env.dispatcher.Process(context.Background(), sectionMessage(user, run, codex, section))
	require.NoError(t, err)

	// Not claimed, not generated
	assert.Equal(t, 0, env.generator.calls)
	found, err := env.sectionRepo.GetByID(section.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SectionStatusPending, found.Status)
}

func TestDispatcher_Process_AlreadyClaimedSkips(t *testing.T) {
	env, cleanup := setupDispatcher(t, &fakeGenerator{content: "should not run"})
	defer cleanup()

	user := testutil.TestUser(t, env.db)
	template := testutil.TestTemplate(t, env.db)
	run := testutil.TestRun(t, env.db, user.ID, testutil.WithRunStatus(model.RunStatusGenerating))
	codex := testutil.TestCodex(t, env.db, run.ID, template.ID)
	section := testutil.TestSection(t, env.db, codex.ID, 1, testutil.WithSectionStatus(model.SectionStatusGenerating))

	err := env.dispatcher.Process(context.Background(), sectionMessage(user, run, codex, section))
	require.NoError(t, err)
	assert.Equal(t, 0, env.generator.calls)
}

func TestDispatcher_Process_CodexAggregation(t *testing.T) {
	env, cleanup := setupDispatcher(t, &fakeGenerator{content: "done"})
	defer cleanup()

	ctx := context.Background()
	user := testutil.TestUser(t, env.db)
	template := testutil.TestTemplate(t, env.db)
	run := testutil.TestRun(t, env.db, user.ID, testutil.WithRunStatus(model.RunStatusGenerating))
	codex := testutil.TestCodex(t, env.db, run.ID, template.ID)

	s1 := testutil.TestSection(t, env.db, codex.ID, 1)
	s2 := testutil.TestSection(t, env.db, codex.ID, 2)

	// After the first section the codex is still in flight
	require.NoError(t, env.dispatcher.Process(ctx, sectionMessage(user, run, codex, s1)))
	found, err := env.codexRepo.GetByID(codex.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CodexStatusPending, found.Status)
	assert.Equal(t, 1, found.CompletedSections)

	// After the last one it becomes ready and the run rolls up
	require.NoError(t, env.dispatcher.Process(ctx, sectionMessage(user, run, codex, s2)))
	found, err = env.codexRepo.GetByID(codex.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CodexStatusReady, found.Status)
	assert.Equal(t, 2, found.CompletedSections)

	foundRun, err := env.runRepo.GetByID(run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusCompleted, foundRun.Status)
}

func TestDispatcher_Process_ReadyWithErrorsRollsUp(t *testing.T) {
	env, cleanup := setupDispatcher(t, &fakeGenerator{err: errors.New("provider unavailable")})
	defer cleanup()

	ctx := context.Background()
	user := testutil.TestUser(t, env.db)
	template := testutil.TestTemplate(t, env.db)
	run := testutil.TestRun(t, env.db, user.ID, testutil.WithRunStatus(model.RunStatusGenerating))
	codex := testutil.TestCodex(t, env.db, run.ID, template.ID)

	testutil.TestSection(t, env.db, codex.ID, 1, testutil.WithContent("already done"))
	failing := testutil.TestSection(t, env.db, codex.ID, 2)

	require.NoError(t, env.dispatcher.Process(ctx, sectionMessage(user, run, codex, failing)))

	found, err := env.codexRepo.GetByID(codex.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CodexStatusReadyWithErrors, found.Status)

	// ready_with_errors is deliverable: the run completes
	foundRun, err := env.runRepo.GetByID(run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusCompleted, foundRun.Status)
}

func TestBuildAnswerContext_Deterministic(t *testing.T) {
	run := &model.PersonaRun{
		Title: "Anna",
		Answers: model.AnswerMap{
			"b_second": {Question: "Q2", Answer: "A2"},
			"a_first":  {Question: "Q1", Answer: "A1"},
		},
	}

	first := buildAnswerContext(run)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, buildAnswerContext(run))
	}

	// Keys rendered in sorted order
	assert.Contains(t, first, "Client: Anna")
	assert.Less(t, strings.Index(first, "a_first"), strings.Index(first, "b_second"))
}

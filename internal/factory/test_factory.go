package factory

import (
	"github.com/jonboulle/clockwork"

	"github.com/mcoot/capitalduel/internal/dependencies/mocks"
	"github.com/mcoot/capitalduel/internal/events"
	"github.com/mcoot/capitalduel/internal/model"
	"github.com/mcoot/capitalduel/internal/services/auth"
	"github.com/mcoot/capitalduel/internal/services/session"
	"github.com/mcoot/capitalduel/internal/storage/memory"
	"github.com/mcoot/capitalduel/internal/testutil"
)

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	FakeClock  *clockwork.FakeClock
	MockRandom *mocks.MockRandom
}

// NewTestApp creates an App configured for testing with mocked dependencies
func NewTestApp() *TestApp {
	store := memory.New()
	fakeClock := mocks.NewFakeClock()
	mockRandom := mocks.NewMockRandom()
	logger := testutil.NopLogger()

	app := newWithDependencies(store, fakeClock, mockRandom, events.NewLogPublisher(logger),
		auth.DefaultConfig(), session.DefaultConfig(), logger)

	return &TestApp{
		App:        app,
		FakeClock:  fakeClock,
		MockRandom: mockRandom,
	}
}

// LoadTestQuestions installs a small default question bank
func (t *TestApp) LoadTestQuestions() error {
	return t.QuestionsService.SetDefaults([]model.Question{
		{Country: "France", Capital: "Paris"},
		{Country: "Japan", Capital: "Tokyo"},
		{Country: "Peru", Capital: "Lima"},
		{Country: "Kenya", Capital: "Nairobi"},
	})
}

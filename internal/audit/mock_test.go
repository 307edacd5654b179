package audit

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/prospect-audit/internal/model"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) GetBusiness(ctx context.Context, id string) (*model.Business, error) {
	args := m.Called(ctx, id)
	if v := args.Get(0); v != nil {
		return v.(*model.Business), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStore) UpdateAuditResult(ctx context.Context, businessID string, result *model.AuditResult) error {
	args := m.Called(ctx, businessID, result)
	return args.Error(0)
}

// fakeRemote is an in-memory stand-in for the task API. Submits are answered
// per endpoint; task results replay per task id, repeating the last entry.
type fakeRemote struct {
	mu      sync.Mutex
	answers map[string]string
	tasks   map[string][]string
	fetched map[string]int
	bodies  map[string]map[string]any
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		answers: make(map[string]string),
		tasks:   make(map[string][]string),
		fetched: make(map[string]int),
		bodies:  make(map[string]map[string]any),
	}
}

func (f *fakeRemote) answer(endpoint, body string) *fakeRemote {
	f.answers[endpoint] = body
	return f
}

func (f *fakeRemote) task(id string, bodies ...string) *fakeRemote {
	f.tasks[id] = bodies
	return f
}

func (f *fakeRemote) Submit(_ context.Context, endpoint string, body map[string]any) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bodies[endpoint] = body
	return json.RawMessage(f.answers[endpoint]), nil
}

func (f *fakeRemote) TaskResult(_ context.Context, id string) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	script := f.tasks[id]
	i := f.fetched[id]
	if i >= len(script) {
		i = len(script) - 1
	}
	f.fetched[id]++
	return json.RawMessage(script[i]), nil
}

func (f *fakeRemote) body(endpoint string) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bodies[endpoint]
}

// recorder collects progress messages.
type recorder struct {
	mu   sync.Mutex
	msgs []string
}

func (r *recorder) record(msg string) {
	r.mu.Lock()
	r.msgs = append(r.msgs, msg)
	r.mu.Unlock()
}

func (r *recorder) joined() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return strings.Join(r.msgs, "\n")
}

package core

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/mock"

	"github.com/runnable/controlplane/internal/model"
)

// ---------- Mock DB ----------

// mockDB implements the DB interface for testing.
type mockDB struct {
	mock.Mock
}

func (m *mockDB) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgconn.CommandTag), args.Error(1)
}

func (m *mockDB) Query(ctx context.Context, sql string, arguments ...any) (pgx.Rows, error) {
	args := m.Called(ctx, sql, arguments)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(pgx.Rows), args.Error(1)
}

func (m *mockDB) QueryRow(ctx context.Context, sql string, arguments ...any) pgx.Row {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgx.Row)
}

// ---------- Mock dispatcher ----------

// mockDispatcher implements JobDispatcher for testing.
type mockDispatcher struct {
	mock.Mock
}

func (m *mockDispatcher) Dispatch(ctx context.Context, jobName string, raw json.RawMessage) error {
	args := m.Called(ctx, jobName, raw)
	return args.Error(0)
}

// matchLifecyclePayload returns a matcher that unmarshals a dispatched raw
// payload as an InstanceLifecycle and compares it to want.
func matchLifecyclePayload(want model.InstanceLifecycle) interface{} {
	return mock.MatchedBy(func(raw json.RawMessage) bool {
		var got model.InstanceLifecycle
		if err := json.Unmarshal(raw, &got); err != nil {
			return false
		}
		return got == want
	})
}

// ---------- Mock Row ----------

// mockRow implements pgx.Row for testing.
type mockRow struct {
	scanFunc func(dest ...any) error
}

func (m *mockRow) Scan(dest ...any) error {
	return m.scanFunc(dest...)
}

// ---------- Mock Rows ----------

// mockRows implements pgx.Rows for testing.
// It iterates through a list of scan functions, one per row.
type mockRows struct {
	callIndex int
	scanFuncs []func(dest ...any) error
	err       error
}

func newMockRows(scanFuncs ...func(dest ...any) error) *mockRows {
	return &mockRows{scanFuncs: scanFuncs}
}

func (m *mockRows) Next() bool {
	return m.callIndex < len(m.scanFuncs)
}

func (m *mockRows) Scan(dest ...any) error {
	if m.callIndex < len(m.scanFuncs) {
		fn := m.scanFuncs[m.callIndex]
		m.callIndex++
		return fn(dest...)
	}
	return nil
}

func (m *mockRows) Err() error                                   { return m.err }
func (m *mockRows) Close()                                       {}
func (m *mockRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (m *mockRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (m *mockRows) RawValues() [][]byte                          { return nil }
func (m *mockRows) Values() ([]any, error)                       { return nil, nil }
func (m *mockRows) Conn() *pgx.Conn                              { return nil }

// ---------- Scan helpers ----------

// instanceScanFunc fills the instanceColumns destinations from inst.
func instanceScanFunc(inst model.Instance) func(dest ...any) error {
	return func(dest ...any) error {
		*(dest[0].(*string)) = inst.ID
		*(dest[1].(*string)) = inst.ShortHash
		*(dest[2].(*string)) = inst.Name
		*(dest[3].(*int64)) = inst.OwnerGithubID
		*(dest[4].(*string)) = inst.OwnerUsername
		*(dest[5].(*bool)) = inst.MasterPod
		*(dest[6].(**string)) = inst.ParentID
		*(dest[7].(*bool)) = inst.IsTesting
		*(dest[8].(**string)) = inst.Isolated
		*(dest[9].(*bool)) = inst.IsIsolationGroupMaster
		*(dest[10].(*string)) = inst.BuildID
		*(dest[11].(*string)) = inst.ContextVersionID
		*(dest[12].(**string)) = inst.ContainerID
		*(dest[13].(**string)) = inst.ContainerDockHost
		*(dest[14].(*string)) = inst.ContainerState
		*(dest[15].(**string)) = inst.ContainerError
		*(dest[16].(**string)) = inst.ContainerIP
		*(dest[17].(*json.RawMessage)) = inst.ContainerPorts
		*(dest[18].(*json.RawMessage)) = inst.ContainerInspect
		*(dest[19].(*time.Time)) = inst.CreatedAt
		*(dest[20].(*time.Time)) = inst.UpdatedAt
		return nil
	}
}

// contextVersionScanFunc fills the contextVersionColumns destinations from cv.
func contextVersionScanFunc(cv model.ContextVersion) func(dest ...any) error {
	return func(dest ...any) error {
		*(dest[0].(*string)) = cv.ID
		*(dest[1].(*string)) = cv.ContextID
		*(dest[2].(*int64)) = cv.OwnerGithubID
		*(dest[3].(*string)) = cv.Repo
		*(dest[4].(*string)) = cv.Branch
		*(dest[5].(*string)) = cv.CommitSHA
		*(dest[6].(*string)) = cv.BuildID
		*(dest[7].(*string)) = cv.BuildState
		*(dest[8].(*bool)) = cv.BuildFailed
		*(dest[9].(**string)) = cv.BuildError
		*(dest[10].(**int64)) = cv.BuildDurationMS
		*(dest[11].(**string)) = cv.BuildContainerID
		*(dest[12].(**string)) = cv.BuildDockHost
		*(dest[13].(**time.Time)) = cv.BuildStartedAt
		*(dest[14].(**time.Time)) = cv.BuildCompletedAt
		*(dest[15].(*time.Time)) = cv.CreatedAt
		*(dest[16].(*time.Time)) = cv.UpdatedAt
		return nil
	}
}

func strPtr(s string) *string { return &s }

package approval_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/approval"
	"github.com/trezcool/shule/core/user"
	emailsvc "github.com/trezcool/shule/services/email"
	inmemdb "github.com/trezcool/shule/storage/database/inmem"
)

var (
	admin   = user.User{ID: "u-admin", Name: "Ada Admin", Email: "ada@example.com", Roles: []string{user.RoleAdmin}}
	teacher = user.User{ID: "u-teacher", Name: "Tom Teacher", Email: "tom@example.com", Roles: []string{user.RoleTeacher}}
	other   = user.User{ID: "u-other", Name: "Olga Other", Email: "olga@example.com", Roles: []string{user.RoleTeacher}}
	student = user.User{ID: "u-student", Name: "Sam Student", Roles: []string{user.RoleStudent}}
)

func newService() (*approval.Service, *emailsvc.ConsoleServiceMock) {
	translator := core.NewTranslator()
	mailer := emailsvc.NewConsoleServiceMock(core.NewTestConfig(), nil)
	svc := approval.NewService(inmemdb.NewApprovalRepository(inmemdb.Open()), mailer, core.NewValidator(translator), translator)
	return svc, mailer
}

func newExpense(t *testing.T, svc *approval.Service, usr user.User) approval.Request {
	t.Helper()
	req, err := svc.Create(context.Background(), usr, approval.NewRequest{
		Kind: approval.KindExpense, ScopeID: "class-1", Title: "Lab equipment", Amount: 250,
	})
	require.NoError(t, err)
	return req
}

func TestService_Create(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()

	req := newExpense(t, svc, teacher)
	assert.Equal(t, approval.StatusPending, req.Status)
	assert.Equal(t, teacher.ID, req.RequestedBy)
	assert.Equal(t, teacher.Email, req.RequestedByEmail)

	_, err := svc.Create(ctx, student, approval.NewRequest{Kind: approval.KindExpense, ScopeID: "c", Title: "x"})
	assert.Equal(t, core.ErrPermissionDenied, errors.Cause(err))

	_, err = svc.Create(ctx, teacher, approval.NewRequest{Kind: "loan", Title: "", Amount: -1})
	vErr, ok := errors.Cause(err).(*core.ValidationError)
	require.True(t, ok)
	var fields []string
	for _, f := range vErr.Fields {
		fields = append(fields, f.Field)
	}
	assert.ElementsMatch(t, []string{"kind", "scope_id", "title", "amount"}, fields)
}

func TestService_Query(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()
	newExpense(t, svc, teacher)
	newExpense(t, svc, other)

	mine, err := svc.Query(ctx, teacher, approval.QueryFilter{})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, teacher.ID, mine[0].RequestedBy)

	all, err := svc.Query(ctx, admin, approval.QueryFilter{Kind: approval.KindExpense})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestService_UpdateDelete(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()
	req := newExpense(t, svc, teacher)
	upd := approval.UpdateRequest{ScopeID: "class-2", Title: "Microscopes", Amount: 300}

	_, err := svc.Update(ctx, other, req.ID, upd)
	assert.Equal(t, core.ErrPermissionDenied, errors.Cause(err), "only the requester or an admin")

	got, err := svc.Update(ctx, teacher, req.ID, upd)
	require.NoError(t, err)
	assert.Equal(t, "Microscopes", got.Title)
	assert.Equal(t, 300.0, got.Amount)

	_, err = svc.SetStatus(ctx, admin, req.ID, approval.StatusApproved)
	require.NoError(t, err)

	_, err = svc.Update(ctx, teacher, req.ID, upd)
	require.True(t, core.IsRuleError(err), "approved requests are locked")
	assert.Equal(t, "Only pending requests can be edited. This one is Approved.", err.Error())

	err = svc.Delete(ctx, admin, req.ID)
	assert.True(t, core.IsRuleError(err))

	pending := newExpense(t, svc, teacher)
	require.NoError(t, svc.Delete(ctx, admin, pending.ID))
	_, err = svc.Get(ctx, pending.ID)
	assert.True(t, core.IsNotFound(err))
}

func TestService_SetStatus(t *testing.T) {
	tests := []struct {
		name     string
		path     []approval.Status // applied in order; the last one is checked
		usr      user.User
		wantRule bool
		wantErr  error
	}{
		{name: "approve pending", path: []approval.Status{approval.StatusApproved}, usr: admin},
		{name: "reject pending", path: []approval.Status{approval.StatusRejected}, usr: admin},
		{name: "hold pending", path: []approval.Status{approval.StatusOnHold}, usr: admin},
		{name: "approve on hold", path: []approval.Status{approval.StatusOnHold, approval.StatusApproved}, usr: admin},
		{name: "hold on hold", path: []approval.Status{approval.StatusOnHold, approval.StatusOnHold}, usr: admin, wantRule: true},
		{name: "reject approved", path: []approval.Status{approval.StatusApproved, approval.StatusRejected}, usr: admin, wantRule: true},
		{name: "teacher cannot approve", path: []approval.Status{approval.StatusApproved}, usr: teacher, wantErr: core.ErrPermissionDenied},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			svc, mailer := newService()
			req := newExpense(t, svc, teacher)

			var err error
			for i, st := range tc.path {
				usr := admin
				if i == len(tc.path)-1 {
					usr = tc.usr
				}
				req, err = svc.SetStatus(ctx, usr, req.ID, st)
			}

			switch {
			case tc.wantRule:
				assert.True(t, core.IsRuleError(err), "got %v", err)
				assert.Len(t, mailer.SentMessages(), len(tc.path)-1)
			case tc.wantErr != nil:
				assert.Equal(t, tc.wantErr, errors.Cause(err))
				assert.Empty(t, mailer.SentMessages())
			default:
				require.NoError(t, err)
				last := tc.path[len(tc.path)-1]
				assert.Equal(t, last, req.Status)

				sent := mailer.SentMessages()
				require.Len(t, sent, len(tc.path))
				msg := sent[len(sent)-1]
				assert.Equal(t, teacher.Email, msg.To[0].Address)
				assert.Contains(t, msg.Subject, string(last))
			}
		})
	}
}

func TestService_SetStatus_invalid(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()
	req := newExpense(t, svc, teacher)

	_, err := svc.SetStatus(ctx, admin, req.ID, approval.StatusPending)
	_, ok := errors.Cause(err).(*core.ValidationError)
	assert.True(t, ok)

	_, err = svc.Hold(ctx, admin, "missing")
	assert.True(t, core.IsNotFound(err))
}

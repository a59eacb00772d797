package testutil

import (
	"bytes"
	"context"
	"testing"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/academy"
	"github.com/trezcool/shule/core/approval"
	"github.com/trezcool/shule/core/form"
	"github.com/trezcool/shule/core/hierarchy"
	"github.com/trezcool/shule/core/screen"
	"github.com/trezcool/shule/core/user"
	appfs "github.com/trezcool/shule/fs"
	emailsvc "github.com/trezcool/shule/services/email"
	inmemdb "github.com/trezcool/shule/storage/database/inmem"
)

var (
	Admin   = user.User{ID: "u-admin", Name: "Ada Admin", Email: "ada@example.com", Roles: []string{user.RoleAdmin}}
	Teacher = user.User{ID: "u-teacher", Name: "Tom Teacher", Email: "tom@example.com", Roles: []string{user.RoleTeacher}}
	Student = user.User{ID: "u-student", Name: "Sam Student", Email: "sam@example.com", Roles: []string{user.RoleStudent}}
)

// Env is an in-memory application: services over the in-memory DB and the embedded screens.
type Env struct {
	Conf       *core.Config
	Validate   *validator.Validate
	Translator ut.Translator
	Academy    *academy.Service
	Approval   *approval.Service
	Mailer     *emailsvc.ConsoleServiceMock
	Registry   *screen.Registry
}

func NewEnv(t testing.TB) *Env {
	t.Helper()
	conf := core.NewTestConfig()
	translator := core.NewTranslator()
	validate := core.NewValidator(translator)
	user.InitValidators(validate, translator)

	db := inmemdb.Open()
	mailer := emailsvc.NewConsoleServiceMock(conf, nil)
	env := &Env{
		Conf:       conf,
		Validate:   validate,
		Translator: translator,
		Academy:    academy.NewService(inmemdb.NewAcademyRepository(db), validate, translator),
		Approval:   approval.NewService(inmemdb.NewApprovalRepository(db), mailer, validate, translator),
		Mailer:     mailer,
	}

	screens, err := appfs.FS.ReadFile(appfs.ScreensFile)
	if err != nil {
		t.Fatalf("reading screens: %v", err)
	}
	env.Registry, err = screen.Load(bytes.NewReader(screens), env.Deps(), validate, translator)
	if err != nil {
		t.Fatalf("loading screens: %v", err)
	}
	return env
}

func (env *Env) Deps() screen.Deps {
	return screen.Deps{
		Academy:  env.Academy,
		Approval: env.Approval,
		Binder:   form.NewBinder(env.Validate, env.Translator),
		Logger:   core.NopLogger,
	}
}

func (env *Env) Screen(t testing.TB, name string) *screen.Screen {
	t.Helper()
	scr, err := env.Registry.Get(name)
	if err != nil {
		t.Fatalf("Registry.Get(%q) failed: %v", name, err)
	}
	return scr
}

// CreateNode adds a node named name under parent.
func CreateNode(t testing.TB, svc *academy.Service, kind hierarchy.Kind, parent, name string) academy.Node {
	t.Helper()
	n, err := svc.CreateNode(context.Background(), Admin, academy.NewNode{Kind: kind, ParentID: parent, Name: name})
	if err != nil {
		t.Fatalf("CreateNode(%s %q) failed: %v", kind, name, err)
	}
	return n
}

// SeedChain creates one node per level of chain, each under the previous one, named "<Label> <suffix>".
func SeedChain(t testing.TB, svc *academy.Service, chain hierarchy.Chain, suffix string) map[hierarchy.Kind]academy.Node {
	t.Helper()
	nodes := make(map[hierarchy.Kind]academy.Node, len(chain))
	var parent string
	for _, k := range chain {
		n := CreateNode(t, svc, k, parent, k.Label()+" "+suffix)
		nodes[k] = n
		parent = n.ID
	}
	return nodes
}

// Selection returns the filter values selecting nodes along chain.
func Selection(chain hierarchy.Chain, nodes map[hierarchy.Kind]academy.Node) map[string]string {
	filters := make(map[string]string, len(chain))
	for _, k := range chain {
		if n, ok := nodes[k]; ok {
			filters[string(k)] = n.ID
		}
	}
	return filters
}

package screen

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/form"
	"github.com/trezcool/shule/core/grid"
	"github.com/trezcool/shule/core/hierarchy"
)

// Entities a screen can list.
const (
	EntityNode       = "node"
	EntityMark       = "mark"
	EntityAttendance = "attendance"
	EntityMaterial   = "material"
	EntityRequest    = "request"
)

var (
	ErrInvalidDefinition = errors.New("invalid screen definition")

	fieldNameRegex = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

	countSources = map[string]grid.CountSource{
		"":           grid.CountsNone,
		"none":       grid.CountsNone,
		"data":       grid.CountsFromData,
		"unfiltered": grid.CountsFromUnfiltered,
	}

	knownActions = []grid.Action{
		grid.ActionEdit, grid.ActionDelete, grid.ActionAddNew, grid.ActionStatusChange,
		grid.ActionHold, grid.ActionExcelFormat, grid.ActionImport, grid.ActionExport,
	}
)

// Definition is the declarative description of one screen.
type Definition struct {
	Name              string            `yaml:"name" validate:"required,alphanum_"`
	Title             string            `yaml:"title" validate:"required"`
	Item              string            `yaml:"item"` // singular title, for forms and notices
	Entity            string            `yaml:"entity" validate:"required,oneof=node mark attendance material request"`
	Kind              string            `yaml:"kind"` // node kind, or request kind
	Chain             []string          `yaml:"chain"`
	Columns           []string          `yaml:"columns" validate:"required,min=1"`
	DisplayNames      map[string]string `yaml:"display_names"`
	PillColumns       []string          `yaml:"pill_columns"`
	Filters           []FilterDef       `yaml:"filters" validate:"dive"`
	OptionCounts      string            `yaml:"option_counts" validate:"omitempty,oneof=none data unfiltered"`
	SearchPlaceholder string            `yaml:"search_placeholder"`
	Drill             string            `yaml:"drill"`
	Actions           []grid.Action     `yaml:"actions"`
	StatusOptions     []string          `yaml:"status_options"`
	ExportFormats     []string          `yaml:"export_formats" validate:"dive,oneof=xlsx pdf csv"`
	Roles             Roles             `yaml:"roles"`
	Fields            []FieldDef        `yaml:"fields" validate:"dive"`
}

// FilterDef is a static filter over a row field. A "no filter" option is added in front.
type FilterDef struct {
	Key     string        `yaml:"key" validate:"required"`
	Label   string        `yaml:"label"`
	Options []grid.Option `yaml:"options" validate:"required,min=1"`
}

// Roles lists the role prefixes allowed per action. An empty list allows everyone.
type Roles struct {
	View         []string `yaml:"view" validate:"omitempty,allroles"`
	AddNew       []string `yaml:"add_new" validate:"omitempty,allroles"`
	Edit         []string `yaml:"edit" validate:"omitempty,allroles"`
	Delete       []string `yaml:"delete" validate:"omitempty,allroles"`
	StatusChange []string `yaml:"status_change" validate:"omitempty,allroles"`
	Hold         []string `yaml:"hold" validate:"omitempty,allroles"`
	Import       []string `yaml:"import" validate:"omitempty,allroles"`
	Export       []string `yaml:"export" validate:"omitempty,allroles"`
}

func (r Roles) actionRoles() map[grid.Action][]string {
	roles := make(map[grid.Action][]string)
	set := func(action grid.Action, list []string) {
		if len(list) > 0 {
			roles[action] = list
		}
	}
	set(grid.ActionAddNew, r.AddNew)
	set(grid.ActionEdit, r.Edit)
	set(grid.ActionDelete, r.Delete)
	set(grid.ActionStatusChange, r.StatusChange)
	set(grid.ActionHold, r.Hold)
	set(grid.ActionImport, r.Import)
	set(grid.ActionExcelFormat, r.Import)
	set(grid.ActionExport, r.Export)
	return roles
}

// FieldDef is a form field. OptionsFrom fills a select with the nodes of a hierarchy level
// found under the current filters.
type FieldDef struct {
	form.Field  `yaml:",inline"`
	OptionsFrom string `yaml:"options_from"`
}

type definitions struct {
	Screens []Definition `yaml:"screens" validate:"required,dive"`
	// x- keys only hold YAML anchors
	Extensions map[string]interface{} `yaml:",inline"`
}

// LoadDefinitions reads and validates screen definitions from YAML.
func LoadDefinitions(r io.Reader, validate *validator.Validate, translator ut.Translator) ([]Definition, error) {
	var defs definitions
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&defs); err != nil {
		return nil, errors.Wrap(err, "decoding screen definitions")
	}
	for key := range defs.Extensions {
		if !strings.HasPrefix(key, "x-") {
			return nil, errors.Wrapf(ErrInvalidDefinition, "unknown key %q", key)
		}
	}
	if err := validate.Struct(defs); err != nil {
		return nil, core.TranslateValidationErrors(err, translator, ErrInvalidDefinition.Error())
	}

	seen := make(map[string]bool, len(defs.Screens))
	for _, def := range defs.Screens {
		if seen[def.Name] {
			return nil, errors.Wrapf(ErrInvalidDefinition, "duplicate screen %q", def.Name)
		}
		seen[def.Name] = true
		if err := def.check(); err != nil {
			return nil, errors.Wrapf(err, "screen %q", def.Name)
		}
	}
	for _, def := range defs.Screens {
		if def.Drill == "" {
			continue
		}
		target, ok := byName(defs.Screens, def.Drill)
		if !ok {
			return nil, errors.Wrapf(ErrInvalidDefinition, "screen %q drills into unknown screen %q", def.Name, def.Drill)
		}
		if def.Entity != EntityNode || !containsString(target.Chain, def.Kind) {
			return nil, errors.Wrapf(ErrInvalidDefinition, "screen %q cannot drill into %q", def.Name, def.Drill)
		}
	}
	return defs.Screens, nil
}

// check verifies what struct tags cannot: the chain fits the entity.
func (def Definition) check() error {
	chain, err := hierarchy.ParseChain(def.Chain)
	if err != nil {
		return err
	}
	var leaf hierarchy.Kind
	if len(chain) > 0 {
		leaf = chain[len(chain)-1]
		if chain[0] != hierarchy.Institution {
			return errors.Wrap(ErrInvalidDefinition, "chain must start at institution")
		}
	}

	invalid := func(format string, args ...interface{}) error {
		return errors.Wrap(ErrInvalidDefinition, fmt.Sprintf(format, args...))
	}
	switch def.Entity {
	case EntityNode:
		kind := hierarchy.Kind(def.Kind)
		if !kind.Valid() {
			return invalid("unknown node kind %q", def.Kind)
		}
		if parent, ok := kind.Parent(); ok != (leaf != "") || (ok && parent != leaf) {
			return invalid("chain %v does not lead to %s", def.Chain, kind)
		}
	case EntityMark, EntityAttendance:
		if leaf != hierarchy.Class {
			return invalid("%s screens need a chain ending at class", def.Entity)
		}
	case EntityMaterial:
		if leaf != hierarchy.Chapter {
			return invalid("material screens need a chain ending at chapter")
		}
	case EntityRequest:
		if def.Kind != "expense" && def.Kind != "completion" {
			return invalid("unknown request kind %q", def.Kind)
		}
		if leaf == "" {
			return invalid("request screens need a chain")
		}
	}

	for _, a := range def.Actions {
		if !actionKnown(a) {
			return invalid("unknown action %q", a)
		}
	}
	for _, f := range def.Fields {
		if !fieldNameRegex.MatchString(f.Name) {
			return invalid("field %q: names are letters, digits and underscores", f.Name)
		}
		if !f.Kind.Valid() {
			return invalid("field %q: unknown kind %q", f.Name, f.Kind)
		}
		if f.OptionsFrom != "" && !chainOrChild(chain, hierarchy.Kind(f.OptionsFrom)) {
			return invalid("field %q: options from %q are out of reach", f.Name, f.OptionsFrom)
		}
	}
	for _, fd := range def.Filters {
		if chain.Contains(hierarchy.Kind(strings.ToLower(fd.Key))) {
			return invalid("filter %q shadows a hierarchy level", fd.Key)
		}
	}
	return nil
}

func byName(defs []Definition, name string) (Definition, bool) {
	for _, def := range defs {
		if def.Name == name {
			return def, true
		}
	}
	return Definition{}, false
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

func actionKnown(a grid.Action) bool {
	for _, k := range knownActions {
		if a == k {
			return true
		}
	}
	return false
}

// chainOrChild reports whether kind's options can be listed from a selection of chain:
// its parent is in the chain.
func chainOrChild(chain hierarchy.Chain, kind hierarchy.Kind) bool {
	parent, ok := kind.Parent()
	if !ok {
		return kind == hierarchy.Institution
	}
	return chain.Contains(parent)
}

func (def Definition) has(action grid.Action) bool {
	for _, a := range def.Actions {
		if a == action {
			return true
		}
	}
	return false
}

func (def Definition) item() string {
	if def.Item != "" {
		return def.Item
	}
	return def.Title
}

// exportFormats mirrors the grid default when none are configured.
func (def Definition) exportFormats() []string {
	if def.ExportFormats == nil {
		return []string{"xlsx", "pdf"}
	}
	return def.ExportFormats
}

func (def Definition) countSource() grid.CountSource {
	return countSources[def.OptionCounts]
}

func (def Definition) formFields() []form.Field {
	fields := make([]form.Field, 0, len(def.Fields))
	for _, f := range def.Fields {
		fields = append(fields, f.Field)
	}
	return fields
}

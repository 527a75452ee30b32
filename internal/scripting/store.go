package scripting

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/louisbranch/skirmish.space/internal/errors"
	"github.com/louisbranch/skirmish.space/internal/property"
)

// Entity is the scripting-facing view of a simulation entity.
type Entity interface {
	// ScriptTable returns the entity's bound script handle, or nil when the
	// entity carries no scripted behavior.
	ScriptTable() *lua.LTable
	// SubscribeInputUpdate registers the callback invoked whenever the input
	// state of the entity's controlling player changes.
	SubscribeInputUpdate(fn func(input lua.LValue))
}

// Element is one loaded scripted template. Immutable after load except
// through a full store reload.
type Element struct {
	Name   string
	Index  int
	Schema *property.Schema
	Table  *lua.LTable

	init *lua.LFunction
	meta *lua.LTable
}

// Store loads scripted element definitions of one type ("entity", "weapon")
// from a directory and instantiates scripted objects bound to simulation
// entities.
//
// Each definition file populates a global table named after the element type
// (ENTITY, WEAPON):
//
//	ENTITY.Name = "crate"
//	ENTITY.Properties = {
//		{ Key = "health", Type = "integer", Default = 100 },
//		{ Key = "tags", Type = "string", Array = true, Default = {} },
//	}
//	function ENTITY:Initialize() ... end
type Store struct {
	rt          *Runtime
	log         *log.Logger
	elementType string
	global      string
	base        *property.Schema

	elements []*Element
	byName   map[string]*Element
}

// NewStore creates an empty element store. base is the schema shared by every
// element of this type; element declarations take precedence on collision.
func NewStore(rt *Runtime, logger *log.Logger, elementType string, base *property.Schema) *Store {
	return &Store{
		rt:          rt,
		log:         logger,
		elementType: elementType,
		global:      strings.ToUpper(elementType),
		base:        base,
		byName:      map[string]*Element{},
	}
}

// Get returns the element registered under name.
func (s *Store) Get(name string) (*Element, bool) {
	elem, ok := s.byName[name]
	return elem, ok
}

// Elements returns every loaded element in registration order.
func (s *Store) Elements() []*Element { return s.elements }

// Len reports the number of loaded elements.
func (s *Store) Len() int { return len(s.elements) }

// Load reads one element definition per directory entry under dir (relative
// to the runtime root). A file entry is executed directly; a directory entry
// loads its init.lua. Entry-level failures, including duplicate element
// names, are logged and skip only that entry.
func (s *Store) Load(dir string) error {
	full := filepath.Join(s.rt.RootDir(), dir)
	entries, err := os.ReadDir(full)
	if err != nil {
		return errors.Wrap(errors.CodeContentMissingPath, fmt.Errorf("%s dir %s: %w", s.elementType, dir, err))
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if entry.IsDir() {
			path = filepath.Join(path, "init.lua")
		} else if filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		if err := s.loadEntry(path); err != nil {
			s.log.Printf("load %s %s: %v", s.elementType, path, err)
		}
	}
	return nil
}

func (s *Store) loadEntry(path string) error {
	state := s.rt.State()
	elemTable := state.NewTable()
	state.SetGlobal(s.global, elemTable)
	_, err := s.rt.Load(path)
	state.SetGlobal(s.global, lua.LNil)
	if err != nil {
		return err
	}
	elem, err := s.buildElement(elemTable)
	if err != nil {
		return err
	}
	if _, exists := s.byName[elem.Name]; exists {
		return errors.E(errors.CodeContentDuplicateName, "%s element %q already registered", s.elementType, elem.Name)
	}
	elem.Index = len(s.elements)
	s.elements = append(s.elements, elem)
	s.byName[elem.Name] = elem
	return nil
}

func (s *Store) buildElement(tbl *lua.LTable) (*Element, error) {
	state := s.rt.State()
	name, ok := state.GetField(tbl, "Name").(lua.LString)
	if !ok || name == "" {
		return nil, errors.E(errors.CodeContentInvalidScript, "%s definition declares no Name", s.elementType)
	}
	declared, err := parseSchema(state, state.GetField(tbl, "Properties"))
	if err != nil {
		return nil, fmt.Errorf("element %s: %w", name, err)
	}
	init, _ := state.GetField(tbl, "Initialize").(*lua.LFunction)

	meta := state.NewTable()
	state.SetField(meta, "__index", tbl)
	return &Element{
		Name:   string(name),
		Schema: property.MergeSchemas(s.base, declared),
		Table:  tbl,
		init:   init,
		meta:   meta,
	}, nil
}

// InitializeEntity runs the named element's initializer against ent's bound
// script handle. Entities implementing SimEntity get the element library
// methods bound before the initializer runs, so Initialize can already move
// or kill the entity. On success the entity's input updates are forwarded to the
// handle's OnInputUpdate method. Initializer failure leaves the entity
// un-initialized; it is returned for logging, not fatal.
func (s *Store) InitializeEntity(name string, ent Entity) error {
	elem, ok := s.byName[name]
	if !ok {
		return errors.E(errors.CodeContentInvalidScript, "unknown %s element %q", s.elementType, name)
	}
	tbl := ent.ScriptTable()
	if tbl == nil {
		return nil
	}
	state := s.rt.State()
	state.SetMetatable(tbl, elem.meta)
	if sim, ok := ent.(SimEntity); ok {
		bindEntityMethods(state, tbl, sim)
	}
	if elem.init != nil {
		if err := state.CallByParam(lua.P{Fn: elem.init, NRet: 0, Protect: true}, tbl); err != nil {
			return errors.Wrap(errors.CodeScriptRuntime, fmt.Errorf("initialize %s %q: %w", s.elementType, name, err))
		}
	}
	ent.SubscribeInputUpdate(func(input lua.LValue) {
		if _, err := s.rt.CallMethod(tbl, "OnInputUpdate", input); err != nil {
			s.log.Printf("%s %q input update: %v", s.elementType, name, err)
		}
	})
	return nil
}

// parseSchema reads an ordered Properties declaration into a schema. A nil
// declaration yields an empty schema.
func parseSchema(state *lua.LState, decl lua.LValue) (*property.Schema, error) {
	tbl, ok := decl.(*lua.LTable)
	if !ok {
		if decl == lua.LNil {
			return property.NewSchema()
		}
		return nil, errors.E(errors.CodeSchemaTypeMismatch, "Properties must be a table, got %s", decl.Type())
	}
	defs := make([]property.Definition, 0, tbl.Len())
	for i := 1; i <= tbl.Len(); i++ {
		entry, ok := tbl.RawGetInt(i).(*lua.LTable)
		if !ok {
			return nil, errors.E(errors.CodeSchemaTypeMismatch, "property %d is not a table", i)
		}
		key, ok := state.GetField(entry, "Key").(lua.LString)
		if !ok || key == "" {
			return nil, errors.E(errors.CodeSchemaTypeMismatch, "property %d declares no Key", i)
		}
		typeName, ok := state.GetField(entry, "Type").(lua.LString)
		if !ok {
			return nil, errors.E(errors.CodeSchemaTypeMismatch, "property %q declares no Type", key)
		}
		kind, ok := property.KindByName(string(typeName))
		if !ok {
			return nil, errors.E(errors.CodeSchemaTypeMismatch, "property %q has unknown type %q", key, typeName)
		}
		array := lua.LVAsBool(state.GetField(entry, "Array"))
		def := property.Definition{Key: string(key), Kind: kind, Array: array}
		if dv := state.GetField(entry, "Default"); dv != lua.LNil {
			v, err := ToValue(dv, kind, array)
			if err != nil {
				return nil, fmt.Errorf("property %q default: %w", key, err)
			}
			def.Default = &v
		}
		defs = append(defs, def)
	}
	return property.NewSchema(defs...)
}

package structural

import (
	"sort"
	"strings"
)

// Diff computes the structural difference between an Edit's old and new
// strings and classifies it into a change category.
func Diff(oldString, newString, lang string) *Payload {
	oldEl := Extract(oldString, lang)
	newEl := Extract(newString, lang)

	p := &Payload{Operation: OpModify}

	oldImports := importSet(oldEl.Imports)
	newImports := importSet(newEl.Imports)
	for key, imp := range newImports {
		if _, ok := oldImports[key]; !ok {
			p.AddedImports = append(p.AddedImports, imp)
		}
	}
	for key, imp := range oldImports {
		if _, ok := newImports[key]; !ok {
			p.RemovedImports = append(p.RemovedImports, imp)
		}
	}
	sortImports(p.AddedImports)
	sortImports(p.RemovedImports)

	oldFuncs := funcMap(oldEl.Functions)
	newFuncs := funcMap(newEl.Functions)
	for name, fn := range newFuncs {
		if _, ok := oldFuncs[name]; !ok {
			p.AddedFunctions = append(p.AddedFunctions, Function{Name: name, Params: fn.Params})
		}
	}
	for name := range oldFuncs {
		if _, ok := newFuncs[name]; !ok {
			p.RemovedFunctions = append(p.RemovedFunctions, name)
		}
	}
	sort.Slice(p.AddedFunctions, func(i, j int) bool { return p.AddedFunctions[i].Name < p.AddedFunctions[j].Name })
	sort.Strings(p.RemovedFunctions)

	// Return-type changes on functions present in both versions.
	for name, oldFn := range oldFuncs {
		if newFn, ok := newFuncs[name]; ok && oldFn.ReturnType != newFn.ReturnType {
			p.TypeChanges = append(p.TypeChanges, TypeChange{
				Function:  name,
				OldReturn: oldFn.ReturnType,
				NewReturn: newFn.ReturnType,
			})
		}
	}
	sort.Slice(p.TypeChanges, func(i, j int) bool { return p.TypeChanges[i].Function < p.TypeChanges[j].Function })

	oldDecs := decoratorSet(oldEl.Decorators)
	newDecs := decoratorSet(newEl.Decorators)
	for key, d := range newDecs {
		if _, ok := oldDecs[key]; !ok {
			p.AddedDecorators = append(p.AddedDecorators, d)
		}
	}
	for key, d := range oldDecs {
		if _, ok := newDecs[key]; !ok {
			p.RemovedDecorators = append(p.RemovedDecorators, d)
		}
	}
	sortDecorators(p.AddedDecorators)
	sortDecorators(p.RemovedDecorators)

	p.ChangeCategory = categorize(p)
	return p
}

// TypeChange records a return-type change on an existing function.
type TypeChange struct {
	Function  string `json:"function"`
	OldReturn string `json:"old_return,omitempty"`
	NewReturn string `json:"new_return,omitempty"`
}

func categorize(p *Payload) string {
	hasImports := len(p.AddedImports) > 0 || len(p.RemovedImports) > 0
	hasFuncs := len(p.AddedFunctions) > 0 || len(p.RemovedFunctions) > 0
	hasTypes := len(p.TypeChanges) > 0
	hasDecorators := len(p.AddedDecorators) > 0 || len(p.RemovedDecorators) > 0

	switch {
	case !hasImports && !hasFuncs && !hasTypes && !hasDecorators:
		return "" // textual edit with no structural change
	case hasImports && !hasFuncs && !hasTypes:
		return ChangeImportFix
	case hasTypes && !hasFuncs:
		return ChangeTypeChange
	case hasDecorators && !hasFuncs:
		return ChangeDecoratorChange
	case hasFuncs && !hasImports:
		return ChangeFunctionChange
	case hasImports && hasFuncs:
		return ChangeStructuralAddition
	}
	return ChangeMixed
}

func importSet(imports []Import) map[string]Import {
	m := make(map[string]Import, len(imports))
	for _, imp := range imports {
		m[imp.Module+"|"+strings.Join(imp.Names, ",")] = imp
	}
	return m
}

func funcMap(funcs []Function) map[string]Function {
	m := make(map[string]Function, len(funcs))
	for _, fn := range funcs {
		m[fn.Name] = fn
	}
	return m
}

func decoratorSet(decs []Decorator) map[string]Decorator {
	m := make(map[string]Decorator, len(decs))
	for _, d := range decs {
		m[d.Name+"|"+d.Target] = d
	}
	return m
}

func sortImports(imports []Import) {
	sort.Slice(imports, func(i, j int) bool { return imports[i].Module < imports[j].Module })
}

func sortDecorators(decs []Decorator) {
	sort.Slice(decs, func(i, j int) bool {
		if decs[i].Name != decs[j].Name {
			return decs[i].Name < decs[j].Name
		}
		return decs[i].Target < decs[j].Target
	})
}

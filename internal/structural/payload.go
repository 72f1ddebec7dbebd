// Package structural extracts structural facts (imports, signatures, classes,
// decorators) from source text handed to Write/Edit tools, and classifies
// Edit diffs into change categories. It captures only names and shapes, never
// implementation bodies or values.
package structural

// Operations carried in a Payload.
const (
	OpCreate  = "create"
	OpModify  = "modify"
	OpCommand = "command"
)

// Change categories for classified Edit diffs.
const (
	ChangeImportFix          = "import_fix"
	ChangeTypeChange         = "type_change"
	ChangeDecoratorChange    = "decorator_change"
	ChangeFunctionChange     = "function_change"
	ChangeStructuralAddition = "structural_addition"
	ChangeMixed              = "mixed"
)

// Payload is the structural part of an observation. Exactly one operation
// shape is populated: create carries Elements, modify carries the diff
// fields, command carries the Bash fields.
type Payload struct {
	Operation string `json:"operation"`
	FilePath  string `json:"file_path,omitempty"`
	Language  string `json:"language,omitempty"`

	// create
	Elements *Elements `json:"elements,omitempty"`

	// modify
	AddedImports      []Import     `json:"added_imports,omitempty"`
	RemovedImports    []Import     `json:"removed_imports,omitempty"`
	AddedFunctions    []Function   `json:"added_functions,omitempty"`
	RemovedFunctions  []string     `json:"removed_functions,omitempty"`
	TypeChanges       []TypeChange `json:"type_changes,omitempty"`
	AddedDecorators   []Decorator  `json:"added_decorators,omitempty"`
	RemovedDecorators []Decorator  `json:"removed_decorators,omitempty"`
	ChangeCategory    string       `json:"change_category,omitempty"`
	IsCorrection      bool         `json:"is_correction,omitempty"`

	// command
	Program     string   `json:"program,omitempty"`
	Subcommand  string   `json:"subcommand,omitempty"`
	Flags       []string `json:"flags,omitempty"`
	Targets     []string `json:"targets,omitempty"`
	FullCommand string   `json:"full_command,omitempty"`
	GitMessage  string   `json:"git_message,omitempty"`
	TestScope   string   `json:"test_scope,omitempty"`
	BuildTarget string   `json:"build_target,omitempty"`
}

// Elements are the structural contents of a newly written file.
type Elements struct {
	Imports    []Import    `json:"imports"`
	Functions  []Function  `json:"functions"`
	Classes    []Class     `json:"classes"`
	Interfaces []Interface `json:"interfaces"`
	Decorators []Decorator `json:"decorators"`
	Exports    []string    `json:"exports"`
	Metrics    Metrics     `json:"metrics"`
}

type Import struct {
	Module string   `json:"module"`
	Names  []string `json:"names,omitempty"`
}

type Function struct {
	Name       string `json:"name"`
	Params     int    `json:"params"`
	ReturnType string `json:"return_type,omitempty"`
	IsAsync    bool   `json:"is_async,omitempty"`
}

type Class struct {
	Name       string   `json:"name"`
	Extends    string   `json:"extends,omitempty"`
	Implements []string `json:"implements,omitempty"`
}

type Interface struct {
	Name    string   `json:"name"`
	Extends []string `json:"extends,omitempty"`
}

type Decorator struct {
	Name   string `json:"name"`
	Target string `json:"target,omitempty"`
}

type Metrics struct {
	Lines         int `json:"lines"`
	FunctionCount int `json:"function_count"`
	ClassCount    int `json:"class_count"`
}

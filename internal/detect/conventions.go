package detect

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/lazypower/instinct/internal/obslog"
	"github.com/lazypower/instinct/internal/structural"
)

// Convention gate: a specific import/return-type/decorator must appear in
// more than 80% of files of a suffix type, with at least five qualifying
// files across two sessions.
const (
	conventionShare    = 0.8
	conventionMinFiles = 5
)

// fileFacts aggregates the structural facts of one file (last write wins).
type fileFacts struct {
	imports    map[string]bool
	returns    map[string]bool
	decorators map[string]bool
	sessions   map[string]bool
}

// DetectConventions scans structural create payloads grouped by file suffix
// type and proposes import, return-type, and decorator conventions.
func DetectConventions(window []obslog.Observation) []Candidate {
	// ext -> file path -> facts
	byExt := make(map[string]map[string]*fileFacts)

	for _, obs := range window {
		if obs.Struct == nil || obs.Struct.Operation != structural.OpCreate || obs.Struct.Elements == nil {
			continue
		}
		path := obs.Struct.FilePath
		if path == "" {
			path = obs.Input.FilePath
		}
		if path == "" {
			continue
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext == "" {
			continue
		}

		if byExt[ext] == nil {
			byExt[ext] = make(map[string]*fileFacts)
		}
		facts := &fileFacts{
			imports:    make(map[string]bool),
			returns:    make(map[string]bool),
			decorators: make(map[string]bool),
			sessions:   map[string]bool{obs.SessionID: true},
		}
		if prev := byExt[ext][path]; prev != nil {
			for s := range prev.sessions {
				facts.sessions[s] = true
			}
		}
		el := obs.Struct.Elements
		for _, imp := range el.Imports {
			facts.imports[imp.Module] = true
		}
		for _, fn := range el.Functions {
			if fn.ReturnType != "" {
				facts.returns[fn.ReturnType] = true
			}
		}
		for _, d := range el.Decorators {
			facts.decorators[d.Name] = true
		}
		byExt[ext][path] = facts
	}

	var candidates []Candidate
	for ext, files := range byExt {
		if len(files) < conventionMinFiles {
			continue
		}

		imports := make(map[string]int)
		returns := make(map[string]int)
		decorators := make(map[string]int)
		sessions := make(map[string]bool)
		for _, facts := range files {
			for m := range facts.imports {
				imports[m]++
			}
			for r := range facts.returns {
				returns[r]++
			}
			for d := range facts.decorators {
				decorators[d]++
			}
			for s := range facts.sessions {
				sessions[s] = true
			}
		}

		total := len(files)
		for module, n := range imports {
			if float64(n)/float64(total) <= conventionShare {
				continue
			}
			candidates = append(candidates, Candidate{
				Category: CategoryImportConvention,
				Domain:   DomainImportPattern,
				Trigger:  fmt.Sprintf("creating a new %s file", ext),
				Action:   fmt.Sprintf("import %s; it appears in nearly every %s file", module, ext),
				Evidence: n,
				Sessions: sessionList(sessions),
			})
		}
		for ret, n := range returns {
			if float64(n)/float64(total) <= conventionShare {
				continue
			}
			candidates = append(candidates, Candidate{
				Category: CategorySignatureConvention,
				Domain:   DomainSignatureConvention,
				Trigger:  fmt.Sprintf("declaring functions in %s files", ext),
				Action:   fmt.Sprintf("annotate return type %s; it is the established convention", ret),
				Evidence: n,
				Sessions: sessionList(sessions),
			})
		}
		for dec, n := range decorators {
			if float64(n)/float64(total) <= conventionShare {
				continue
			}
			candidates = append(candidates, Candidate{
				Category: CategoryDecoratorPreference,
				Domain:   DomainDecoratorUsage,
				Trigger:  fmt.Sprintf("declaring classes or functions in %s files", ext),
				Action:   fmt.Sprintf("apply the @%s decorator; it is the established convention", dec),
				Evidence: n,
				Sessions: sessionList(sessions),
			})
		}
	}
	return candidates
}

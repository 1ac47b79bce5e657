package metadata

import "sync"

// Registry holds immutable snapshots of all loaded definitions, keyed by code.
// The engine only ever reads from it; Load replaces everything atomically.
type Registry struct {
	mu      sync.RWMutex
	reports map[string]*ReportDefinition
	forms   map[string]*FormDefinition
	tables  map[string]*TableDefinition
}

func NewRegistry() *Registry {
	return &Registry{
		reports: make(map[string]*ReportDefinition),
		forms:   make(map[string]*FormDefinition),
		tables:  make(map[string]*TableDefinition),
	}
}

// GetReport returns the report definition with the given code, or nil.
func (r *Registry) GetReport(code string) *ReportDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.reports[code]
}

// AllReports returns all loaded report definitions.
func (r *Registry) AllReports() []*ReportDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reports := make([]*ReportDefinition, 0, len(r.reports))
	for _, rep := range r.reports {
		reports = append(reports, rep)
	}
	return reports
}

// GetForm returns the form definition with the given code, or nil.
func (r *Registry) GetForm(code string) *FormDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.forms[code]
}

// GetTable returns the table definition with the given code, or nil.
func (r *Registry) GetTable(code string) *TableDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tables[code]
}

// Load replaces all definitions in the registry.
// Called during startup and after the authoring subsystem mutates config.
func (r *Registry) Load(reports []*ReportDefinition, forms []*FormDefinition, tables []*TableDefinition) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.reports = make(map[string]*ReportDefinition, len(reports))
	for _, rep := range reports {
		r.reports[rep.Code] = rep
	}
	r.forms = make(map[string]*FormDefinition, len(forms))
	for _, f := range forms {
		r.forms[f.Code] = f
	}
	r.tables = make(map[string]*TableDefinition, len(tables))
	for _, t := range tables {
		r.tables[t.Code] = t
	}
}

package metadata

import "testing"

func TestRegistryLoadReplacesEverything(t *testing.T) {
	reg := NewRegistry()
	reg.Load(
		[]*ReportDefinition{{Code: "old_report", IsActive: true}},
		[]*FormDefinition{{Code: "old_form"}},
		[]*TableDefinition{{Code: "old_table"}},
	)

	reg.Load(
		[]*ReportDefinition{{Code: "new_report", IsActive: true}},
		nil,
		nil,
	)

	if reg.GetReport("old_report") != nil {
		t.Error("stale report survived reload")
	}
	if reg.GetReport("new_report") == nil {
		t.Error("new report missing after reload")
	}
	if reg.GetForm("old_form") != nil || reg.GetTable("old_table") != nil {
		t.Error("stale form or table survived reload")
	}
}

func TestRegistryMissingCodeReturnsNil(t *testing.T) {
	reg := NewRegistry()
	if reg.GetReport("nope") != nil || reg.GetForm("nope") != nil || reg.GetTable("nope") != nil {
		t.Error("unknown codes must resolve to nil")
	}
}

func TestRegistryAllReports(t *testing.T) {
	reg := NewRegistry()
	reg.Load([]*ReportDefinition{{Code: "a"}, {Code: "b"}}, nil, nil)
	if got := reg.AllReports(); len(got) != 2 {
		t.Errorf("got %d reports", len(got))
	}
}

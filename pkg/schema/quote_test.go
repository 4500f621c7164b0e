package schema

import "testing"

func TestTableName(t *testing.T) {
	tests := []struct {
		name     string
		schema   string
		table    string
		expected string
	}{
		{name: "qualified", schema: "SQOOP", table: "SQ_LINK", expected: `"SQOOP"."SQ_LINK"`},
		{name: "no schema", schema: "", table: "SQ_LINK", expected: `"SQ_LINK"`},
		{name: "embedded quote", schema: "", table: `odd"name`, expected: `"odd""name"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TableName(tt.schema, tt.table); got != tt.expected {
				t.Errorf("TableName() = %s, want %s", got, tt.expected)
			}
		})
	}
}

func TestColumnList(t *testing.T) {
	got := ColumnList("SQBI_JOB", "SQBI_INPUT")
	want := `"SQBI_JOB", "SQBI_INPUT"`
	if got != want {
		t.Errorf("ColumnList() = %s, want %s", got, want)
	}
}

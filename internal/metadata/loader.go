package metadata

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
)

// LoadAll reads all report, form and table definitions from the database
// and populates the registry. Individual malformed definitions are skipped
// with a warning so one bad record cannot take the whole catalog down.
func LoadAll(ctx context.Context, db *sql.DB, reg *Registry) error {
	reports, err := loadDefinitions(ctx, db, "_reports", func(code string, raw []byte) *ReportDefinition {
		var def ReportDefinition
		if err := json.Unmarshal(raw, &def); err != nil {
			log.Printf("WARN: skipping report %s (invalid JSON): %v", code, err)
			return nil
		}
		def.Code = code
		return &def
	})
	if err != nil {
		return fmt.Errorf("load reports: %w", err)
	}

	forms, err := loadDefinitions(ctx, db, "_forms", func(code string, raw []byte) *FormDefinition {
		var def FormDefinition
		if err := json.Unmarshal(raw, &def); err != nil {
			log.Printf("WARN: skipping form %s (invalid JSON): %v", code, err)
			return nil
		}
		def.Code = code
		return &def
	})
	if err != nil {
		return fmt.Errorf("load forms: %w", err)
	}

	tables, err := loadDefinitions(ctx, db, "_tables", func(code string, raw []byte) *TableDefinition {
		var def TableDefinition
		if err := json.Unmarshal(raw, &def); err != nil {
			log.Printf("WARN: skipping table %s (invalid JSON): %v", code, err)
			return nil
		}
		def.Code = code
		return &def
	})
	if err != nil {
		return fmt.Errorf("load tables: %w", err)
	}

	reg.Load(reports, forms, tables)
	log.Printf("Loaded %d reports, %d forms, %d tables into registry",
		len(reports), len(forms), len(tables))
	return nil
}

// Reload is an alias for LoadAll, called after the authoring subsystem
// changes stored configuration.
func Reload(ctx context.Context, db *sql.DB, reg *Registry) error {
	return LoadAll(ctx, db, reg)
}

func loadDefinitions[T any](ctx context.Context, db *sql.DB, table string, decode func(code string, raw []byte) *T) ([]*T, error) {
	rows, err := db.QueryContext(ctx,
		fmt.Sprintf("SELECT code, definition FROM %s WHERE active ORDER BY code", table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var defs []*T
	for rows.Next() {
		var code string
		var raw []byte
		if err := rows.Scan(&code, &raw); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", table, err)
		}
		if def := decode(code, raw); def != nil {
			defs = append(defs, def)
		}
	}
	return defs, rows.Err()
}

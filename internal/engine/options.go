package engine

import (
	"context"
	"fmt"
	"log"
	"time"

	"campus-backend/internal/metadata"
)

// OptionResolver turns an options source descriptor into a localized
// value/label list. Option lists are best-effort UI affordances: any
// collaborator failure resolves to an empty list, never an error.
// The resolver performs no caching; that is a collaborator concern.
type OptionResolver struct {
	Tables   TabularFetcher
	External ExternalFetcher
	Now      func() time.Time
}

func NewOptionResolver(tables TabularFetcher, external ExternalFetcher) *OptionResolver {
	return &OptionResolver{Tables: tables, External: external, Now: time.Now}
}

// Resolve produces the option list for a source in the given locale.
func (r *OptionResolver) Resolve(ctx context.Context, src *metadata.OptionsSource, locale string) []metadata.Option {
	if src == nil {
		return []metadata.Option{}
	}

	switch src.Kind {
	case metadata.OptionsStatic:
		return src.Static
	case metadata.OptionsTable:
		return r.resolveTable(ctx, src, locale)
	case metadata.OptionsSpecial:
		return r.resolveSpecial(src.SpecialSet, locale)
	case metadata.OptionsAPI:
		return r.resolveAPI(ctx, src)
	default:
		return []metadata.Option{}
	}
}

func (r *OptionResolver) resolveTable(ctx context.Context, src *metadata.OptionsSource, locale string) []metadata.Option {
	if r.Tables == nil {
		return []metadata.Option{}
	}
	rows, err := r.Tables.FetchTable(ctx, TableRequest{
		Table:   src.Table,
		Columns: src.Columns(),
		Filter:  src.Filter,
	})
	if err != nil {
		log.Printf("WARN: option lookup on %s failed: %v", src.Table, err)
		return []metadata.Option{}
	}

	options := make([]metadata.Option, 0, len(rows))
	for _, row := range rows {
		value := row[src.ValueColumn]
		options = append(options, metadata.Option{
			Value: value,
			Label: labelForRow(row, src.LabelColumns, locale, value),
		})
	}
	return options
}

// labelForRow applies the significant fallback order: locale-specific
// label column, then the default label column, then the raw value.
func labelForRow(row Row, labelColumns map[string]string, locale string, value any) string {
	if col, ok := labelColumns[locale]; ok {
		if label := coerceString(row[col]); label != "" {
			return label
		}
	}
	if col, ok := labelColumns["default"]; ok {
		if label := coerceString(row[col]); label != "" {
			return label
		}
	}
	return coerceString(value)
}

func (r *OptionResolver) resolveSpecial(name, locale string) []metadata.Option {
	switch name {
	case metadata.SpecialAcademicYears:
		return r.academicYears()
	case metadata.SpecialSemesters:
		return semesters(locale)
	default:
		return []metadata.Option{}
	}
}

// academicYears synthesizes the fixed window of five past and two future
// academic years around now, most recent first.
func (r *OptionResolver) academicYears() []metadata.Option {
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	currentYear := now().Year()

	var years []metadata.Option
	for i := 2; i >= -5; i-- {
		year := currentYear + i
		years = append(years, metadata.Option{
			Value: fmt.Sprintf("%d-%d", year, year+1),
			Label: fmt.Sprintf("%d/%d", year, year+1),
		})
	}
	return years
}

// semesters is a fixed three-entry set with locale-appropriate labels.
func semesters(locale string) []metadata.Option {
	if locale == "ar" {
		return []metadata.Option{
			{Value: "fall", Label: "الفصل الأول"},
			{Value: "spring", Label: "الفصل الثاني"},
			{Value: "summer", Label: "الفصل الصيفي"},
		}
	}
	return []metadata.Option{
		{Value: "fall", Label: "Fall Semester"},
		{Value: "spring", Label: "Spring Semester"},
		{Value: "summer", Label: "Summer Semester"},
	}
}

func (r *OptionResolver) resolveAPI(ctx context.Context, src *metadata.OptionsSource) []metadata.Option {
	if r.External == nil {
		return []metadata.Option{}
	}
	rows, err := r.External.FetchExternal(ctx, src.Endpoint, nil)
	if err != nil {
		log.Printf("WARN: option fetch from %s failed: %v", src.Endpoint, err)
		return []metadata.Option{}
	}

	options := make([]metadata.Option, 0, len(rows))
	for _, row := range rows {
		value := row["value"]
		if value == nil {
			value = row["id"]
		}
		label := coerceString(row["label"])
		if label == "" {
			label = coerceString(row["name"])
		}
		if label == "" {
			label = coerceString(value)
		}
		options = append(options, metadata.Option{Value: value, Label: label})
	}
	return options
}

package generator

import (
	"fmt"
	"strings"
	"time"
)

// Partition granularities for exports split on a timestamp column
const (
	GranularityHourly  = "hourly"
	GranularityDaily   = "daily"
	GranularityMonthly = "monthly"
	GranularityYearly  = "yearly"
)

// DefaultPathTemplate is the hive layout readers discover partitions from.
const DefaultPathTemplate = "{table}/{column}={YYYY}-{MM}-{DD}"

// PathTemplate renders partition directories from a template
type PathTemplate struct {
	template string
}

func NewPathTemplate(template string) *PathTemplate {
	if template == "" {
		template = DefaultPathTemplate
	}
	return &PathTemplate{template: template}
}

// Generate replaces placeholders in the template with actual values
// Supports: {table}, {column}, {YYYY}, {MM}, {DD}, {HH}
func (pt *PathTemplate) Generate(tableName, column string, timestamp time.Time) string {
	result := pt.template
	result = strings.ReplaceAll(result, "{table}", tableName)
	result = strings.ReplaceAll(result, "{column}", column)
	result = strings.ReplaceAll(result, "{YYYY}", timestamp.Format("2006"))
	result = strings.ReplaceAll(result, "{MM}", timestamp.Format("01"))
	result = strings.ReplaceAll(result, "{DD}", timestamp.Format("02"))
	result = strings.ReplaceAll(result, "{HH}", timestamp.Format("15"))
	return result
}

// GenerateFilename names a partition file after its table and period.
func GenerateFilename(tableName string, timestamp time.Time, granularity, formatExt, compressionExt string) string {
	var basename string
	switch granularity {
	case GranularityHourly:
		basename = fmt.Sprintf("%s-%s", tableName, timestamp.Format("2006-01-02-15"))
	case GranularityMonthly:
		basename = fmt.Sprintf("%s-%s", tableName, timestamp.Format("2006-01"))
	case GranularityYearly:
		basename = fmt.Sprintf("%s-%s", tableName, timestamp.Format("2006"))
	default:
		basename = fmt.Sprintf("%s-%s", tableName, timestamp.Format("2006-01-02"))
	}
	return basename + formatExt + compressionExt
}

// PeriodStart truncates a timestamp to the start of its partition period.
func PeriodStart(t time.Time, granularity string) time.Time {
	switch granularity {
	case GranularityHourly:
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location())
	case GranularityMonthly:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	case GranularityYearly:
		return time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, t.Location())
	default:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	}
}

func validGranularity(g string) bool {
	switch g {
	case "", GranularityHourly, GranularityDaily, GranularityMonthly, GranularityYearly:
		return true
	}
	return false
}

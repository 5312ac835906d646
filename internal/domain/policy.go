package domain

// AggPolicy declares how a metric field combines across a date range.
// The aggregation engine dispatches on the policy mechanically so that a
// newly added field cannot silently default to the wrong arithmetic.
type AggPolicy int

const (
	// AggSum adds daily values; missing days contribute zero.
	AggSum AggPolicy = iota
	// AggAverage takes the arithmetic mean of daily values (used for rate
	// fields that are stored per day rather than recomputed from sums).
	AggAverage
	// AggLatest takes the most recent value in range. Gauges only.
	AggLatest
	// AggMax takes the largest value observed in range.
	AggMax
)

// FieldPolicies maps every aggregated field name to its policy. The table is
// the authority; hand-coded per-field logic in the engine is a bug.
var FieldPolicies = map[string]AggPolicy{
	"traffic":             AggSum,
	"orders":              AggSum,
	"new_customer_orders": AggSum,
	"revenue":             AggSum,
	"contribution_margin": AggSum,
	"conversion_rate":     AggAverage,
	"spend":               AggSum,
	"roas":                AggAverage,
	"paid_reach":          AggSum,
	"campaigns_sent":      AggSum,
	"emails_sent":         AggSum,
	"emails_opened":       AggSum,
	"emails_clicked":      AggSum,
	"active_flows":        AggLatest,
	"subscriber_count":    AggLatest,
	"unique_signups":      AggSum,
	"followers":           AggLatest,
	"reach":               AggSum,
	"impressions":         AggSum,
	"accounts_engaged":    AggSum,
	"quantity_sold":       AggSum,
	"inventory_remaining": AggMax,
}

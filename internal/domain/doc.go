// Package domain models regional epidemiological time series and the
// region-adjacency data they are routed over.
//
// # Identifiers
//
// Regions are US counties identified by five-digit FIPS codes. Sources render
// them inconsistently ("1001", "01001", "1001.0"); [NormalizeRegionID] is the
// only place they are converted to the fixed-width form used everywhere else.
//
// # Dates
//
// Every date is midnight UTC. The cumulative source names its columns "M/D/YY",
// the repair source uses "YYYY-MM-DD" and the persisted table uses "dMMDDYYYY".
// [ParseDate] accepts all three.
//
// # Derivation
//
// Cumulative counts become active cases through a fixed sequence of pure
// stages, each taking and returning a [RecordSet]:
//
//	Ingest -> Repair -> Difference -> Aggregate -> [Scale] -> Remap
//
// A stage applied out of order fails with [ErrStageOrder].
//
//	Repair:     regions in [KnownBadRegions] report zeros in the primary
//	            source; their values are pivoted from the secondary source,
//	            missing (region, date) pairs become 0.
//	Difference: day-over-day deltas, negatives clamped to 0, first date dropped.
//	Aggregate:  confirmed cases only, trailing [ActiveWindow]-day sum (a case is
//	            active for 10 days); the first 9 dates are dropped.
//	Scale:      per 100,000 residents; regions without a population are dropped.
//	Remap:      [DefaultRemap] renames ids that the boundary geometry spells
//	            differently (46102 -> 46113).
//
// Because differencing and the rolling sum consume leading dates, a request
// starting on day D ingests from D minus [CaseType.Lookback] days.
package domain

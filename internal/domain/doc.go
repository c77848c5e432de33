// Package domain models geotechnical borehole investigation data.
//
// # Standard Penetration Test
//
// An SPT drives a split-spoon sampler through three consecutive 15 cm
// increments and records the number of hammer blows needed for each one:
//
//	[seating, second, third]  →  e.g. [4, 7, 9]
//
// The first increment seats the sampler in disturbed material at the bottom
// of the hole and is discarded. The N-value (blow count) is the sum of the
// last two increments: 7 + 9 = 16. Field sheets sometimes carry more than
// three increments (extended drives) or fewer (refusal); the rule used here
// always sums the last two recorded increments and yields 0 when fewer than
// two were recorded:
//
//	[2, 3, 5, 7]  →  12
//	[5, 5]        →  10
//	[4]           →  0
//	[]            →  0
//	absent        →  0
//
// No overburden or hammer-energy corrections are applied. Negative or
// otherwise implausible counts are accepted as recorded; rejecting them is a
// caller policy (see ValidationPolicy).
//
// # Entities
//
// SPTRecord is one depth-indexed reading and is immutable once built.
// BoreholeRecord aggregates readings in insertion order (field order), which
// is not necessarily depth order. SpatialPoint co-locates a surveyed position
// with at most one borehole and at most one lab-test aggregate. A borehole
// does not know which point owns it.
//
// # Presentation
//
// Summaries (SPTSummary) and depth profiles (Profile) are plain values.
// Rendering them is delegated to SummaryRenderer and ProfileRenderer
// implementations outside this package.
package domain

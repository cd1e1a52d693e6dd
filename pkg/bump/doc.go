// Package bump defines the speed-bump domain shared by the server, the agent
// and bumpctl. These are the canonical in-memory representations of a
// record's condition, separate from any storage or wire format.
//
// status.go holds the pure health→status derivation:
// Good ≥7000, Damaged 3000-6999, Critical <3000. A boundary value always
// belongs to the higher tier.
//
// condition.go models the two condition variants (numeric health or the
// legacy enumerated status) as a tagged union. Mode selects which variant is
// authoritative for a deployment and adapts raw storage columns into it.
//
// filter.go implements the all/damaged/critical list filter.
//
// impact.go holds the roadside damage model used by impact ingestion.
package bump

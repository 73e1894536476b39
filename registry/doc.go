// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package registry stores the reference data the engine computes over: units,
plus the shared loaders for assemblies and questions.

# Universes

Each organization has two disjoint universes of units, real and demo. A
universe is the set of active units with the same is_demo flag; every
percentage is computed against one universe and never mixes the two:

	units, err := registry.Universe(ctx, conn, orgID, false)
	sum := registry.CoefficientSum(units) // ideally 100

Import reports whether the coefficient sum is within tolerance of 100 but
does not reject a batch for it.

# Structural Gate

Units may not be added or deleted while an assembly of the same universe is
active past its grace window. See policy.Policy.StructureEditable.

# Querier

The package-level loaders take a db.Querier so they run the same inside a
transaction as on the pool.
*/
package registry

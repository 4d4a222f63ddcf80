// Package numeric is the single numeric backend used by tasks, containers,
// models and the prediction orchestrator. Matrices are gonum *mat.Dense and
// randomness comes from a re-seedable math/rand/v2 PCG source so that every
// sampling call can start from the same deterministic state.
package numeric

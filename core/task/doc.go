// Package task defines the Task record exchanged between loaders, models and
// the prediction orchestrator.
//
// A task holds one or more context sets (coordinates X_c and values Y_c) and
// one or more target sets (coordinates X_t). A context set is either
// ungridded, a d x N array with observations along the last axis, or gridded,
// a pair of 1-D axes describing a mesh. Gridded sets cannot be appended to.
//
// Tasks have value semantics: Modify and AppendObs clone before changing
// anything, so callers may keep using the original.
package task

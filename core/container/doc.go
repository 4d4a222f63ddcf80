// Package container allocates the output containers filled by the
// prediction orchestrator.
//
// Dense containers (DataArray, Dataset) are addressed by
// (data_var, [sample], time, x1, x2) over the axes of a uniformly spaced
// reference Grid, optionally upsampled by a resolution factor. Tabular
// containers (Frame) hold one row per (sample, date, target point) with one
// column per variable. Both start filled with NaN.
//
// The package also defines the accepted target-location shapes: *Grid,
// *Index and raw *Coords.
package container

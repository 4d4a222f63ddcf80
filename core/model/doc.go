// Package model defines what the prediction orchestrator needs from a
// probabilistic model.
//
// Two calling conventions exist. A ProbabilisticModel answers every
// statistic directly from a task and may re-run itself per call. A
// DistributionModel runs once per task and hands back a Distribution that is
// queried for mean, standard deviation and samples. The caller picks the
// convention when wiring the model, with Direct or Distributional; the
// orchestrator only sees the resulting Runner.
package model

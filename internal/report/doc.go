// Package report renders validation reports and simulation timelines as
// HTML charts (go-echarts) and static PNG plots (gonum/plot).
//
// TTC values of "no collision" are drawn at TTCCeiling so a run that never
// closes on anything still produces a continuous line.
package report

// Package scheduler fires named jobs on cron expressions or fixed intervals.
//
// Jobs never overlap themselves: a trigger that arrives while the previous
// run is still going is skipped. Interval schedules fire one full interval
// after Start, never immediately.
package scheduler

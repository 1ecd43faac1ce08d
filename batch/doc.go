// Package batch runs many queries through a flow runner with bounded
// concurrency.
//
// Each query becomes an Item addressed by its input index. Items run in
// parallel up to MaxConcurrency, every outcome (including a panic) is
// recorded on its own Item, and no item can cancel or fail another. The
// returned Items are always in input order, followed by a Summary with
// success counts and iteration totals.
package batch

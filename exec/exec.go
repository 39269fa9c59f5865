// Copyright ©2025 The Hmat Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package exec abstracts how independent units of block-tree work are
// scheduled. The engine submits a batch of tasks whose data sets are
// disjoint and joins them before proceeding; an Executor decides
// whether they run inline or concurrently.
package exec

import "golang.org/x/sync/errgroup"

// Executor runs a batch of independent tasks and returns the first
// error, after all tasks have finished.
type Executor interface {
	Run(tasks ...func() error) error
}

// Sequential runs tasks one after another in submission order,
// stopping at the first error.
type Sequential struct{}

// Run implements Executor.
func (Sequential) Run(tasks ...func() error) error {
	for _, t := range tasks {
		if err := t(); err != nil {
			return err
		}
	}
	return nil
}

// Parallel runs tasks concurrently, at most Limit at a time.
type Parallel struct {
	// Limit bounds concurrent tasks; zero or negative means no bound.
	Limit int
}

// Run implements Executor.
func (p Parallel) Run(tasks ...func() error) error {
	var g errgroup.Group
	if p.Limit > 0 {
		g.SetLimit(p.Limit)
	}
	for _, t := range tasks {
		g.Go(t)
	}
	return g.Wait()
}

// Package importer loads tasks in bulk from a YAML document:
//
//	tasks:
//	  - title: Buy milk
//	    priority: Low
//	    when: Today
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/and161185/taskkeeper/internal/errs"
	"github.com/and161185/taskkeeper/internal/model"
)

// Adder is the part of the task service the importer needs.
type Adder interface {
	AddTask(ctx context.Context, t model.Task) (model.Task, error)
}

type file struct {
	Tasks []model.Task `yaml:"tasks"`
}

// Failure is a task that was rejected.
type Failure struct {
	Index int
	Title string
	Err   error
}

// Report summarizes an import.
type Report struct {
	Added  []model.Task
	Failed []Failure
}

// Parse decodes the YAML document. Unknown keys are rejected.
func Parse(r io.Reader) ([]model.Task, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var f file
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("parse import: %w", err)
	}
	return f.Tasks, nil
}

// Import adds every task in r. Invalid tasks are recorded and skipped; any other error
// stops the import and is returned with the partial report.
func Import(ctx context.Context, svc Adder, r io.Reader, log *zap.Logger) (Report, error) {
	if log == nil {
		log = zap.NewNop()
	}
	tasks, err := Parse(r)
	if err != nil {
		return Report{}, err
	}
	var rep Report
	for i, t := range tasks {
		added, err := svc.AddTask(ctx, t)
		switch {
		case err == nil:
			rep.Added = append(rep.Added, added)
		case errors.Is(err, errs.ErrValidation), errors.Is(err, errs.ErrAlreadyExists):
			log.Info("import: task skipped", zap.Int("index", i), zap.Error(err))
			rep.Failed = append(rep.Failed, Failure{Index: i, Title: t.Title, Err: err})
		default:
			return rep, fmt.Errorf("import task %d: %w", i, err)
		}
	}
	log.Info("import done", zap.Int("added", len(rep.Added)), zap.Int("failed", len(rep.Failed)))
	return rep, nil
}

package mocks

import (
	"context"
	"errors"
	"sync"

	kdb "github.com/eosc4cancer/cbiobridge/pkg/db"
)

type ImportJobInterface struct {
	Impl struct {
		Record func(context.Context, kdb.ImportJob) error
		Find   func(context.Context, kdb.JobQuery) ([]kdb.ImportJob, error)
		Get    func(context.Context, string) (kdb.ImportJob, error)
	}
	Calls struct {
		Record CallLog[kdb.ImportJob]
		Find   CallLog[kdb.JobQuery]
		Get    CallLog[string]
	}

	mu sync.Mutex
}

func NewImportJobInterface() *ImportJobInterface {
	return &ImportJobInterface{}
}

var _ kdb.ImportJobInterface = &ImportJobInterface{}

func (m *ImportJobInterface) Record(ctx context.Context, job kdb.ImportJob) error {
	m.mu.Lock()
	m.Calls.Record = append(m.Calls.Record, job)
	m.mu.Unlock()
	if m.Impl.Record != nil {
		return m.Impl.Record(ctx, job)
	}
	panic(errors.New("it should not be called"))
}

func (m *ImportJobInterface) Find(ctx context.Context, query kdb.JobQuery) ([]kdb.ImportJob, error) {
	m.mu.Lock()
	m.Calls.Find = append(m.Calls.Find, query)
	m.mu.Unlock()
	if m.Impl.Find != nil {
		return m.Impl.Find(ctx, query)
	}
	panic(errors.New("it should not be called"))
}

func (m *ImportJobInterface) Get(ctx context.Context, id string) (kdb.ImportJob, error) {
	m.mu.Lock()
	m.Calls.Get = append(m.Calls.Get, id)
	m.mu.Unlock()
	if m.Impl.Get != nil {
		return m.Impl.Get(ctx, id)
	}
	panic(errors.New("it should not be called"))
}

type BridgeDatabase struct {
	Jobs *ImportJobInterface
}

func NewBridgeDatabase() *BridgeDatabase {
	return &BridgeDatabase{Jobs: NewImportJobInterface()}
}

var _ kdb.BridgeDatabase = &BridgeDatabase{}

func (m *BridgeDatabase) ImportJobs() kdb.ImportJobInterface {
	return m.Jobs
}

func (m *BridgeDatabase) Close() error {
	return nil
}

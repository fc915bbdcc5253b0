package services

import (
	"context"
	"errors"
	"time"
)

const shutdownTimeout = 5 * time.Second

// ShutdownWorker stops running executions, flows and cell searches when the server exits.
type ShutdownWorker struct {
	engine     *Engine
	dataFlow   *DataFlowManager
	cellSearch *CellSearchSimulator
}

func NewShutdownWorker(engine *Engine, dataFlow *DataFlowManager, cellSearch *CellSearchSimulator) *ShutdownWorker {
	return &ShutdownWorker{engine: engine, dataFlow: dataFlow, cellSearch: cellSearch}
}

func (w *ShutdownWorker) Name() string {
	return "execution-shutdown"
}

func (w *ShutdownWorker) Run(ctx context.Context) error {
	<-ctx.Done()
	closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return errors.Join(w.engine.Close(closeCtx), w.dataFlow.Close(closeCtx), w.cellSearch.Close(closeCtx))
}

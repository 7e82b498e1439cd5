package factory

import (
	"github.com/onee-only/capstat/internal/storage"
	"github.com/onee-only/capstat/internal/storage/table"
	"github.com/onee-only/capstat/pkg/analyze"
)

func New(t analyze.AnalyzeType) storage.TableStorage {
	switch t {
	case analyze.AnalyzeTypeLatency:
		return &table.LatencyStorage{}
	case analyze.AnalyzeTypeBurst:
		return &table.BurstStorage{}
	}

	return nil
}

package handlers

import (
	"context"
	"net/http"

	"github.com/JeanGrijp/niji-api/internal/adapters/http/response"
	"github.com/JeanGrijp/niji-api/internal/core/domain"
)

type StatsReporter interface {
	Report(ctx context.Context) (domain.StatsReport, error)
}

type StatsHandler struct {
	reporter StatsReporter
}

func NewStatsHandler(reporter StatsReporter) *StatsHandler {
	return &StatsHandler{reporter: reporter}
}

func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	report, err := h.reporter.Report(r.Context())
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, report)
}

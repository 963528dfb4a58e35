package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/segyhp/pawn-engine/internal/scheduler"
	customError "github.com/segyhp/pawn-engine/pkg/errors"
	"github.com/segyhp/pawn-engine/pkg/response"
)

// JobHandler lets operators run a lifecycle job outside its cron slot
type JobHandler struct {
	jobs *scheduler.Jobs
}

func NewJobHandler(jobs *scheduler.Jobs) *JobHandler {
	return &JobHandler{jobs: jobs}
}

func (h *JobHandler) Run(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var (
		data interface{}
		err  error
	)
	switch name := mux.Vars(r)["job"]; name {
	case scheduler.JobDetectOverdue:
		data, err = h.jobs.DetectOverdueLoans(ctx)
	case scheduler.JobExpireGrace:
		data, err = h.jobs.ExpireGracePeriods(ctx)
	case scheduler.JobOverdueReport:
		data, err = h.jobs.GenerateOverdueReport(ctx)
	case scheduler.JobDefaultedReport:
		data, err = h.jobs.GenerateDefaultedReport(ctx)
	default:
		response.FromError(w, customError.WrapEntityNotFound("Job", name))
		return
	}

	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, data)
}

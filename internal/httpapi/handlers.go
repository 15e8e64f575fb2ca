package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/John-Robertt/submerge/internal/model"
	"github.com/John-Robertt/submerge/internal/pipeline"
)

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	WriteText(w, http.StatusOK, "ok\n")
}

type aggregateHandler struct {
	opt    Options
	runner *pipeline.Runner
}

func (h aggregateHandler) handleSub(w http.ResponseWriter, r *http.Request) {
	req, err := parseSubGET(r)
	if err != nil {
		writeErrorFromErr(w, err)
		return
	}
	h.serve(w, r, req)
}

func (h aggregateHandler) handleAggregate(w http.ResponseWriter, r *http.Request) {
	req, err := parseAggregatePOST(w, r)
	if err != nil {
		writeErrorFromErr(w, err)
		return
	}
	h.serve(w, r, req)
}

func (h aggregateHandler) serve(w http.ResponseWriter, r *http.Request, req aggregateRequest) {
	ctx, cancel := context.WithTimeout(r.Context(), h.opt.ConvertTimeout)
	defer cancel()

	out, err := h.runner.Run(ctx, req.Sources)
	if out == nil {
		writeErrorFromErr(w, err)
		return
	}
	if err != nil {
		if r.Context().Err() != nil {
			// Client is gone.
			return
		}
		// Timed out: the pending sources are reported as failed in the document.
		h.opt.Logger.WithError(err).WithField("sources", len(req.Sources)).Warn("aggregation cut short")
	}
	metricsObserveRun(out.Summary.Succeeded(), out.Summary.Failed(), out.Summary.Emitted)

	setAttachmentHeaders(w, req.FileName)
	w.Header().Set("Cache-Control", "no-store")
	WriteYAML(w, http.StatusOK, out.YAML)

	if errors.Is(err, context.DeadlineExceeded) {
		metricsIncAppError(model.StageAggregate, "TIMEOUT")
	}
	h.opt.Logger.WithFields(logrus.Fields{
		"sources":   len(req.Sources),
		"succeeded": out.Summary.Succeeded(),
		"emitted":   out.Summary.Emitted,
	}).Debug("aggregate served")
}

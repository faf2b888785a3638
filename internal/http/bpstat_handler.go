package httpapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"bptrack/internal/bpcategory"
	"bptrack/internal/service"

	"go.uber.org/zap"
)

const maxUploadBytes = 10 << 20

// BPStatHandler blood-pressure reading endpoints; all routes require RequireAuth.
type BPStatHandler struct {
	bpStatService service.BPStatService
	logger        *zap.Logger
}

func NewBPStatHandler(bpStatService service.BPStatService, logger *zap.Logger) *BPStatHandler {
	return &BPStatHandler{
		bpStatService: bpStatService,
		logger:        logger,
	}
}

type createBPStatBody struct {
	Systolic  *int   `json:"systolic"`
	Diastolic *int   `json:"diastolic"`
	HeartRate *int   `json:"heartRate"`
	Source    string `json:"source"`
	DeviceID  string `json:"deviceId"`
}

type importBody struct {
	Rows []service.ImportRow `json:"rows"`
}

func (h *BPStatHandler) Create(w http.ResponseWriter, r *http.Request) {
	var body createBPStatBody
	if err := readBodyJSON(r, maxBodyBytes, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}
	stat, err := h.bpStatService.CreateBPStat(r.Context(), service.CreateBPStatRequest{
		UserID:    UserIDFromContext(r.Context()),
		Systolic:  body.Systolic,
		Diastolic: body.Diastolic,
		HeartRate: body.HeartRate,
		Source:    body.Source,
		DeviceID:  body.DeviceID,
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, Ok(stat))
}

// parseTimeParam accepts RFC3339 or a bare date (UTC midnight).
func parseTimeParam(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", v)
}

func (h *BPStatHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := service.ListBPStatsRequest{
		UserID: UserIDFromContext(r.Context()),
		Page:   parseInt(q.Get("page"), 1),
		Limit:  parseInt(q.Get("limit"), 10),
	}

	// category=Normal&category=Elevated or category=Normal,Elevated
	for _, raw := range q["category"] {
		for _, name := range strings.Split(raw, ",") {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			c, err := bpcategory.ParseCategory(name)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, Fail(fmt.Sprintf("unknown category %q", name)))
				return
			}
			req.Categories = append(req.Categories, c)
		}
	}

	var err error
	if req.From, err = parseTimeParam(q.Get("from")); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid from"))
		return
	}
	if req.To, err = parseTimeParam(q.Get("to")); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid to"))
		return
	}

	resp, err := h.bpStatService.ListBPStats(r.Context(), req)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(resp))
}

func (h *BPStatHandler) Get(w http.ResponseWriter, r *http.Request, id string) {
	stat, err := h.bpStatService.GetBPStat(r.Context(), UserIDFromContext(r.Context()), id)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(stat))
}

func (h *BPStatHandler) Delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.bpStatService.DeleteBPStat(r.Context(), UserIDFromContext(r.Context()), id); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]string{"id": id}))
}

func (h *BPStatHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.bpStatService.SummaryBPStats(r.Context(), UserIDFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(summary))
}

func (h *BPStatHandler) Export(w http.ResponseWriter, r *http.Request) {
	data, err := h.bpStatService.ExportBPStats(r.Context(), UserIDFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename=bp-readings.xlsx")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// Import accepts either a JSON body {"rows":[...]} or a multipart upload "file" holding
// a workbook in the export layout.
func (h *BPStatHandler) Import(w http.ResponseWriter, r *http.Request) {
	var rows []service.ImportRow
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			writeJSON(w, http.StatusBadRequest, Fail("failed to parse form"))
			return
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			writeJSON(w, http.StatusBadRequest, Fail("file not found in request"))
			return
		}
		defer file.Close()

		rows, err = service.ParseBPStatWorkbook(file)
		if err != nil {
			writeServiceError(w, h.logger, err)
			return
		}
	} else {
		var body importBody
		if err := readBodyJSON(r, maxUploadBytes, &body); err != nil {
			writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
			return
		}
		rows = body.Rows
	}

	result, err := h.bpStatService.ImportBPStats(r.Context(), UserIDFromContext(r.Context()), rows)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(result))
}

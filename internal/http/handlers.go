package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"orderdesk/internal/domain"
	"orderdesk/internal/excel"
	"orderdesk/internal/logger"
	"orderdesk/internal/repository"
	"orderdesk/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type Handler struct {
	svc *service.Service
}

func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var in domain.PlaceOrderInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, domain.KindValidation, err.Error())
		return
	}
	res, err := h.svc.PlaceOrder(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	start, err := parseRequiredTime(query.Get("start"), false)
	if err != nil {
		writeError(w, http.StatusBadRequest, domain.KindValidation, "start is required and must be a valid date")
		return
	}
	end, err := parseRequiredTime(query.Get("end"), true)
	if err != nil {
		writeError(w, http.StatusBadRequest, domain.KindValidation, "end is required and must be a valid date")
		return
	}
	orders, err := h.svc.ListOrders(r.Context(), *start, *end)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": orders, "count": len(orders)})
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.svc.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.svc.ListProducts(r.Context(), strings.TrimSpace(r.URL.Query().Get("categoryId")))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": products, "count": len(products)})
}

func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.svc.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var in domain.ProductInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, domain.KindValidation, err.Error())
		return
	}
	product, err := h.svc.CreateProduct(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, product)
}

func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	var in domain.ProductInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, domain.KindValidation, err.Error())
		return
	}
	product, err := h.svc.UpdateProduct(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (h *Handler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	var in domain.AdjustStockInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, domain.KindValidation, err.Error())
		return
	}
	res, err := h.svc.AdjustStock(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) ImportStockAdjustmentsExcel(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, domain.KindValidation, "failed to parse multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, domain.KindValidation, "file field is required")
		return
	}
	defer file.Close()

	rows, err := excel.ParseStockAdjustments(file)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	results, err := h.svc.ImportAdjustments(r.Context(), rows)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	applied := lo.CountBy(results, func(res domain.StockAdjustmentRowResult) bool {
		return res.Status == service.RowApplied
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"fileName":  header.Filename,
		"totalRows": len(rows),
		"applied":   applied,
		"failed":    len(results) - applied,
		"results":   results,
	})
}

func (h *Handler) ListStockLogs(w http.ResponseWriter, r *http.Request) {
	filter, err := parseStockLogFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, domain.KindValidation, err.Error())
		return
	}
	logs, err := h.svc.StockLogs(r.Context(), filter)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": logs, "count": len(logs)})
}

func (h *Handler) ExportStockLogs(w http.ResponseWriter, r *http.Request) {
	filter, err := parseStockLogFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, domain.KindValidation, err.Error())
		return
	}
	logs, err := h.svc.StockLogs(r.Context(), filter)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="stock-log.xlsx"`)
	w.WriteHeader(http.StatusOK)
	if err := excel.WriteStockLogs(w, logs); err != nil {
		logger.Error(r.Context(), "stock log export failed", logger.ErrorF(err))
	}
}

func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var in domain.CategoryInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, domain.KindValidation, err.Error())
		return
	}
	category, err := h.svc.CreateCategory(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, category)
}

func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.svc.ListCategories(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": categories, "count": len(categories)})
}

type reorderCategoriesRequest struct {
	Assignments []domain.CategoryPosition `json:"assignments"`
}

func (h *Handler) ReorderCategories(w http.ResponseWriter, r *http.Request) {
	var req reorderCategoriesRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, domain.KindValidation, err.Error())
		return
	}
	if err := h.svc.ReorderCategories(r.Context(), req.Assignments); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *Handler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var in domain.CustomerInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, domain.KindValidation, err.Error())
		return
	}
	customer, err := h.svc.CreateCustomer(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, customer)
}

func (h *Handler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	customer, err := h.svc.GetCustomer(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, customer)
}

func parseStockLogFilter(r *http.Request) (repository.StockLogFilter, error) {
	query := r.URL.Query()
	limit, err := parseOptionalInt(query.Get("limit"), 200)
	if err != nil {
		return repository.StockLogFilter{}, err
	}
	offset, err := parseOptionalInt(query.Get("offset"), 0)
	if err != nil {
		return repository.StockLogFilter{}, err
	}
	return repository.StockLogFilter{
		ProductID: strings.TrimSpace(query.Get("productId")),
		Limit:     limit,
		Offset:    offset,
	}, nil
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func parseOptionalInt(raw string, defaultValue int) (int, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid integer: %s", raw)
	}
	if parsed < 0 {
		return 0, fmt.Errorf("value cannot be negative")
	}
	return parsed, nil
}

// parseOptionalTime accepts RFC3339 or a bare date. With endOfDay set a bare
// date resolves to the last instant of that day so ranges stay inclusive.
func parseOptionalTime(raw string, endOfDay bool) (*time.Time, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}
	if parsed, err := time.Parse(time.RFC3339, value); err == nil {
		return &parsed, nil
	}
	if parsed, err := time.Parse(time.DateOnly, value); err == nil {
		utc := parsed.UTC()
		if endOfDay {
			utc = utc.Add(24*time.Hour - time.Nanosecond)
		}
		return &utc, nil
	}
	return nil, fmt.Errorf("invalid time")
}

func parseRequiredTime(raw string, endOfDay bool) (*time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("time is required")
	}
	return parseOptionalTime(raw, endOfDay)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, map[string]any{"kind": kind, "message": message})
}

// writeServiceError maps the error kind to a status. Internal failures are
// logged and their detail is kept off the wire.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	kind := domain.KindOf(err)
	status := statusForKind(kind)
	message := err.Error()
	if status == http.StatusInternalServerError {
		logger.Error(r.Context(), "request failed",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.ErrorF(err),
		)
		message = domain.ErrInternal.Error()
	}
	writeError(w, status, kind, message)
}

func statusForKind(kind string) int {
	switch kind {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindInsufficientStock, domain.KindConflict:
		return http.StatusConflict
	case domain.KindInvalidState:
		return http.StatusUnprocessableEntity
	case domain.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

package interfaces

import (
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"

	"nexus-inventory/internal/pkg/logger"
	"nexus-inventory/internal/service/inventory/application"
	"nexus-inventory/internal/service/inventory/domain"
)

const serviceName = "inventory-service"

var reservationOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "inventory_reservation_outcomes_total",
	Help: "Reservation requests by final outcome.",
}, []string{"outcome"})

// InventoryHandler 封装了 inventory 服务的 HTTP 处理器
type InventoryHandler struct {
	service *application.ReservationService
}

// NewInventoryHandler 创建一个新的 HTTP 处理器实例
func NewInventoryHandler(service *application.ReservationService) *InventoryHandler {
	return &InventoryHandler{service: service}
}

// RegisterRoutes 在 ServeMux 上注册所有路由
func (h *InventoryHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", h.healthzHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/inventory/apply", h.applyHandler)
}

func (h *InventoryHandler) applyHandler(w http.ResponseWriter, r *http.Request) {
	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	tracer := otel.Tracer(serviceName)
	ctx, span := tracer.Start(ctx, "inventory-service.ApplyInventory")
	defer span.End()

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req domain.ReservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid request body")
		return
	}

	span.SetAttributes(attribute.String("order.id", req.OrderID))

	resp, err := h.service.Reserve(ctx, req.OrderID, req.Items)
	switch {
	case err == nil:
		// 正常完成，包括缺货（success-shaped response 携带 failed 状态）
	case errors.Is(err, domain.ErrValidation):
		reservationOutcomes.WithLabelValues("invalid").Inc()
		writeDetail(w, http.StatusBadRequest, "items required")
		return
	case errors.Is(err, domain.ErrStoreUnavailable):
		reservationOutcomes.WithLabelValues("store_unavailable").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "inventory store unavailable")
		writeDetail(w, http.StatusServiceUnavailable, "inventory store unavailable")
		return
	default:
		reservationOutcomes.WithLabelValues("error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "reservation failed")
		writeDetail(w, http.StatusInternalServerError, "internal error")
		return
	}

	reservationOutcomes.WithLabelValues(resp.Status).Inc()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (h *InventoryHandler) healthzHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	type healthResp struct {
		OK      bool   `json:"ok"`
		Backend string `json:"backend"`
		Error   string `json:"error,omitempty"`
	}

	w.Header().Set("Content-Type", "application/json")
	if err := h.service.Ping(ctx); err != nil {
		logger.Ctx(ctx).Error().Err(err).Msg("health check failed")
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(healthResp{OK: false, Backend: h.service.Backend(), Error: "store unavailable"})
		return
	}
	json.NewEncoder(w).Encode(healthResp{OK: true, Backend: h.service.Backend()})
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}

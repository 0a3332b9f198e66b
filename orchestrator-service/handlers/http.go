package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"

	"github.com/northcart/order-system/orchestrator-service/application"
	"github.com/northcart/order-system/orchestrator-service/domain"
	"github.com/northcart/order-system/shared/saga"
)

// SagaHandlers contains the saga HTTP handlers
type SagaHandlers struct {
	startOrderSaga *application.StartOrderSaga
	startUserSaga  *application.StartUserSaga
	signalSaga     *application.SignalSaga
	getSaga        *application.GetSaga
	listSagas      *application.ListSagas
}

// NewSagaHandlers creates new saga handlers
func NewSagaHandlers(
	startOrderSaga *application.StartOrderSaga,
	startUserSaga *application.StartUserSaga,
	signalSaga *application.SignalSaga,
	getSaga *application.GetSaga,
	listSagas *application.ListSagas,
) *SagaHandlers {
	return &SagaHandlers{
		startOrderSaga: startOrderSaga,
		startUserSaga:  startUserSaga,
		signalSaga:     signalSaga,
		getSaga:        getSaga,
		listSagas:      listSagas,
	}
}

// StartOrder handles order saga start requests. The saga runs
// asynchronously, so the handler answers 202 with the saga ID.
func (h *SagaHandlers) StartOrder(w http.ResponseWriter, r *http.Request) {
	var cmd application.StartOrderSagaCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	response, err := h.startOrderSaga.Execute(r.Context(), &cmd)
	if err != nil {
		if errors.Cause(err).Error() == "saga already exists for this order" {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusAccepted, response)
}

// StartUser handles user registration saga start requests
func (h *SagaHandlers) StartUser(w http.ResponseWriter, r *http.Request) {
	var cmd application.StartUserSagaCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	response, err := h.startUserSaga.Execute(r.Context(), &cmd)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusAccepted, response)
}

// GetSaga handles saga status requests
func (h *SagaHandlers) GetSaga(w http.ResponseWriter, r *http.Request) {
	sagaID := chi.URLParam(r, "id")
	if sagaID == "" {
		http.Error(w, "Saga ID is required", http.StatusBadRequest)
		return
	}

	snapshot, err := h.getSaga.Execute(r.Context(), &application.GetSagaQuery{SagaID: sagaID})
	if err != nil {
		if errors.Is(err, domain.ErrSagaNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, snapshot)
}

// ListOrders lists order processing sagas
func (h *SagaHandlers) ListOrders(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, saga.TypeOrderProcessing)
}

// ListUsers lists user registration sagas
func (h *SagaHandlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, saga.TypeUserRegistration)
}

func (h *SagaHandlers) list(w http.ResponseWriter, r *http.Request, sagaType saga.Type) {
	query := &application.ListSagasQuery{Type: string(sagaType)}
	if limit := r.URL.Query().Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		query.Limit = n
	}

	response, err := h.listSagas.Execute(r.Context(), query)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, response)
}

type signalBody struct {
	Reason string `json:"reason,omitempty"`
	Status string `json:"status,omitempty"`
	Email  string `json:"email,omitempty"`
}

// CancelOrder delivers a cancelOrder signal to an order saga
func (h *SagaHandlers) CancelOrder(w http.ResponseWriter, r *http.Request) {
	var body signalBody
	// An empty body is a cancel without reason.
	_ = json.NewDecoder(r.Body).Decode(&body)
	h.signal(w, r, saga.SignalCancelOrder, body.Reason)
}

// UpdateOrderStatus delivers an updateStatus signal to an order saga
func (h *SagaHandlers) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var body signalBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Status == "" {
		http.Error(w, "Status is required", http.StatusBadRequest)
		return
	}
	h.signal(w, r, saga.SignalUpdateStatus, body.Status)
}

// SuspendUser delivers a suspendUser signal to a registration saga
func (h *SagaHandlers) SuspendUser(w http.ResponseWriter, r *http.Request) {
	var body signalBody
	_ = json.NewDecoder(r.Body).Decode(&body)
	h.signal(w, r, saga.SignalSuspendUser, body.Reason)
}

// UpdateUserEmail delivers an updateEmail signal to a registration saga
func (h *SagaHandlers) UpdateUserEmail(w http.ResponseWriter, r *http.Request) {
	var body signalBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Email == "" {
		http.Error(w, "Email is required", http.StatusBadRequest)
		return
	}
	h.signal(w, r, saga.SignalUpdateEmail, body.Email)
}

func (h *SagaHandlers) signal(w http.ResponseWriter, r *http.Request, name saga.SignalName, value string) {
	sagaID := chi.URLParam(r, "id")
	if sagaID == "" {
		http.Error(w, "Saga ID is required", http.StatusBadRequest)
		return
	}

	response, err := h.signalSaga.Execute(r.Context(), &application.SignalSagaCommand{
		SagaID: sagaID,
		Signal: string(name),
		Value:  value,
	})
	if err != nil {
		if errors.Is(err, domain.ErrSagaNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, response)
}

// RegisterRoutes registers saga routes
func (h *SagaHandlers) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/orders", func(r chi.Router) {
			r.Post("/", h.StartOrder)
			r.Get("/", h.ListOrders)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetSaga)
				r.Post("/cancel", h.CancelOrder)
				r.Post("/status", h.UpdateOrderStatus)
			})
		})
		r.Route("/users", func(r chi.Router) {
			r.Post("/", h.StartUser)
			r.Get("/", h.ListUsers)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetSaga)
				r.Post("/suspend", h.SuspendUser)
				r.Post("/email", h.UpdateUserEmail)
			})
		})
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

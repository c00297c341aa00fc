package presentation

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/RaikyD/krusty-orders-service/internal/application"
	"github.com/RaikyD/krusty-orders-service/internal/catalog"
	"github.com/RaikyD/krusty-orders-service/internal/domain"
	"github.com/RaikyD/krusty-orders-service/internal/identity"
	"github.com/RaikyD/krusty-orders-service/internal/presentation/helpers"
	"github.com/RaikyD/krusty-orders-service/internal/repository"
)

type OrdersHandler struct {
	orders   *application.OrdersService
	payments *application.PaymentsService
	kitchen  *application.KitchenQueue
	carts    *application.CartSessions
	menu     catalog.Catalog
	ids      identity.Resolver
}

func NewOrdersHandler(
	orders *application.OrdersService,
	payments *application.PaymentsService,
	kitchen *application.KitchenQueue,
	carts *application.CartSessions,
	menu catalog.Catalog,
	ids identity.Resolver,
) *OrdersHandler {
	return &OrdersHandler{
		orders:   orders,
		payments: payments,
		kitchen:  kitchen,
		carts:    carts,
		menu:     menu,
		ids:      ids,
	}
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Get("/menu", h.ListMenu)

	r.Group(func(r chi.Router) {
		r.Use(Authenticate(h.ids))

		r.Post("/orders", h.CreateOrder)
		r.Get("/orders", h.ListOrders)
		r.Post("/orders/generate", h.GenerateOrders)
		r.Get("/orders/{id}", h.GetOrder)
		r.Post("/orders/{id}/status", h.UpdateStatus)
		r.Post("/orders/{id}/payments", h.ProcessPayment)
		r.Post("/orders/{id}/payments/cash", h.ProcessCashPayment)
		r.Get("/orders/{id}/payment", h.GetPayment)

		r.Get("/kitchen/queue", h.KitchenQueue)

		r.Get("/cart", h.GetCart)
		r.Post("/cart/items/{itemID}", h.AddToCart)
		r.Delete("/cart/items/{itemID}", h.RemoveFromCart)
		r.Post("/cart/checkout", h.Checkout)
	})
}

func (h *OrdersHandler) ListMenu(w http.ResponseWriter, r *http.Request) {
	items, err := h.menu.ListItems(r.Context())
	if err != nil {
		helpers.WriteError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, items)
}

// CreateOrder accepts three encodings:
// - application/json:    the body is the order request
// - text/plain:          the body is a string holding the JSON
// - multipart/form-data: a JSON file in the "file" field
func (h *OrdersHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())

	ct := r.Header.Get("Content-Type")
	mediatype, params, _ := mime.ParseMediaType(ct)

	var req application.CreateOrderRequest
	var readErr error

	switch mediatype {
	case "application/json":
		readErr = helpers.DecodeJSON(r.Body, &req)

	case "text/plain":
		raw, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		if err != nil {
			readErr = err
			break
		}
		readErr = json.Unmarshal(raw, &req)

	case "multipart/form-data":
		readErr = fmt.Errorf("no file field")
		mr := multipart.NewReader(r.Body, params["boundary"])
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil {
				readErr = err
				break
			}
			if part.FormName() != "file" {
				continue
			}
			bufr := bufio.NewReader(io.LimitReader(part, 2<<20))
			readErr = helpers.DecodeJSON(bufr, &req)
			_ = part.Close()
			break
		}
	default:
		helpers.HttpError(w, http.StatusUnsupportedMediaType, "unsupported content-type")
		return
	}

	if readErr != nil {
		helpers.HttpError(w, http.StatusBadRequest, "invalid JSON: "+readErr.Error())
		return
	}
	if _, err := domain.ParseOrderType(string(req.Type)); err != nil {
		helpers.WriteError(w, err)
		return
	}

	o, err := h.orders.CreateOrder(r.Context(), actor, req)
	if err != nil {
		helpers.WriteError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusCreated, o)
}

func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	q := r.URL.Query()

	f := repository.OrderFilter{ClientID: strings.TrimSpace(q.Get("client_id"))}
	if raw := q.Get("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			st, err := domain.ParseStatus(strings.TrimSpace(s))
			if err != nil {
				helpers.WriteError(w, err)
				return
			}
			f.Statuses = append(f.Statuses, st)
		}
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			helpers.HttpError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		f.Limit = n
	}

	orders, err := h.orders.ListOrders(r.Context(), actor, f)
	if err != nil {
		helpers.WriteError(w, err)
		return
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	helpers.WriteJSON(w, http.StatusOK, orders)
}

func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	id, ok := orderID(w, r)
	if !ok {
		return
	}

	o, err := h.orders.GetOrder(r.Context(), actor, id)
	if err != nil {
		helpers.WriteError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	id, ok := orderID(w, r)
	if !ok {
		return
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := helpers.DecodeJSON(r.Body, &body); err != nil {
		helpers.HttpError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	target, err := domain.ParseStatus(body.Status)
	if err != nil {
		helpers.WriteError(w, err)
		return
	}

	o, err := h.orders.Transition(r.Context(), actor, id, target)
	if err != nil {
		helpers.WriteError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) ProcessPayment(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	id, ok := orderID(w, r)
	if !ok {
		return
	}

	var body struct {
		Method string `json:"method"`
	}
	if err := helpers.DecodeJSON(r.Body, &body); err != nil {
		helpers.HttpError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	method, err := domain.ParsePaymentMethod(body.Method)
	if err != nil {
		helpers.WriteError(w, err)
		return
	}

	receipt, err := h.payments.ProcessPayment(r.Context(), actor, id, method)
	if err != nil {
		helpers.WriteError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusCreated, receipt)
}

func (h *OrdersHandler) ProcessCashPayment(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	id, ok := orderID(w, r)
	if !ok {
		return
	}

	var body struct {
		AmountReceived *decimal.Decimal `json:"amount_received"`
	}
	if err := helpers.DecodeJSON(r.Body, &body); err != nil {
		helpers.HttpError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if body.AmountReceived == nil {
		helpers.HttpError(w, http.StatusBadRequest, "amount_received is required")
		return
	}

	receipt, err := h.payments.ProcessCashPayment(r.Context(), actor, id, *body.AmountReceived)
	if err != nil {
		helpers.WriteError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusCreated, receipt)
}

func (h *OrdersHandler) GetPayment(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	id, ok := orderID(w, r)
	if !ok {
		return
	}

	p, err := h.payments.GetPayment(r.Context(), actor, id)
	if err != nil {
		helpers.WriteError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, p)
}

func (h *OrdersHandler) KitchenQueue(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	items, err := h.kitchen.List(r.Context(), actor)
	if err != nil {
		helpers.WriteError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, items)
}

func (h *OrdersHandler) GenerateOrders(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	q := r.URL.Query().Get("count")
	n := 1
	if q != "" {
		if v, err := strconv.Atoi(q); err == nil && v > 0 && v <= 1000 {
			n = v
		}
	}

	created, err := h.orders.GenerateDemoOrders(r.Context(), actor, n)
	if err != nil {
		helpers.WriteError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusCreated, map[string]any{
		"status":      "ok",
		"created_ids": created,
	})
}

func orderID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		helpers.HttpError(w, http.StatusBadRequest, "invalid order id")
		return uuid.Nil, false
	}
	return id, true
}

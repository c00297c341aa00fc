package presentation

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/RaikyD/krusty-orders-service/internal/application"
	"github.com/RaikyD/krusty-orders-service/internal/domain"
	"github.com/RaikyD/krusty-orders-service/internal/presentation/helpers"
)

type cartView struct {
	Items []application.CartLine `json:"items"`
	Total decimal.Decimal        `json:"total"`
	Added *bool                  `json:"added,omitempty"`
}

func (h *OrdersHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	h.writeCart(w, r, h.carts.For(actor.ID), nil)
}

// AddToCart answers 200 even when the item could not be added; "added"
// tells the client whether it was.
func (h *OrdersHandler) AddToCart(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	itemID, ok := menuItemID(w, r)
	if !ok {
		return
	}
	cart := h.carts.For(actor.ID)
	added := cart.Add(r.Context(), itemID)
	h.writeCart(w, r, cart, &added)
}

func (h *OrdersHandler) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	itemID, ok := menuItemID(w, r)
	if !ok {
		return
	}
	cart := h.carts.For(actor.ID)
	cart.Remove(itemID)
	h.writeCart(w, r, cart, nil)
}

func (h *OrdersHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())

	var body struct {
		Type            string `json:"type"`
		DeliveryAddress string `json:"delivery_address"`
	}
	if err := helpers.DecodeJSON(r.Body, &body); err != nil {
		helpers.HttpError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	t, err := domain.ParseOrderType(body.Type)
	if err != nil {
		helpers.WriteError(w, err)
		return
	}

	o, err := h.carts.Checkout(r.Context(), h.orders, actor, t, body.DeliveryAddress)
	if err != nil {
		helpers.WriteError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusCreated, o)
}

func (h *OrdersHandler) writeCart(w http.ResponseWriter, r *http.Request, cart *application.Cart, added *bool) {
	total, err := cart.Total(r.Context())
	if err != nil {
		helpers.WriteError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, cartView{Items: cart.Lines(), Total: total, Added: added})
}

func menuItemID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "itemID"), 10, 64)
	if err != nil || id <= 0 {
		helpers.HttpError(w, http.StatusBadRequest, "invalid menu item id")
		return 0, false
	}
	return id, true
}

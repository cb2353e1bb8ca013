package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/TemirB/order-desk/internal/domain"
)

type orderProductRequest struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  int   `json:"quantity" validate:"required,gt=0"`
}

type createOrderRequest struct {
	ClientID int64                 `json:"client_id" validate:"required,gt=0"`
	Status   domain.OrderStatus    `json:"status" validate:"required,order_status"`
	Total    int64                 `json:"total" validate:"gte=0"`
	Products []orderProductRequest `json:"products" validate:"omitempty,dive"`
}

// createMyOrderRequest has no client_id: the order always goes to the caller's client.
type createMyOrderRequest struct {
	Status   domain.OrderStatus    `json:"status" validate:"required,order_status"`
	Total    int64                 `json:"total" validate:"gte=0"`
	Products []orderProductRequest `json:"products" validate:"omitempty,dive"`
}

type updateOrderRequest struct {
	Status *domain.OrderStatus `json:"status" validate:"omitempty,order_status"`
	Total  *int64              `json:"total" validate:"omitempty,gte=0"`
}

func productRefs(in []orderProductRequest) []domain.ProductRef {
	if len(in) == 0 {
		return nil
	}
	refs := make([]domain.ProductRef, len(in))
	for i, p := range in {
		refs[i] = domain.ProductRef{ProductID: p.ProductID, Quantity: p.Quantity}
	}
	return refs
}

func (s *Server) listOrders(w http.ResponseWriter, r *http.Request) {
	page, perPage, err := pagination(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	orders, err := s.orders.GetAllOrders(r.Context(), page, perPage)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "orders", orders)
}

func (s *Server) listClientOrders(w http.ResponseWriter, r *http.Request) {
	clientID, err := pathID(r, "clientID")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	page, perPage, err := pagination(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	orders, err := s.orders.GetOrdersByClient(r.Context(), clientID, page, perPage)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "client orders", orders)
}

func (s *Server) listOrdersByStatus(w http.ResponseWriter, r *http.Request) {
	status := domain.OrderStatus(chi.URLParam(r, "status"))
	if !status.Valid() {
		s.fail(w, r, invalidf("unknown order status %q", status))
		return
	}
	page, perPage, err := pagination(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	orders, err := s.orders.GetOrdersByStatus(r.Context(), status, page, perPage)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "orders by status", orders)
}

func (s *Server) getOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	order, err := s.orders.GetOrderByID(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "order", order)
}

func (s *Server) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := s.decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	order, err := s.orders.CreateOrder(r.Context(), domain.NewOrder{
		ClientID: req.ClientID,
		Status:   req.Status,
		Total:    req.Total,
		Products: productRefs(req.Products),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusCreated, "order created", order)
}

func (s *Server) updateOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req updateOrderRequest
	if err := s.decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	order, err := s.orders.UpdateOrder(r.Context(), id, domain.OrderPatch{Status: req.Status, Total: req.Total})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "order updated", order)
}

func (s *Server) deleteOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	deleted, err := s.orders.DeleteOrder(r.Context(), id)
	s.deleted(w, r, "order deleted", deleted, err)
}

func (s *Server) listMyOrders(w http.ResponseWriter, r *http.Request) {
	a, err := actor(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	page, perPage, err := pagination(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	orders, err := s.orders.GetMyOrders(r.Context(), a, page, perPage)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "my orders", orders)
}

func (s *Server) getMyOrder(w http.ResponseWriter, r *http.Request) {
	a, id, err := actorAndID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	order, err := s.orders.GetMyOrderByID(r.Context(), id, a)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "order", order)
}

func (s *Server) createMyOrder(w http.ResponseWriter, r *http.Request) {
	a, err := actor(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req createMyOrderRequest
	if err := s.decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	order, err := s.orders.CreateMyOrder(r.Context(), a, domain.NewOrder{
		Status:   req.Status,
		Total:    req.Total,
		Products: productRefs(req.Products),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusCreated, "order created", order)
}

func (s *Server) updateMyOrder(w http.ResponseWriter, r *http.Request) {
	a, id, err := actorAndID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req updateOrderRequest
	if err := s.decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	order, err := s.orders.UpdateMyOrder(r.Context(), a, id, domain.OrderPatch{Status: req.Status, Total: req.Total})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "order updated", order)
}

func (s *Server) deleteMyOrder(w http.ResponseWriter, r *http.Request) {
	a, id, err := actorAndID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	deleted, err := s.orders.DeleteMyOrder(r.Context(), a, id)
	s.deleted(w, r, "order deleted", deleted, err)
}

func actorAndID(r *http.Request) (domain.Actor, int64, error) {
	a, err := actor(r)
	if err != nil {
		return domain.Actor{}, 0, err
	}
	id, err := pathID(r, "id")
	if err != nil {
		return domain.Actor{}, 0, err
	}
	return a, id, nil
}

// deleted answers a delete; a delete that removed nothing is a 404.
func (s *Server) deleted(w http.ResponseWriter, r *http.Request, message string, deleted bool, err error) {
	switch {
	case err != nil:
		s.fail(w, r, err)
	case !deleted:
		s.fail(w, r, domain.ErrNotFound)
	default:
		ok(w, http.StatusOK, message, map[string]bool{"deleted": true})
	}
}

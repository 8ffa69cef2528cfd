package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"resaleledger/backend/internal/domain"
)

func (a *API) handleProducts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		includeInactive, _ := strconv.ParseBool(r.URL.Query().Get("include_inactive"))
		products, err := a.service.ListProducts(r.Context(), includeInactive)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"products": products})
	case http.MethodPost:
		var req domain.ProductCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		product, err := a.service.CreateProduct(r.Context(), req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"product": product})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleProductActions(w http.ResponseWriter, r *http.Request) {
	id, action := splitResourcePath(r.URL.Path, "/api/v1/products/")
	if id == "" || action != "" {
		writeError(w, http.StatusNotFound, errors.New("product not found"))
		return
	}

	switch r.Method {
	case http.MethodPatch:
		var req domain.ProductUpdateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		updated, err := a.service.UpdateProduct(r.Context(), id, req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"product": updated})
	case http.MethodDelete:
		resp, err := a.service.DeleteProduct(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handlePurchases(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		query := r.URL.Query()
		purchases, err := a.service.ListPurchases(r.Context(), domain.PurchaseFilter{
			Status:      domain.PurchaseStatus(query.Get("status")),
			ProductID:   query.Get("product_id"),
			OrderNumber: query.Get("order_number"),
			Limit:       parsePositiveLimit(query.Get("limit"), 200, 1000),
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"purchases": purchases})
	case http.MethodPost:
		var req domain.PurchaseCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		purchase, err := a.service.CreatePurchase(r.Context(), req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"purchase": purchase})
	default:
		writeMethodNotAllowed(w)
	}
}

// handlePurchaseActions serves /api/v1/purchases/{id} and its lifecycle
// sub-resources.
func (a *API) handlePurchaseActions(w http.ResponseWriter, r *http.Request) {
	id, action := splitResourcePath(r.URL.Path, "/api/v1/purchases/")
	if id == "" {
		writeError(w, http.StatusNotFound, errors.New("purchase not found"))
		return
	}

	switch action {
	case "":
		a.handlePurchase(w, r, id)
	case "deliver":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w)
			return
		}
		var req domain.DeliverRequest
		if err := decodeOptionalJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		a.respondPurchase(w, http.StatusOK)(a.service.MarkDelivered(r.Context(), id, req))
	case "sell":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w)
			return
		}
		var req domain.SaleRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		a.respondPurchase(w, http.StatusOK)(a.service.Sell(r.Context(), id, req))
	case "cancel-sale":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w)
			return
		}
		a.respondPurchase(w, http.StatusOK)(a.service.CancelSale(r.Context(), id))
	case "sale":
		if r.Method != http.MethodPatch {
			writeMethodNotAllowed(w)
			return
		}
		var req domain.SaleEditRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		a.respondPurchase(w, http.StatusOK)(a.service.EditSale(r.Context(), id, req))
	case "points-received":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w)
			return
		}
		req := domain.PointsReceivedRequest{Received: true}
		if err := decodeOptionalJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		resp, err := a.service.SetPointsReceived(r.Context(), id, req.Received)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	default:
		writeError(w, http.StatusNotFound, errors.New("unknown purchase action"))
	}
}

func (a *API) handlePurchase(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodGet:
		a.respondPurchase(w, http.StatusOK)(a.service.GetPurchase(r.Context(), id))
	case http.MethodPatch:
		var req domain.PurchaseUpdateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		a.respondPurchase(w, http.StatusOK)(a.service.UpdatePurchase(r.Context(), id, req))
	case http.MethodDelete:
		if err := a.service.DeletePurchase(r.Context(), id); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"deleted": true, "purchase_id": id})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) respondPurchase(w http.ResponseWriter, status int) func(domain.Purchase, error) {
	return func(purchase domain.Purchase, err error) {
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, status, map[string]any{"purchase": purchase})
	}
}

// splitResourcePath turns "/prefix/{id}/{action}" into its id and action.
func splitResourcePath(path string, prefix string) (string, string) {
	if !strings.HasPrefix(path, prefix) {
		return "", ""
	}
	tail := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	id, action, _ := strings.Cut(tail, "/")
	if strings.Contains(action, "/") {
		return "", ""
	}
	return strings.TrimSpace(id), strings.TrimSpace(action)
}

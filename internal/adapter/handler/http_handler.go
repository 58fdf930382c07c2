package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rl1809/shop-orders/internal/core/domain"
	"github.com/rl1809/shop-orders/internal/core/service"
)

const idempotencyHeader = "Idempotency-Key"

// Error codes carried in the response envelope.
const (
	CodeValidation             = "VALIDATION_ERROR"
	CodeNotFound               = "NOT_FOUND"
	CodeInsufficientStock      = "INSUFFICIENT_STOCK"
	CodeConcurrentModification = "CONCURRENT_MODIFICATION"
	CodeDuplicateRequest       = "DUPLICATE_REQUEST"
	CodeStockNotConfigured     = "STOCK_NOT_CONFIGURED"
	CodeInternal               = "INTERNAL_ERROR"
)

type HTTPHandler struct {
	orderService   *service.OrderService
	productService *service.ProductService
	stockService   *service.StockService
	logger         *slog.Logger
}

type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorBody  `json:"error,omitempty"`
}

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewHTTPHandler(orders *service.OrderService, products *service.ProductService, stock *service.StockService, logger *slog.Logger) *HTTPHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPHandler{
		orderService:   orders,
		productService: products,
		stockService:   stock,
		logger:         logger,
	}
}

func (h *HTTPHandler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", h.HealthCheck)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/products", func(r chi.Router) {
			r.Post("/", h.CreateProduct)
			r.Get("/", h.ListProducts)
			r.Get("/{id}", h.GetProduct)
			r.Patch("/{id}", h.UpdateProduct)
			r.Delete("/{id}", h.DeleteProduct)
		})
		r.Route("/stocks/{productId}", func(r chi.Router) {
			r.Put("/", h.SetStock)
			r.Patch("/", h.AdjustStock)
			r.Get("/", h.GetStock)
		})
		r.Route("/orders", func(r chi.Router) {
			r.Post("/", h.CreateOrder)
			r.Get("/{id}", h.GetOrder)
		})
	})
	return r
}

func (h *HTTPHandler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Products

type ProductResponse struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Price       int64     `json:"price"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

type CreateProductHTTPRequest struct {
	Name        string `json:"name"`
	Price       int64  `json:"price"`
	Description string `json:"description"`
}

type UpdateProductHTTPRequest struct {
	Name        *string `json:"name,omitempty"`
	Price       *int64  `json:"price,omitempty"`
	Description *string `json:"description,omitempty"`
}

type ProductListResponse struct {
	Items []ProductResponse `json:"items"`
	Page  int               `json:"page"`
	Size  int               `json:"size"`
	Total int64             `json:"total"`
}

func toProductResponse(p *domain.Product) ProductResponse {
	return ProductResponse{
		ID:          p.ID,
		Name:        p.Name,
		Price:       p.Price,
		Description: p.Description,
		CreatedAt:   p.CreatedAt,
	}
}

func (h *HTTPHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req CreateProductHTTPRequest
	if !decodeBody(w, r, &req) {
		return
	}

	p, err := h.productService.CreateProduct(r.Context(), service.CreateProductRequest{
		Name:        req.Name,
		Price:       req.Price,
		Description: req.Description,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusCreated, toProductResponse(p))
}

func (h *HTTPHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	p, err := h.productService.GetProduct(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, toProductResponse(p))
}

func (h *HTTPHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req UpdateProductHTTPRequest
	if !decodeBody(w, r, &req) {
		return
	}

	p, err := h.productService.UpdateProduct(r.Context(), id, domain.ProductPatch{
		Name:        req.Name,
		Price:       req.Price,
		Description: req.Description,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, toProductResponse(p))
}

func (h *HTTPHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.productService.DeleteProduct(r.Context(), id); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	page, ok := queryInt(w, r, "page")
	if !ok {
		return
	}
	size, ok := queryInt(w, r, "size")
	if !ok {
		return
	}

	result, err := h.productService.ListProducts(r.Context(), page, size)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	resp := ProductListResponse{
		Items: make([]ProductResponse, 0, len(result.Items)),
		Page:  result.Page,
		Size:  result.Size,
		Total: result.Total,
	}
	for i := range result.Items {
		resp.Items = append(resp.Items, toProductResponse(&result.Items[i]))
	}
	writeData(w, http.StatusOK, resp)
}

// Stock

type StockResponse struct {
	ProductID int64     `json:"product_id"`
	Quantity  int64     `json:"quantity"`
	Version   int64     `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

type SetStockHTTPRequest struct {
	Quantity *int64 `json:"quantity"`
}

type AdjustStockHTTPRequest struct {
	Delta int64 `json:"delta"`
}

func toStockResponse(rec *domain.StockRecord) StockResponse {
	return StockResponse{
		ProductID: rec.ProductID,
		Quantity:  rec.Quantity,
		Version:   rec.Version,
		UpdatedAt: rec.UpdatedAt,
	}
}

func (h *HTTPHandler) SetStock(w http.ResponseWriter, r *http.Request) {
	productID, ok := pathID(w, r, "productId")
	if !ok {
		return
	}
	var req SetStockHTTPRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Quantity == nil {
		writeError(w, http.StatusBadRequest, CodeValidation, "quantity is required")
		return
	}

	rec, err := h.stockService.SetStock(r.Context(), productID, *req.Quantity)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, toStockResponse(rec))
}

func (h *HTTPHandler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	productID, ok := pathID(w, r, "productId")
	if !ok {
		return
	}
	var req AdjustStockHTTPRequest
	if !decodeBody(w, r, &req) {
		return
	}

	rec, err := h.stockService.AdjustStock(r.Context(), productID, req.Delta)
	if err != nil {
		if errors.Is(err, domain.ErrStockNotConfigured) {
			writeError(w, http.StatusNotFound, CodeNotFound, "stock not found")
			return
		}
		h.writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, toStockResponse(rec))
}

func (h *HTTPHandler) GetStock(w http.ResponseWriter, r *http.Request) {
	productID, ok := pathID(w, r, "productId")
	if !ok {
		return
	}
	rec, err := h.stockService.GetStock(r.Context(), productID)
	if err != nil {
		if errors.Is(err, domain.ErrStockNotConfigured) {
			writeError(w, http.StatusNotFound, CodeNotFound, "stock not found")
			return
		}
		h.writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, toStockResponse(rec))
}

// Orders

type OrderItemHTTPRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int64 `json:"quantity"`
}

type CreateOrderHTTPRequest struct {
	RequestID string                 `json:"request_id"`
	Items     []OrderItemHTTPRequest `json:"items"`
}

type OrderItemResponse struct {
	ID          int64  `json:"id"`
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	Price       int64  `json:"price"`
	Quantity    int64  `json:"quantity"`
	Amount      int64  `json:"amount"`
}

type OrderResponse struct {
	ID          int64               `json:"id"`
	OrderNo     string              `json:"order_no"`
	Status      string              `json:"status"`
	TotalAmount int64               `json:"total_amount"`
	CreatedAt   time.Time           `json:"created_at"`
	Items       []OrderItemResponse `json:"items"`
}

func toOrderResponse(o *domain.Order) OrderResponse {
	resp := OrderResponse{
		ID:          o.ID,
		OrderNo:     o.OrderNo,
		Status:      string(o.Status),
		TotalAmount: o.TotalAmount,
		CreatedAt:   o.CreatedAt,
		Items:       make([]OrderItemResponse, 0, len(o.Lines)),
	}
	for _, l := range o.Lines {
		resp.Items = append(resp.Items, OrderItemResponse{
			ID:          l.ID,
			ProductID:   l.ProductID,
			ProductName: l.ProductName,
			Price:       l.PriceSnapshot,
			Quantity:    l.Quantity,
			Amount:      l.Amount(),
		})
	}
	return resp
}

func (h *HTTPHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderHTTPRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if len(req.Items) == 0 {
		writeError(w, http.StatusBadRequest, CodeValidation, "items must not be empty")
		return
	}
	lines := make([]domain.LineRequest, 0, len(req.Items))
	for _, item := range req.Items {
		if item.ProductID <= 0 || item.Quantity <= 0 {
			writeError(w, http.StatusBadRequest, CodeValidation, "product_id and quantity must be positive")
			return
		}
		lines = append(lines, domain.LineRequest{ProductID: item.ProductID, Quantity: item.Quantity})
	}

	requestID := req.RequestID
	if requestID == "" {
		requestID = r.Header.Get(idempotencyHeader)
	}

	order, err := h.orderService.CreateOrder(r.Context(), service.CreateOrderRequest{
		RequestID: requestID,
		Lines:     lines,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusCreated, toOrderResponse(order))
}

func (h *HTTPHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	order, err := h.orderService.GetOrder(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, toOrderResponse(order))
}

// Helpers

// errorStatus maps a service error onto the HTTP status, the envelope code
// and a message that is safe to show to the client.
func errorStatus(err error) (int, string, string) {
	var insufficient *domain.InsufficientStockError
	switch {
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrEmptyOrder):
		return http.StatusBadRequest, CodeValidation, err.Error()
	case errors.Is(err, domain.ErrProductNotFound), errors.Is(err, domain.ErrOrderNotFound):
		return http.StatusNotFound, CodeNotFound, err.Error()
	case errors.As(err, &insufficient):
		return http.StatusConflict, CodeInsufficientStock, err.Error()
	case errors.Is(err, domain.ErrConcurrentModification):
		return http.StatusConflict, CodeConcurrentModification, err.Error()
	case errors.Is(err, domain.ErrDuplicateRequest):
		return http.StatusConflict, CodeDuplicateRequest, "duplicate request"
	case errors.Is(err, domain.ErrStockNotConfigured):
		return http.StatusInternalServerError, CodeStockNotConfigured, err.Error()
	default:
		return http.StatusInternalServerError, CodeInternal, "internal error"
	}
}

func (h *HTTPHandler) writeServiceError(w http.ResponseWriter, err error) {
	status, code, message := errorStatus(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", "code", code, "error", err)
	}
	writeError(w, status, code, message)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, CodeValidation, "invalid request body")
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, CodeValidation, name+" must be a positive integer")
		return 0, false
	}
	return id, true
}

func queryInt(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		writeError(w, http.StatusBadRequest, CodeValidation, name+" must be a non-negative integer")
		return 0, false
	}
	return v, true
}

func writeData(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, Response{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Response{Success: false, Error: &ErrorBody{Code: code, Message: message}})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

package handler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/rl1809/shop-orders/internal/adapter/handler/pb"
	"github.com/rl1809/shop-orders/internal/core/domain"
	"github.com/rl1809/shop-orders/internal/core/service"
)

type GRPCHandler struct {
	pb.UnimplementedOrderServiceServer
	orderService *service.OrderService
	stockService *service.StockService
	logger       *slog.Logger
}

func NewGRPCHandler(orderService *service.OrderService, stockService *service.StockService, logger *slog.Logger) *GRPCHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &GRPCHandler{orderService: orderService, stockService: stockService, logger: logger}
}

func (h *GRPCHandler) CreateOrder(ctx context.Context, req *pb.CreateOrderRequest) (*pb.Order, error) {
	items := req.GetItems()
	if len(items) == 0 {
		return nil, status.Error(codes.InvalidArgument, "items must not be empty")
	}
	lines := make([]domain.LineRequest, 0, len(items))
	for _, item := range items {
		if item == nil || item.ProductId <= 0 || item.Quantity <= 0 {
			return nil, status.Error(codes.InvalidArgument, "product_id and quantity must be positive")
		}
		lines = append(lines, domain.LineRequest{ProductID: item.ProductId, Quantity: item.Quantity})
	}

	order, err := h.orderService.CreateOrder(ctx, service.CreateOrderRequest{
		RequestID: req.GetRequestId(),
		Lines:     lines,
	})
	if err != nil {
		return nil, h.toStatus(err)
	}
	return toPBOrder(order), nil
}

func (h *GRPCHandler) GetOrder(ctx context.Context, req *pb.GetOrderRequest) (*pb.Order, error) {
	order, err := h.orderService.GetOrder(ctx, req.GetId())
	if err != nil {
		return nil, h.toStatus(err)
	}
	return toPBOrder(order), nil
}

func (h *GRPCHandler) GetStock(ctx context.Context, req *pb.GetStockRequest) (*pb.Stock, error) {
	rec, err := h.stockService.GetStock(ctx, req.GetProductId())
	if err != nil {
		if errors.Is(err, domain.ErrStockNotConfigured) {
			return nil, status.Error(codes.NotFound, err.Error())
		}
		return nil, h.toStatus(err)
	}
	return &pb.Stock{ProductId: rec.ProductID, Quantity: rec.Quantity, Version: rec.Version}, nil
}

func (h *GRPCHandler) toStatus(err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrEmptyOrder):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, domain.ErrProductNotFound), errors.Is(err, domain.ErrOrderNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, domain.ErrInsufficientStock):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, domain.ErrConcurrentModification):
		return status.Error(codes.Aborted, err.Error())
	case errors.Is(err, domain.ErrDuplicateRequest):
		return status.Error(codes.AlreadyExists, "duplicate request")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		h.logger.Error("grpc request failed", "error", err)
		return status.Error(codes.Internal, "internal error")
	}
}

func toPBOrder(o *domain.Order) *pb.Order {
	out := &pb.Order{
		Id:          o.ID,
		OrderNo:     o.OrderNo,
		Status:      string(o.Status),
		TotalAmount: o.TotalAmount,
		CreatedAt:   o.CreatedAt,
		Lines:       make([]*pb.OrderLine, 0, len(o.Lines)),
	}
	for _, l := range o.Lines {
		out.Lines = append(out.Lines, &pb.OrderLine{
			Id:          l.ID,
			ProductId:   l.ProductID,
			ProductName: l.ProductName,
			Price:       l.PriceSnapshot,
			Quantity:    l.Quantity,
			Amount:      l.Amount(),
		})
	}
	return out
}

// UnaryLoggingInterceptor logs every unary call with its status code.
func UnaryLoggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logger.Debug("grpc request",
			"method", info.FullMethod,
			"code", status.Code(err).String(),
			"duration", time.Since(start))
		return resp, err
	}
}

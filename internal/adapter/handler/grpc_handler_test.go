package handler

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/suite"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/rl1809/shop-orders/internal/adapter/handler/pb"
	"github.com/rl1809/shop-orders/internal/adapter/storage"
	"github.com/rl1809/shop-orders/internal/core/domain"
)

const bufSize = 1024 * 1024

type GRPCHandlerSuite struct {
	suite.Suite
	store    *storage.MemoryAdapter
	listener *bufconn.Listener
	server   *grpc.Server
	conn     *grpc.ClientConn
	client   pb.OrderServiceClient
}

func TestGRPCHandlerSuite(t *testing.T) {
	suite.Run(t, new(GRPCHandlerSuite))
}

func (s *GRPCHandlerSuite) SetupTest() {
	s.store = storage.NewMemoryAdapter()
	orders, _, stock := newServices(s.store)

	s.listener = bufconn.Listen(bufSize)
	s.server = grpc.NewServer(grpc.UnaryInterceptor(UnaryLoggingInterceptor(quietLogger())))
	pb.RegisterOrderServiceServer(s.server, NewGRPCHandler(orders, stock, quietLogger()))
	go func() { s.server.Serve(s.listener) }()

	var err error
	s.conn, err = grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return s.listener.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	s.Require().NoError(err)
	s.client = pb.NewOrderServiceClient(s.conn)
}

func (s *GRPCHandlerSuite) TearDownTest() {
	if s.conn != nil {
		s.conn.Close()
	}
	if s.server != nil {
		s.server.GracefulStop()
	}
	if s.listener != nil {
		s.listener.Close()
	}
}

func (s *GRPCHandlerSuite) seed(price, qty int64) int64 {
	ctx := context.Background()
	p, err := domain.NewProduct("item", price, "")
	s.Require().NoError(err)
	s.Require().NoError(s.store.CreateProduct(ctx, &p))
	_, err = s.store.SetStock(ctx, p.ID, qty)
	s.Require().NoError(err)
	return p.ID
}

func (s *GRPCHandlerSuite) TestCreateAndGetOrder() {
	ctx := context.Background()
	id := s.seed(1000, 10)

	order, err := s.client.CreateOrder(ctx, &pb.CreateOrderRequest{
		RequestId: "grpc-1",
		Items:     []*pb.OrderItem{{ProductId: id, Quantity: 3}},
	})
	s.Require().NoError(err)
	s.Equal(int64(3000), order.TotalAmount)
	s.Equal("CREATED", order.Status)
	s.Require().Len(order.Lines, 1)
	s.Equal(int64(1000), order.Lines[0].Price)

	got, err := s.client.GetOrder(ctx, &pb.GetOrderRequest{Id: order.Id})
	s.Require().NoError(err)
	s.Equal(order.OrderNo, got.OrderNo)

	stock, err := s.client.GetStock(ctx, &pb.GetStockRequest{ProductId: id})
	s.Require().NoError(err)
	s.Equal(int64(7), stock.Quantity)
	s.Equal(int64(1), stock.Version)
}

func (s *GRPCHandlerSuite) TestErrorCodes() {
	ctx := context.Background()
	id := s.seed(100, 1)

	_, err := s.client.CreateOrder(ctx, &pb.CreateOrderRequest{})
	s.Equal(codes.InvalidArgument, status.Code(err))

	_, err = s.client.CreateOrder(ctx, &pb.CreateOrderRequest{Items: []*pb.OrderItem{{ProductId: 404, Quantity: 1}}})
	s.Equal(codes.NotFound, status.Code(err))

	_, err = s.client.CreateOrder(ctx, &pb.CreateOrderRequest{Items: []*pb.OrderItem{{ProductId: id, Quantity: 5}}})
	s.Equal(codes.FailedPrecondition, status.Code(err))

	req := &pb.CreateOrderRequest{RequestId: "dup", Items: []*pb.OrderItem{{ProductId: id, Quantity: 1}}}
	_, err = s.client.CreateOrder(ctx, req)
	s.Require().NoError(err)
	_, err = s.client.CreateOrder(ctx, req)
	s.Equal(codes.AlreadyExists, status.Code(err))

	_, err = s.client.GetOrder(ctx, &pb.GetOrderRequest{Id: 999})
	s.Equal(codes.NotFound, status.Code(err))

	_, err = s.client.GetStock(ctx, &pb.GetStockRequest{ProductId: 999})
	s.Equal(codes.NotFound, status.Code(err))
}

func (s *GRPCHandlerSuite) TestStatusMapping() {
	h := NewGRPCHandler(nil, nil, quietLogger())
	cases := map[error]codes.Code{
		domain.ConcurrentModification(1):           codes.Aborted,
		domain.StockNotConfigured(1):               codes.Internal,
		&domain.PersistenceError{Op: "save order"}: codes.Internal,
		domain.ErrEmptyOrder:                       codes.InvalidArgument,
		context.DeadlineExceeded:                   codes.DeadlineExceeded,
	}
	for err, want := range cases {
		s.Equal(want, status.Code(h.toStatus(err)), err.Error())
	}
}

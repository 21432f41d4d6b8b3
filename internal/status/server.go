package status

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/parasail-network/node-agent/internal/credentials"
	"github.com/parasail-network/node-agent/internal/scheduler"
	"go.uber.org/zap"
)

// Source exposes the scheduler state served by /status.
type Source interface {
	Snapshot() scheduler.Snapshot
}

// Server is a small read-only observability endpoint for the running agent.
type Server struct {
	app  *fiber.App
	port string
	log  *zap.Logger
}

func NewServer(port string, src Source, session *credentials.Session, log *zap.Logger) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	app.Get("/status", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"address":       session.Address(),
			"authenticated": session.Token() != "",
			"schedule":      src.Snapshot(),
		})
	})

	return &Server{app: app, port: port, log: log}
}

// Run listens until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		_ = s.app.Shutdown()
	}()
	s.log.Info("status server listening", zap.String("port", s.port))
	return s.app.Listen(":" + s.port)
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

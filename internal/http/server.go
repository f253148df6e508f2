package http

import (
	"github.com/gin-gonic/gin"
)

// Server wraps the gin engine serving the master API.
type Server struct {
	Engine *gin.Engine
}

func NewServer(cfg RouterConfig) *Server {
	return &Server{Engine: NewRouter(cfg)}
}

// Run blocks serving on the given address (":8080" style).
func (s *Server) Run(address string) error {
	return s.Engine.Run(address)
}

package main

import (
	"context"
	"net/http"

	"constituency-streets/internal/config"
	"constituency-streets/internal/handler"
	"constituency-streets/internal/repository"
	"constituency-streets/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

func main() {
	config, err := config.LoadConfig("./configs")
	if err != nil {
		log.Fatal().Err(err).Msg("cannot load config")
	}

	// Database connection
	conn, err := pgxpool.New(context.Background(), config.DBSource)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot connect to db")
	}
	defer conn.Close()

	// Initialize layers
	repo := repository.NewRepository(conn)

	streetService := service.NewStreetQueryService(repo)
	streetsHandler := handler.NewStreetsHandler(streetService)

	r := gin.Default()

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
		})
	})

	r.GET("/constituencies/:code/streets", streetsHandler.Streets)

	r.Run(config.ServerAddress)
}

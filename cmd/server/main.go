package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/guildmarket/backend/docs"
	"github.com/guildmarket/backend/internal/database"
	"github.com/guildmarket/backend/internal/handlers"
	mW "github.com/guildmarket/backend/internal/middleware"
	"github.com/guildmarket/backend/internal/services"
	"github.com/spf13/viper"
	httpSwagger "github.com/swaggo/http-swagger"
)

// @title Guild Market Backend API
// @version 1.0
// @description Wallet and marketplace transaction engine for guild economies
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https

func main() {
	// Initialize config
	viper.SetConfigFile(".env") // explicitly point to .env file
	viper.AutomaticEnv()        // allow environment variables to override .env
	viper.ReadInConfig()        // read .env file

	viper.SetEnvPrefix("")

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")
	viper.BindEnv("guild.default_id", "GUILD_DEFAULT_ID")
	viper.BindEnv("economy.fee_rate", "ECONOMY_FEE_RATE")
	viper.BindEnv("economy.daily_claim_amount", "ECONOMY_DAILY_CLAIM_AMOUNT")
	viper.BindEnv("economy.daily_send_limit", "ECONOMY_DAILY_SEND_LIMIT")

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Config file not found, using defaults: %v", err)
	}

	// Initialize Swagger docs
	docs.SwaggerInfo.Title = "Guild Market Backend API"
	docs.SwaggerInfo.Description = "Wallet and marketplace transaction engine for guild economies"
	docs.SwaggerInfo.Version = "1.0"
	docs.SwaggerInfo.Host = "localhost:8080"
	docs.SwaggerInfo.BasePath = "/api/v1"
	docs.SwaggerInfo.Schemes = []string{"http", "https"}

	// Initialize services
	db := database.InitDatabase()
	defer db.Close()

	redisClient := database.InitRedis()
	if redisClient != nil {
		defer redisClient.Close()
	}

	ledgerService := services.NewLedgerService(db)
	configService := services.NewGuildConfigService(db, redisClient)
	publisher := services.NewEventPublisher(redisClient)
	walletService := services.NewWalletService(db, ledgerService, configService, publisher)
	marketService := services.NewMarketService(db, ledgerService, configService, publisher)
	accountService := services.NewAccountService(db)

	walletHandler := handlers.NewWalletHandler(walletService)
	marketHandler := handlers.NewMarketHandler(marketService)
	accountHandler := handlers.NewAccountHandler(accountService)
	guildHandler := handlers.NewGuildHandler(configService)
	eventsHandler := handlers.NewEventsHandler(publisher)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(mW.SecurityHeaders)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Guild-ID"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("http://localhost:8080/swagger/doc.json"),
	))

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(mW.AuthMiddleware)
		r.Use(mW.GuildContext)

		r.Post("/wallets/earn", walletHandler.Earn)
		r.Post("/wallets/claim-daily", walletHandler.ClaimDaily)
		r.Post("/wallets/transfer", walletHandler.Transfer)
		r.Get("/wallets/{accountID}", walletHandler.GetWallet)
		r.Get("/accounts/{accountID}/transactions", walletHandler.GetTransactions)

		r.Post("/listings", marketHandler.CreateListing)
		r.Get("/listings", marketHandler.ListListings)
		r.Get("/listings/{listingID}", marketHandler.GetListing)
		r.Delete("/listings/{listingID}", marketHandler.CancelListing)
		r.Post("/orders", marketHandler.PlaceOrder)

		r.Put("/accounts/{accountID}/freeze", accountHandler.FreezeAccount)
		r.Put("/accounts/{accountID}/unfreeze", accountHandler.UnfreezeAccount)
		r.Get("/leaderboard", accountHandler.Leaderboard)

		r.Get("/guilds/{guildID}/settings", guildHandler.GetSettings)
		r.Put("/guilds/{guildID}/settings", guildHandler.UpdateSettings)

		// Live transaction feed (no replay on reconnect)
		r.Get("/events", eventsHandler.Stream)
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Start server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Printf("Server starting on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server stopped")
}

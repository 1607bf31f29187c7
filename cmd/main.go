package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"civico/backend/internal/api/handler"
	"civico/backend/internal/assistant"
	"civico/backend/internal/catalog"
	"civico/backend/internal/config"
	"civico/backend/internal/draft"
	"civico/backend/internal/geo"
	"civico/backend/internal/identity"
	"civico/backend/internal/replies"
	"civico/backend/internal/storage"
	"civico/backend/internal/vault"
)

func setupDependencies() (*gorm.DB, *redis.Client) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		os.Getenv("DB_HOST"),
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_NAME"),
		os.Getenv("DB_PORT"),
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect PostgreSQL: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     os.Getenv("REDIS_ADDR"),
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       0,
	})
	ctx := context.Background()
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		log.Fatalf("Failed to connect Redis: %v", err)
	}

	if err := storage.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	log.Println("Database and Redis connections established, migrations complete.")
	return db, rdb
}

func main() {
	log.Println("Starting Civico Intake Backend...")

	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Error loading .env file")
	}

	db, rdb := setupDependencies()
	store := storage.NewService(db, rdb)

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET is not set!")
	}
	verifier := identity.NewVerifier(jwtSecret)

	userAgent := os.Getenv("NOMINATIM_USER_AGENT")
	if userAgent == "" {
		userAgent = "civico-intake/1.0"
	}
	nominatim := geo.NewNominatim(userAgent)
	if baseURL := os.Getenv("NOMINATIM_URL"); baseURL != "" {
		nominatim.BaseURL = baseURL
	}
	geocoder := geo.NewCached(nominatim, store)

	finalizer := draft.NewFinalizer(db, store)
	drafts := draft.NewStore(db, geocoder, finalizer)
	blobVault := vault.NewVault(db)
	types := catalog.NewService(store)

	replyCatalog := replies.NewCatalog()
	if path := os.Getenv("REPLIES_FILE"); path != "" {
		loaded, err := replies.NewCatalogFromFile(path)
		if err != nil {
			log.Fatalf("Failed to load replies file: %v", err)
		}
		replyCatalog = loaded
	}

	model, err := assistant.NewGeminiClient(
		context.Background(),
		os.Getenv("GEMINI_API_KEY"),
		os.Getenv("MODEL_NAME"),
	)
	if err != nil {
		log.Fatalf("Failed to create model client: %v", err)
	}
	if os.Getenv("MODEL_NAME") == "" {
		log.Printf("MODEL_NAME not set, using %s", config.DefaultModelName)
	}

	orchestrator := assistant.NewOrchestrator(store, drafts, finalizer, types, model, replyCatalog)
	h := handler.NewHandler(orchestrator, drafts, finalizer, blobVault, types)

	r := gin.Default()

	api := r.Group("/api", verifier.Middleware(identity.RoleCitizen))
	{
		api.GET("/types", h.ListTypes)

		api.POST("/chat/start", h.StartConversation)
		api.POST("/chat/message", h.PostMessage)

		api.POST("/drafts", h.CreateDraft)
		api.GET("/drafts", h.ListDrafts)
		api.PUT("/drafts/:id", h.UpdateDraft)
		api.DELETE("/drafts/:id", h.DiscardDraft)
		api.POST("/drafts/:id/finalize", h.FinalizeDraft)
		api.POST("/drafts/:id/attachments", h.UploadAttachment)

		api.GET("/attachments/:id", h.GetAttachment)
	}

	server := &http.Server{
		Addr:           ":8080",
		Handler:        r,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   90 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	log.Fatal(server.ListenAndServe())
}

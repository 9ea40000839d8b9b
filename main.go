package main

import (
	"context"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"contact-service/internal/contact"
	"contact-service/internal/db"
	"contact-service/internal/handlers"
	"contact-service/internal/middleware"
	"contact-service/internal/observability"
	"contact-service/internal/rabbitmq"
	"contact-service/internal/repositories"
	"contact-service/internal/telemetry"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	database, err := db.Connect()
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}

	shutdownTracing, err := observability.InitTracing(context.Background(),
		getEnv("OTLP_GRPC_ENDPOINT", ""), "contact-service")
	if err != nil {
		log.Fatalf("failed to init tracing: %v", err)
	}
	defer shutdownTracing(context.Background())

	amqpURL := getEnv("AMQP_URL", "")
	exchange := getEnv("AMQP_EXCHANGE", "contact.events")

	auditPublisher := rabbitmq.NewPublisher(amqpURL, exchange)
	defer auditPublisher.Close()
	log.Printf("audit publisher mode=%s", rabbitmq.PublisherMode(auditPublisher))

	emitter := telemetry.NewAuditEmitter(auditPublisher, "audit.contact",
		"contact-service", getEnv("ENVIRONMENT", "dev"))

	if eventPublisher, err := observability.NewAMQPPublisher(amqpURL, exchange); err != nil {
		log.Printf("event publisher disabled: %v", err)
	} else {
		observability.SetPublisher(eventPublisher)
		defer eventPublisher.Close()
	}

	messageRepo := repositories.NewMessageRepo(database)
	contactService := contact.NewService(messageRepo)
	contactHandler := handlers.NewContactHandler(contactService, emitter)

	router := gin.Default()

	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("contact-service"))
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/healthz", func(c *gin.Context) { c.JSON(200, gin.H{"status": "ok"}) })
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authMiddleware := middleware.AuthMiddleware([]byte(getEnv("AUTH_JWT_SECRET", "dev-secret")))

	router.GET("/contact/inbox", authMiddleware, contactHandler.GetInbox)
	router.GET("/contact/conversations", authMiddleware, contactHandler.ListConversations)
	router.GET("/contact/conversations/:email", authMiddleware, contactHandler.OpenConversation)
	router.POST("/contact/messages", authMiddleware, contactHandler.SendMessage)
	router.GET("/contact/admin/messages", authMiddleware, middleware.RequireRole("admin"), contactHandler.ListAllMessages)

	handlers.RegisterDebugRoutes(router, emitter, getEnv("DEBUG_ROUTES", "") == "true")

	port := getEnv("PORT", "8086")
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

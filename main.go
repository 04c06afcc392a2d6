package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/spf13/viper"
	"github.com/streadway/amqp"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"panzshop/internal/handlers"
	"panzshop/internal/models"
	"panzshop/internal/repositories"
	"panzshop/internal/services"
	"panzshop/pkg/cdek"
	"panzshop/pkg/rabbitmq"
)

func main() {
	// --- Configuration ---
	viper.SetDefault("APP_PORT", ":3001")
	viper.SetDefault("DATABASE_DRIVER", "sqlite")
	viper.SetDefault("DATABASE_DSN", "panz_shop.db")
	viper.SetDefault("CDEK_BASE_URL", "https://api.cdek.ru")
	viper.SetDefault("CDEK_API_KEY", "")
	viper.SetDefault("CDEK_ACCOUNT_TOKEN", "")
	viper.SetDefault("CDEK_ORIGIN_CODE", 44) // Moscow
	viper.SetDefault("PAYMENT_BASE_URL", "https://tinkoff.ru/payment")
	viper.SetDefault("PAYMENT_WEBHOOK_PASSWORD", "")
	viper.SetDefault("RABBITMQ_URL", "")
	viper.AutomaticEnv() // Load environment variables

	appPort := viper.GetString("APP_PORT")

	// --- Initialize Database ---
	db, err := openDatabase(viper.GetString("DATABASE_DRIVER"), viper.GetString("DATABASE_DSN"))
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(&models.Order{}); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	// --- Initialize RabbitMQ Client (optional) ---
	// An empty RABBITMQ_URL disables event publication; the order service
	// tolerates a nil publisher.
	var publisher services.EventPublisher
	if rabbitMQURL := viper.GetString("RABBITMQ_URL"); rabbitMQURL != "" {
		mqClient, err := rabbitmq.NewClient(rabbitmq.Config{URL: rabbitMQURL})
		if err != nil {
			log.Fatalf("Failed to initialize RabbitMQ client: %v", err)
		}
		defer mqClient.Close() // Ensure the connection is closed on exit
		publisher = mqClient

		// --- Start RabbitMQ Consumer ---
		// Listens for order lifecycle events published by this process (or
		// other instances sharing the queue) and logs them.
		go func() {
			log.Println("Starting RabbitMQ consumer for order events...")
			messageHandler := func(msg amqp.Delivery) error {
				log.Printf("Received order event %s (tag: %d): %s", msg.Type, msg.DeliveryTag, string(msg.Body))
				return nil // Return nil to acknowledge
			}
			if consumerErr := mqClient.ConsumeOrderEvents(messageHandler); consumerErr != nil {
				log.Printf("Failed to start RabbitMQ consumer: %v", consumerErr)
			}
		}()
	} else {
		log.Println("RABBITMQ_URL not set, order event publication disabled")
	}

	// --- Initialize CDEK Client ---
	cdekClient := cdek.NewClient(cdek.Config{
		BaseURL:      viper.GetString("CDEK_BASE_URL"),
		APIKey:       viper.GetString("CDEK_API_KEY"),
		AccountToken: viper.GetString("CDEK_ACCOUNT_TOKEN"),
	})

	// --- Initialize Repositories ---
	orderRepo := repositories.NewGORMOrderRepository(db)

	// --- Initialize Services ---
	orderService := services.NewOrderService(orderRepo, publisher, services.Config{
		PaymentBaseURL: viper.GetString("PAYMENT_BASE_URL"),
	})

	// --- Initialize Handlers ---
	orderHandler := handlers.NewOrderHandler(orderService)
	deliveryHandler := handlers.NewDeliveryHandler(cdekClient, handlers.DeliveryConfig{
		OriginCode: viper.GetInt("CDEK_ORIGIN_CODE"),
	})
	paymentHandler := handlers.NewPaymentHandler(orderService, handlers.PaymentConfig{
		WebhookPassword: viper.GetString("PAYMENT_WEBHOOK_PASSWORD"),
	})

	// --- Initialize Fiber App ---
	app := fiber.New()

	// --- Middleware ---
	app.Use(logger.New()) // Request logger

	// --- API Routes ---
	orderHandler.RegisterRoutes(app)
	deliveryHandler.RegisterRoutes(app)
	paymentHandler.RegisterRoutes(app)

	// --- Health Check Endpoint ---
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// --- Start HTTP Server ---
	log.Printf("Starting server on port %s", appPort)

	// Graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := app.Listen(appPort); err != nil {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	<-quit
	log.Println("Shutting down server...")

	if err := app.Shutdown(); err != nil {
		log.Printf("Error during Fiber shutdown: %v", err)
	}

	log.Println("Server gracefully stopped")
}

// openDatabase opens a GORM connection for the configured driver. SQLite is
// the default, matching the original deployment's panz_shop.db file.
func openDatabase(driver, dsn string) (*gorm.DB, error) {
	switch driver {
	case "postgres":
		return gorm.Open(postgres.Open(dsn), &gorm.Config{})
	default:
		return gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	}
}

package app

import (
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"chat-core/internal/db"
	"chat-core/internal/handlers"
	"chat-core/internal/models"
	"chat-core/internal/services"
	"chat-core/internal/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

func Run() {
	// Load Env
	if err := utils.LoadEnv(); err != nil {
		log.Println("Warning: .env file not found")
	}

	// Init DB
	connString := utils.GetEnv("DATABASE_URL", "")
	if connString == "" {
		// Fallback to individual vars
		connString = "postgres://" + utils.GetEnv("POSTGRES_USER", "postgres") + ":" +
			utils.GetEnv("POSTGRES_PASSWORD", "postgres") + "@" +
			utils.GetEnv("POSTGRES_HOST", "localhost") + ":" +
			utils.GetEnv("POSTGRES_PORT", "5432") + "/" +
			utils.GetEnv("POSTGRES_DB", "chatdb") + "?sslmode=disable"
	}

	if err := db.InitDB(connString); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.CloseDB()

	// Last-seen store
	presenceStore := services.NewPresenceStore(
		utils.GetEnv("REDIS_ADDR", "localhost:6379"),
		utils.GetEnv("REDIS_PASSWORD", ""),
		utils.GetEnvInt("REDIS_DB", 0),
	)
	defer presenceStore.Close()

	// Services
	userService := services.NewUserService()
	historyService := services.NewHistoryService()

	hub := handlers.NewHub(historyService, presenceStore)

	// Fiber App
	app := fiber.New()

	// Middleware
	app.Use(logger.New())
	app.Use(recover.New())
	app.Use(cors.New())

	// Ensure upload dir exists and serve uploaded files
	uploadDir := utils.GetEnv("UPLOAD_DIR", "uploads")
	if err := os.MkdirAll(uploadDir, 0755); err != nil {
		log.Printf("Warning: failed to create upload dir: %v", err)
	}
	app.Static("/uploads", uploadDir)

	// Routes
	api := app.Group("/api")

	// Public Routes
	api.Post("/register", func(c *fiber.Ctx) error {
		var req models.RegisterRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "Invalid request"})
		}
		user, err := userService.Register(c.Context(), req)
		if err != nil {
			if errors.Is(err, services.ErrUserExists) {
				return c.Status(400).JSON(fiber.Map{"error": "username already exists"})
			}
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		return c.Status(201).JSON(user)
	})

	api.Post("/login", func(c *fiber.Ctx) error {
		var req models.LoginRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "Invalid request"})
		}
		res, err := userService.Login(c.Context(), req)
		if err != nil {
			return c.Status(401).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(res)
	})

	// Refresh token endpoint
	api.Post("/refresh", func(c *fiber.Ctx) error {
		var body struct {
			RefreshToken string `json:"refresh_token"`
		}
		if err := c.BodyParser(&body); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "Invalid request"})
		}
		if body.RefreshToken == "" {
			return c.Status(400).JSON(fiber.Map{"error": "refresh_token required"})
		}

		claims, err := services.ValidateRefreshToken(body.RefreshToken)
		if err != nil {
			return c.Status(401).JSON(fiber.Map{"error": "invalid refresh token"})
		}

		// Extract user info
		userID, ok := claims["user_id"].(string)
		if !ok || userID == "" {
			return c.Status(401).JSON(fiber.Map{"error": "invalid token claims"})
		}
		username, ok := claims["username"].(string)
		if !ok {
			return c.Status(401).JSON(fiber.Map{"error": "invalid token claims"})
		}

		// Generate new tokens
		access, err := services.GenerateJWT(userID, username)
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": "failed to generate access token"})
		}
		refresh, err := services.GenerateRefreshToken(userID, username)
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": "failed to generate refresh token"})
		}

		return c.JSON(fiber.Map{
			"access_token":  access,
			"refresh_token": refresh,
		})
	})

	// Protected Routes
	protected := api.Group("/")
	protected.Use(handlers.AuthMiddleware)

	// List users. Returns online status per user so the sidebar can be
	// ordered without a round trip per peer.
	protected.Get("/users", func(c *fiber.Ctx) error {
		authUserID := c.Locals("user_id").(string)

		users, err := userService.ListUsers(c.Context())
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": "failed to fetch users"})
		}

		var resp []map[string]interface{}
		for _, u := range users {
			if u.ID == authUserID {
				continue
			}
			status := "offline"
			if hub.Presence.IsOnline(u.ID) {
				status = "online"
			}
			resp = append(resp, map[string]interface{}{
				"id":          u.ID,
				"username":    u.Username,
				"displayName": u.DisplayName,
				"status":      status,
			})
		}

		return c.JSON(resp)
	})

	// Delivery routes
	protected.Get("/chat/history", handlers.HistoryHandler(historyService))
	protected.Get("/groups/:groupId/messages", handlers.GroupMessagesHandler(historyService))
	protected.Post("/chat/upload", handlers.UploadHandler(uploadDir))
	protected.Get("/chat/user/status/:userId", handlers.UserStatusHandler(hub.Presence, presenceStore))

	// Health Check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// WebSocket Route
	// Note: Middleware order matters. AuthMiddleware checks token.
	// WSUpgradeMiddleware checks if it's a WS request.
	app.Use("/ws", handlers.WSUpgradeMiddleware)
	app.Use("/ws", handlers.AuthMiddleware)
	app.Get("/ws", handlers.WebSocketHandler(hub))

	// Start Server
	port := utils.GetEnv("PORT", "3001")
	go func() {
		if err := app.Listen(":" + port); err != nil {
			log.Panic(err)
		}
	}()

	// Graceful Shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	<-c // Block until signal
	log.Println("Gracefully shutting down...")
	_ = app.Shutdown()
	log.Println("Server shutdown complete")
}

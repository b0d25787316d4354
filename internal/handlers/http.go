package handlers

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"chat-core/internal/models"
	"chat-core/internal/services"
	"chat-core/internal/utils"
	coremodels "chat-core/pkg/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const defaultHistoryLimit = 200

// buildUploadURL constructs an absolute URL for an uploaded file.
func buildUploadURL(c *fiber.Ctx, filename string) string {
	if filename == "" {
		return ""
	}

	baseURL := utils.GetEnv("BASE_URL", "")
	if baseURL != "" {
		return fmt.Sprintf("%s/uploads/%s", baseURL, filename)
	}

	return fmt.Sprintf("%s://%s/uploads/%s", c.Protocol(), c.Hostname(), filename)
}

// HistoryHandler serves the 1:1 conversation between the authenticated
// user and ?otherUserId=. The slice comes back oldest first.
func HistoryHandler(history *services.HistoryService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		otherID := c.Query("otherUserId")
		if otherID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"error":   "otherUserId is required",
			})
		}

		limit := defaultHistoryLimit
		if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 {
			limit = v
		}

		key := coremodels.ConversationKey(userID, otherID)
		msgs, err := history.GetConversation(c.Context(), key, limit)
		if err != nil {
			utils.LogError(err, "GetConversation")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"error":   "Failed to load history",
			})
		}

		return c.JSON(fiber.Map{
			"success":  true,
			"messages": msgs,
		})
	}
}

// GroupMessagesHandler serves the message history of one group room.
func GroupMessagesHandler(history *services.HistoryService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		groupID := c.Params("groupId")
		if groupID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"error":   "groupId is required",
			})
		}

		limit := defaultHistoryLimit
		if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 {
			limit = v
		}

		msgs, err := history.GetConversation(c.Context(), coremodels.GroupKey(groupID), limit)
		if err != nil {
			utils.LogError(err, "GetConversation")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"error":   "Failed to load history",
			})
		}

		return c.JSON(fiber.Map{
			"success":  true,
			"messages": msgs,
		})
	}
}

// UploadHandler stores one multipart attachment under the uploads dir
// and returns its public descriptor. The stored name is a fresh uuid so
// uploads never collide or overwrite.
func UploadHandler(uploadDir string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		file, err := c.FormFile("file")
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"error":   "file is required",
			})
		}

		ext := filepath.Ext(file.Filename)
		stored := uuid.New().String() + ext
		if err := c.SaveFile(file, filepath.Join(uploadDir, stored)); err != nil {
			utils.LogError(err, "SaveFile")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"error":   "Failed to store file",
			})
		}

		contentType := file.Header.Get("Content-Type")
		if contentType == "" {
			contentType = "application/octet-stream"
		}

		return c.JSON(fiber.Map{
			"success": true,
			"attachment": coremodels.Attachment{
				Name: filepath.Base(file.Filename),
				URL:  buildUploadURL(c, stored),
				Type: contentType,
				Size: file.Size,
			},
		})
	}
}

// UserStatusHandler answers "is this user online, and if not, when were
// they last here". Live presence wins; redis only fills in last-seen
// for offline users and is allowed to fail soft.
func UserStatusHandler(presence *PresenceTracker, lastSeen *services.PresenceStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := strings.TrimSpace(c.Params("userId"))
		if userID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"error":   "userId is required",
			})
		}

		status := models.UserStatus{
			UserID: userID,
			Status: "offline",
		}

		if presence.IsOnline(userID) {
			status.Status = "online"
			status.IsOnline = true
		} else if lastSeen != nil {
			ts, err := lastSeen.LastSeen(c.Context(), userID)
			if err != nil {
				utils.LogError(err, "LastSeen")
			}
			status.LastSeen = ts
		}

		return c.JSON(fiber.Map{
			"success": true,
			"data":    status,
		})
	}
}
